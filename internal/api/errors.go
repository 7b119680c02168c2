package api

import (
	"errors"
	"net/http"

	"sec-agent/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	var upstream *domain.UpstreamError

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// envelopeFromError builds the {error, query, statement} body. query is the
// caller's question; execution failures add the statement that failed.
func envelopeFromError(err error, question string) domain.ErrorEnvelope {
	var exec *domain.ExecutionError
	var pipeline *domain.PipelineError
	switch {
	case errors.As(err, &pipeline):
		return pipeline.Envelope
	case errors.As(err, &exec):
		return domain.ErrorEnvelope{Error: exec.Error(), Query: question, Statement: exec.Query}
	default:
		return domain.ErrorEnvelope{Error: err.Error(), Query: question}
	}
}
