package domain

import "context"

// Completer sends a rendered prompt to a language model and returns its text
// answer. Implementations make exactly one attempt per call.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// QueryExecutor runs a query against the relational store and returns a text
// rendering of the resulting row sequence.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) (string, error)
}

// SchemaProvider describes the columns of a named table as
// "name (TYPE), name (TYPE)" text.
type SchemaProvider interface {
	TableSchema(ctx context.Context, table string) (string, error)
}

// Store is the full relational store surface used by the agent.
type Store interface {
	QueryExecutor
	SchemaProvider
}
