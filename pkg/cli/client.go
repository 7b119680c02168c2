package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sec-agent/internal/domain"
	"sec-agent/internal/service/report"
	"sec-agent/internal/service/sqlgen"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	HTTPStatus int
	Message    string
	Query      string
	Statement  string
}

func (e *APIError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("server returned %d: %s (statement: %s)", e.HTTPStatus, e.Message, e.Statement)
	}
	return fmt.Sprintf("server returned %d: %s", e.HTTPStatus, e.Message)
}

// Client talks to the security agent API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a Client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 5 * time.Minute}}
}

// Analyze calls POST /api/security/analyze.
func (c *Client) Analyze(ctx context.Context, question, start, end string) (*domain.FinalResult, error) {
	body := map[string]string{"query": question}
	if start != "" || end != "" {
		body["start_time"], body["end_time"] = start, end
	}
	var out domain.FinalResult
	if err := c.do(ctx, http.MethodPost, "/api/security/analyze", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ask calls POST /api/security/query.
func (c *Client) Ask(ctx context.Context, question string) (*sqlgen.Answer, error) {
	var out sqlgen.Answer
	if err := c.do(ctx, http.MethodPost, "/api/security/query", map[string]string{"query": question}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Report calls GET /api/security/scheduled_report/{type}.
func (c *Client) Report(ctx context.Context, typ string, hours int) (*report.Report, error) {
	path := "/api/security/scheduled_report/" + url.PathEscape(typ) + "?hours=" + strconv.Itoa(hours)
	var out report.Report
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env domain.ErrorEnvelope
		if json.Unmarshal(data, &env) != nil || env.Error == "" {
			env.Error = strings.TrimSpace(string(data))
		}
		return &APIError{HTTPStatus: resp.StatusCode, Message: env.Error, Query: env.Query, Statement: env.Statement}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
