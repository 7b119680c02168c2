// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"sec-agent/internal/domain"
)

// ErrModelUnavailable is what MockCompleter returns by default.
var ErrModelUnavailable = &domain.UpstreamError{Service: "llm", Err: errors.New("model unavailable")}

// === Completer Mock ===

// MockCompleter implements domain.Completer for testing. Every prompt is
// recorded; CompleteFn decides the answer.
type MockCompleter struct {
	CompleteFn func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

// Complete implements the interface method for testing.
func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, prompt)
	}
	return "", ErrModelUnavailable
}

// Calls returns how many prompts were sent.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of every prompt sent so far.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

var _ domain.Completer = (*MockCompleter)(nil)

// Reply returns a CompleteFn that always answers text.
func Reply(text string) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) { return text, nil }
}

// Route returns a CompleteFn that answers with the first entry whose key is
// contained in the prompt. Prompts matching nothing fail as unavailable.
// Keys are checked in the order given.
func Route(pairs ...string) func(context.Context, string) (string, error) {
	return func(_ context.Context, prompt string) (string, error) {
		for i := 0; i+1 < len(pairs); i += 2 {
			if strings.Contains(prompt, pairs[i]) {
				return pairs[i+1], nil
			}
		}
		return "", ErrModelUnavailable
	}
}

// === Store Mock ===

// MockStore implements domain.Store for testing.
type MockStore struct {
	ExecuteFn     func(ctx context.Context, query string) (string, error)
	TableSchemaFn func(ctx context.Context, table string) (string, error)

	mu      sync.Mutex
	queries []string
}

// Execute implements the interface method for testing.
func (m *MockStore) Execute(ctx context.Context, query string) (string, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, query)
	}
	panic("unexpected call to MockStore.Execute")
}

// TableSchema implements the interface method for testing.
func (m *MockStore) TableSchema(ctx context.Context, table string) (string, error) {
	if m.TableSchemaFn != nil {
		return m.TableSchemaFn(ctx, table)
	}
	return "", domain.ErrNotFound("table %q not found", table)
}

// Queries returns every statement passed to Execute.
func (m *MockStore) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

var _ domain.Store = (*MockStore)(nil)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
