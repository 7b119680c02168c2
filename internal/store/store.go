// Package store runs pipeline queries against the security log database and
// renders results as the literal row text the reifier reads.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"sec-agent/internal/domain"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite3"
	DriverDuckDB = "duckdb"
)

// Store implements domain.Store on a database/sql pool.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

var _ domain.Store = (*Store)(nil)

// New creates a Store. driver selects the schema introspection dialect.
func New(db *sql.DB, driver string, logger *slog.Logger) (*Store, error) {
	if driver != DriverSQLite && driver != DriverDuckDB {
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, driver: driver, logger: logger.With("component", "store")}, nil
}

// Driver reports the configured driver name.
func (s *Store) Driver() string { return s.driver }

// Execute runs a read-only query and renders its rows as
// "[(v1, v2), (v1, v2)]". Statements that are not reads are rejected with a
// ValidationError; database errors come back as *domain.ExecutionError.
func (s *Store) Execute(ctx context.Context, query string) (string, error) {
	if err := CheckReadOnly(query); err != nil {
		return "", err
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return "", &domain.ExecutionError{Query: query, Err: err}
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return "", &domain.ExecutionError{Query: query, Err: err}
	}

	var b strings.Builder
	b.WriteByte('[')
	n := 0
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return "", &domain.ExecutionError{Query: query, Err: err}
		}
		if n > 0 {
			b.WriteString(", ")
		}
		writeRow(&b, vals)
		n++
	}
	if err := rows.Err(); err != nil {
		return "", &domain.ExecutionError{Query: query, Err: err}
	}
	b.WriteByte(']')

	s.logger.Debug("query executed", "rows", n, "columns", len(cols), "duration", time.Since(start))
	return b.String(), nil
}

// TableSchema describes table as "name (TYPE), name (TYPE)". An unknown
// table is a *domain.NotFoundError.
func (s *Store) TableSchema(ctx context.Context, table string) (string, error) {
	q := "SELECT name, type FROM pragma_table_info(?)"
	if s.driver == DriverDuckDB {
		q = "SELECT column_name, data_type FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position"
	}
	rows, err := s.db.QueryContext(ctx, q, table)
	if err != nil {
		return "", &domain.UpstreamError{Service: "store", Err: err}
	}
	defer rows.Close() //nolint:errcheck

	var parts []string
	for rows.Next() {
		var name, typ sql.NullString
		if err := rows.Scan(&name, &typ); err != nil {
			return "", &domain.UpstreamError{Service: "store", Err: err}
		}
		t := strings.ToUpper(strings.TrimSpace(typ.String))
		if t == "" {
			t = "ANY"
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", name.String, t))
	}
	if err := rows.Err(); err != nil {
		return "", &domain.UpstreamError{Service: "store", Err: err}
	}
	if len(parts) == 0 {
		return "", domain.ErrNotFound("table %q not found", table)
	}
	return strings.Join(parts, ", "), nil
}

// TableNames lists user tables in name order.
func (s *Store) TableNames(ctx context.Context) ([]string, error) {
	q := "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name <> 'goose_db_version' ORDER BY name"
	if s.driver == DriverDuckDB {
		q = "SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' ORDER BY table_name"
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, &domain.UpstreamError{Service: "store", Err: err}
	}
	defer rows.Close() //nolint:errcheck

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &domain.UpstreamError{Service: "store", Err: err}
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.UpstreamError{Service: "store", Err: err}
	}
	return names, nil
}

// Ping checks the pool is usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &domain.UpstreamError{Service: "store", Err: err}
	}
	return nil
}

var readKeywords = map[string]bool{
	"select": true, "with": true, "values": true, "explain": true,
	"pragma": true, "show": true, "describe": true, "summarize": true,
}

var writeKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create",
	"attach", "detach", "truncate", "vacuum", "copy", "install", "load",
}

// ErrNotReadOnly marks a statement rejected by CheckReadOnly.
var ErrNotReadOnly = errors.New("only read-only statements may be executed")

// CheckReadOnly makes a best-effort check that query is a single read
// statement and returns a *domain.ValidationError when it is not.
func CheckReadOnly(query string) error {
	q := strings.TrimSpace(stripComments(query))
	q = strings.TrimLeft(q, "( \t\r\n")
	if q == "" {
		return domain.ErrValidation("empty query")
	}
	if i := strings.IndexByte(q, ';'); i >= 0 && strings.TrimSpace(q[i+1:]) != "" {
		return domain.ErrValidation("%v: multiple statements", ErrNotReadOnly)
	}
	words := strings.FieldsFunc(q, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if len(words) == 0 {
		return domain.ErrValidation("%v: no statement keyword", ErrNotReadOnly)
	}
	first := strings.ToLower(words[0])
	if !readKeywords[first] {
		return domain.ErrValidation("%v: statement starts with %q", ErrNotReadOnly, first)
	}
	if first == "with" || first == "pragma" || first == "explain" {
		lower := " " + strings.ToLower(q) + " "
		for _, kw := range writeKeywords {
			if containsWord(lower, kw) {
				return domain.ErrValidation("%v: contains %s", ErrNotReadOnly, strings.ToUpper(kw))
			}
		}
		if first == "pragma" && strings.Contains(q, "=") {
			return domain.ErrValidation("%v: pragma assignment", ErrNotReadOnly)
		}
	}
	return nil
}

func stripComments(q string) string {
	var b strings.Builder
	for i := 0; i < len(q); i++ {
		switch {
		case strings.HasPrefix(q[i:], "--"):
			for i < len(q) && q[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
		case strings.HasPrefix(q[i:], "/*"):
			end := strings.Index(q[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 3
			b.WriteByte(' ')
		default:
			b.WriteByte(q[i])
		}
	}
	return b.String()
}

func containsWord(s, w string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], w)
		if j < 0 {
			return false
		}
		j += i
		before, after := s[j-1], byte(' ')
		if j+len(w) < len(s) {
			after = s[j+len(w)]
		}
		if !isWordByte(before) && !isWordByte(after) {
			return true
		}
		i = j + len(w)
	}
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z'
}

func writeRow(b *strings.Builder, vals []any) {
	b.WriteByte('(')
	for i, v := range vals {
		if i > 0 {
			b.WriteString(", ")
		}
		writeValue(b, v)
	}
	if len(vals) == 1 {
		b.WriteByte(',')
	}
	b.WriteByte(')')
}

func writeValue(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("None")
	case bool:
		if x {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case int32:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case int:
		b.WriteString(strconv.Itoa(x))
	case uint64:
		b.WriteString(strconv.FormatUint(x, 10))
	case float64:
		writeFloat(b, x)
	case float32:
		writeFloat(b, float64(x))
	case []byte:
		writeString(b, string(x))
	case string:
		writeString(b, x)
	case time.Time:
		writeString(b, x.Format(domain.TimeLayout))
	default:
		writeString(b, fmt.Sprint(x))
	}
}

func writeFloat(b *strings.Builder, f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		writeString(b, strconv.FormatFloat(f, 'g', -1, 64))
		return
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	b.WriteString(s)
}

func writeString(b *strings.Builder, s string) {
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
}
