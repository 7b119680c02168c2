package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"time"
)

// SeedOptions controls sample data generation.
type SeedOptions struct {
	Table string
	// Count is the number of background events; 0 means 1000.
	Count int
	// Now anchors the generated window; zero means time.Now().
	Now time.Time
	// Rand drives every random choice; nil uses a fixed seed.
	Rand *rand.Rand
}

// Event is one generated security_logs row.
type Event struct {
	Timestamp       time.Time
	SourceIP        string
	DestinationIP   string
	EventType       string
	Severity        string
	Protocol        string
	SourcePort      int
	DestinationPort int
	UserID          string
	Action          string
	Status          string
	BytesSent       int
	BytesReceived   int
	SessionDuration float64
}

var (
	seedEventTypes = []string{
		"login_attempt", "login_success", "login_failure", "privilege_escalation", "file_access",
		"config_change", "firewall_alert", "port_scan", "malware_detected", "ddos_attack",
	}
	seedSeverities = []string{"low", "medium", "high", "critical"}
	seedProtocols  = []string{"TCP", "UDP", "HTTP", "HTTPS", "SSH", "FTP", "SMTP"}
	seedActions    = []string{"allow", "deny", "warn", "block", "log"}
	seedStatuses   = []string{"success", "failure", "timeout", "interrupted"}
	seedUsers      = []string{"admin", "user1", "user2", "system", "guest", "root", "unknown"}
	seedDestPorts  = []int{22, 80, 443, 3306, 8080, 8443}
)

// burst describes a suspicious activity pattern planted in the last 8 hours.
type burst struct {
	name      string
	count     int
	sourceIP  string
	destIP    string
	eventType string
	severity  string
	protocol  string
	userID    string
	ports     []int
	bytesMin  int
	bytesMax  int
}

var suspiciousBursts = []burst{
	{name: "port scan", count: 50, sourceIP: "203.0.113.42", eventType: "port_scan", severity: "medium", protocol: "TCP", ports: []int{22, 23, 80, 443, 3389, 8080}},
	{name: "brute force", count: 30, sourceIP: "203.0.113.37", eventType: "login_failure", severity: "high", protocol: "SSH", userID: "root"},
	{name: "data exfiltration", count: 5, sourceIP: "192.168.1.25", destIP: "198.51.100.23", eventType: "file_access", severity: "critical", protocol: "FTP", bytesMin: 50000, bytesMax: 100000},
}

// Seed fills an empty table with a week of background events plus the
// suspicious bursts. A table that already has rows is left alone; the
// number of inserted rows is returned.
func Seed(ctx context.Context, db *sql.DB, opts SeedOptions, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Table == "" {
		opts.Table = "security_logs"
	}

	var existing int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+opts.Table).Scan(&existing); err != nil {
		return 0, fmt.Errorf("count %s: %w", opts.Table, err)
	}
	if existing > 0 {
		logger.Info("sample data skipped, table not empty", "table", opts.Table, "rows", existing)
		return 0, nil
	}

	events := GenerateEvents(opts)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, insertSQL(opts.Table))
	if err != nil {
		return 0, fmt.Errorf("prepare seed insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.args()...); err != nil {
			return 0, fmt.Errorf("insert seed event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}

	logger.Info("sample data generated", "table", opts.Table, "rows", len(events))
	return len(events), nil
}

// GenerateEvents returns the rows Seed would insert, ordered by time.
func GenerateEvents(opts SeedOptions) []Event {
	count := opts.Count
	if count <= 0 {
		count = 1000
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	pick := func(xs []string) string { return xs[rng.IntN(len(xs))] }
	between := func(lo, hi int) int { return lo + rng.IntN(hi-lo+1) }

	sources := make([]string, 0, 58)
	for i := 1; i < 50; i++ {
		sources = append(sources, fmt.Sprintf("192.168.1.%d", i))
	}
	for i := 1; i < 10; i++ {
		sources = append(sources, fmt.Sprintf("203.0.113.%d", i))
	}
	dests := make([]string, 0, 23)
	for i := 1; i < 20; i++ {
		dests = append(dests, fmt.Sprintf("10.0.0.%d", i))
	}
	for i := 1; i < 5; i++ {
		dests = append(dests, fmt.Sprintf("172.16.0.%d", i))
	}

	week := 7 * 24 * time.Hour
	events := make([]Event, 0, count+85)
	for range count {
		events = append(events, Event{
			Timestamp:       now.Add(-week + time.Duration(rng.Int64N(int64(week)))),
			SourceIP:        pick(sources),
			DestinationIP:   pick(dests),
			EventType:       pick(seedEventTypes),
			Severity:        pick(seedSeverities),
			Protocol:        pick(seedProtocols),
			SourcePort:      between(1024, 65535),
			DestinationPort: seedDestPorts[rng.IntN(len(seedDestPorts))],
			UserID:          pick(seedUsers),
			Action:          pick(seedActions),
			Status:          pick(seedStatuses),
			BytesSent:       between(100, 10000),
			BytesReceived:   between(100, 10000),
			SessionDuration: float64(between(1, 3600)),
		})
	}

	for _, b := range suspiciousBursts {
		for range b.count {
			e := Event{
				Timestamp:       now.Add(-time.Duration(between(1, 8)) * time.Hour),
				SourceIP:        b.sourceIP,
				DestinationIP:   b.destIP,
				EventType:       b.eventType,
				Severity:        b.severity,
				Protocol:        b.protocol,
				SourcePort:      between(1024, 65535),
				DestinationPort: []int{22, 80, 443, 3306, 8080}[rng.IntN(5)],
				UserID:          b.userID,
				Action:          "allow",
				Status:          "success",
				BytesSent:       between(100, 10000),
				BytesReceived:   between(100, 10000),
				SessionDuration: float64(between(1, 60)),
			}
			if e.DestinationIP == "" {
				e.DestinationIP = fmt.Sprintf("10.0.0.%d", between(1, 20))
			}
			if e.UserID == "" {
				e.UserID = "unknown"
			}
			if rng.Float64() > 0.3 {
				e.Action = "deny"
			}
			if rng.Float64() > 0.3 {
				e.Status = "failure"
			}
			if len(b.ports) > 0 {
				e.DestinationPort = b.ports[rng.IntN(len(b.ports))]
			}
			if b.bytesMax > 0 {
				e.BytesSent = between(b.bytesMin, b.bytesMax)
				e.BytesReceived = between(100, 1000)
			}
			events = append(events, e)
		}
	}

	slices.SortStableFunc(events, func(a, b Event) int { return a.Timestamp.Compare(b.Timestamp) })
	return events
}

func (e Event) description() string {
	return fmt.Sprintf("%s: user %s from %s accessed %s, %s, %s",
		e.EventType, e.UserID, e.SourceIP, e.DestinationIP, e.Action, e.Status)
}

func (e Event) rawLog() string {
	return fmt.Sprintf("%s %s %s:%d -> %s:%d %s %s %s user=%s sent=%d rcvd=%d duration=%.0fs",
		e.Timestamp.Format("2006-01-02 15:04:05.000000"), e.Protocol,
		e.SourceIP, e.SourcePort, e.DestinationIP, e.DestinationPort,
		e.EventType, e.Action, e.Status, e.UserID, e.BytesSent, e.BytesReceived, e.SessionDuration)
}

var seedColumns = []string{
	"timestamp", "source_ip", "destination_ip", "event_type", "severity", "protocol",
	"source_port", "destination_port", "user_id", "action", "status",
	"bytes_sent", "bytes_received", "session_duration", "description", "raw_log",
}

func insertSQL(table string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(seedColumns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(seedColumns, ", "), marks)
}

// args matches seedColumns. Timestamps are stored as layout text so string
// bounds compare correctly in SQLite.
func (e Event) args() []any {
	return []any{
		e.Timestamp.Format("2006-01-02 15:04:05"), e.SourceIP, e.DestinationIP, e.EventType, e.Severity, e.Protocol,
		e.SourcePort, e.DestinationPort, e.UserID, e.Action, e.Status,
		e.BytesSent, e.BytesReceived, e.SessionDuration, e.description(), e.rawLog(),
	}
}
