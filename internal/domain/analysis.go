package domain

import (
	"strings"
	"time"
)

// KeyCount is one entry of a top-N list.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// TopN is the maximum length of the top source IP and top event type lists.
const TopN = 5

// Summary holds aggregate statistics over a RecordSet.
type Summary struct {
	Total                 int            `json:"total"`
	EventTypeDistribution map[string]int `json:"event_type_distribution"`
	UniqueSourceIPCount   int            `json:"unique_source_ip_count"`
	UniqueDestIPCount     int            `json:"unique_dest_ip_count"`
	TopSourceIPs          []KeyCount     `json:"top_source_ips"`
	TopEventTypes         []KeyCount     `json:"top_event_types"`
	Error                 string         `json:"error,omitempty"`
}

// RiskLevel grades a verdict.
type RiskLevel string

// Risk levels.
const (
	RiskNone    RiskLevel = "none"
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskUnknown RiskLevel = "unknown"
)

// ParseRiskLevel normalises a model supplied risk label. The second return
// value is false when the label is not recognised.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "no", "无":
		return RiskNone, true
	case "low", "低":
		return RiskLow, true
	case "medium", "moderate", "中":
		return RiskMedium, true
	case "high", "critical", "高", "严重":
		return RiskHigh, true
	case "unknown", "未知":
		return RiskUnknown, true
	default:
		return RiskUnknown, false
	}
}

// RiskVerdict is the result of analysing a Summary and a record sample.
type RiskVerdict struct {
	HasRisk         bool      `json:"has_risk"`
	RiskLevel       RiskLevel `json:"risk_level"`
	RiskType        *string   `json:"risk_type"`
	Analysis        string    `json:"analysis"`
	Recommendations []string  `json:"recommendations"`
}

// FinalResult is returned to the caller of one pipeline run.
type FinalResult struct {
	Timestamp time.Time `json:"timestamp"`
	TimeRange string    `json:"time_range"`
	RiskVerdict
}

// ErrorEnvelope is returned instead of a FinalResult when a stage fails
// without a fallback. Query is the caller's question; Statement is the store
// query that failed, when there was one.
type ErrorEnvelope struct {
	Error     string `json:"error"`
	Query     string `json:"query"`
	Statement string `json:"statement,omitempty"`
}
