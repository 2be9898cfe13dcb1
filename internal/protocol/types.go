// internal/protocol/types.go
package protocol

import "time"

// Source identifies which tier of the fallback chain produced a reply
type Source string

const (
	SourceBackend  Source = "backend"
	SourceFallback Source = "fallback"
	SourceLocal    Source = "local"
)

// Sender identifies who authored a chat message
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ResponseMetadata tells the UI which tier produced an assistant reply
type ResponseMetadata struct {
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      bool    `json:"error,omitempty"`
}

// ChatMessage is one entry in a conversation transcript
type ChatMessage struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Sender    Sender            `json:"sender"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  *ResponseMetadata `json:"metadata,omitempty"`
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// ChatResponse is the body returned by POST /api/chat
type ChatResponse struct {
	Content  string            `json:"content"`
	Metadata *ResponseMetadata `json:"metadata,omitempty"`
}

// ConnectionStatus is published by the health monitor.
// Written only by the monitor; everyone else reads a copy.
type ConnectionStatus struct {
	BackendReachable  bool      `json:"backend_reachable"`
	FallbackReachable bool      `json:"fallback_reachable"`
	LastCheckedAt     time.Time `json:"last_checked_at"`
}

// Severity of a security alert
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Category of a security alert
type Category string

const (
	CategoryVulnerability Category = "vulnerability"
	CategoryNetwork       Category = "network"
	CategoryIntent        Category = "intent"
	CategorySystem        Category = "system"
)

// SecurityAlert is one detected or manually raised security event
type SecurityAlert struct {
	ID            string    `json:"id"`
	Category      Category  `json:"category"`
	Severity      Severity  `json:"severity"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
	ActionTaken   string    `json:"action_taken"`
	SourceSession string    `json:"source_session,omitempty"`
}

// ThreatLevel is the coarse system-wide threat indicator
type ThreatLevel string

const (
	ThreatSafe    ThreatLevel = "safe"
	ThreatWarning ThreatLevel = "warning"
	ThreatDanger  ThreatLevel = "danger"
)

// SystemState drives whether the chat pipeline accepts new messages
type SystemState struct {
	Blocked              bool        `json:"blocked"`
	ThreatLevel          ThreatLevel `json:"threat_level"`
	BlockReason          string      `json:"block_reason,omitempty"`
	LastBlockTime        time.Time   `json:"last_block_time"`
	LastScan             time.Time   `json:"last_scan"`
	TotalThreatsDetected int         `json:"total_threats_detected"`
}

// UserActivity tracks per-session message volume and threat exposure
type UserActivity struct {
	MessagesCount int       `json:"messages_count"`
	FirstActivity time.Time `json:"first_activity"`
	LastActivity  time.Time `json:"last_activity"`
	ThreatScore   float64   `json:"threat_score"`
	Blocked       bool      `json:"blocked"`
}

// Verdict is the aggregated severity classification of an analysis
type Verdict string

const (
	VerdictSafe     Verdict = "safe"
	VerdictLow      Verdict = "low"
	VerdictMedium   Verdict = "medium"
	VerdictHigh     Verdict = "high"
	VerdictCritical Verdict = "critical"
)
