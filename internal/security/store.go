// internal/security/store.go
package security

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teamsquare/guardian/internal/protocol"
)

// MaxAlerts caps the in-memory alert list; older alerts fall off the end
const MaxAlerts = 100

// Store holds the shared security state: alerts, system block state and
// per-session activity. It is the single writer-coordinated owner of
// this data (no package-level globals) and is safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	alerts     []protocol.SecurityAlert // newest first
	state      protocol.SystemState
	activities map[string]*protocol.UserActivity
	audit      *Audit // optional, nil disables the audit trail

	unblockTimer *time.Timer
}

// NewStore creates an empty store. audit may be nil.
func NewStore(audit *Audit) *Store {
	return &Store{
		state:      protocol.SystemState{ThreatLevel: protocol.ThreatSafe},
		activities: make(map[string]*protocol.UserActivity),
		audit:      audit,
	}
}

// AddAlert records a security alert, escalating the system threat level
// when warranted. Newest alerts come first; the list is capped.
func (s *Store) AddAlert(category protocol.Category, severity protocol.Severity, message, sessionID string) protocol.SecurityAlert {
	alert := protocol.SecurityAlert{
		ID:            uuid.NewString(),
		Category:      category,
		Severity:      severity,
		Message:       message,
		Timestamp:     time.Now(),
		ActionTaken:   "alert recorded",
		SourceSession: sessionID,
	}

	s.mu.Lock()
	s.alerts = append([]protocol.SecurityAlert{alert}, s.alerts...)
	if len(s.alerts) > MaxAlerts {
		s.alerts = s.alerts[:MaxAlerts]
	}
	s.state.TotalThreatsDetected++

	// Threat level only ratchets up from alerts; Unblock resets it
	switch {
	case severity == protocol.SeverityCritical:
		s.state.ThreatLevel = protocol.ThreatDanger
	case severity == protocol.SeverityHigh && s.state.ThreatLevel == protocol.ThreatSafe:
		s.state.ThreatLevel = protocol.ThreatWarning
	}
	s.mu.Unlock()

	if severity == protocol.SeverityCritical {
		log.Printf("CRITICAL alert [%s]: %s", category, message)
	}
	if s.audit != nil {
		if err := s.audit.RecordAlert(alert); err != nil {
			log.Printf("Audit: record alert: %v", err)
		}
	}

	return alert
}

// AlertFilter narrows Alerts results. Zero values mean no filtering;
// Limit <= 0 means no limit.
type AlertFilter struct {
	Severity protocol.Severity
	Category protocol.Category
	Limit    int
}

// Alerts returns matching alerts, newest first
func (s *Store) Alerts(f AlertFilter) []protocol.SecurityAlert {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []protocol.SecurityAlert
	for _, a := range s.alerts {
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		if f.Category != "" && a.Category != f.Category {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// ClearAlerts drops all alerts
func (s *Store) ClearAlerts() {
	s.mu.Lock()
	s.alerts = nil
	s.mu.Unlock()
}

// Block stops the chat pipeline from forwarding messages. A positive
// duration schedules an automatic unblock; otherwise the block holds
// until an explicit Unblock.
func (s *Store) Block(reason string, severity protocol.Severity, duration time.Duration) {
	s.mu.Lock()
	s.state.Blocked = true
	s.state.BlockReason = reason
	s.state.LastBlockTime = time.Now()
	if s.unblockTimer != nil {
		s.unblockTimer.Stop()
		s.unblockTimer = nil
	}
	if duration > 0 {
		s.unblockTimer = time.AfterFunc(duration, func() {
			log.Printf("Auto-unblock after %s", duration)
			s.Unblock()
		})
	}
	s.mu.Unlock()

	log.Printf("System blocked: %s", reason)
	s.AddAlert(protocol.CategorySystem, severity, "system blocked: "+reason, "")
}

// Unblock clears the system block, resets the threat level to safe and
// lifts any per-session blocks. An admin unblock is a full reset.
func (s *Store) Unblock() {
	s.mu.Lock()
	s.state.Blocked = false
	s.state.BlockReason = ""
	s.state.ThreatLevel = protocol.ThreatSafe
	for _, a := range s.activities {
		a.Blocked = false
	}
	if s.unblockTimer != nil {
		s.unblockTimer.Stop()
		s.unblockTimer = nil
	}
	s.mu.Unlock()

	log.Printf("System unblocked")
}

// Blocked reports whether the system as a whole refuses new sends
func (s *Store) Blocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Blocked
}

// SessionBlocked reports whether this session (or the whole system) is blocked
func (s *Store) SessionBlocked(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Blocked {
		return true
	}
	if a, ok := s.activities[sessionID]; ok {
		return a.Blocked
	}
	return false
}

// State returns a copy of the current system state
func (s *Store) State() protocol.SystemState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetThreatLevel overrides the threat level (admin action)
func (s *Store) SetThreatLevel(level protocol.ThreatLevel) {
	s.mu.Lock()
	s.state.ThreatLevel = level
	s.mu.Unlock()
}

// MarkScan stamps the time of the latest security analysis
func (s *Store) MarkScan() {
	s.mu.Lock()
	s.state.LastScan = time.Now()
	s.mu.Unlock()
}

// TouchActivity bumps the message counter for a session and keeps the
// highest threat score seen. A blocked flag is sticky once set.
func (s *Store) TouchActivity(sessionID string, threatScore float64, blocked bool) protocol.UserActivity {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.activities[sessionID]
	if !ok {
		a = &protocol.UserActivity{FirstActivity: now}
		s.activities[sessionID] = a
	}
	a.MessagesCount++
	a.LastActivity = now
	if threatScore > a.ThreatScore {
		a.ThreatScore = threatScore
	}
	a.Blocked = a.Blocked || blocked
	return *a
}

// Activities returns a copy of all session activity records
func (s *Store) Activities() map[string]protocol.UserActivity {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]protocol.UserActivity, len(s.activities))
	for id, a := range s.activities {
		out[id] = *a
	}
	return out
}
