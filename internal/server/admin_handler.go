// internal/server/admin_handler.go
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/teamsquare/guardian/internal/protocol"
	"github.com/teamsquare/guardian/internal/security"
)

type adminAction struct {
	Action string `json:"action"`

	// login
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// block
	Reason          string `json:"reason,omitempty"`
	Severity        string `json:"severity,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

// authorized checks the bearer token minted by a login
func (s *Server) authorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	token := strings.TrimPrefix(auth, "Bearer ")

	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	return s.tokens[token]
}

// handleAdminGet returns the full admin console state
func (s *Server) handleAdminGet(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := r.URL.Query()
	filter := security.AlertFilter{
		Severity: protocol.Severity(q.Get("severity")),
		Category: protocol.Category(q.Get("category")),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"system_state":    s.store.State(),
		"alerts":          s.store.Alerts(filter),
		"user_activities": s.store.Activities(),
	})
}

// handleAdminPost dispatches admin actions: login, block, unblock, report
func (s *Server) handleAdminPost(w http.ResponseWriter, r *http.Request) {
	var req adminAction
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	switch req.Action {
	case "login":
		s.handleLogin(w, req)
	case "block":
		if !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		s.handleBlock(w, req)
	case "unblock":
		if !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		s.store.Unblock()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "unblocked",
			"timestamp": time.Now(),
		})
	case "report":
		if !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeJSON(w, http.StatusOK, s.buildReport())
	default:
		writeError(w, http.StatusBadRequest, "unknown action: "+req.Action)
	}
}

// handleLogin checks env-provided credentials. There is deliberately
// no built-in default: unset credentials keep the admin surface off.
func (s *Server) handleLogin(w http.ResponseWriter, req adminAction) {
	if !s.cfg.AdminEnabled() {
		writeError(w, http.StatusServiceUnavailable, "admin access not configured")
		return
	}
	if req.Username != s.cfg.AdminUsername || req.Password != s.cfg.AdminPassword {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token := uuid.NewString()
	s.tokenMu.Lock()
	s.tokens[token] = true
	s.tokenMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleBlock(w http.ResponseWriter, req adminAction) {
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	severity := protocol.SeverityCritical
	if req.Severity != "" {
		severity = protocol.Severity(req.Severity)
		switch severity {
		case protocol.SeverityLow, protocol.SeverityMedium, protocol.SeverityHigh, protocol.SeverityCritical:
		default:
			writeError(w, http.StatusBadRequest, "invalid severity: "+req.Severity)
			return
		}
	}

	s.store.Block(req.Reason, severity, time.Duration(req.DurationSeconds)*time.Second)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "blocked",
		"reason":    req.Reason,
		"timestamp": time.Now(),
	})
}

// handleAdminPut overrides the threat level
func (s *Server) handleAdminPut(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		ThreatLevel string `json:"threat_level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	level := protocol.ThreatLevel(req.ThreatLevel)
	switch level {
	case protocol.ThreatSafe, protocol.ThreatWarning, protocol.ThreatDanger:
	default:
		writeError(w, http.StatusBadRequest, "invalid threat level: "+req.ThreatLevel)
		return
	}

	s.store.SetThreatLevel(level)
	writeJSON(w, http.StatusOK, map[string]any{"system_state": s.store.State()})
}

// handleAdminDelete clears the alert list
func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	s.store.ClearAlerts()
	writeJSON(w, http.StatusOK, map[string]string{"status": "alerts cleared"})
}

// buildReport summarizes alert statistics with rule-based recommendations
func (s *Server) buildReport() map[string]any {
	alerts := s.store.Alerts(security.AlertFilter{})
	state := s.store.State()

	byCategory := make(map[string]int)
	bySeverity := make(map[string]int)
	for _, a := range alerts {
		byCategory[string(a.Category)]++
		bySeverity[string(a.Severity)]++
	}

	stats := map[string]any{
		"total":       len(alerts),
		"by_category": byCategory,
		"by_severity": bySeverity,
	}

	lastScanAge := "never"
	if !state.LastScan.IsZero() {
		lastScanAge = humanize.Time(state.LastScan)
	}

	report := map[string]any{
		"generated_at":           time.Now(),
		"system_state":           state,
		"alert_statistics":       stats,
		"recent_critical_alerts": s.store.Alerts(security.AlertFilter{Severity: protocol.SeverityCritical, Limit: 5}),
		"recommendations":        recommendations(len(alerts), byCategory, bySeverity),
		"last_scan_age":          lastScanAge,
	}

	if s.audit != nil {
		auditSection := make(map[string]any)
		if counts, err := s.audit.AlertCounts(); err == nil {
			auditSection["alerts_by_severity"] = counts
		}
		if counts, err := s.audit.VerdictCounts(); err == nil {
			auditSection["verdicts"] = counts
		}
		report["audit"] = auditSection
	}

	return report
}

func recommendations(total int, byCategory, bySeverity map[string]int) []string {
	var recs []string

	if total > 50 {
		recs = append(recs, "high alert volume detected - tighten monitoring")
	}
	if byCategory[string(protocol.CategoryVulnerability)] > 10 {
		recs = append(recs, "frequent vulnerability detections - update security filters")
	}
	if byCategory[string(protocol.CategoryNetwork)] > 5 {
		recs = append(recs, "recurring suspicious network activity - review firewall rules")
	}
	if byCategory[string(protocol.CategoryIntent)] > 15 {
		recs = append(recs, "recurring malicious intent - review user access and training")
	}
	if bySeverity[string(protocol.SeverityCritical)] > 0 {
		recs = append(recs, "critical alerts present - security audit recommended")
	}

	if len(recs) == 0 {
		recs = append(recs, "system nominal - continue normal monitoring")
	}
	return recs
}
