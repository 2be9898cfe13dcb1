// internal/server/analyze_handler.go
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/teamsquare/guardian/internal/protocol"
	"github.com/teamsquare/guardian/internal/security"
	"github.com/teamsquare/guardian/internal/transport"
)

type analyzeRequest struct {
	Text      string   `json:"text"`
	Models    []string `json:"models"`
	SessionID string   `json:"session_id"`
}

// handleAnalyze runs a security analysis. The external classifier
// server is preferred when configured; if it cannot be reached the
// local heuristic simulation takes over, and the response says so in
// metadata.simulated rather than degrading silently.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text cannot be empty")
		return
	}

	if s.cfg.SecurityServerURL != "" {
		endpoint := strings.TrimSuffix(s.cfg.SecurityServerURL, "/") + "/analyze"
		reply, err := s.client.Post(r.Context(), endpoint, req, transport.Options{
			Timeout:    s.cfg.RequestTimeout,
			MaxRetries: 0,
		})
		if err == nil {
			s.recordVerdictFromBody(reply.Body, req)
			s.applyExternalVerdict(reply.Body, req.SessionID)
			body := reply.Body
			meta, _ := body["metadata"].(map[string]any)
			if meta == nil {
				meta = make(map[string]any)
			}
			meta["simulated"] = false
			body["metadata"] = meta
			writeJSON(w, http.StatusOK, body)
			return
		}
		log.Printf("Classifier server unreachable, simulating analysis: %v", err)
	}

	analysis := s.analyzer.Analyze(req.Text, req.SessionID, req.Models)
	if s.audit != nil {
		if err := s.audit.RecordVerdict(analysis.Verdict, analysis.Score, len(req.Text), true, req.SessionID); err != nil {
			log.Printf("Audit: record verdict: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, analyzeResponse(analysis, req))
}

// analyzeResponse renders the simulation result in the classifier
// server's wire shape so clients cannot tell the transports apart.
func analyzeResponse(a security.Analysis, req analyzeRequest) map[string]any {
	body := map[string]any{
		"overall_threat_level": string(a.Verdict),
		"timestamp":            time.Now().Format(time.RFC3339),
		"metadata": map[string]any{
			"text_length":     len(req.Text),
			"models_used":     modelsUsed(req.Models),
			"threat_detected": a.Verdict != protocol.VerdictSafe,
			"session_id":      req.SessionID,
			"simulated":       true,
		},
	}

	if a.Vulnerability != nil {
		body["vulnerability_classifier"] = map[string]any{
			"vulnerability_type": a.Vulnerability.Label,
			"confidence":         a.Vulnerability.Confidence,
		}
	}
	if a.Network != nil {
		body["network_analyzer"] = map[string]any{
			"traffic_type": a.Network.Label,
			"confidence":   a.Network.Confidence,
		}
	}
	if a.Intent != nil {
		body["intent_classifier"] = map[string]any{
			"intent":     a.Intent.Label,
			"confidence": a.Intent.Confidence,
		}
	}

	return body
}

func modelsUsed(models []string) []string {
	if len(models) > 0 {
		return models
	}
	return []string{security.ModelVulnerability, security.ModelNetwork, security.ModelIntent}
}

// applyExternalVerdict applies a delegated verdict to the store the
// same way a simulated analysis does: the scan is stamped, the session
// is tracked, and a critical verdict blocks the system.
func (s *Server) applyExternalVerdict(body map[string]any, sessionID string) {
	raw, ok := body["overall_threat_level"].(string)
	if !ok {
		log.Printf("Classifier response missing overall_threat_level, state not updated")
		return
	}
	verdict := protocol.Verdict(raw)

	s.store.MarkScan()
	if sessionID != "" {
		s.store.TouchActivity(sessionID, 0, verdict == protocol.VerdictCritical)
	}

	switch verdict {
	case protocol.VerdictCritical:
		log.Printf("Critical threat reported by classifier server, blocking system")
		s.store.Block("critical threat detected", protocol.SeverityCritical, 0)
	case protocol.VerdictHigh:
		s.store.AddAlert(protocol.CategorySystem, protocol.SeverityHigh, "classifier server reported high threat", sessionID)
	}
}

// recordVerdictFromBody audits a verdict produced by the external
// classifier server, when its body carries one.
func (s *Server) recordVerdictFromBody(body map[string]any, req analyzeRequest) {
	if s.audit == nil {
		return
	}
	verdict, ok := body["overall_threat_level"].(string)
	if !ok {
		return
	}
	if err := s.audit.RecordVerdict(protocol.Verdict(verdict), 0, len(req.Text), false, req.SessionID); err != nil {
		log.Printf("Audit: record verdict: %v", err)
	}
}
