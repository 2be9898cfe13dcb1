// internal/server/chat_handler.go
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/teamsquare/guardian/internal/protocol"
)

// handleChatSend runs a user message through the fallback chain.
// Every outcome is a 200 with a displayable reply; transport failures
// never surface here.
func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var req protocol.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message cannot be empty")
		return
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	msg := s.orch.Send(r.Context(), req.Message, req.SessionID)

	writeJSON(w, http.StatusOK, protocol.ChatResponse{
		Content:  msg.Content,
		Metadata: msg.Metadata,
	})
}

// handleChatHealth reports connectivity as seen by the monitor
func (s *Server) handleChatHealth(w http.ResponseWriter, r *http.Request) {
	status := s.monitor.Status()

	overall := "ok"
	if !status.BackendReachable {
		overall = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          overall,
		"backend_status":  reachability(status.BackendReachable),
		"fallback_status": reachability(status.FallbackReachable),
		"last_checked":    status.LastCheckedAt,
	})
}

func reachability(up bool) string {
	if up {
		return "online"
	}
	return "offline"
}
