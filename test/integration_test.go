// test/integration_test.go
package test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teamsquare/guardian/internal/config"
	"github.com/teamsquare/guardian/internal/server"
)

func post(t *testing.T, handler http.Handler, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	json.Unmarshal(rec.Body.Bytes(), &decoded)
	return rec, decoded
}

// TestIntegrationFallbackChain walks the whole degradation ladder:
// primary answers, then primary dies and the secondary answers, then
// both die and local synthesis answers.
func TestIntegrationFallbackChain(t *testing.T) {
	var primaryUp atomic.Bool
	var secondaryUp atomic.Bool
	primaryUp.Store(true)
	secondaryUp.Store(true)

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !primaryUp.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"content": "depuis le backend"})
	}))
	defer primary.Close()

	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !secondaryUp.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		// This tier answers with the other field name on purpose
		json.NewEncoder(w).Encode(map[string]string{"response": "depuis le secours"})
	}))
	defer secondary.Close()

	cfg := &config.Config{
		ListenAddr:     ":0",
		BackendURL:     primary.URL,
		FallbackURL:    secondary.URL,
		RequestTimeout: 2 * time.Second,
		HealthInterval: time.Minute,
		ProbeTimeout:   time.Second,
	}

	srv, err := server.New(cfg)
	if err != nil {
		t.Fatalf("server.New error: %v", err)
	}
	router := srv.Router()

	// Tier 1: primary healthy
	_, body := post(t, router, "/api/chat", "", map[string]string{"message": "salut", "session_id": "it-1"})
	if body["content"] != "depuis le backend" {
		t.Fatalf("content = %q, want primary reply", body["content"])
	}
	if src := body["metadata"].(map[string]any)["source"]; src != "backend" {
		t.Errorf("source = %q, want backend", src)
	}

	// Tier 2: primary down, secondary answers
	primaryUp.Store(false)
	_, body = post(t, router, "/api/chat", "", map[string]string{"message": "salut", "session_id": "it-1"})
	if body["content"] != "depuis le secours" {
		t.Fatalf("content = %q, want secondary reply", body["content"])
	}
	if src := body["metadata"].(map[string]any)["source"]; src != "fallback" {
		t.Errorf("source = %q, want fallback", src)
	}

	// Tier 3: everything down, local synthesis
	secondaryUp.Store(false)
	_, body = post(t, router, "/api/chat", "", map[string]string{"message": "Quels sont vos tarifs ?", "session_id": "it-1"})
	if src := body["metadata"].(map[string]any)["source"]; src != "local" {
		t.Errorf("source = %q, want local", src)
	}
	if !strings.Contains(body["content"].(string), "tarifs TeamSquare") {
		t.Errorf("content = %q, want pricing template", body["content"])
	}
}

// TestIntegrationThreatToUnblock runs an attack through analysis, sees
// the system block itself, then unblocks it as an admin and verifies
// the audit trail captured the episode.
func TestIntegrationThreatToUnblock(t *testing.T) {
	t.Setenv("GUARDIAN_ADMIN_USERNAME", "")
	t.Setenv("GUARDIAN_ADMIN_PASSWORD", "")

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"content": "ok"})
	}))
	defer backend.Close()

	dir := t.TempDir()
	cfg := &config.Config{
		ListenAddr:     ":0",
		BackendURL:     backend.URL,
		RequestTimeout: 2 * time.Second,
		HealthInterval: time.Minute,
		ProbeTimeout:   time.Second,
		AuditDBPath:    filepath.Join(dir, "audit.db"),
		AdminUsername:  "ops",
		AdminPassword:  "secret",
	}

	srv, err := server.New(cfg)
	if err != nil {
		t.Fatalf("server.New error: %v", err)
	}
	router := srv.Router()

	// Normal chat works
	_, body := post(t, router, "/api/chat", "", map[string]string{"message": "salut", "session_id": "it-2"})
	if body["content"] != "ok" {
		t.Fatalf("content = %q, want backend reply", body["content"])
	}

	// XSS payload through the analyzer: critical, system blocks itself
	rec, body := post(t, router, "/api/cybersecurity/analyze", "", map[string]any{
		"text": "<script>alert(1)</script>", "session_id": "it-2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d, want 200", rec.Code)
	}
	if body["overall_threat_level"] != "critical" {
		t.Fatalf("overall_threat_level = %q, want critical", body["overall_threat_level"])
	}

	// Chat now refuses without touching the backend
	_, body = post(t, router, "/api/chat", "", map[string]string{"message": "salut", "session_id": "it-2"})
	if !strings.Contains(body["content"].(string), "bloqué") {
		t.Fatalf("content = %q, want blocked message", body["content"])
	}

	// Admin login and unblock
	rec, body = post(t, router, "/api/admin-security", "", map[string]string{
		"action": "login", "username": "ops", "password": "secret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", rec.Code)
	}
	token := body["token"].(string)

	rec, _ = post(t, router, "/api/admin-security", token, map[string]string{"action": "unblock"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unblock status = %d, want 200", rec.Code)
	}

	// Chat flows again
	_, body = post(t, router, "/api/chat", "", map[string]string{"message": "salut", "session_id": "it-2"})
	if body["content"] != "ok" {
		t.Fatalf("content after unblock = %q, want backend reply", body["content"])
	}

	// The report reflects the episode, including the audited history
	rec, body = post(t, router, "/api/admin-security", token, map[string]string{"action": "report"})
	if rec.Code != http.StatusOK {
		t.Fatalf("report status = %d, want 200", rec.Code)
	}
	stats := body["alert_statistics"].(map[string]any)
	if stats["total"].(float64) == 0 {
		t.Error("report shows no alerts after the incident")
	}
	audit, ok := body["audit"].(map[string]any)
	if !ok {
		t.Fatal("report missing audit section despite audit DB configured")
	}
	if _, ok := audit["verdicts"]; !ok {
		t.Error("audit section missing verdict counts")
	}
}
