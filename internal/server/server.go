// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/teamsquare/guardian/internal/chat"
	"github.com/teamsquare/guardian/internal/config"
	"github.com/teamsquare/guardian/internal/health"
	"github.com/teamsquare/guardian/internal/security"
	"github.com/teamsquare/guardian/internal/transport"
)

// Server is the guardian gateway: chat fallback chain, health monitor,
// security analyzer and admin surface behind one HTTP listener.
type Server struct {
	cfg      *config.Config
	store    *security.Store
	analyzer *security.Analyzer
	audit    *security.Audit
	orch     *chat.Orchestrator
	monitor  *health.Monitor
	client   *transport.Client
	server   *http.Server

	tokenMu sync.Mutex
	tokens  map[string]bool // admin session tokens
}

// New wires up the gateway from config
func New(cfg *config.Config) (*Server, error) {
	var audit *security.Audit
	if cfg.AuditDBPath != "" {
		var err error
		audit, err = security.NewAudit(cfg.AuditDBPath)
		if err != nil {
			return nil, err
		}
	}

	store := security.NewStore(audit)
	client := transport.NewClient()

	opts := transport.Options{
		Timeout:    cfg.RequestTimeout,
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.RetryBackoff,
	}
	orch := chat.NewOrchestrator([]chat.Tier{
		chat.PrimaryTier(cfg.BackendURL),
		chat.SecondaryTier(cfg.FallbackURL),
	}, client, opts, store)

	monitor := health.NewMonitor(
		health.ProbeURL(cfg.BackendURL),
		health.ProbeURL(cfg.FallbackURL),
		cfg.HealthInterval,
		cfg.ProbeTimeout,
	)

	s := &Server{
		cfg:      cfg,
		store:    store,
		analyzer: security.NewAnalyzer(store),
		audit:    audit,
		orch:     orch,
		monitor:  monitor,
		client:   client,
		tokens:   make(map[string]bool),
	}

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Router builds the HTTP routing table
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/chat", s.handleChatSend).Methods("POST")
	r.HandleFunc("/api/chat", s.handleChatHealth).Methods("GET")
	r.HandleFunc("/api/cybersecurity/analyze", s.handleAnalyze).Methods("POST")
	r.HandleFunc("/api/admin-security", s.handleAdminGet).Methods("GET")
	r.HandleFunc("/api/admin-security", s.handleAdminPost).Methods("POST")
	r.HandleFunc("/api/admin-security", s.handleAdminPut).Methods("PUT")
	r.HandleFunc("/api/admin-security", s.handleAdminDelete).Methods("DELETE")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

// Run starts the listener and the health monitor, then blocks until
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()
	go s.monitor.Run(monitorCtx)

	log.Printf("Guardian gateway starting on %s", s.cfg.ListenAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("Gateway shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Gateway shutdown: %v", err)
		}
	case err := <-errCh:
		if s.audit != nil {
			s.audit.Close()
		}
		return err
	}

	if s.audit != nil {
		s.audit.Close()
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
