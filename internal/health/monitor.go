// internal/health/monitor.go
package health

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teamsquare/guardian/internal/protocol"
)

// Monitor periodically probes the primary and fallback endpoints and
// publishes a ConnectionStatus for the UI banner. It is the only
// writer of the status; readers get copies.
type Monitor struct {
	primaryURL  string
	fallbackURL string
	interval    time.Duration
	client      *http.Client

	mu     sync.Mutex
	status protocol.ConnectionStatus

	// Guards against overlapping probes when a tick fires while a
	// previous check (or a CheckNow) is still in flight.
	inFlight atomic.Bool
}

// ProbeURL derives the health route from a service base URL
func ProbeURL(base string) string {
	if base == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + "/health"
}

// NewMonitor creates a monitor. Status starts optimistic (both
// reachable) until the first probe lands.
func NewMonitor(primaryURL, fallbackURL string, interval, probeTimeout time.Duration) *Monitor {
	return &Monitor{
		primaryURL:  primaryURL,
		fallbackURL: fallbackURL,
		interval:    interval,
		client:      &http.Client{Timeout: probeTimeout},
		status: protocol.ConnectionStatus{
			BackendReachable:  true,
			FallbackReachable: true,
		},
	}
}

// Run probes immediately, then on every tick until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) {
	log.Printf("Health monitor starting: primary=%s fallback=%s interval=%s",
		m.primaryURL, m.fallbackURL, m.interval)

	m.CheckNow(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Health monitor stopping")
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow probes both endpoints and returns the updated status. If a
// probe is already in flight the current status is returned unchanged.
func (m *Monitor) CheckNow(ctx context.Context) protocol.ConnectionStatus {
	if !m.inFlight.CompareAndSwap(false, true) {
		return m.Status()
	}
	defer m.inFlight.Store(false)

	backendUp := m.probe(ctx, m.primaryURL)
	fallbackUp := m.probe(ctx, m.fallbackURL)

	m.mu.Lock()
	prev := m.status.BackendReachable
	m.status = protocol.ConnectionStatus{
		BackendReachable:  backendUp,
		FallbackReachable: fallbackUp,
		LastCheckedAt:     time.Now(),
	}
	status := m.status
	m.mu.Unlock()

	if prev != backendUp {
		if backendUp {
			log.Printf("Primary backend reachable again")
		} else {
			log.Printf("Primary backend unreachable, degraded mode")
		}
	}
	return status
}

// Status returns the most recently published status
func (m *Monitor) Status() protocol.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Monitor) probe(ctx context.Context, url string) bool {
	if url == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return false
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
