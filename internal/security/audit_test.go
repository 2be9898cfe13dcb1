// internal/security/audit_test.go
package security

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/teamsquare/guardian/internal/protocol"
)

func TestAuditRecordAlert(t *testing.T) {
	dir := t.TempDir()
	audit, err := NewAudit(filepath.Join(dir, "audit.db"))
	if err != nil {
		t.Fatalf("NewAudit error: %v", err)
	}
	defer audit.Close()

	alert := protocol.SecurityAlert{
		ID:          "a-1",
		Category:    protocol.CategoryVulnerability,
		Severity:    protocol.SeverityHigh,
		Message:     "vulnerability detected: XSS",
		Timestamp:   time.Now(),
		ActionTaken: "alert recorded",
	}
	if err := audit.RecordAlert(alert); err != nil {
		t.Fatalf("RecordAlert error: %v", err)
	}

	counts, err := audit.AlertCounts()
	if err != nil {
		t.Fatalf("AlertCounts error: %v", err)
	}
	if counts["high"] != 1 {
		t.Errorf("high count = %d, want 1", counts["high"])
	}
}

func TestAuditRecordVerdict(t *testing.T) {
	dir := t.TempDir()
	audit, err := NewAudit(filepath.Join(dir, "audit.db"))
	if err != nil {
		t.Fatalf("NewAudit error: %v", err)
	}
	defer audit.Close()

	if err := audit.RecordVerdict(protocol.VerdictCritical, 2.55, 24, true, "sess-1"); err != nil {
		t.Fatalf("RecordVerdict error: %v", err)
	}
	if err := audit.RecordVerdict(protocol.VerdictSafe, 0, 10, false, "sess-2"); err != nil {
		t.Fatalf("RecordVerdict error: %v", err)
	}

	counts, err := audit.VerdictCounts()
	if err != nil {
		t.Fatalf("VerdictCounts error: %v", err)
	}
	if counts["critical"] != 1 || counts["safe"] != 1 {
		t.Errorf("verdict counts = %v, want critical:1 safe:1", counts)
	}
}

func TestStoreWithAuditTrail(t *testing.T) {
	dir := t.TempDir()
	audit, err := NewAudit(filepath.Join(dir, "audit.db"))
	if err != nil {
		t.Fatalf("NewAudit error: %v", err)
	}
	defer audit.Close()

	store := NewStore(audit)
	store.AddAlert(protocol.CategoryNetwork, protocol.SeverityCritical, "ddos", "sess-1")

	counts, err := audit.AlertCounts()
	if err != nil {
		t.Fatalf("AlertCounts error: %v", err)
	}
	if counts["critical"] != 1 {
		t.Errorf("audited critical count = %d, want 1", counts["critical"])
	}
}
