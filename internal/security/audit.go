// internal/security/audit.go
package security

import (
	"database/sql"
	"time"

	"github.com/teamsquare/guardian/internal/protocol"
	_ "modernc.org/sqlite"
)

// Audit is a write-mostly SQLite trail of alerts and analysis verdicts.
// The in-memory store stays the serving copy; this is history that
// survives restarts.
type Audit struct {
	db *sql.DB
}

// NewAudit opens or creates the audit database
func NewAudit(path string) (*Audit, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		source_session TEXT,
		action_taken TEXT,
		timestamp TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity);
	CREATE INDEX IF NOT EXISTS idx_alerts_category ON alerts(category);

	CREATE TABLE IF NOT EXISTS verdicts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		verdict TEXT NOT NULL,
		score REAL NOT NULL,
		text_length INTEGER,
		simulated INTEGER NOT NULL,
		source_session TEXT,
		timestamp TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_verdicts_verdict ON verdicts(verdict);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Audit{db: db}, nil
}

// Close closes the database connection
func (a *Audit) Close() error {
	return a.db.Close()
}

// RecordAlert appends an alert to the trail
func (a *Audit) RecordAlert(alert protocol.SecurityAlert) error {
	_, err := a.db.Exec(`
		INSERT INTO alerts (id, category, severity, message, source_session, action_taken, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, alert.ID, string(alert.Category), string(alert.Severity), alert.Message,
		alert.SourceSession, alert.ActionTaken, alert.Timestamp.Format(time.RFC3339))
	return err
}

// RecordVerdict appends an analysis outcome to the trail
func (a *Audit) RecordVerdict(verdict protocol.Verdict, score float64, textLength int, simulated bool, sessionID string) error {
	sim := 0
	if simulated {
		sim = 1
	}
	_, err := a.db.Exec(`
		INSERT INTO verdicts (verdict, score, text_length, simulated, source_session, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(verdict), score, textLength, sim, sessionID, time.Now().Format(time.RFC3339))
	return err
}

// AlertCounts returns audited alert totals grouped by severity
func (a *Audit) AlertCounts() (map[string]int, error) {
	rows, err := a.db.Query(`SELECT severity, COUNT(*) FROM alerts GROUP BY severity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		counts[severity] = count
	}
	return counts, rows.Err()
}

// VerdictCounts returns audited verdict totals
func (a *Audit) VerdictCounts() (map[string]int, error) {
	rows, err := a.db.Query(`SELECT verdict, COUNT(*) FROM verdicts GROUP BY verdict`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var verdict string
		var count int
		if err := rows.Scan(&verdict, &count); err != nil {
			return nil, err
		}
		counts[verdict] = count
	}
	return counts, rows.Err()
}
