// internal/config/config.go
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config for the guardian gateway
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	// Base URLs of the two chat services, tried in order. Routes
	// (/chat, /query, /health) are appended per service.
	BackendURL  string `yaml:"backend_url"`
	FallbackURL string `yaml:"fallback_url"`

	// Base URL of the external classifier server. Empty means the
	// local heuristic simulation handles every analysis.
	SecurityServerURL string `yaml:"security_server_url"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`

	HealthInterval time.Duration `yaml:"health_interval"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`

	// Audit trail. Empty path disables the SQLite audit log.
	AuditDBPath string `yaml:"audit_db_path"`

	// Admin credentials come from env only; there is no default and
	// admin actions stay disabled until both are set.
	AdminUsername string `yaml:"-"`
	AdminPassword string `yaml:"-"`
}

// Load reads YAML config from path with env overrides.
// Missing file is fine: defaults plus env are enough to run.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr:     ":8080",
		RequestTimeout: 30 * time.Second,
		MaxRetries:     1,
		RetryBackoff:   500 * time.Millisecond,
		HealthInterval: 60 * time.Second,
		ProbeTimeout:   5 * time.Second,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Env overrides
	if v := os.Getenv("GUARDIAN_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("GUARDIAN_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("GUARDIAN_FALLBACK_URL"); v != "" {
		cfg.FallbackURL = v
	}
	if v := os.Getenv("GUARDIAN_SECURITY_SERVER_URL"); v != "" {
		cfg.SecurityServerURL = v
	}
	if v := os.Getenv("GUARDIAN_AUDIT_DB"); v != "" {
		cfg.AuditDBPath = v
	}
	cfg.AdminUsername = os.Getenv("GUARDIAN_ADMIN_USERNAME")
	cfg.AdminPassword = os.Getenv("GUARDIAN_ADMIN_PASSWORD")

	return cfg, nil
}

// AdminEnabled reports whether admin actions can be authenticated at all
func (c *Config) AdminEnabled() bool {
	return c.AdminUsername != "" && c.AdminPassword != ""
}
