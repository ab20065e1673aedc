package webapi

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultListenAddr    = ":8080"
	defaultDatabaseURL   = "sqlite://parking.db"
	defaultAllowedOrigin = "http://localhost:8000"
	defaultSessionIssuer = "parkingd"
	defaultSessionCookie = "parking_session"
	defaultSessionTTL    = 24 * time.Hour
	defaultAdminDisplay  = "Administrator"
	shutdownTimeout      = 5 * time.Second
	claimsContextKey     = "auth_claims"
)

// Config aggregates runtime settings for the parking HTTP API.
type Config struct {
	ListenAddr        string
	DatabaseURL       string
	AllowedOrigins    []string
	SessionSigningKey string
	SessionIssuer     string
	SessionCookieName string
	SessionTTL        time.Duration
	SecureCookies     bool
	AdminUsername     string
	AdminPassword     string
	AdminDisplayName  string
}

// Validate fills defaults and ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.SessionIssuer = defaultIfEmpty(cfg.SessionIssuer, defaultSessionIssuer)
	cfg.SessionCookieName = defaultIfEmpty(cfg.SessionCookieName, defaultSessionCookie)
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	cfg.AdminDisplayName = defaultIfEmpty(cfg.AdminDisplayName, defaultAdminDisplay)
	if len(cfg.SessionSigningKey) == 0 {
		return fmt.Errorf("jwt signing key is required")
	}
	if strings.TrimSpace(cfg.AdminUsername) != "" && cfg.AdminPassword == "" {
		return fmt.Errorf("admin password is required when admin username is set")
	}
	if strings.TrimSpace(cfg.AdminUsername) == "" && cfg.AdminPassword != "" {
		return fmt.Errorf("admin username is required when admin password is set")
	}
	return nil
}

// HasBootstrapAdmin reports whether serve should ensure an administrator exists.
func (cfg Config) HasBootstrapAdmin() bool {
	return strings.TrimSpace(cfg.AdminUsername) != ""
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
