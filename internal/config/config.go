package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port               string
	BackendURL         string
	IdentityURL        string
	IdentityAnonKey    string
	IdentityJWTSecret  string
	SessionSecret      string
	SessionTTL         time.Duration
	DisplayTimezone    string
	Location           *time.Location
	GeolocationTimeout time.Duration
	RequestTimeout     time.Duration
	MapTileURL         string
	SecureCookies      bool
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:              fallback(os.Getenv("PORT"), "8080"),
		BackendURL:        strings.TrimRight(fallback(os.Getenv("BACKEND_URL"), "http://localhost:8000"), "/"),
		IdentityURL:       strings.TrimRight(firstSet("IDENTITY_URL", "SUPABASE_URL"), "/"),
		IdentityAnonKey:   firstSet("IDENTITY_ANON_KEY", "SUPABASE_ANON_KEY"),
		IdentityJWTSecret: strings.TrimSpace(os.Getenv("IDENTITY_JWT_SECRET")),
		SessionSecret:     strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		DisplayTimezone:   fallback(os.Getenv("DISPLAY_TIMEZONE"), "America/Sao_Paulo"),
		MapTileURL:        fallback(os.Getenv("MAP_TILE_URL"), "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"),
		SecureCookies:     parseBool(os.Getenv("SECURE_COOKIES"), false),
	}

	cfg.SessionTTL = parseDuration(os.Getenv("SESSION_TTL_MINUTES"), time.Minute, 12*time.Hour)
	cfg.GeolocationTimeout = parseDuration(os.Getenv("GEOLOCATION_TIMEOUT_MS"), time.Millisecond, 5*time.Second)
	cfg.RequestTimeout = parseDuration(os.Getenv("REQUEST_TIMEOUT_SECONDS"), time.Second, 15*time.Second)

	if cfg.IdentityURL == "" || cfg.IdentityAnonKey == "" {
		return Config{}, errors.New("IDENTITY_URL and IDENTITY_ANON_KEY are required")
	}
	if len(cfg.SessionSecret) < 16 {
		return Config{}, errors.New("SESSION_SECRET must be at least 16 characters")
	}
	loc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DISPLAY_TIMEZONE %q: %w", cfg.DisplayTimezone, err)
	}
	cfg.Location = loc

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

// firstSet returns the first non-empty variable; the SUPABASE_* names are accepted as aliases.
func firstSet(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func parseDuration(raw string, unit, def time.Duration) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * unit
}

func parseBool(raw string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}
