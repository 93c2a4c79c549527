// Package config reads the server configuration from the environment.
//
// Everything has a sensible development default; production overrides
// via environment variables (or a .env file loaded in main). Bad values
// fail at startup — a server that half-reads its config is worse than
// one that refuses to start.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds the server configuration.
type Config struct {
	Port        int    // PORT — HTTP listen port
	DBPath      string // DB_PATH — SQLite database file
	TemplateDir string // TEMPLATE_DIR — HTML page templates

	// RedisAddr switches the session store: empty means in-process
	// memory, anything else is a Redis host:port shared by all
	// instances.
	RedisAddr string // REDIS_ADDR

	// IdleThreshold is how long a session id lives without rotation;
	// Lifetime bounds the session's absolute age.
	IdleThreshold time.Duration // SESSION_IDLE_TIMEOUT, e.g. "30m"
	Lifetime      time.Duration // SESSION_LIFETIME, e.g. "12h"

	// CookieSecure marks the session cookie Secure. Defaults to true;
	// set COOKIE_SECURE=false only for plain-HTTP local development.
	CookieSecure bool // COOKIE_SECURE

	LogLevel slog.Level // LOG_LEVEL — debug, info, warn, error
}

// Load builds a Config from the environment.
func Load() (Config, error) {
	cfg := Config{
		Port:          8080,
		DBPath:        "data/securelearn.db",
		TemplateDir:   "web/templates",
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		IdleThreshold: 30 * time.Minute,
		Lifetime:      12 * time.Hour,
		CookieSecure:  true,
		LogLevel:      slog.LevelInfo,
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TEMPLATE_DIR"); v != "" {
		cfg.TemplateDir = v
	}
	if v := os.Getenv("SESSION_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid SESSION_IDLE_TIMEOUT %q: %w", v, err)
		}
		cfg.IdleThreshold = d
	}
	if v := os.Getenv("SESSION_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid SESSION_LIFETIME %q: %w", v, err)
		}
		cfg.Lifetime = d
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid COOKIE_SECURE %q: %w", v, err)
		}
		cfg.CookieSecure = secure
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("config: invalid LOG_LEVEL %q: %w", v, err)
		}
		cfg.LogLevel = level
	}

	return cfg, nil
}
