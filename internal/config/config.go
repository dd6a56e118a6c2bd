/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseBackend selects the SQL dialect SessionHistory persists through.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	Hostname    string

	RecordingsDir          string
	SessionTTL             time.Duration
	MaxListenersPerSession int
	BroadcasterIdleTimeout time.Duration
	ListenerQueueDepth     int
	SlowConsumerThreshold  int
	RecordingHighWaterMark int

	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	DBBackend DatabaseBackend
	DBDSN     string

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool

	NATSURL string

	LegacyEnvWarnings []string
}

// Load reads environment variables, optionally overlaying a YAML config file
// first, applies defaults, and validates the result.
func Load() (*Config, error) {
	overlay := loadYAMLOverlay(getEnvAny([]string{"RELAY_CONFIG_FILE"}, ""))

	cfg := &Config{
		Environment: getEnvAny([]string{"RELAY_ENV"}, overlayOr(overlay, "environment", "development")),
		HTTPBind:    getEnvAny([]string{"RELAY_HTTP_BIND"}, overlayOr(overlay, "http_bind", "0.0.0.0")),
		HTTPPort:    getEnvIntAny([]string{"PORT", "RELAY_HTTP_PORT"}, 3000),
		Hostname:    getEnvAny([]string{"HOSTNAME", "RELAY_HOSTNAME"}, "localhost"),

		RecordingsDir:          getEnvAny([]string{"RECORDINGS_DIR", "RELAY_RECORDINGS_DIR"}, "./recordings"),
		SessionTTL:             time.Duration(getEnvIntAny([]string{"SESSION_TTL_MS", "RELAY_SESSION_TTL_MS"}, 900000)) * time.Millisecond,
		MaxListenersPerSession: getEnvIntAny([]string{"MAX_LISTENERS_PER_SESSION", "RELAY_MAX_LISTENERS"}, 200),
		BroadcasterIdleTimeout: time.Duration(getEnvIntAny([]string{"RELAY_BROADCASTER_IDLE_TIMEOUT_MS"}, 30000)) * time.Millisecond,
		ListenerQueueDepth:     getEnvIntAny([]string{"RELAY_LISTENER_QUEUE_DEPTH"}, 32),
		SlowConsumerThreshold:  getEnvIntAny([]string{"RELAY_SLOW_CONSUMER_THRESHOLD"}, 5),
		RecordingHighWaterMark: getEnvIntAny([]string{"RELAY_RECORDING_HIGH_WATER_BYTES"}, 1<<20),

		TracingEnabled:    getEnvBoolAny([]string{"RELAY_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"RELAY_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"RELAY_TRACING_SAMPLE_RATE"}, 1.0),

		DBBackend: DatabaseBackend(getEnvAny([]string{"RELAY_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:     getEnvAny([]string{"RELAY_DB_DSN"}, "./relay.db"),

		S3Bucket:          getEnvAny([]string{"RELAY_S3_BUCKET"}, ""),
		S3Region:          getEnvAny([]string{"RELAY_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Endpoint:        getEnvAny([]string{"RELAY_S3_ENDPOINT"}, ""),
		S3AccessKeyID:     getEnvAny([]string{"RELAY_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"RELAY_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"RELAY_S3_USE_PATH_STYLE"}, false),

		NATSURL: getEnvAny([]string{"RELAY_NATS_URL"}, ""),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}
	if cfg.MaxListenersPerSession <= 0 {
		return nil, fmt.Errorf("RELAY_MAX_LISTENERS must be positive")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("RELAY_SESSION_TTL_MS must be positive")
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if cfg.S3Bucket != "" && cfg.S3AccessKeyID == "" {
			return nil, fmt.Errorf("RELAY_S3_ACCESS_KEY_ID must be set in production when RELAY_S3_BUCKET is configured")
		}
	}

	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()
	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"ENVIRONMENT":        "use RELAY_ENV",
		"SESSION_TTL":        "use RELAY_SESSION_TTL_MS",
		"MAX_LISTENERS":      "use RELAY_MAX_LISTENERS or MAX_LISTENERS_PER_SESSION",
		"TRACING_ENABLED":    "use RELAY_TRACING_ENABLED",
		"OTLP_ENDPOINT":      "use RELAY_OTLP_ENDPOINT",
		"TRACING_SAMPLE_RATE": "use RELAY_TRACING_SAMPLE_RATE",
	}
	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// loadYAMLOverlay reads an optional static config file used to seed defaults
// before environment variables are applied. A missing or empty path disables
// the overlay; a present-but-unreadable file is ignored (environment
// variables remain the source of truth either way).
func loadYAMLOverlay(path string) map[string]any {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var overlay map[string]any
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil
	}
	return overlay
}

func overlayOr(overlay map[string]any, key, def string) string {
	if overlay == nil {
		return def
	}
	if v, ok := overlay[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
