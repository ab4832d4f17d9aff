package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_BACKEND", "CACHE_TTL", "TRACING_ENABLED", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}
	t.Setenv("JWT_SECRET", "secret")

	cfg := config.Load()
	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.StoreBackend != config.BackendSQLite {
		t.Errorf("expected sqlite backend, got %q", cfg.StoreBackend)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("expected 5m cache TTL, got %v", cfg.CacheTTL)
	}
	if cfg.TracingEnabled {
		t.Error("expected tracing disabled by default")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("expected [*], got %v", cfg.AllowedOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := config.Load()
	if cfg.Port != 9090 || cfg.StoreBackend != config.BackendMemory || cfg.CacheTTL != 30*time.Second {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.TracingEnabled {
		t.Error("expected tracing enabled")
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected fallback retries 3, got %d", cfg.MaxRetries)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"memory", func(c *config.Config) { c.StoreBackend = config.BackendMemory }, false},
		{"postgres without dsn", func(c *config.Config) { c.StoreBackend = config.BackendPostgres; c.PostgresDSN = "" }, true},
		{"postgres with dsn", func(c *config.Config) { c.StoreBackend = config.BackendPostgres; c.PostgresDSN = "postgres://x" }, false},
		{"supabase without keys", func(c *config.Config) { c.StoreBackend = config.BackendSupabase }, true},
		{"unknown backend", func(c *config.Config) { c.StoreBackend = "mongo" }, true},
		{"bad port", func(c *config.Config) { c.Port = 0 }, true},
		{"missing jwt secret", func(c *config.Config) { c.JWTSecret = "" }, true},
		{"zero cache ttl", func(c *config.Config) { c.CacheTTL = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Port: 8080, StoreBackend: config.BackendSQLite, SQLitePath: "x.db",
				JWTSecret: "s", MaxConcurrency: 1, CacheTTL: time.Minute,
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := &config.Config{Port: 0, StoreBackend: "mongo"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"PORT", "STORE_BACKEND", "JWT_SECRET", "MAX_CONCURRENCY", "CACHE_TTL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s in %q", want, err)
		}
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nTRACKER_TEST_A=from-file\nTRACKER_TEST_B=\"quoted\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRACKER_TEST_A", "from-env")
	t.Setenv("TRACKER_TEST_B", "")
	os.Unsetenv("TRACKER_TEST_B")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("TRACKER_TEST_A"); got != "from-env" {
		t.Errorf("expected env to win, got %q", got)
	}
	if got := os.Getenv("TRACKER_TEST_B"); got != "quoted" {
		t.Errorf("expected quoted value unwrapped, got %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Error("expected error for missing file")
	}
}
