package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allKeys = []string{
	"ROOMSCHED_HTTP_PORT",
	"ROOMSCHED_SQLITE_DSN",
	"ROOMSCHED_SEED_FILE",
	"ROOMSCHED_DEFAULT_TIMEZONE",
	"ROOMSCHED_SECRET_KEY",
	"ROOMSCHED_SMTP_HOST",
	"ROOMSCHED_SMTP_PORT",
	"ROOMSCHED_SMTP_USER",
	"ROOMSCHED_SMTP_PASSWORD",
	"ROOMSCHED_SMTP_FROM",
	"ROOMSCHED_SMTP_ENCRYPTION",
	"ROOMSCHED_DECISION_TTL",
	"ROOMSCHED_DECISION_CACHE_SIZE",
	"ROOMSCHED_LOG_LEVEL",
}

// clearEnv unsets every variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		const secret = "super-secret"
		t.Setenv("ROOMSCHED_SECRET_KEY", secret)

		cfg, err := LoadWithEnvFile("")
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:roomsched.db" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.DefaultTimezone != "UTC" || cfg.DecisionTTL != 24*time.Hour || cfg.DecisionCacheSize != 4096 {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
		if cfg.LogLevel != slog.LevelInfo {
			t.Fatalf("expected info level by default, got %v", cfg.LogLevel)
		}
		if cfg.SMTP.Port != 587 || cfg.SMTP.Encryption != "tls" || cfg.SMTP.Host != "" {
			t.Fatalf("unexpected SMTP defaults: %+v", cfg.SMTP)
		}
		if cfg.SecretKey != secret {
			t.Fatalf("expected secret key to be %q, got %q", secret, cfg.SecretKey)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := LoadWithEnvFile("")
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "missing required environment variables: ROOMSCHED_SECRET_KEY"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("reports missing and invalid values together", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ROOMSCHED_HTTP_PORT", "eighty")
		t.Setenv("ROOMSCHED_DEFAULT_TIMEZONE", "Mars/Olympus")
		t.Setenv("ROOMSCHED_DECISION_TTL", "-1h")
		t.Setenv("ROOMSCHED_SMTP_ENCRYPTION", "starttls")
		t.Setenv("ROOMSCHED_LOG_LEVEL", "loud")

		_, err := LoadWithEnvFile("")
		if err == nil {
			t.Fatal("expected an error")
		}
		expected := "missing required environment variables: ROOMSCHED_SECRET_KEY; " +
			"invalid environment variable values: ROOMSCHED_HTTP_PORT, ROOMSCHED_DEFAULT_TIMEZONE, ROOMSCHED_SMTP_ENCRYPTION, ROOMSCHED_DECISION_TTL, ROOMSCHED_LOG_LEVEL"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ROOMSCHED_SECRET_KEY", "secret-value")
		t.Setenv("ROOMSCHED_HTTP_PORT", "9090")
		t.Setenv("ROOMSCHED_SQLITE_DSN", "file:/tmp/rooms.db")
		t.Setenv("ROOMSCHED_DEFAULT_TIMEZONE", "Europe/Berlin")
		t.Setenv("ROOMSCHED_DECISION_TTL", "2h")
		t.Setenv("ROOMSCHED_DECISION_CACHE_SIZE", "128")
		t.Setenv("ROOMSCHED_SMTP_HOST", "smtp.example.com")
		t.Setenv("ROOMSCHED_SMTP_PORT", "465")
		t.Setenv("ROOMSCHED_SMTP_ENCRYPTION", "SSL")
		t.Setenv("ROOMSCHED_LOG_LEVEL", "debug")

		cfg, err := LoadWithEnvFile("")
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.DecisionTTL != 2*time.Hour || cfg.DecisionCacheSize != 128 {
			t.Fatalf("unexpected decision cache settings: %+v", cfg)
		}
		if cfg.LogLevel != slog.LevelDebug {
			t.Fatalf("expected debug level, got %v", cfg.LogLevel)
		}
		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:/tmp/rooms.db" || cfg.DefaultTimezone != "Europe/Berlin" {
			t.Fatalf("unexpected config: %+v", cfg)
		}
		if cfg.SMTP != (SMTP{Host: "smtp.example.com", Port: 465, Encryption: "ssl"}) {
			t.Fatalf("unexpected SMTP config: %+v", cfg.SMTP)
		}
	})

	t.Run("reads an env file without overriding the environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ROOMSCHED_HTTP_PORT", "7070")

		path := filepath.Join(t.TempDir(), ".env")
		content := "ROOMSCHED_SECRET_KEY=from-file\nROOMSCHED_HTTP_PORT=6060\nROOMSCHED_SEED_FILE=/etc/rooms.yaml\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write env file: %v", err)
		}

		cfg, err := LoadWithEnvFile(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.SecretKey != "from-file" || cfg.SeedFile != "/etc/rooms.yaml" {
			t.Fatalf("expected values from env file, got %+v", cfg)
		}
		if cfg.HTTPPort != 7070 {
			t.Fatalf("expected process environment to win, got %d", cfg.HTTPPort)
		}
	})

	t.Run("ignores a missing env file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ROOMSCHED_SECRET_KEY", "secret")

		if _, err := LoadWithEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
			t.Fatalf("expected missing env file to be ignored, got %v", err)
		}
	})
}
