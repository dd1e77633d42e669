package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/room-scheduler/internal/logging"
)

// SMTP describes the default mail relay used for rooms without their own.
type SMTP struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Encryption string
}

// Config captures environment driven configuration values for the room scheduler.
type Config struct {
	HTTPPort          int
	SQLiteDSN         string
	SeedFile          string
	DefaultTimezone   string
	SecretKey         string
	SMTP              SMTP
	DecisionTTL       time.Duration
	DecisionCacheSize int
	LogLevel          slog.Level
}

// DefaultEnvFile is read by Load when present.
const DefaultEnvFile = ".env"

// Load reads DefaultEnvFile, if it exists, and then parses the process environment.
func Load() (Config, error) {
	return LoadWithEnvFile(DefaultEnvFile)
}

// LoadWithEnvFile loads variables from path without overriding ones already
// set, then parses the process environment. A missing file is not an error.
//
// Missing required values and invalid values are reported together.
func LoadWithEnvFile(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := Config{
		HTTPPort:          8080,
		SQLiteDSN:         "file:roomsched.db",
		DefaultTimezone:   "UTC",
		DecisionTTL:       24 * time.Hour,
		DecisionCacheSize: 4096,
		LogLevel:          slog.LevelInfo,
		SMTP: SMTP{
			Port:       587,
			Encryption: "tls",
		},
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if port, ok, err := intVar("ROOMSCHED_HTTP_PORT"); err != nil || (ok && (port <= 0 || port > 65535)) {
		invalid = append(invalid, "ROOMSCHED_HTTP_PORT")
	} else if ok {
		cfg.HTTPPort = port
	}

	if dsn := env("ROOMSCHED_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	cfg.SeedFile = env("ROOMSCHED_SEED_FILE")

	if tz := env("ROOMSCHED_DEFAULT_TIMEZONE"); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			invalid = append(invalid, "ROOMSCHED_DEFAULT_TIMEZONE")
		} else {
			cfg.DefaultTimezone = tz
		}
	}

	if secret := env("ROOMSCHED_SECRET_KEY"); secret == "" {
		missing = append(missing, "ROOMSCHED_SECRET_KEY")
	} else {
		cfg.SecretKey = secret
	}

	cfg.SMTP.Host = env("ROOMSCHED_SMTP_HOST")
	cfg.SMTP.Username = env("ROOMSCHED_SMTP_USER")
	cfg.SMTP.Password = os.Getenv("ROOMSCHED_SMTP_PASSWORD")
	cfg.SMTP.From = env("ROOMSCHED_SMTP_FROM")
	if port, ok, err := intVar("ROOMSCHED_SMTP_PORT"); err != nil || (ok && (port <= 0 || port > 65535)) {
		invalid = append(invalid, "ROOMSCHED_SMTP_PORT")
	} else if ok {
		cfg.SMTP.Port = port
	}
	if enc := strings.ToLower(env("ROOMSCHED_SMTP_ENCRYPTION")); enc != "" {
		switch enc {
		case "none", "tls", "ssl":
			cfg.SMTP.Encryption = enc
		default:
			invalid = append(invalid, "ROOMSCHED_SMTP_ENCRYPTION")
		}
	}

	if ttlValue := env("ROOMSCHED_DECISION_TTL"); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "ROOMSCHED_DECISION_TTL")
		} else {
			cfg.DecisionTTL = ttl
		}
	}

	if size, ok, err := intVar("ROOMSCHED_DECISION_CACHE_SIZE"); err != nil || (ok && size <= 0) {
		invalid = append(invalid, "ROOMSCHED_DECISION_CACHE_SIZE")
	} else if ok {
		cfg.DecisionCacheSize = size
	}

	if levelValue := env("ROOMSCHED_LOG_LEVEL"); levelValue != "" {
		level, err := logging.ParseLevel(levelValue)
		if err != nil {
			invalid = append(invalid, "ROOMSCHED_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing required environment variables: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		problems = append(problems, "invalid environment variable values: "+strings.Join(invalid, ", "))
	}
	if len(problems) > 0 {
		return Config{}, errors.New(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func intVar(key string) (int, bool, error) {
	raw := env(key)
	if raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, err
	}
	return value, true, nil
}
