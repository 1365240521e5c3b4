package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSlotCatalog is the clinic's bookable template for a generic day.
// The lunch gap (12:30-13:30) is already left out.
var DefaultSlotCatalog = []string{
	"08:00", "08:30", "09:00", "09:30", "10:00", "10:30",
	"11:00", "11:30", "12:00", "14:00", "14:30", "15:00",
	"15:30", "16:00", "16:30", "17:00", "17:30",
}

type Config struct {
	Env             string        // dev, prod
	Version         string        // reported by health endpoints
	HTTPPort        string        // default 8080
	PostgresDSN     string        // required
	RedisAddr       string        // host:port
	RedisUsername   string        // redis username
	RedisPassword   string        // redis password
	LockTTL         time.Duration // how long a Redis slot lock lives
	ShutdownTimeout time.Duration // graceful shutdown timeout
	LogLevel        string        // debug, info, warn, error
	LogFile         string        // optional rotated log file
	SlotCatalog     []string      // ordered HH:MM slots offered every day
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:             getEnv("APP_ENV", "dev"),
		Version:         getEnv("APP_VERSION", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		LockTTL:         getDuration("LOCK_TTL", 5*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:         os.Getenv("LOG_FILE"),
		SlotCatalog:     DefaultSlotCatalog,
	}

	if cfg.PostgresDSN == "" {
		return Config{}, errors.New("POSTGRES_DSN is required")
	}

	if raw := os.Getenv("SLOT_CATALOG"); raw != "" {
		catalog, err := ParseSlotCatalog(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SLOT_CATALOG: %w", err)
		}
		cfg.SlotCatalog = catalog
	}

	if err := cfg.loadRedis(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadRedis prefers REDIS_URL and falls back to the discrete REDIS_* vars.
func (c *Config) loadRedis() error {
	raw := os.Getenv("REDIS_URL")
	if raw == "" {
		c.RedisAddr = getEnv("REDIS_ADDR", "127.0.0.1:6379")
		c.RedisUsername = os.Getenv("REDIS_USERNAME")
		c.RedisPassword = os.Getenv("REDIS_PASSWORD")
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid REDIS_URL %q", raw)
	}
	c.RedisAddr = u.Host
	if u.User != nil {
		c.RedisUsername = u.User.Username()
		c.RedisPassword, _ = u.User.Password()
	}
	return nil
}

// ParseSlotCatalog parses "08:00,08:30,..." into an ordered slot list.
// Entries must be valid HH:MM values in strictly increasing order.
func ParseSlotCatalog(raw string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		slot := strings.TrimSpace(part)
		if slot == "" {
			continue
		}
		t, err := time.Parse("15:04", slot)
		if err != nil {
			return nil, fmt.Errorf("slot %q is not HH:MM", slot)
		}
		slot = t.Format("15:04")
		if n := len(out); n > 0 && slot <= out[n-1] {
			return nil, fmt.Errorf("slot %q is not after %q", slot, out[n-1])
		}
		out = append(out, slot)
	}
	if len(out) == 0 {
		return nil, errors.New("catalog is empty")
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		fmt.Fprintf(os.Stderr, "invalid duration for %s=%q, using default %s\n", key, v, def)
	}
	return def
}
