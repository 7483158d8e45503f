package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	DevIdentitySalt = "pollwarden-dev-identity"
	DevSlugSalt     = "pollwarden-dev-slug"
)

var ErrDevSalt = errors.New("development salt in use")

// RateLimit is the budget for one endpoint class.
type RateLimit struct {
	Limit  int64
	Window time.Duration
}

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string
	RedisAddr   string

	IdentitySalt string
	SlugSalt     string

	RateLimits     map[string]RateLimit
	TrustedProxies []string

	ScoreMin               int
	ScoreMax               int
	FreezeOptionsOnPublish bool
	BulkActionMaxBatch     int
	BulkActionConcurrency  int
	StorageRetryAttempts   int

	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
	AdmissionSweepPeriod time.Duration
}

// Load reads an optional dotenv file, then the environment, then the
// optional YAML policy file named by POLLWARDEN_POLICY_FILE. An empty
// envFile means ".env" in the working directory, which may be absent.
func Load(envFile string) (Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return Config{}, err
	}

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "pollwarden"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	cfg := Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		RedisAddr:   strings.TrimSpace(os.Getenv("REDIS_ADDR")),

		IdentitySalt: envString("IDENTITY_SALT", DevIdentitySalt),
		SlugSalt:     envString("SLUG_SALT", DevSlugSalt),

		RateLimits:     make(map[string]RateLimit),
		TrustedProxies: envList("TRUSTED_PROXIES"),

		ScoreMin:               envInt("SCORE_MIN", -2),
		ScoreMax:               envInt("SCORE_MAX", 2),
		FreezeOptionsOnPublish: envBool("FREEZE_OPTIONS_ON_PUBLISH", true),
		BulkActionMaxBatch:     envInt("BULK_ACTION_MAX_BATCH", 100),
		BulkActionConcurrency:  envInt("BULK_ACTION_CONCURRENCY", 8),
		StorageRetryAttempts:   envInt("STORAGE_RETRY_ATTEMPTS", 3),

		OutboxPollInterval:   envDuration("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxBatchSize:      envInt("OUTBOX_BATCH_SIZE", 100),
		AdmissionSweepPeriod: envDuration("ADMISSION_SWEEP_PERIOD", time.Minute),
	}

	for _, class := range []string{"read", "submit", "flag", "register", "write", "moderate"} {
		prefix := "RATE_LIMIT_" + strings.ToUpper(class)
		limit := envInt(prefix+"_LIMIT", 0)
		window := envDuration(prefix+"_WINDOW", 0)
		if limit > 0 || window > 0 {
			cfg.RateLimits[class] = RateLimit{Limit: int64(limit), Window: window}
		}
	}

	if path := strings.TrimSpace(os.Getenv("POLLWARDEN_POLICY_FILE")); path != "" {
		if err := applyPolicyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if cfg.ScoreMin >= cfg.ScoreMax {
		return Config{}, fmt.Errorf("score range invalid: SCORE_MIN %d must be below SCORE_MAX %d", cfg.ScoreMin, cfg.ScoreMax)
	}
	if cfg.BulkActionMaxBatch <= 0 {
		return Config{}, fmt.Errorf("BULK_ACTION_MAX_BATCH must be positive, got %d", cfg.BulkActionMaxBatch)
	}
	if err := requireSalts(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// requireSalts rejects the public development salts once the process talks
// to a real database. Only the in-memory mode may run on them.
func requireSalts(cfg Config) error {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil
	}
	if cfg.IdentitySalt == DevIdentitySalt {
		return fmt.Errorf("%w: IDENTITY_SALT must be set when POSTGRES_DSN is set", ErrDevSalt)
	}
	if cfg.SlugSalt == DevSlugSalt {
		return fmt.Errorf("%w: SLUG_SALT must be set when POSTGRES_DSN is set", ErrDevSalt)
	}
	return nil
}

func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

type policyFile struct {
	RateLimits map[string]struct {
		Limit  int64  `yaml:"limit"`
		Window string `yaml:"window"`
	} `yaml:"rate_limits"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// applyPolicyFile overlays the YAML policy on top of the environment. A class
// missing from the file keeps its environment value.
func applyPolicyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}
	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse policy file: %w", err)
	}
	for class, entry := range file.RateLimits {
		class = strings.ToLower(strings.TrimSpace(class))
		current := cfg.RateLimits[class]
		if entry.Limit > 0 {
			current.Limit = entry.Limit
		}
		if strings.TrimSpace(entry.Window) != "" {
			window, err := time.ParseDuration(strings.TrimSpace(entry.Window))
			if err != nil {
				return fmt.Errorf("policy file window for %s: %w", class, err)
			}
			current.Window = window
		}
		cfg.RateLimits[class] = current
	}
	if len(file.TrustedProxies) > 0 {
		cfg.TrustedProxies = file.TrustedProxies
	}
	return nil
}

func envString(name string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envList(name string) []string {
	var items []string
	for _, value := range strings.Split(os.Getenv(name), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
