package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where overflew stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Completion Configuration
	AIEnabled           bool          // OVERFLEW_AI_ENABLED (default: true when an API key is present)
	AIAPIKey            string        // OVERFLEW_AI_API_KEY (legacy: OPENAI_API_KEY)
	AIBaseURL           string        // OVERFLEW_AI_BASE_URL (legacy: OPENAI_BASE_URL, default: https://api.openai.com/v1)
	AIModel             string        // OVERFLEW_AI_MODEL (legacy: OPENAI_MODEL, default: gpt-3.5-turbo-instruct)
	AIMaxTokens         int           // OVERFLEW_AI_MAX_TOKENS (default: 4096)
	AICompletionTimeout time.Duration // OVERFLEW_AI_COMPLETION_TIMEOUT (default: 60s)
	AIRequestsPerSecond float64       // OVERFLEW_AI_RPS (default: 5)
	// AIPersistFallback keeps the apology text as a real comment when the completion call fails.
	AIPersistFallback bool // OVERFLEW_AI_PERSIST_FALLBACK (default: true)

	// Worker Pool Configuration
	WorkerCount   int // OVERFLEW_WORKERS (legacy: MAX_LLM_WORKERS, default: 3)
	ParallelLimit int // OVERFLEW_PARALLEL_LIMIT (default: 3)

	// Cache Configuration
	CacheRedisAddr string // OVERFLEW_CACHE_REDIS_ADDR (default: "", L2 disabled)
}

const (
	DefaultAIBaseURL           = "https://api.openai.com/v1"
	DefaultAIModel             = "gpt-3.5-turbo-instruct"
	DefaultAIMaxTokens         = 4096
	DefaultAICompletionTimeout = 60 * time.Second
	DefaultAIRequestsPerSecond = 5
	DefaultWorkerCount         = 3
	DefaultParallelLimit       = 3
)

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if completions are enabled and an API key or a custom base URL is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIEnabled && (p.AIAPIKey != "" || p.AIBaseURL != DefaultAIBaseURL)
}

// FromEnv loads configuration from environment variables.
// Supports both OVERFLEW_* and the legacy OPENAI_* / MAX_LLM_WORKERS names.
func (p *Profile) FromEnv() {
	// Helper to get env value with legacy fallback and default value
	getEnvWithDefault := func(newKey, legacyKey, defaultValue string) string {
		if val := os.Getenv(newKey); val != "" {
			return val
		}
		if legacyKey != "" {
			if val := os.Getenv(legacyKey); val != "" {
				return val
			}
		}
		return defaultValue
	}

	getIntEnv := func(newKey, legacyKey string, defaultValue int) int {
		raw := getEnvWithDefault(newKey, legacyKey, "")
		if raw == "" {
			return defaultValue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			slog.Warn("ignoring invalid integer env value", slog.String("key", newKey), slog.String("value", raw))
			return defaultValue
		}
		return v
	}

	p.AIAPIKey = getEnvWithDefault("OVERFLEW_AI_API_KEY", "OPENAI_API_KEY", "")
	p.AIBaseURL = getEnvWithDefault("OVERFLEW_AI_BASE_URL", "OPENAI_BASE_URL", DefaultAIBaseURL)
	p.AIModel = getEnvWithDefault("OVERFLEW_AI_MODEL", "OPENAI_MODEL", DefaultAIModel)
	p.AIMaxTokens = getIntEnv("OVERFLEW_AI_MAX_TOKENS", "", DefaultAIMaxTokens)
	p.AIEnabled = getEnvWithDefault("OVERFLEW_AI_ENABLED", "", strconv.FormatBool(p.AIAPIKey != "")) == "true"
	p.AIPersistFallback = getEnvWithDefault("OVERFLEW_AI_PERSIST_FALLBACK", "", "true") == "true"

	p.AICompletionTimeout = DefaultAICompletionTimeout
	if raw := os.Getenv("OVERFLEW_AI_COMPLETION_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			p.AICompletionTimeout = d
		}
	}
	p.AIRequestsPerSecond = DefaultAIRequestsPerSecond
	if raw := os.Getenv("OVERFLEW_AI_RPS"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			p.AIRequestsPerSecond = v
		}
	}

	p.WorkerCount = getIntEnv("OVERFLEW_WORKERS", "MAX_LLM_WORKERS", DefaultWorkerCount)
	p.ParallelLimit = getIntEnv("OVERFLEW_PARALLEL_LIMIT", "", DefaultParallelLimit)
	p.CacheRedisAddr = os.Getenv("OVERFLEW_CACHE_REDIS_ADDR")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}
	if p.WorkerCount <= 0 {
		p.WorkerCount = DefaultWorkerCount
	}
	if p.ParallelLimit <= 0 {
		p.ParallelLimit = DefaultParallelLimit
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "overflew")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/overflew"
		}
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("overflew_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
