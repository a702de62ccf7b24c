package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"tomoseq/domain/peaks"
	"tomoseq/internal"
	"tomoseq/internal/errors"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Analysis peaks.Params
	Database DatabaseConfig
	Server   ServerConfig
	LogLevel internal.LogLevel
}

// DatabaseConfig holds database connection settings. An empty URL disables
// persistence.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port        string
	GinMode     string
	MaxBodySize int64
}

// LoadDotEnv reads .env from the working directory if present. Variables
// already set in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		internal.DefaultLogger.Warn("[Config] could not read .env: %v", err)
	}
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	analysis, err := loadAnalysisConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load analysis configuration")
	}
	config.Analysis = *analysis

	config.Database = *loadDatabaseConfig()
	config.Server = *loadServerConfig()

	level, ok := internal.ParseLogLevel(getEnvOrDefault("LOG_LEVEL", "INFO"))
	if !ok {
		return nil, errors.ConfigInvalid("LOG_LEVEL must be one of ERROR, WARN, INFO, DEBUG, TRACE")
	}
	config.LogLevel = level

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadAnalysisConfig() (*peaks.Params, error) {
	p := peaks.DefaultParams()
	var err error

	if p.Threshold, err = getEnvFloat("TOMO_THRESHOLD", p.Threshold); err != nil {
		return nil, err
	}
	if p.MinLength, err = getEnvInt("TOMO_MIN_LENGTH", p.MinLength); err != nil {
		return nil, err
	}
	if p.Permutations, err = getEnvInt("TOMO_PERMUTATIONS", p.Permutations); err != nil {
		return nil, err
	}
	if p.MinCount, err = getEnvFloat("TOMO_MIN_COUNT", p.MinCount); err != nil {
		return nil, err
	}
	if p.MinSections, err = getEnvInt("TOMO_MIN_SECTIONS", p.MinSections); err != nil {
		return nil, err
	}
	if p.Workers, err = getEnvInt("TOMO_WORKERS", runtime.NumCPU()); err != nil {
		return nil, err
	}
	if p.PermutationWorkers, err = getEnvInt("TOMO_PERMUTATION_WORKERS", p.PermutationWorkers); err != nil {
		return nil, err
	}
	p.NormalizeMethod = peaks.NormalizeMethod(getEnvOrDefault("TOMO_NORMALIZE_METHOD", string(p.NormalizeMethod)))
	p.AdjustMethod = peaks.AdjustMethod(getEnvOrDefault("TOMO_ADJUST_METHOD", string(p.AdjustMethod)))

	if raw := strings.TrimSpace(os.Getenv("TOMO_SEED")); raw != "" {
		seed, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			return nil, errors.ConfigInvalid("TOMO_SEED must be an integer")
		}
		p = p.WithSeed(seed)
	}
	return &p, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:             getEnvOrDefault("DATABASE_URL", ""),
		MaxOpenConns:    getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		ConnMaxLifetime: getEnvDurationOrDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:        getEnvOrDefault("PORT", "8080"),
		GinMode:     getEnvOrDefault("GIN_MODE", "debug"),
		MaxBodySize: int64(getEnvIntOrDefault("MAX_BODY_MB", 64)) << 20,
	}
}

func validateConfig(config *Config) error {
	if err := config.Analysis.Validate(); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT cannot be empty")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// The analysis settings are strict: a typo must not silently fall back to a
// default and change results.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.ConfigInvalid(key + " must be an integer")
	}
	return intValue, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(key + " must be a number")
	}
	return floatValue, nil
}
