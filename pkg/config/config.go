package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional: DATABASE_URL 비어있으면 DB 저장 비활성화)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	Naver NaverConfig

	// Simulation defaults
	Simulation SimulationConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database URL was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// NaverConfig holds Naver Finance configuration
type NaverConfig struct {
	BaseURL     string // HTML pages (finance.naver.com)
	ChartURL    string // fchart endpoint (fchart.stock.naver.com)
	RatePerSec  float64
	Concurrency int
}

// SimulationConfig holds the defaults for a portfolio search run
type SimulationConfig struct {
	SubsetSize        int
	Wallets           int
	MinWeight         float64
	MaxWeight         float64
	TradingDays       int
	RiskFreeRate      float64
	Workers           int // 0 = runtime.NumCPU()
	BatchSize         int
	MaxSampleAttempts int
	Seed              uint64 // 0 = 시간 기반 시드
	TopN              int    // DB에 저장할 상위 지갑 수
	OutputDir         string
	ProfilePath       string
	Schedule          string // cron (with seconds)
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Naver: NaverConfig{
			BaseURL:     getEnv("NAVER_BASE_URL", "https://finance.naver.com"),
			ChartURL:    getEnv("NAVER_CHART_URL", "https://fchart.stock.naver.com"),
			RatePerSec:  getEnvAsFloat("NAVER_RATE_PER_SEC", 5),
			Concurrency: getEnvAsInt("NAVER_CONCURRENCY", 4),
		},

		Simulation: SimulationConfig{
			SubsetSize:        getEnvAsInt("SIM_SUBSET_SIZE", 25),
			Wallets:           getEnvAsInt("SIM_WALLETS", 1000),
			MinWeight:         getEnvAsFloat("SIM_MIN_WEIGHT", 0.0),
			MaxWeight:         getEnvAsFloat("SIM_MAX_WEIGHT", 0.2),
			TradingDays:       getEnvAsInt("SIM_TRADING_DAYS", 252),
			RiskFreeRate:      getEnvAsFloat("SIM_RISK_FREE_RATE", 0.0),
			Workers:           getEnvAsInt("SIM_WORKERS", 0),
			BatchSize:         getEnvAsInt("SIM_BATCH_SIZE", 1000),
			MaxSampleAttempts: getEnvAsInt("SIM_MAX_SAMPLE_ATTEMPTS", 100000),
			Seed:              getEnvAsUint64("SIM_SEED", 0),
			TopN:              getEnvAsInt("SIM_TOP_N", 100),
			OutputDir:         getEnv("SIM_OUTPUT_DIR", "data"),
			ProfilePath:       getEnv("SIM_PROFILE", "configs/profile.yaml"),
			Schedule:          getEnv("SIM_SCHEDULE", "0 30 18 * * 1-5"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are consistent
func (c *Config) validate() error {
	switch c.Env {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENV must be one of: development, staging, production (got %q)", c.Env)
	}

	s := c.Simulation
	positive := []struct {
		key string
		val int
	}{
		{"SIM_SUBSET_SIZE", s.SubsetSize},
		{"SIM_WALLETS", s.Wallets},
		{"SIM_TRADING_DAYS", s.TradingDays},
		{"SIM_MAX_SAMPLE_ATTEMPTS", s.MaxSampleAttempts},
	}
	for _, p := range positive {
		if p.val < 1 {
			return fmt.Errorf("%s must be positive, got %d", p.key, p.val)
		}
	}

	if s.MinWeight < 0 || s.MinWeight >= s.MaxWeight || s.MaxWeight > 1 {
		return fmt.Errorf("SIM_MIN_WEIGHT/SIM_MAX_WEIGHT must satisfy 0 <= min < max <= 1, got [%g, %g]",
			s.MinWeight, s.MaxWeight)
	}
	if c.Naver.RatePerSec <= 0 || c.Naver.Concurrency < 1 {
		return fmt.Errorf("NAVER_RATE_PER_SEC and NAVER_CONCURRENCY must be positive")
	}
	return nil
}

// loadEnvFile loads the first .env found in the working directory or next to the binary
func loadEnvFile() {
	candidates := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates, filepath.Join(dir, ".env"), filepath.Join(dir, "..", ".env"))
	}

	for _, path := range candidates {
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envAs parses key with parse; unset or malformed values fall back to def
func envAs[T any](key string, def T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func getEnvAsInt(key string, defaultValue int) int {
	return envAs(key, defaultValue, strconv.Atoi)
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	return envAs(key, defaultValue, func(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) })
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	return envAs(key, defaultValue, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func getEnvAsBool(key string, defaultValue bool) bool {
	return envAs(key, defaultValue, strconv.ParseBool)
}

// getEnvAsDuration takes its default as a literal so it reads like the env value
func getEnvAsDuration(key, defaultValue string) time.Duration {
	def, _ := time.ParseDuration(defaultValue)
	return envAs(key, def, time.ParseDuration)
}
