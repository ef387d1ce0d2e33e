package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendNone     = "none"
)

// Config holds the application configuration. Built once by Load and passed
// explicitly; nothing reads the environment after startup.
type Config struct {
	Environment        string
	ServerPort         int
	LogLevel           string
	CORSAllowedOrigins []string

	JWTSecret  string
	JWTIssuer  string
	TokenTTL   time.Duration
	BcryptCost int

	DataBackend    string
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxOpenConns int

	CacheBackend      string
	RedisURL          string
	AnalyticsCacheTTL time.Duration

	RateLimitRequests     int
	RateLimitWindow       time.Duration
	AuthRateLimitRequests int

	DefaultMonthlyBudget  float64
	AllowOwnerStatusPatch bool
	Timezone              string
	Location              *time.Location
	MaxPageSize           int

	AMQPURL      string
	AMQPExchange string

	OTLPEndpoint string
}

// Load reads configuration from environment variables, after merging an
// optional .env file from the working directory
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []error
	port := getEnvInt("SERVER_PORT", 8080, &errs)
	dbPort := getEnvInt("DB_PORT", 5432, &errs)
	maxOpen := getEnvInt("DB_MAX_OPEN_CONNS", 25, &errs)
	bcryptCost := getEnvInt("BCRYPT_COST", 10, &errs)
	rateReqs := getEnvInt("RATE_LIMIT_REQUESTS", 100, &errs)
	authReqs := getEnvInt("AUTH_RATE_LIMIT_REQUESTS", 10, &errs)
	maxPage := getEnvInt("MAX_PAGE_SIZE", 100, &errs)
	tokenTTL := getEnvDuration("TOKEN_TTL", 30*24*time.Hour, &errs)
	rateWindow := getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute, &errs)
	cacheTTL := getEnvDuration("ANALYTICS_CACHE_TTL", 5*time.Minute, &errs)
	ownerPatch := getEnvBool("ALLOW_OWNER_STATUS_PATCH", false, &errs)
	budget := getEnvFloat("DEFAULT_MONTHLY_BUDGET", 10000, &errs)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  port,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		JWTIssuer:  getEnv("JWT_ISSUER", "expensehub"),
		TokenTTL:   tokenTTL,
		BcryptCost: bcryptCost,

		DataBackend:    strings.ToLower(getEnv("DATA_BACKEND", BackendPostgres)),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         dbPort,
		DBUser:         getEnv("DB_USER", "expensehub"),
		DBPassword:     getEnv("DB_PASSWORD", "dev"),
		DBName:         getEnv("DB_NAME", "expensehub"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns: maxOpen,

		CacheBackend:      strings.ToLower(getEnv("CACHE_BACKEND", BackendMemory)),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		AnalyticsCacheTTL: cacheTTL,

		RateLimitRequests:     rateReqs,
		RateLimitWindow:       rateWindow,
		AuthRateLimitRequests: authReqs,

		DefaultMonthlyBudget:  budget,
		AllowOwnerStatusPatch: ownerPatch,
		Timezone:              getEnv("TIMEZONE", "Local"),
		MaxPageSize:           maxPage,

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expensehub.events"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var errs []error
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT out of range: %d", c.ServerPort))
	}
	if c.IsProduction() && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	switch c.DataBackend {
	case BackendPostgres, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("DATA_BACKEND must be postgres or memory, got %q", c.DataBackend))
	}
	switch c.CacheBackend {
	case BackendRedis, BackendMemory, BackendNone:
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be redis, memory or none, got %q", c.CacheBackend))
	}
	if c.CacheBackend == BackendRedis && c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required when CACHE_BACKEND=redis"))
	}
	if c.DefaultMonthlyBudget <= 0 {
		errs = append(errs, errors.New("DEFAULT_MONTHLY_BUDGET must be positive"))
	}
	if c.MaxPageSize <= 0 {
		errs = append(errs, errors.New("MAX_PAGE_SIZE must be positive"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// DatabaseDSN returns the lib/pq keyword connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64, errs *[]error) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return f
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return d
}

func getEnvBool(key string, defaultValue bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return b
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
