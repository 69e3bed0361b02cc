// Package config provides configuration management for the DeFi health scanner.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Session  SessionConfig
	Payment  PaymentConfig
	Upstream UpstreamConfig
	Scoring  ScoringConfig
	Logging  LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Host           string
	AllowedOrigin  string
	RequestsPerSec int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
	Mongo      MongoConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
	MigrationsPath string
}

// URL returns the connection URL used by pgx and golang-migrate
func (c PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// MongoConfig holds the research corpus database configuration
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// SessionConfig holds wallet session configuration
type SessionConfig struct {
	TTL        time.Duration
	CookieName string
	Secure     bool
}

// PaymentConfig describes the token payment that unlocks reports
type PaymentConfig struct {
	RPCURL         string
	TokenAddress   string
	Treasury       string
	TokenDecimals  int
	ReportCost     float64
	AccessDuration time.Duration
}

// UpstreamConfig holds third-party API configuration
type UpstreamConfig struct {
	ExplorerURL       string
	ExplorerAPIKey    string
	AgentURL          string
	AgentName         string
	AgentConnection   string
	ReportModel       string
	CMCURL            string
	CMCAPIKey         string
	CMCCredits        int
	CMCReserved       int
	DefiLlamaURL      string
	RequestsPerSecond int
	Timeout           time.Duration
	MaxElapsedTime    time.Duration
}

// ScoringConfig holds scoring and portfolio policy constants
type ScoringConfig struct {
	Chain            string
	MinBalance       float64
	SpamTokens       []string
	CatalogPath      string
	PoolRefreshEvery time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			AllowedOrigin:  getEnv("ALLOWED_ORIGIN", ""),
			RequestsPerSec: getEnvAsInt("API_REQUESTS_PER_SECOND", 20),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "defi_health"),
				User:           getEnv("POSTGRES_USER", "scanner"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
				MigrationsPath: getEnv("POSTGRES_MIGRATIONS_PATH", "migrations/postgres"),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "defi_health"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
			Mongo: MongoConfig{
				URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
				Database: getEnv("MONGO_DB", "agentDatabase"),
				Timeout:  getEnvAsDuration("MONGO_TIMEOUT", 10*time.Second),
			},
		},
		Session: SessionConfig{
			TTL:        getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			CookieName: getEnv("SESSION_COOKIE", "session_id"),
			Secure:     getEnvAsBool("SESSION_COOKIE_SECURE", false),
		},
		Payment: PaymentConfig{
			RPCURL:         getEnv("PAYMENT_RPC_URL", "https://mainnet.base.org"),
			TokenAddress:   getEnv("PAYMENT_TOKEN_ADDRESS", ""),
			Treasury:       getEnv("PAYMENT_TREASURY", ""),
			TokenDecimals:  getEnvAsInt("PAYMENT_TOKEN_DECIMALS", 18),
			ReportCost:     getEnvAsFloat("PAYMENT_REPORT_COST", 1),
			AccessDuration: getEnvAsDuration("PAYMENT_ACCESS_DURATION", 30*24*time.Hour),
		},
		Upstream: UpstreamConfig{
			ExplorerURL:       getEnv("EXPLORER_API_URL", "https://api.sonicscan.org/api"),
			ExplorerAPIKey:    getEnv("EXPLORER_API_KEY", ""),
			AgentURL:          getEnv("AGENT_API_URL", "https://zerepy.auditone.io"),
			AgentName:         getEnv("AGENT_NAME", "auditone-sonic"),
			AgentConnection:   getEnv("AGENT_CONNECTION", "sonic"),
			ReportModel:       getEnv("REPORT_MODEL", "gpt-4o"),
			CMCURL:            getEnv("CMC_API_URL", "https://pro-api.coinmarketcap.com"),
			CMCAPIKey:         getEnv("CMC_API_KEY", ""),
			CMCCredits:        getEnvAsInt("CMC_CREDITS_PER_MINUTE", 30),
			CMCReserved:       getEnvAsInt("CMC_RESERVED_CREDITS", 20),
			DefiLlamaURL:      getEnv("DEFILLAMA_API_URL", "https://yields.llama.fi"),
			RequestsPerSecond: getEnvAsInt("UPSTREAM_REQUESTS_PER_SECOND", 5),
			Timeout:           getEnvAsDuration("UPSTREAM_TIMEOUT", 30*time.Second),
			MaxElapsedTime:    getEnvAsDuration("UPSTREAM_MAX_ELAPSED", 30*time.Second),
		},
		Scoring: ScoringConfig{
			Chain:            getEnv("SCORING_CHAIN", "sonic"),
			MinBalance:       getEnvAsFloat("MIN_BALANCE_THRESHOLD", 0.01),
			SpamTokens:       getEnvAsList("SPAM_TOKENS", nil),
			CatalogPath:      getEnv("PROJECT_CATALOG_PATH", ""),
			PoolRefreshEvery: getEnvAsDuration("POOL_REFRESH_INTERVAL", time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
