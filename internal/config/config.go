package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	GRPCPort string
	GinMode  string
	LogLevel string
	Env      string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisURL         string
	RateLimitBackend string

	JWTSecret      string
	InternalAPIKey string
	AllowedOrigins []string

	PolicyFile        string
	CommissionInline  bool
	ReconcileLookback time.Duration
}

// LoadEnv reads .env from the working directory, falling back to the parent.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found in current directory, trying parent")
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("No .env file found, using system environment variables")
		}
	}
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		GRPCPort: getEnv("GRPC_PORT", "50051"),
		GinMode:  getEnv("GIN_MODE", "debug"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Env:      getEnv("APP_ENV", "development"),

		DBDriver:   getEnv("DB_DRIVER", "mysql"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "invest_wallet"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL:         getEnv("REDIS_URL", "localhost:6379"),
		RateLimitBackend: getEnv("RATE_LIMIT_BACKEND", "memory"),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		InternalAPIKey: getEnv("INTERNAL_API_KEY", ""),
		AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),

		PolicyFile:        getEnv("POLICY_FILE", ""),
		CommissionInline:  getEnvAsBool("COMMISSION_INLINE", false),
		ReconcileLookback: getEnvAsDuration("COMMISSION_RECONCILE_LOOKBACK", 48*time.Hour),
	}
}

func (c *Config) Production() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	strVal := getEnv(key, "")
	if val, err := strconv.ParseBool(strVal); err == nil {
		return val
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strVal := getEnv(key, "")
	if val, err := time.ParseDuration(strVal); err == nil {
		return val
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	val := getEnv(key, "")
	if val == "" {
		return defaultValue
	}
	parts := strings.Split(val, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}
