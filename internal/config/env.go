package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	HTTPPort string
	GRPCPort string

	StoreBackend   string
	StoreTimeout   time.Duration
	RedisURL       string
	RedisPassword  string
	RedisDB        int
	RedisNamespace string

	MongoURL string
	MongoDB  string
	PsqlURL  string

	JWTSecret string
	TokenTTL  time.Duration
	AdminKey  string

	AllowedOrigins []string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded, using process environment", "error", err)
	}
	config := Config{
		HTTPPort:       getEnv("CTFHTTPPORT", "8080"),
		GRPCPort:       getEnv("CTFGRPCPORT", "50057"),
		StoreBackend:   strings.ToLower(getEnv("STOREBACKEND", BackendMemory)),
		StoreTimeout:   getEnvDuration("STORETIMEOUT", 3*time.Second),
		RedisURL:       getEnv("REDISURL", "localhost:6379"),
		RedisPassword:  getEnv("REDISPASSWORD", ""),
		RedisDB:        getEnvInt("REDISDB", 0),
		RedisNamespace: getEnv("REDISNAMESPACE", "ctf"),
		MongoURL:       getEnv("MONGOURL", ""),
		MongoDB:        getEnv("MONGODB", "ctfarena"),
		PsqlURL:        getEnv("PSQLURL", ""),
		JWTSecret:      getEnv("JWTSECRET", "secrettt"),
		TokenTTL:       getEnvDuration("TOKENTTL", 12*time.Hour),
		AdminKey:       getEnv("ADMINKEY", ""),
		AllowedOrigins: getEnvList("ALLOWEDORIGINS"),
	}

	return config
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
