package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Chat     ChatConfig
	Keys     APIKeys
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	MongoURI     string
	MongoDBName  string
	MaxPoolSize  int
	ConnectRetry int
}

type ChatConfig struct {
	// WriteTimeout bounds every store write (send, typing, summary merge).
	WriteTimeout time.Duration
	// TypingTTL is how long a typing signal stays visible without a refresh.
	TypingTTL time.Duration
}

type APIKeys struct {
	JWTSecret string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:8081"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:8081"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDBName:  getEnv("MONGO_DB_NAME", "campus_market"),
			MaxPoolSize:  getEnvAsInt("MONGO_MAX_POOL_SIZE", 20),
			ConnectRetry: getEnvAsInt("MONGO_CONNECT_RETRY", 3),
		},
		Chat: ChatConfig{
			WriteTimeout: getEnvAsDuration("CHAT_WRITE_TIMEOUT", 5*time.Second),
			TypingTTL:    getEnvAsDuration("CHAT_TYPING_TTL", 10*time.Second),
		},
		Keys: APIKeys{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
