package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	Storage StorageConfig
	Keys    APIKeys
	Ai      AIConfig
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
	UploadsDir         string
}

type StorageConfig struct {
	Backend        string // "redis" or "file"
	FileDir        string
	QuotaBytes     int // hard limit of the kv backend (file backend only)
	SoftLimitBytes int // above this, save switches to the reduced form
	Key            string
}

type APIKeys struct {
	GoogleGemini string
	OpenAI       string
	TitleTopic   string
}

type AIConfig struct {
	Provider       string // "gemini" or "openai"
	Model          string
	OpenAIBaseURL  string
	Locale         string // default response locale: "en" or "ar"
	AttachPolicy   string // "every-turn" or "first-turn"
	MaxUploadBytes int
	StreamIdleSecs int // 0 disables the stream watchdog
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			UploadsDir:         getEnv("UPLOADS_DIR", "./uploads"),
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", "redis"),
			FileDir:        getEnv("STORAGE_FILE_DIR", "./data"),
			QuotaBytes:     getEnvAsInt("STORAGE_QUOTA_BYTES", 5*1024*1024),
			SoftLimitBytes: getEnvAsInt("STORAGE_SOFT_LIMIT_BYTES", 4*1024*1024),
			Key:            getEnv("STORAGE_KEY", "sanctuary:conversations"),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			OpenAI:       getEnv("OPENAI_API_KEY", ""),
			TitleTopic:   getEnv("TITLE_SUMMARIZE_TOPIC_NAME", "SUMMARIZE_CONVERSATION_TITLE"),
		},
		Ai: AIConfig{
			Provider:       getEnv("LLM_PROVIDER", "gemini"),
			Model:          getEnv("LLM_MODEL", "gemini-2.5-flash"),
			OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
			Locale:         getEnv("DEFAULT_LOCALE", "en"),
			AttachPolicy:   getEnv("DOCUMENT_ATTACH_POLICY", "every-turn"),
			MaxUploadBytes: getEnvAsInt("MAX_UPLOAD_BYTES", 50*1024*1024),
			StreamIdleSecs: getEnvAsInt("STREAM_IDLE_TIMEOUT_SECS", 120),
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
