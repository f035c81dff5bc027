package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI         string
	MongoDBName      string
	PostgresURL      string
	OllamaBaseURL    string
	OllamaModel      string
	OllamaEmbedModel string
	HuggingFaceKey   string
	HuggingFaceModel string
	LLMBackend       string // "ollama" or "huggingface"
	HTTPPort         string
	LogLevel         string
	JWTSecret        string
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		MongoURI:         getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDBName:      getEnv("MONGODB_DB_NAME", "autofix_ai"),
		PostgresURL:      getEnv("POSTGRES_URL", "postgres://localhost:5432/autofix_ai"),
		OllamaBaseURL:    getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:      getEnv("OLLAMA_MODEL", "llama3"),
		OllamaEmbedModel: getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		HuggingFaceKey:   getEnv("HUGGINGFACE_API_KEY", ""),
		HuggingFaceModel: getEnv("HUGGINGFACE_MODEL", "meta-llama/Llama-2-7b-chat-hf"),
		LLMBackend:       getEnv("LLM_BACKEND", "ollama"),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	if AppConfig.LLMBackend == "huggingface" && AppConfig.HuggingFaceKey == "" {
		log.Fatal("HUGGINGFACE_API_KEY is required when LLM_BACKEND=huggingface")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
