package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values.
type Config struct {
	// Where uploads are staged and processed artifacts live
	DataDir string

	// Process store backend: surrealdb, firestore or memory
	Store string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Google Cloud (firestore store, gcs storage, gemini)
	GCPProject  string
	Storage     string // local or gcs
	GCSBucket   string
	FirestoreDB string

	// Classifier
	LLMProvider     string // ollama, openai, anthropic, bedrock, gemini
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	GeminiAPIKey    string
	AWSRegion       string

	// Transcription (OpenAI compatible endpoint)
	TranscribeURL   string
	TranscribeModel string
	TranscribeKey   string

	// Link resolvers
	GitHubToken  string
	XBearerToken string
	URLCacheSize int
	URLCacheTTL  time.Duration
	HTTPTimeout  time.Duration
	UserAgent    string

	// Batch execution
	BatchConcurrency int
	MaxUploadFiles   int

	// Server
	ServerPort int
	ServerURL  string
	// Owner id the CLI and MCP tools act as
	User string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
// A .env file in the working directory is applied first when present;
// variables already set in the environment win.
func Load() Config {
	_ = godotenv.Load()

	home, _ := os.UserHomeDir()
	defaultData := filepath.Join(home, ".helix")

	return Config{
		DataDir: getEnv("HELIX_DATA_DIR", defaultData),
		Store:   strings.ToLower(getEnv("HELIX_STORE", "surrealdb")),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "helix"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "ingest"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		GCPProject:  getEnv("GOOGLE_CLOUD_PROJECT", ""),
		Storage:     strings.ToLower(getEnv("HELIX_STORAGE", "local")),
		GCSBucket:   getEnv("HELIX_GCS_BUCKET", ""),
		FirestoreDB: getEnv("HELIX_FIRESTORE_DATABASE", "(default)"),

		LLMProvider:     strings.ToLower(getEnv("HELIX_LLM_PROVIDER", "ollama")),
		LLMModel:        getEnv("HELIX_LLM_MODEL", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		TranscribeURL:   getEnv("HELIX_TRANSCRIBE_URL", "https://api.openai.com/v1"),
		TranscribeModel: getEnv("HELIX_TRANSCRIBE_MODEL", "whisper-1"),
		TranscribeKey:   getEnv("HELIX_TRANSCRIBE_KEY", os.Getenv("OPENAI_API_KEY")),

		GitHubToken:  getEnv("GITHUB_TOKEN", ""),
		XBearerToken: getEnv("X_BEARER_TOKEN", ""),
		URLCacheSize: getEnvInt("HELIX_URL_CACHE_SIZE", 256),
		URLCacheTTL:  getEnvDuration("HELIX_URL_CACHE_TTL", 15*time.Minute),
		HTTPTimeout:  getEnvDuration("HELIX_HTTP_TIMEOUT", 30*time.Second),
		UserAgent:    getEnv("HELIX_USER_AGENT", "Mozilla/5.0 (compatible; helix/1.0)"),

		BatchConcurrency: getEnvInt("HELIX_BATCH_CONCURRENCY", 4),
		MaxUploadFiles:   getEnvInt("HELIX_MAX_UPLOAD_FILES", 10),

		ServerPort: getEnvInt("HELIX_SERVER_PORT", 8484),
		ServerURL:  getEnv("HELIX_URL", "http://localhost:8484"),
		User:       getEnv("HELIX_USER", "local"),

		LogFile:  getEnv("HELIX_LOG_FILE", "/tmp/helix.log"),
		LogLevel: parseLogLevel(getEnv("HELIX_LOG_LEVEL", "INFO")),
	}
}

// LLMModelOrDefault returns the configured model, or a sensible default per provider.
func (c Config) LLMModelOrDefault() string {
	if c.LLMModel != "" {
		return c.LLMModel
	}
	switch c.LLMProvider {
	case "openai":
		return "gpt-4o-mini"
	case "anthropic":
		return "claude-3-5-haiku-latest"
	case "bedrock":
		return "anthropic.claude-3-haiku-20240307-v1:0"
	case "gemini":
		return "gemini-2.0-flash"
	default:
		return "llama3.2"
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultVal
	}
	return v
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultVal
	}
	return v
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
