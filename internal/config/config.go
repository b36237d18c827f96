package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreBadger   = "badger"
)

// DefaultAssistantPrompt is the persona sent as the Gemini system instruction.
const DefaultAssistantPrompt = `أنت مساعد ذكي ومفيد تتحدث باللغة العربية.
اسمك هو مساعد محمود الذكي، وأنت تساعد الزوار في موقع mahmoudotaku24 الشخصي.
محمود هو طالب ثانوية عامة محب للبرمجة والذكاء الاصطناعي.

قدم إجابات مفيدة ومفصلة باللغة العربية، وكن ودودًا ومتعاونًا.
إذا سُئلت عن البرمجة أو الذكاء الاصطناعي، قدم شرحًا واضحًا ومفيدًا.
إذا سُئلت عن محمود، اذكر أنه طالب متحمس للتقنية ويحب تعلم أشياء جديدة.`

type Config struct {
	// Server
	Port string
	Env  string

	// Storage
	StoreBackend  string
	DatabaseURL   string
	RedisURL      string
	BadgerPath    string
	MigrationsDir string // empty uses the migrations built into the binary

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiTimeout        time.Duration
	GeminiConcurrentReqs int
	AssistantPrompt      string

	// Chat
	HistoryContext        bool
	MaxContentLength      int
	MaxRetainedMessages   int
	ChatRequestsPerMinute int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "5000"),
		Env:                   getEnvOrDefault("ENV", "development"),
		StoreBackend:          strings.ToLower(getEnvOrDefault("STORE_BACKEND", StoreMemory)),
		DatabaseURL:           getEnvOrDefault("DATABASE_URL", ""),
		RedisURL:              getEnvOrDefault("REDIS_URL", ""),
		BadgerPath:            getEnvOrDefault("BADGER_PATH", "./data/chat"),
		MigrationsDir:         getEnvOrDefault("MIGRATIONS_DIR", ""),
		GeminiAPIKey:          firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"),
		GeminiModel:           getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiTimeout:         time.Duration(getEnvAsIntOrDefault("GEMINI_TIMEOUT_SECONDS", 30)) * time.Second,
		GeminiConcurrentReqs:  getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		AssistantPrompt:       getEnvOrDefault("ASSISTANT_PROMPT", DefaultAssistantPrompt),
		HistoryContext:        getEnvAsBoolOrDefault("CHAT_HISTORY_CONTEXT", false),
		MaxContentLength:      getEnvAsIntOrDefault("CHAT_MAX_CONTENT_LENGTH", 4000),
		MaxRetainedMessages:   getEnvAsIntOrDefault("CHAT_MAX_RETAINED", 0),
		ChatRequestsPerMinute: getEnvAsIntOrDefault("CHAT_RATE_LIMIT_PER_MINUTE", 20),
		FrontendURL:           getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// Validate checks the settings the server cannot start without. A missing
// Gemini key is not one of them: the chat endpoint reports it per request.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreBadger:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", c.StoreBackend)
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND=%s", c.StoreBackend)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.StoreBackend == StoreBadger && c.BadgerPath == "" {
		return fmt.Errorf("BADGER_PATH is required when STORE_BACKEND=%s", c.StoreBackend)
	}
	if c.GeminiConcurrentReqs < 1 {
		return fmt.Errorf("GEMINI_CONCURRENT_REQUESTS must be positive, got %d", c.GeminiConcurrentReqs)
	}
	if c.GeminiTimeout <= 0 {
		return fmt.Errorf("GEMINI_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// firstEnv returns the first non-empty value among keys.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
