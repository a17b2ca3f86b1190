package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/FrenchMajesty/shoewall/pkg/catalog"
	"github.com/FrenchMajesty/shoewall/pkg/schema"
)

type Config struct {
	HTTPPort    string
	Environment string
	LogLevel    string
	LogFormat   string
	MaxUploadMB int

	// VisionMock and RankingMock are independent. Vision also runs mocked
	// when no OpenAI key is configured.
	VisionMock    bool
	RankingMock   bool
	MaxCandidates int

	OpenAIAPIKey       string
	OpenAIBaseURL      string
	VisionModel        string
	OpenAIMaxRetries   int
	OpenAITimeout      time.Duration
	OpenAIDumpRequests bool

	DatabaseURL string

	VoyageAPIKey         string
	PineconeAPIKey       string
	PineconeHost         string
	PineconeNamespace    string
	CatalogMinSimilarity float64
}

// Load reads .env when present, then the process environment
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using system environment variables")
	}

	return &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "production"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 10),

		VisionMock:    getEnvBool("VISION_MOCK", false),
		RankingMock:   getEnvBool("RANKING_MOCK", true),
		MaxCandidates: schema.ClampMaxCandidates(getEnvInt("VISION_MAX_CANDIDATES", schema.DefaultMaxCandidates)),

		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
		VisionModel:        getEnv("VISION_MODEL", "gpt-4o-mini"),
		OpenAIMaxRetries:   getEnvInt("OPENAI_MAX_RETRIES", 2),
		OpenAITimeout:      time.Duration(getEnvInt("OPENAI_TIMEOUT_SEC", 60)) * time.Second,
		OpenAIDumpRequests: getEnvBool("OPENAI_DUMP_REQUESTS", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		VoyageAPIKey:         getEnv("VOYAGEAI_API_KEY", ""),
		PineconeAPIKey:       getEnv("PINECONE_API_KEY", ""),
		PineconeHost:         getEnv("PINECONE_HOST", ""),
		PineconeNamespace:    getEnv("PINECONE_NAMESPACE", "shoes"),
		CatalogMinSimilarity: getEnvFloat("CATALOG_MIN_SIMILARITY", catalog.DefaultMinSimilarity),
	}
}

func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

// VisionMocked reports whether detection runs on the fixed demo result
func (c *Config) VisionMocked() bool {
	return c.VisionMock || c.OpenAIAPIKey == ""
}

// VectorMatchingEnabled reports whether embeddings and a vector index are configured
func (c *Config) VectorMatchingEnabled() bool {
	return c.VoyageAPIKey != "" && c.PineconeAPIKey != "" && c.PineconeHost != ""
}

// MaxUploadBytes is the multipart limit for image uploads
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// DatabaseURLForLog returns DatabaseURL with the password masked
func (c *Config) DatabaseURLForLog() string {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil || u.User == nil {
		return c.DatabaseURL
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.HTTPPort); err != nil {
		return fmt.Errorf("HTTP_PORT must be numeric, got %q", c.HTTPPort)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.CatalogMinSimilarity < 0 || c.CatalogMinSimilarity > 1 {
		return fmt.Errorf("CATALOG_MIN_SIMILARITY must be within [0,1], got %v", c.CatalogMinSimilarity)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
