package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	LLM        LLMConfig
	Storage    StorageConfig
	Guidelines GuidelinesConfig
	Processing ProcessingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	CertFile       string
	KeyFile        string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	ConnectAttempts int
	ConnectDelay    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	Provider     string // "openai", "anthropic" or "ollama"
	Model        string
	OpenAIKey    string
	AnthropicKey string
	OllamaURL    string
	Temperature  float64
	MaxRetries   int
	RetryDelay   time.Duration
	Structured   bool
}

type StorageConfig struct {
	Backend string // "s3", "azure" or "supabase"
	Bucket  string

	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string

	AzureConnectionString string

	SupabaseURL string
	SupabaseKey string
}

type GuidelinesConfig struct {
	PolicyID string
	File     string
	CacheTTL time.Duration
}

type ProcessingConfig struct {
	Mode        string // "queue" or "inline"
	ScratchDir  string
	TaskTimeout time.Duration
	Concurrency int
}

const (
	ModeQueue  = "queue"
	ModeInline = "inline"
)

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8443)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	connectAttempts, err := getEnvInt("DB_CONNECT_ATTEMPTS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONNECT_ATTEMPTS: %w", err)
	}

	connectDelay, err := getEnvDuration("DB_CONNECT_DELAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONNECT_DELAY: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	retryDelay, err := getEnvDuration("LLM_RETRY_DELAY", time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_RETRY_DELAY: %w", err)
	}

	temperature, err := getEnvFloat("LLM_TEMPERATURE", 0.8)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_TEMPERATURE: %w", err)
	}

	structured, err := getEnvBool("LLM_STRUCTURED_OUTPUT", true)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_STRUCTURED_OUTPUT: %w", err)
	}

	cacheTTL, err := getEnvDuration("GUIDELINES_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid GUIDELINES_CACHE_TTL: %w", err)
	}

	taskTimeout, err := getEnvDuration("PROCESS_TASK_TIMEOUT", 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid PROCESS_TASK_TIMEOUT: %w", err)
	}

	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	provider := getEnv("LLM_PROVIDER", "openai")

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			CertFile:       getEnv("TLS_CERT_FILE", ""),
			KeyFile:        getEnv("TLS_KEY_FILE", ""),
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        maxConns,
			MinConns:        minConns,
			ConnectAttempts: connectAttempts,
			ConnectDelay:    connectDelay,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			Provider:     provider,
			Model:        getEnv("LLM_MODEL", defaultModel(provider)),
			OpenAIKey:    getEnv("OPENAI_API_KEY", ""),
			AnthropicKey: getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:    getEnv("OLLAMA_URL", "http://localhost:11434"),
			Temperature:  temperature,
			MaxRetries:   maxRetries,
			RetryDelay:   retryDelay,
			Structured:   structured,
		},
		Storage: StorageConfig{
			Backend:               getEnv("STORAGE_BACKEND", "s3"),
			Bucket:                getEnv("STORAGE_BUCKET", "review-uploads"),
			S3Endpoint:            getEnv("S3_ENDPOINT", ""),
			S3Region:              getEnv("S3_REGION", "us-east-1"),
			S3AccessKey:           getEnv("S3_ACCESS_KEY", ""),
			S3SecretKey:           getEnv("S3_SECRET_KEY", ""),
			AzureConnectionString: getEnv("AZURE_STORAGE_CONNECTION_STRING", ""),
			SupabaseURL:           getEnv("SUPABASE_URL", ""),
			SupabaseKey:           getEnv("SUPABASE_SERVICE_KEY", ""),
		},
		Guidelines: GuidelinesConfig{
			PolicyID: getEnv("GUIDELINES_POLICY_ID", "amazon-community"),
			File:     getEnv("GUIDELINES_FILE", ""),
			CacheTTL: cacheTTL,
		},
		Processing: ProcessingConfig{
			Mode:        strings.ToLower(getEnv("PROCESS_MODE", ModeQueue)),
			ScratchDir:  getEnv("SCRATCH_DIR", os.TempDir()),
			TaskTimeout: taskTimeout,
			Concurrency: concurrency,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// TLSEnabled reports whether both a certificate and a key were configured.
func (c *Config) TLSEnabled() bool {
	return c.Server.CertFile != "" && c.Server.KeyFile != ""
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.OpenAIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	case "anthropic":
		if c.LLM.AnthropicKey == "" {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	case "ollama":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider)
	}
	switch c.Storage.Backend {
	case "s3":
		if c.Storage.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if c.Storage.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
	case "azure":
		if c.Storage.AzureConnectionString == "" {
			missing = append(missing, "AZURE_STORAGE_CONNECTION_STRING")
		}
	case "supabase":
		if c.Storage.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.Storage.SupabaseKey == "" {
			missing = append(missing, "SUPABASE_SERVICE_KEY")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Processing.Mode != ModeQueue && c.Processing.Mode != ModeInline {
		return fmt.Errorf("unknown PROCESS_MODE %q", c.Processing.Mode)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

// defaultModel is used when LLM_MODEL is unset.
func defaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-3-5-haiku-latest"
	case "ollama":
		return "llama3.1"
	default:
		return "gpt-4o-mini"
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
