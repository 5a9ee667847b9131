package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend mode names accepted in configuration and on the mode endpoint.
const (
	ModeMock      = "mock"
	ModeRAG       = "rag"
	ModeTinyLlama = "tinyllama"
	ModeLlama318B = "llama3_1_8b"
)

// Configuration errors the server refuses to start with.
var (
	ErrMissingSecret = errors.New("secret_key is required")
	ErrInvalidMode   = errors.New("invalid backend mode")
	ErrInvalidPort   = errors.New("invalid server port")
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ChatConfig bounds the history window handed to backends.
type ChatConfig struct {
	MaxHistoryTurns  int `mapstructure:"max_history_turns"`
	MaxHistoryTokens int `mapstructure:"max_history_tokens"`
}

// RAGConfig points at the retrieval service.
type RAGConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// CompletionConfig holds the settings for one llama.cpp style backend.
type CompletionConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	ContextSize int     `mapstructure:"n_ctx"`
	Temperature float64 `mapstructure:"temperature"`
	Stop        string  `mapstructure:"stop"`
}

// Config holds application configuration
type Config struct {
	Mode      string        `mapstructure:"mode"`
	SecretKey string        `mapstructure:"secret_key"`
	Debug     bool          `mapstructure:"debug"`
	LogDir    string        `mapstructure:"log_dir"`
	Timeout   time.Duration `mapstructure:"timeout"`

	Server    ServerConfig     `mapstructure:"server"`
	Chat      ChatConfig       `mapstructure:"chat"`
	RAG       RAGConfig        `mapstructure:"rag"`
	TinyLlama CompletionConfig `mapstructure:"tinyllama"`
	Llama318B CompletionConfig `mapstructure:"llama3_1_8b"`
}

// Load reads an optional config.yaml from the working directory, applies
// environment overrides (PRETTYCHAT_ prefix, dots become underscores) and
// defaults, and validates the result. The signing secret can also come from
// the plain SECRET_KEY variable, which .env files conventionally use.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("PRETTYCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.SecretKey == "" {
		cfg.SecretKey = os.Getenv("SECRET_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModeMock)
	// Registered so the PRETTYCHAT_SECRET_KEY override is visible to
	// Unmarshal; viper only resolves env vars for known keys.
	v.SetDefault("secret_key", "")
	v.SetDefault("debug", false)
	v.SetDefault("log_dir", "logs")
	v.SetDefault("timeout", "60s")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5010)
	v.SetDefault("server.read_timeout", "15s")
	// Handlers block on backend calls up to timeout; the write window has
	// to outlast it or replies get cut off.
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("chat.max_history_turns", 20)
	v.SetDefault("chat.max_history_tokens", 0)

	v.SetDefault("rag.endpoint", "http://ai-rag-01:9000/ask_streamed")

	v.SetDefault("tinyllama.endpoint", "http://ai-llm-01:8081/v1/completions")
	v.SetDefault("tinyllama.model", "tinylama-rust-q4_k_m.gguf")
	v.SetDefault("tinyllama.max_tokens", 250)
	v.SetDefault("tinyllama.n_ctx", 2048)
	v.SetDefault("tinyllama.temperature", 0.1)
	v.SetDefault("tinyllama.stop", "\n")

	v.SetDefault("llama3_1_8b.endpoint", "http://ai-llm-01:8082/v1/completions")
	v.SetDefault("llama3_1_8b.model", "llama-3.1-8b-instruct.Q4_K_M.gguf")
	v.SetDefault("llama3_1_8b.max_tokens", 450)
	v.SetDefault("llama3_1_8b.n_ctx", 2048)
	v.SetDefault("llama3_1_8b.temperature", 0.1)
	v.SetDefault("llama3_1_8b.stop", "\n")
}

// Validate fails fast on configuration the server cannot start with.
func (c Config) Validate() error {
	if c.SecretKey == "" {
		return ErrMissingSecret
	}
	switch c.Mode {
	case ModeMock, ModeRAG, ModeTinyLlama, ModeLlama318B:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}
	return nil
}
