// Package config provides configuration types for GRIND.
package config

import "time"

// Config represents the main GRIND configuration.
type Config struct {
	User     UserConfig     `toml:"user"`
	Models   ModelConfig    `toml:"models"`
	Search   SearchConfig   `toml:"search"`
	Memory   MemoryConfig   `toml:"memory"`
	Mirror   MirrorConfig   `toml:"mirror"`
	Telegram TelegramConfig `toml:"telegram"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
	Paths    PathsConfig    `toml:"paths"`
}

// UserConfig contains user preferences.
type UserConfig struct {
	DefaultTitle string `toml:"default_title"` // used until the user asks to be called something
	Timezone     string `toml:"timezone"`
}

// ModelConfig contains the hosted and local generation backends.
type ModelConfig struct {
	Groq        ProviderConfig `toml:"groq"`
	HuggingFace ProviderConfig `toml:"huggingface"`
	Gemini      ProviderConfig `toml:"gemini"`
	Ollama      OllamaConfig   `toml:"ollama"`
	Breaker     BreakerConfig  `toml:"breaker"`
}

// ProviderConfig configures one HTTP backend.
type ProviderConfig struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Timeout returns the request timeout.
func (p ProviderConfig) Timeout() time.Duration {
	return seconds(p.TimeoutSeconds)
}

// OllamaConfig configures the local model process.
type OllamaConfig struct {
	Binary         string `toml:"binary"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the process timeout.
func (o OllamaConfig) Timeout() time.Duration {
	return seconds(o.TimeoutSeconds)
}

// BreakerConfig configures the per-backend circuit breakers.
type BreakerConfig struct {
	MaxFailures         int `toml:"max_failures"`
	ResetTimeoutSeconds int `toml:"reset_timeout_seconds"`
}

// SearchConfig contains the web search backends.
type SearchConfig struct {
	SerpAPI    ProviderConfig `toml:"serpapi"`
	DuckDuckGo ProviderConfig `toml:"duckduckgo"`
	Country    string         `toml:"country"`
	Language   string         `toml:"language"`
}

// MemoryConfig configures conversation memory.
type MemoryConfig struct {
	SearchResults  int    `toml:"search_results"`
	EmbeddingModel string `toml:"embedding_model"` // empty disables embeddings
}

// MirrorConfig configures the remote conversation logs.
type MirrorConfig struct {
	Notion NotionConfig `toml:"notion"`
	Redis  RedisConfig  `toml:"redis"`
}

// NotionConfig configures the Notion page mirror.
type NotionConfig struct {
	APIKey         string `toml:"api_key"`
	DatabaseID     string `toml:"database_id"`
	BaseURL        string `toml:"base_url"`
	Version        string `toml:"version"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Enabled reports whether both credentials are present.
func (n NotionConfig) Enabled() bool {
	return n.APIKey != "" && n.DatabaseID != ""
}

// Timeout returns the request timeout.
func (n NotionConfig) Timeout() time.Duration {
	return seconds(n.TimeoutSeconds)
}

// RedisConfig configures the Redis stream mirror.
type RedisConfig struct {
	Addr     string `toml:"addr"` // empty disables the mirror
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Stream   string `toml:"stream"`
	MaxLen   int64  `toml:"max_len"`
}

// TelegramConfig configures the background message transport.
type TelegramConfig struct {
	Token              string `toml:"token"` // empty disables the worker
	PollTimeoutSeconds int    `toml:"poll_timeout_seconds"`
	QueueSize          int    `toml:"queue_size"`
	RetryDelaySeconds  int    `toml:"retry_delay_seconds"`
	ErrorDelaySeconds  int    `toml:"error_delay_seconds"`
	ParseMode          string `toml:"parse_mode"`
}

// RetryDelay is the pause after a timed out or rejected poll.
func (t TelegramConfig) RetryDelay() time.Duration {
	return seconds(t.RetryDelaySeconds)
}

// ErrorDelay is the pause after any other poll failure.
func (t TelegramConfig) ErrorDelay() time.Duration {
	return seconds(t.ErrorDelaySeconds)
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string   `toml:"level"`  // debug, info, warn, error
	Format      string   `toml:"format"` // json, console
	OutputPaths []string `toml:"output_paths"`
}

// PathsConfig contains file path settings.
type PathsConfig struct {
	DataDir  string `toml:"data_dir"`
	Database string `toml:"database"`
	LogFile  string `toml:"log_file"`
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
