// Package config handles GRIND configuration loading and management.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/grind-ai/grind/internal/errors"
)

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".grind")

	return &Config{
		User: UserConfig{
			DefaultTitle: "jefe",
			Timezone:     "Local",
		},
		Models: ModelConfig{
			Groq: ProviderConfig{
				BaseURL:        "https://api.groq.com/openai/v1",
				Model:          "llama3-70b-8192",
				MaxTokens:      1500,
				Temperature:    0.7,
				TimeoutSeconds: 30,
			},
			HuggingFace: ProviderConfig{
				BaseURL:        "https://api-inference.huggingface.co",
				Model:          "mistralai/Mixtral-8x7B-Instruct-v0.1",
				MaxTokens:      1500,
				Temperature:    0.7,
				TimeoutSeconds: 20,
			},
			Gemini: ProviderConfig{
				Model:          "gemini-1.5-flash-latest",
				MaxTokens:      1500,
				Temperature:    0.7,
				TimeoutSeconds: 30,
			},
			Ollama: OllamaConfig{
				Binary:         "ollama",
				Model:          "phi3:mini",
				TimeoutSeconds: 60,
			},
			Breaker: BreakerConfig{
				MaxFailures:         5,
				ResetTimeoutSeconds: 60,
			},
		},
		Search: SearchConfig{
			SerpAPI: ProviderConfig{
				BaseURL:        "https://serpapi.com",
				TimeoutSeconds: 10,
			},
			DuckDuckGo: ProviderConfig{
				BaseURL:        "https://api.duckduckgo.com",
				TimeoutSeconds: 10,
			},
			Country:  "es",
			Language: "es",
		},
		Memory: MemoryConfig{
			SearchResults:  2,
			EmbeddingModel: "text-embedding-004",
		},
		Mirror: MirrorConfig{
			Notion: NotionConfig{
				BaseURL:        "https://api.notion.com/v1",
				Version:        "2022-06-28",
				TimeoutSeconds: 10,
			},
			Redis: RedisConfig{
				Stream: "grind:conversations",
				MaxLen: 10000,
			},
		},
		Telegram: TelegramConfig{
			PollTimeoutSeconds: 60,
			QueueSize:          100,
			RetryDelaySeconds:  5,
			ErrorDelaySeconds:  10,
			ParseMode:          "Markdown",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8088",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Paths: PathsConfig{
			DataDir:  dataDir,
			Database: filepath.Join(dataDir, "grind.db"),
			LogFile:  filepath.Join(dataDir, "grind.log"),
		},
	}
}

// DefaultPath returns ~/.grind/config.toml.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".grind", "config.toml")
}

// Load loads the configuration from the given path, then applies
// environment overrides. If the file doesn't exist, defaults are used.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, errors.CodeConfigInvalid, "parse "+configPath, errors.CategoryUser)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrap(err, errors.CodeConfigInvalid, "read "+configPath, errors.CategorySystem)
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.expandPaths()

	return cfg, nil
}

// Save saves the configuration to the given path.
func (c *Config) Save(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	return toml.NewEncoder(file).Encode(c)
}

// Validate checks the settings the process cannot start without.
// Only the primary backend credential is required.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Models.Groq.APIKey) == "" {
		return errors.MissingCredential("GROQ_API_KEY")
	}
	if c.Telegram.QueueSize < 1 {
		return errors.NewBuilder(errors.CodeConfigInvalid, "telegram.queue_size must be positive").
			Permanent().
			Build()
	}
	return nil
}

// envOverrides maps environment variables onto config fields.
var envOverrides = []struct {
	name  string
	apply func(c *Config, v string)
}{
	{"GROQ_API_KEY", func(c *Config, v string) { c.Models.Groq.APIKey = v }},
	{"HF_TOKEN", func(c *Config, v string) { c.Models.HuggingFace.APIKey = v }},
	{"GEMINI_API_KEY", func(c *Config, v string) { c.Models.Gemini.APIKey = v }},
	{"SERPAPI_KEY", func(c *Config, v string) { c.Search.SerpAPI.APIKey = v }},
	{"NOTION_API_KEY", func(c *Config, v string) { c.Mirror.Notion.APIKey = v }},
	{"NOTION_DATABASE_ID", func(c *Config, v string) { c.Mirror.Notion.DatabaseID = v }},
	{"TELEGRAM_TOKEN", func(c *Config, v string) { c.Telegram.Token = v }},
	{"GRIND_REDIS_ADDR", func(c *Config, v string) { c.Mirror.Redis.Addr = v }},
	{"GRIND_LOG_LEVEL", func(c *Config, v string) { c.Logging.Level = v }},
	{"GRIND_DATA_DIR", func(c *Config, v string) {
		c.Paths.DataDir = v
		c.Paths.Database = filepath.Join(v, "grind.db")
		c.Paths.LogFile = filepath.Join(v, "grind.log")
	}},
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for _, o := range envOverrides {
		if v, ok := lookup(o.name); ok && v != "" {
			o.apply(c, v)
		}
	}
}

// expandPaths expands a leading ~ in paths.
func (c *Config) expandPaths() {
	homeDir, _ := os.UserHomeDir()
	for _, p := range []*string{&c.Paths.DataDir, &c.Paths.Database, &c.Paths.LogFile} {
		if strings.HasPrefix(*p, "~") {
			*p = filepath.Join(homeDir, (*p)[1:])
		}
	}
}
