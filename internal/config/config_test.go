package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grind-ai/grind/internal/errors"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, "jefe", cfg.User.DefaultTitle)
	assert.Equal(t, "llama3-70b-8192", cfg.Models.Groq.Model)
	assert.Equal(t, 30*time.Second, cfg.Models.Groq.Timeout())
	assert.Equal(t, 20*time.Second, cfg.Models.HuggingFace.Timeout())
	assert.Equal(t, 60*time.Second, cfg.Models.Ollama.Timeout())
	assert.Equal(t, 2, cfg.Memory.SearchResults)
	assert.Equal(t, "Markdown", cfg.Telegram.ParseMode)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[user]
default_title = "señor"

[models.groq]
api_key = "from-file"
model = "llama-3.1-8b-instant"

[telegram]
queue_size = 7
`), 0o600))

	t.Setenv("GROQ_API_KEY", "from-env")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	dataDir := t.TempDir()
	t.Setenv("GRIND_DATA_DIR", dataDir)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "señor", cfg.User.DefaultTitle)
	assert.Equal(t, "from-env", cfg.Models.Groq.APIKey)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Models.Groq.Model)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.Models.Groq.BaseURL, "unset keys keep defaults")
	assert.Equal(t, 7, cfg.Telegram.QueueSize)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, filepath.Join(dataDir, "grind.db"), cfg.Paths.Database)
	require.NoError(t, cfg.Validate())
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[user\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
}

func TestValidateRequiresGroqKey(t *testing.T) {
	cfg := Default()

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigMissingCredential))

	cfg.Models.Groq.APIKey = "k"
	assert.NoError(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Mirror.Redis.Addr = "localhost:6379"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", loaded.Mirror.Redis.Addr)
	assert.Equal(t, cfg.Search, loaded.Search)
}
