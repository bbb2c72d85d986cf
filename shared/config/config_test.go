package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("YOUTUBE_API_KEY", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	assert.Equal(t, "Korean", cfg.AI.Language)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.NotEmpty(t, cfg.Storage.DataDir)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, 1.0, cfg.Watch.MinViralScore)
	assert.Equal(t, "0 0 9 * * *", cfg.Watch.Schedule)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
ai:
  model: gemini-2.5-pro
storage:
  backend: sqlite
  data_dir: /tmp/vf
watch:
  keywords: ["camping", "budget travel"]
  min_viral_score: 2.5
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("GEMINI_API_KEY", "ambient-key")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", cfg.AI.Model)
	assert.Equal(t, "ambient-key", cfg.AI.GeminiAPIKey)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/vf", cfg.Storage.DataDir)
	assert.Equal(t, []string{"camping", "budget travel"}, cfg.Watch.Keywords)
	assert.Equal(t, 2.5, cfg.Watch.MinViralScore)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFileKeyWinsOverEnv(t *testing.T) {
	path := writeConfig(t, "ai:\n  gemini_api_key: from-file\n")
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("GEMINI_API_KEY", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.AI.GeminiAPIKey)
}

func TestLoadErrors(t *testing.T) {
	t.Run("Explicit file missing", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("Invalid YAML", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", writeConfig(t, "ai: [unclosed"))
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("Unknown backend", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", writeConfig(t, "storage:\n  backend: redis\n"))
		_, err := Load()
		assert.ErrorContains(t, err, "storage backend")
	})
}

func TestValidateWatch(t *testing.T) {
	valid := Config{
		Watch: WatchConfig{Keywords: []string{"camping"}},
		Email: EmailConfig{
			SMTPServer: "smtp.test.com",
			Username:   "user",
			Password:   "pass",
			ToEmail:    "to@test.com",
		},
	}
	assert.NoError(t, valid.ValidateWatch())

	noKeywords := valid
	noKeywords.Watch.Keywords = nil
	assert.ErrorContains(t, noKeywords.ValidateWatch(), "watch keyword")

	noPassword := valid
	noPassword.Email.Password = ""
	assert.ErrorContains(t, noPassword.ValidateWatch(), "EMAIL_PASSWORD")
}
