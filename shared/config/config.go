package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	YouTube    YouTubeConfig    `yaml:"youtube"`
	AI         AIConfig         `yaml:"ai"`
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
	Watch      WatchConfig      `yaml:"watch"`
	Email      EmailConfig      `yaml:"email"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type YouTubeConfig struct {
	// APIKey is only used by watch mode and as a seed when the credential store is empty.
	APIKey string `yaml:"api_key" env:"YOUTUBE_API_KEY"`
	// Endpoint overrides the Data API base URL (tests, proxies).
	Endpoint string `yaml:"endpoint"`
}

type AIConfig struct {
	// GeminiAPIKey is the ambient default used when the session has no key of its own.
	GeminiAPIKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	Model        string `yaml:"model"`
	Language     string `yaml:"language"`
	BaseURL      string `yaml:"base_url"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // "file" or "sqlite"
	DataDir string `yaml:"data_dir"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type WatchConfig struct {
	Keywords      []string `yaml:"keywords"`
	Duration      string   `yaml:"duration"`
	MinViralScore float64  `yaml:"min_viral_score"`
	RememberDays  int      `yaml:"remember_days"`
	Schedule      string   `yaml:"schedule"`
}

type EmailConfig struct {
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username" env:"EMAIL_USERNAME"`
	Password   string `yaml:"password" env:"EMAIL_PASSWORD"`
	FromEmail  string `yaml:"from_email"`
	ToEmail    string `yaml:"to_email"`
}

type MonitoringConfig struct {
	HealthPort int `yaml:"health_port"`
}

type LoggingConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// Load reads CONFIG_FILE (default config.yaml). A missing default file is not an error:
// the tool runs on defaults and environment variables alone.
func Load() (*Config, error) {
	_ = godotenv.Load()

	configFile := os.Getenv("CONFIG_FILE")
	explicit := configFile != ""
	if configFile == "" {
		configFile = "config.yaml"
	}

	var cfg Config
	data, err := os.ReadFile(configFile)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if c.YouTube.APIKey == "" {
		c.YouTube.APIKey = os.Getenv("YOUTUBE_API_KEY")
	}
	if c.AI.GeminiAPIKey == "" {
		c.AI.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Email.Username == "" {
		c.Email.Username = os.Getenv("EMAIL_USERNAME")
	}
	if c.Email.Password == "" {
		c.Email.Password = os.Getenv("EMAIL_PASSWORD")
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

func (c *Config) applyDefaults() {
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.5-flash"
	}
	if c.AI.Language == "" {
		c.AI.Language = "Korean"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = defaultDataDir()
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.Watch.Duration == "" {
		c.Watch.Duration = "any"
	}
	if c.Watch.MinViralScore == 0 {
		c.Watch.MinViralScore = 1.0
	}
	if c.Watch.RememberDays == 0 {
		c.Watch.RememberDays = 7
	}
	if c.Watch.Schedule == "" {
		c.Watch.Schedule = "0 0 9 * * *" // Daily at 9 AM
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Monitoring.HealthPort == 0 {
		c.Monitoring.HealthPort = 8081
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "viral-finder")
	}
	return "data"
}

func (c *Config) validate() error {
	if c.Storage.Backend != "file" && c.Storage.Backend != "sqlite" {
		return fmt.Errorf("storage backend must be file or sqlite, got %q", c.Storage.Backend)
	}
	if c.Watch.MinViralScore < 0 {
		return fmt.Errorf("watch min_viral_score must not be negative")
	}
	return nil
}

// ValidateWatch checks the settings only watch mode needs.
func (c *Config) ValidateWatch() error {
	if len(c.Watch.Keywords) == 0 {
		return fmt.Errorf("at least one watch keyword is required (watch.keywords)")
	}
	if c.Email.SMTPServer == "" {
		return fmt.Errorf("SMTP server is required (email.smtp_server)")
	}
	if c.Email.Username == "" {
		return fmt.Errorf("Email username is required (set EMAIL_USERNAME or email.username)")
	}
	if c.Email.Password == "" {
		return fmt.Errorf("Email password is required (set EMAIL_PASSWORD or email.password)")
	}
	if c.Email.ToEmail == "" {
		return fmt.Errorf("recipient address is required (email.to_email)")
	}
	return nil
}
