package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is read when present and CONFIG_FILE is unset.
	DefaultConfigFile = "config.yaml"

	defaultMinFreeSpace = 100 * 1024 * 1024
	defaultMaxRetries   = 5
)

// Config is built from defaults, then the optional YAML file, then
// environment variables. Later sources win.
type Config struct {
	Telegram struct {
		APIID       int    `envconfig:"API_ID" yaml:"api_id" validate:"required,gt=0"`
		APIHash     string `envconfig:"API_HASH" yaml:"api_hash" validate:"required"`
		Phone       string `envconfig:"PHONE" yaml:"phone_number" validate:"required"`
		Password    string `envconfig:"PASSWORD" yaml:"password"`
		SessionPath string `envconfig:"SESSION_PATH" yaml:"session_path" validate:"required"`
	} `yaml:",inline"`

	Feeds        []string      `envconfig:"FEEDS" yaml:"group_usernames" validate:"required,min=1,dive,required"`
	DownloadDir  string        `envconfig:"DOWNLOAD_DIR" yaml:"download_path" validate:"required"`
	MinFreeSpace ByteSize      `envconfig:"MIN_FREE_SPACE" yaml:"min_free_space"`
	MaxRetries   int           `envconfig:"MAX_RETRIES" yaml:"max_retries" validate:"gte=1,lte=100"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" yaml:"poll_interval" validate:"gte=0"`
	LogLevel     string        `envconfig:"LOG_LEVEL" yaml:"log_level" validate:"oneof=DEBUG INFO WARN ERROR"`
	Progress     bool          `envconfig:"PROGRESS" yaml:"progress"`

	HistoryDBPath string `envconfig:"HISTORY_DB_PATH" yaml:"history_db_path"`

	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL" yaml:"discord_webhook_url" validate:"omitempty,url"`

	Notify struct {
		BotToken string `split_words:"true" yaml:"bot_token" validate:"required_with=ChatID"`
		ChatID   int64  `split_words:"true" yaml:"chat_id" validate:"required_with=BotToken"`
	} `yaml:"notify"`

	Telemetry struct {
		Enabled      bool   `split_words:"true" yaml:"enabled"`
		OTLPEndpoint string `envconfig:"OTLP_ENDPOINT" yaml:"otlp_endpoint"`
	} `yaml:"telemetry"`

	Web struct {
		BindAddress     string        `split_words:"true" yaml:"bind_address"`
		ReadTimeout     time.Duration `split_words:"true" yaml:"read_timeout" validate:"gt=0"`
		WriteTimeout    time.Duration `split_words:"true" yaml:"write_timeout" validate:"gt=0"`
		IdleTimeout     time.Duration `split_words:"true" yaml:"idle_timeout" validate:"gt=0"`
		ShutdownTimeout time.Duration `split_words:"true" yaml:"shutdown_timeout" validate:"gt=0"`
	} `yaml:"web"`
}

// Default returns the configuration used before any source is applied.
func Default() *Config {
	cfg := &Config{
		DownloadDir:   "downloads",
		MinFreeSpace:  defaultMinFreeSpace,
		MaxRetries:    defaultMaxRetries,
		LogLevel:      "INFO",
		HistoryDBPath: "history.db",
	}

	cfg.Telegram.SessionPath = "session.json"
	cfg.Telemetry.Enabled = true
	cfg.Web.BindAddress = "0.0.0.0:9091"
	cfg.Web.ReadTimeout = 30 * time.Second
	cfg.Web.WriteTimeout = 30 * time.Second
	cfg.Web.IdleTimeout = 5 * time.Second
	cfg.Web.ShutdownTimeout = 30 * time.Second

	return cfg
}

// LoadConfig reads the YAML file named by CONFIG_FILE (or config.yaml when it
// exists), applies environment variables on top and validates the result.
func LoadConfig() (*Config, error) {
	path, explicit := os.LookupEnv("CONFIG_FILE")
	if !explicit {
		path = DefaultConfigFile
	}

	return Load(path, explicit)
}

// Load is LoadConfig with an explicit file path. A missing file is an error
// only when required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if required || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
	cfg.Feeds = normalizeFeeds(cfg.Feeds)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// normalizeFeeds trims whitespace and a leading "@" and drops empty names.
func normalizeFeeds(feeds []string) []string {
	out := make([]string, 0, len(feeds))

	for _, f := range feeds {
		f = strings.TrimPrefix(strings.TrimSpace(f), "@")
		if f != "" {
			out = append(out, f)
		}
	}

	return out
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
