package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/italolelis/youcast/internal/media"
	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	OutputDir         string   `envconfig:"OUTPUT_DIR" default:"downloads"`
	YtDlpPath         string   `envconfig:"YTDLP_PATH" default:"yt-dlp"`
	YtDlpExtraArgs    []string `envconfig:"YTDLP_EXTRA_ARGS"`
	LogLevel          string   `envconfig:"LOG_LEVEL" default:"INFO"`
	LogFormat         string   `envconfig:"LOG_FORMAT" default:"json"`
	HistoryDBPath     string   `envconfig:"HISTORY_DB_PATH"`
	DiscordWebhookURL string   `envconfig:"DISCORD_WEBHOOK_URL"`

	// Defaults applied to requests that leave a field empty.
	Defaults struct {
		MediaType    string `split_words:"true" default:"audio"`
		AudioFormat  string `split_words:"true" default:"mp3"`
		AudioQuality string `split_words:"true" default:"192"`
		VideoQuality string `split_words:"true" default:"1080"`
		PlaylistMode string `split_words:"true" default:"single"`
	}

	Telemetry struct {
		Enabled      bool   `default:"false"`
		ServiceName  string `split_words:"true" default:"youcast"`
		OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`
	}

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:8080"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"0s"`
		IdleTimeout     time.Duration `split_words:"true" default:"60s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
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

// UsesDurableHistory reports whether history is persisted to SQLite instead of memory.
func (c *Config) UsesDurableHistory() bool {
	return strings.TrimSpace(c.HistoryDBPath) != ""
}

// RequestDefaults returns the values applied to requests that leave a field empty.
func (c *Config) RequestDefaults() media.Defaults {
	return media.Defaults{
		MediaType:    media.MediaType(strings.ToLower(c.Defaults.MediaType)),
		AudioFormat:  c.Defaults.AudioFormat,
		AudioQuality: c.Defaults.AudioQuality,
		VideoQuality: c.Defaults.VideoQuality,
		PlaylistMode: media.PlaylistMode(strings.ToLower(c.Defaults.PlaylistMode)),
		OutputFolder: c.OutputDir,
	}
}
