package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-media-bridge/internal/biz/usecase"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// Access control seed; persisted changes override it on restart
	Access AccessConfig

	// Media pipeline configuration
	Media MediaConfig

	// Storage configuration
	Storage StorageConfig

	// Admin HTTP API configuration
	API APIConfig

	// Log configuration
	Log LogConfig

	// Reply texts (loaded from YAML)
	Messages *MessagesConfig

	MessagesPath string `env:"MESSAGES_CONFIG_PATH"`
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string  `env:"FEISHU_APP_ID"`
	AppSecret string  `env:"FEISHU_APP_SECRET"`
	SendQPS   float64 `env:"SEND_QPS" envDefault:"5"`
	SendBurst int     `env:"SEND_BURST" envDefault:"5"`
}

// AccessConfig contains the access-control seed
type AccessConfig struct {
	AdminID    string   `env:"ADMIN_ID"`
	PublicMode bool     `env:"PUBLIC_MODE" envDefault:"false"`
	AllowList  []string `env:"ALLOW_LIST" envSeparator:","`
}

// MediaConfig contains pipeline configuration
type MediaConfig struct {
	WorkDir          string        `env:"WORK_DIR"`
	YtDlpPath        string        `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	FFmpegPath       string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	AudioFormat      string        `env:"AUDIO_FORMAT" envDefault:"mp3"`
	AudioBitrate     string        `env:"AUDIO_BITRATE" envDefault:"192k"`
	MaxUploadMB      int           `env:"MAX_UPLOAD_MB" envDefault:"30"`
	SearchTimeout    time.Duration `env:"SEARCH_TIMEOUT" envDefault:"30s"`
	FetchTimeout     time.Duration `env:"FETCH_TIMEOUT" envDefault:"5m"`
	TranscodeTimeout time.Duration `env:"TRANSCODE_TIMEOUT" envDefault:"3m"`
	SendTimeout      time.Duration `env:"SEND_TIMEOUT" envDefault:"2m"`
	SelectionTTL     time.Duration `env:"SELECTION_TTL" envDefault:"10m"`
	JanitorInterval  time.Duration `env:"JANITOR_INTERVAL" envDefault:"10m"`
	ScratchMaxAge    time.Duration `env:"SCRATCH_MAX_AGE" envDefault:"1h"`
}

// StorageConfig contains database configuration
type StorageConfig struct {
	DBPath string `env:"DB_PATH"`
}

// APIConfig contains admin API configuration
type APIConfig struct {
	Port  int    `env:"API_PORT" envDefault:"9876"`
	Token string `env:"API_TOKEN"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Env   string `env:"LOG_ENV" envDefault:"production"`
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Storage.DBPath == "" {
		homeDir, _ := os.UserHomeDir()
		cfg.Storage.DBPath = filepath.Join(homeDir, ".feishu-media", "bot.db")
	}
	if cfg.Media.WorkDir == "" {
		cfg.Media.WorkDir = filepath.Join(os.TempDir(), "feishu-media")
	}

	messages, err := LoadMessagesConfig(cfg.MessagesPath)
	if err != nil {
		return nil, err
	}
	cfg.Messages = messages

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	if domain.NormalizeIdentity(c.Access.AdminID).IsZero() {
		return &ConfigError{Field: "ADMIN_ID", Message: "required"}
	}
	if f := domain.Format(strings.ToLower(c.Media.AudioFormat)); !f.IsAudio() {
		return &ConfigError{Field: "AUDIO_FORMAT", Message: "unsupported format " + c.Media.AudioFormat}
	}
	if c.Media.MaxUploadMB < 0 {
		return &ConfigError{Field: "MAX_UPLOAD_MB", Message: "must not be negative"}
	}
	if c.Feishu.SendQPS <= 0 {
		return &ConfigError{Field: "SEND_QPS", Message: "must be positive"}
	}
	for name, d := range map[string]time.Duration{
		"SEARCH_TIMEOUT":    c.Media.SearchTimeout,
		"FETCH_TIMEOUT":     c.Media.FetchTimeout,
		"TRANSCODE_TIMEOUT": c.Media.TranscodeTimeout,
		"SEND_TIMEOUT":      c.Media.SendTimeout,
		"SELECTION_TTL":     c.Media.SelectionTTL,
		"JANITOR_INTERVAL":  c.Media.JanitorInterval,
	} {
		if d <= 0 {
			return &ConfigError{Field: name, Message: "must be positive"}
		}
	}
	// A live job's scratch dir must never look orphaned to the janitor.
	if longest := c.Media.FetchTimeout + c.Media.TranscodeTimeout + c.Media.SendTimeout; c.Media.ScratchMaxAge <= longest {
		return &ConfigError{Field: "SCRATCH_MAX_AGE", Message: fmt.Sprintf("must exceed FETCH+TRANSCODE+SEND timeouts (%s)", longest)}
	}
	return nil
}

// ToBotConfig converts the access seed to a domain configuration
func (c *AccessConfig) ToBotConfig() *domain.BotConfig {
	allowed := make([]domain.Identity, 0, len(c.AllowList))
	for _, raw := range c.AllowList {
		allowed = append(allowed, domain.Identity(raw))
	}
	return domain.NewBotConfig(domain.Identity(c.AdminID), c.PublicMode, allowed...)
}

// ToPipelineConfig converts to pipeline configuration
func (c *MediaConfig) ToPipelineConfig() usecase.PipelineConfig {
	return usecase.PipelineConfig{
		WorkDir:          c.WorkDir,
		SearchTimeout:    c.SearchTimeout,
		FetchTimeout:     c.FetchTimeout,
		TranscodeTimeout: c.TranscodeTimeout,
		SendTimeout:      c.SendTimeout,
		AudioFormat:      domain.Format(strings.ToLower(c.AudioFormat)),
		AudioBitrate:     c.AudioBitrate,
		MaxUploadBytes:   int64(c.MaxUploadMB) << 20,
	}
}

// ToReplyTexts converts the loaded messages to reply texts
func (c *Config) ToReplyTexts() *usecase.ReplyTexts {
	if c.Messages == nil {
		return usecase.DefaultReplyTexts()
	}
	return c.Messages.ToReplyTexts()
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
