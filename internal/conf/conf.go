package conf

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DevRickLin/channel-mirror/internal/biz"
	"github.com/DevRickLin/channel-mirror/internal/biz/usecase"
)

// Target platforms
const (
	PlatformTelegram = "telegram"
	PlatformFeishu   = "feishu"
)

// Source modes
const (
	SourceBot  = "bot"  // Bot API, channels the bot administers
	SourceUser = "user" // user session, any channel the account joined
)

const defaultSessionFile = "mirror_session.json"

// Config represents application configuration
type Config struct {
	// Telegram configuration (bot source, and default target)
	Telegram TelegramConfig

	// MTProto configuration (user-session source)
	MTProto MTProtoConfig

	// Feishu configuration (optional target)
	Feishu FeishuConfig

	// Moonshot configuration (optional classifier)
	Moonshot MoonshotConfig

	// Album aggregation configuration
	Album AlbumConfigValues

	// Log configuration
	Log LogConfig

	// SourceMode selects how source channels are read
	SourceMode string

	// TargetPlatform selects where mirrored posts go
	TargetPlatform string

	// Rules loaded from YAML
	Rules *RulesConfig

	// RulesPath is the file the rules were read from, empty for defaults
	RulesPath string
}

// TelegramConfig contains Telegram Bot API configuration
type TelegramConfig struct {
	BotToken    string
	APIEndpoint string // optional, for self-hosted Bot API servers
}

// MTProtoConfig contains user-session configuration
type MTProtoConfig struct {
	AppID       int
	AppHash     string
	Phone       string
	Password    string
	SessionFile string
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
}

// MoonshotConfig contains Moonshot configuration
type MoonshotConfig struct {
	APIKey string
	Model  string
}

// AlbumConfigValues contains album settle configuration
type AlbumConfigValues struct {
	SettleMS int
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string
	Format string // console or json
}

// LoadFromEnv loads configuration from environment variables and the rules
// file. configPath overrides MIRROR_CONFIG_PATH when non-empty.
func LoadFromEnv(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("MIRROR_CONFIG_PATH")
	}

	rules, loadedPath, err := LoadRulesConfig(configPath)
	if err != nil {
		return nil, err
	}

	// Album settle delay
	settleMS := 1000
	if val := os.Getenv("ALBUM_SETTLE_MS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			settleMS = parsed
		}
	}

	// Env level wins over the rules file
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = rules.LogLevel
	}
	if logLevel == "" {
		logLevel = "info"
	}

	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "console"
	}

	platform := strings.ToLower(os.Getenv("TARGET_PLATFORM"))
	if platform == "" {
		platform = PlatformTelegram
	}

	// API credentials imply a user session unless the mode is set
	appID, _ := strconv.Atoi(os.Getenv("API_ID"))
	sourceMode := strings.ToLower(os.Getenv("SOURCE_MODE"))
	if sourceMode == "" {
		sourceMode = SourceBot
		if os.Getenv("API_ID") != "" {
			sourceMode = SourceUser
		}
	}

	sessionFile := os.Getenv("TELEGRAM_SESSION_FILE")
	if sessionFile == "" {
		sessionFile = defaultSessionFile
	}

	return &Config{
		Telegram: TelegramConfig{
			BotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
			APIEndpoint: os.Getenv("TELEGRAM_API_ENDPOINT"),
		},
		MTProto: MTProtoConfig{
			AppID:       appID,
			AppHash:     os.Getenv("API_HASH"),
			Phone:       os.Getenv("PHONE_NUMBER"),
			Password:    os.Getenv("TELEGRAM_PASSWORD"),
			SessionFile: sessionFile,
		},
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
		},
		Moonshot: MoonshotConfig{
			APIKey: os.Getenv("MOONSHOT_API_KEY"),
			Model:  os.Getenv("MOONSHOT_MODEL"),
		},
		Album: AlbumConfigValues{
			SettleMS: settleMS,
		},
		Log: LogConfig{
			Level:  logLevel,
			Format: logFormat,
		},
		SourceMode:     sourceMode,
		TargetPlatform: platform,
		Rules:          rules,
		RulesPath:      loadedPath,
	}, nil
}

// ToFilterConfig converts to filter configuration
func (c *Config) ToFilterConfig() usecase.FilterConfig {
	mf := c.Rules.MessageFilters
	nf := c.Rules.NegativeFilters
	return usecase.FilterConfig{
		IgnoreForwarded:    mf.IgnoreForwarded == nil || *mf.IgnoreForwarded,
		RequireKeywords:    mf.RequireKeywords,
		NegativeKeywords:   nf.Keywords,
		NegativePatterns:   nf.Patterns,
		MinLength:          mf.MinLength,
		MaxLength:          mf.MaxLength,
		SkipFileExtensions: mf.SkipFileExtensions,
	}
}

// ToReplacements converts to transform rules
func (c *Config) ToReplacements() []usecase.ReplacementConfig {
	rules := make([]usecase.ReplacementConfig, 0, len(c.Rules.Replacements))
	for _, r := range c.Rules.Replacements {
		rules = append(rules, usecase.ReplacementConfig{Pattern: r.Pattern, Replace: r.Replace})
	}
	return rules
}

// ToTemplateVars returns the {{name}} substitutions
func (c *Config) ToTemplateVars() usecase.TemplateVars {
	return usecase.TemplateVars{
		"my_channel_name":     c.Rules.MyChannelName,
		"my_username":         c.Rules.MyUsername,
		"my_contact_username": c.Rules.MyContactUsername,
	}
}

// ToAlbumConfig converts to album aggregation configuration
func (c *Config) ToAlbumConfig() usecase.AlbumConfig {
	return usecase.AlbumConfig{
		SettleDelay: time.Duration(c.Album.SettleMS) * time.Millisecond,
	}
}

// ToRuleSet bundles everything the usecases are built from
func (c *Config) ToRuleSet() biz.RuleSet {
	return biz.RuleSet{
		Filter:       c.ToFilterConfig(),
		Replacements: c.ToReplacements(),
		Vars:         c.ToTemplateVars(),
		Album:        c.ToAlbumConfig(),
	}
}

// ClassifierEnabled reports whether the advertisement classifier should run
func (c *Config) ClassifierEnabled() bool {
	return c.Moonshot.APIKey != "" && c.Rules.AIFilter.Enabled
}

// ValidateRules validates the rule set alone; dry-run commands need nothing more
func (c *Config) ValidateRules() error {
	if c.Rules == nil {
		return &ConfigError{Field: "config", Message: "not loaded"}
	}
	if strings.TrimSpace(c.Rules.TargetChannel) == "" {
		return &ConfigError{Field: "target_channel", Message: "required"}
	}
	if len(c.Rules.SourceChannels) == 0 {
		return &ConfigError{Field: "source_channels", Message: "at least one source channel is required"}
	}
	mf := c.Rules.MessageFilters
	if mf.MinLength < 0 || mf.MaxLength < 0 {
		return &ConfigError{Field: "message_filters", Message: "min_length and max_length must not be negative"}
	}
	if mf.MaxLength > 0 && mf.MinLength > mf.MaxLength {
		return &ConfigError{Field: "message_filters", Message: "min_length exceeds max_length"}
	}
	for i, r := range c.Rules.Replacements {
		if r.Pattern == "" {
			return &ConfigError{Field: "replacements[" + strconv.Itoa(i) + "]", Message: "pattern is required"}
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.ValidateRules(); err != nil {
		return err
	}
	switch c.SourceMode {
	case SourceBot:
	case SourceUser:
		if c.MTProto.AppID <= 0 || c.MTProto.AppHash == "" {
			return &ConfigError{Field: "API_ID/API_HASH", Message: "required for user source"}
		}
	default:
		return &ConfigError{Field: "SOURCE_MODE", Message: "must be bot or user"}
	}
	if c.NeedsBot() && c.Telegram.BotToken == "" {
		return &ConfigError{Field: "TELEGRAM_BOT_TOKEN", Message: "required"}
	}
	switch c.TargetPlatform {
	case PlatformTelegram:
	case PlatformFeishu:
		if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
			return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required for feishu target"}
		}
	default:
		return &ConfigError{Field: "TARGET_PLATFORM", Message: "must be telegram or feishu"}
	}
	return nil
}

// NeedsBot reports whether a Bot API client is required: it reads bot
// sources and posts to Telegram targets
func (c *Config) NeedsBot() bool {
	return c.SourceMode != SourceUser || c.TargetPlatform == PlatformTelegram
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
