package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RulesConfig contains the mirror rules loaded from YAML
type RulesConfig struct {
	TargetChannel  string   `yaml:"target_channel"`
	SourceChannels []string `yaml:"source_channels"`

	// Template variables
	MyChannelName     string `yaml:"my_channel_name"`
	MyUsername        string `yaml:"my_username"`
	MyContactUsername string `yaml:"my_contact_username"`

	Replacements    []ReplacementRule `yaml:"replacements"`
	NegativeFilters *NegativeFilters  `yaml:"negative_filters"`
	MessageFilters  *MessageFilters   `yaml:"message_filters"`
	AIFilter        AIFilterConfig    `yaml:"ai_filter"`

	LogLevel string `yaml:"log_level"`
}

// ReplacementRule is one text replacement, applied in file order
type ReplacementRule struct {
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`
}

// NegativeFilters drop messages that match
type NegativeFilters struct {
	Keywords []string `yaml:"keywords"`
	Patterns []string `yaml:"patterns"`
}

// MessageFilters contains structural message filters
type MessageFilters struct {
	IgnoreForwarded    *bool    `yaml:"ignore_forwarded"`
	MinLength          int      `yaml:"min_length"`
	MaxLength          int      `yaml:"max_length"`
	SkipFileExtensions []string `yaml:"skip_file_extensions"`
	RequireKeywords    []string `yaml:"require_keywords"`
}

// AIFilterConfig toggles the advertisement classifier
type AIFilterConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoadRulesConfig loads the rules from YAML. With an empty path the usual
// locations are searched; if none exists the default rules are returned with
// an empty loaded path.
func LoadRulesConfig(configPath string) (*RulesConfig, string, error) {
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, "", &ConfigError{Field: "config", Message: fmt.Sprintf("failed to read %s: %v", configPath, err)}
		}
		config, err := ParseRulesConfig(data)
		if err != nil {
			return nil, "", err
		}
		return config, configPath, nil
	}

	// Try multiple paths
	paths := []string{
		"config.yaml",
		"configs/config.yaml",
		"/etc/channel-mirror/config.yaml",
	}
	// Add path relative to executable
	if execPath, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(execPath), "config.yaml"))
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		config, err := ParseRulesConfig(data)
		if err != nil {
			return nil, "", err
		}
		return config, p, nil
	}

	return DefaultRulesConfig(), "", nil
}

// ParseRulesConfig parses YAML rules and fills defaults for absent sections
func ParseRulesConfig(data []byte) (*RulesConfig, error) {
	var config RulesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, &ConfigError{Field: "config", Message: fmt.Sprintf("failed to parse yaml: %v", err)}
	}

	// Fill in defaults for absent sections
	config.fillDefaults()

	return &config, nil
}

// fillDefaults fills in default sections. An explicitly empty list is kept.
func (c *RulesConfig) fillDefaults() {
	defaults := DefaultRulesConfig()

	if c.Replacements == nil {
		c.Replacements = defaults.Replacements
	}
	if c.NegativeFilters == nil {
		c.NegativeFilters = defaults.NegativeFilters
	}
	if c.MessageFilters == nil {
		c.MessageFilters = defaults.MessageFilters
	}
	if c.MessageFilters.IgnoreForwarded == nil {
		ignore := true
		c.MessageFilters.IgnoreForwarded = &ignore
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
}

// DefaultRulesConfig returns the built-in rule set
func DefaultRulesConfig() *RulesConfig {
	ignoreForwarded := true
	return &RulesConfig{
		Replacements: []ReplacementRule{
			{Pattern: `📣订阅.*?频道.*?↓`, Replace: "📣订阅{{my_channel_name}}频道 🌐↓"},
			{Pattern: `🔗\s*@\w+`, Replace: "🔗 {{my_username}}"},
			{Pattern: `[^\n]*投稿[^\n：:]*[：:]\s*@\w+`, Replace: "投稿澄清爆料：{{my_contact_username}}"},
			{Pattern: `客服.*?@\w+`, Replace: "客服：{{my_contact_username}}"},
			{Pattern: `✈️+\s*@\w+`, Replace: "✈️ {{my_contact_username}}"},
			{Pattern: `@DC18777`, Replace: "{{my_contact_username}}"},
		},
		NegativeFilters: &NegativeFilters{
			Keywords: []string{"广告", "推广", "招代理", "招商", "免费领", "日入过万"},
			Patterns: []string{`赚钱.*?日入`, `免费.*?红包`, `点击.*?链接.*?领取`},
		},
		MessageFilters: &MessageFilters{
			IgnoreForwarded:    &ignoreForwarded,
			SkipFileExtensions: []string{".rar", ".zip"},
		},
		LogLevel: "info",
	}
}
