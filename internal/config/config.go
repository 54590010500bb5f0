package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration for the relay, loaded from
// config.toml in the working directory.
type Config struct {
	Server   ServerConfig      `mapstructure:"server"`
	Database DatabaseConfig    `mapstructure:"database"`
	Trello   TrelloConfig      `mapstructure:"trello"`
	Assets   AssetsConfig      `mapstructure:"assets"`
	Discord  DiscordConfig     `mapstructure:"discord"`
	Mentions map[string]string `mapstructure:"mentions"`
	Policy   PolicyConfig      `mapstructure:"policy"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type TrelloConfig struct {
	APIKey      string `mapstructure:"api_key"`
	APIToken    string `mapstructure:"api_token"`
	Secret      string `mapstructure:"secret"`
	CallbackURL string `mapstructure:"callback_url"`
}

type AssetsConfig struct {
	Dir           string `mapstructure:"dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// DiscordConfig maps each relayed board to its channel webhook URL.
type DiscordConfig struct {
	Boards map[string]string `mapstructure:"boards"`
}

// PolicyConfig holds the per-board routing policy. The designated board
// is the one whose events are narrowed to the Sent-label and archival
// flows instead of the general notification set.
type PolicyConfig struct {
	DesignatedBoard string `mapstructure:"designated_board"`
	SentLabelName   string `mapstructure:"sent_label_name"`
	SentLabelColor  string `mapstructure:"sent_label_color"`
	GalleryURL      string `mapstructure:"gallery_url"`
}

func (p PolicyConfig) IsDesignated(boardID string) bool {
	return p.DesignatedBoard != "" && boardID == p.DesignatedBoard
}

// IsSentLabel reports whether a label matches the policy's Sent marker.
func (p PolicyConfig) IsSentLabel(name, color string) bool {
	return strings.EqualFold(name, p.SentLabelName) &&
		strings.EqualFold(color, p.SentLabelColor)
}

// Load reads config.toml and unmarshals it into typed structs.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("database.path", "relay.db")
	viper.SetDefault("assets.dir", "img")
	viper.SetDefault("policy.sent_label_name", "Sent")
	viper.SetDefault("policy.sent_label_color", "green")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.Trello.Secret == "" {
		return nil, fmt.Errorf("trello.secret is not configured")
	}
	if cfg.Trello.CallbackURL == "" {
		return nil, fmt.Errorf("trello.callback_url is not configured")
	}
	if len(cfg.Discord.Boards) == 0 {
		return nil, fmt.Errorf("discord.boards is not configured")
	}

	return &cfg, nil
}
