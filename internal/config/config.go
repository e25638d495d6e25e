package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DiscordConfig struct {
	Token          string `yaml:"token" validate:"required"`
	GuildID        string `yaml:"guild_id" validate:"required"`
	VerifiedRoleID string `yaml:"verified_role_id" validate:"required"`
}

type DatabaseConfig struct {
	DSN string `yaml:"url" validate:"required"`
}

// GameConfig selects the link encoding: URL gives the plain query variant,
// PlaceID the launch-data variant. Exactly one must be set.
type GameConfig struct {
	URL     string `yaml:"url"`
	PlaceID string `yaml:"place_id"`
}

type WebhookConfig struct {
	// TicketSecret enables signed verification tickets when non-empty.
	TicketSecret string `yaml:"ticket_secret"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Discord  DiscordConfig  `yaml:"discord"`
	Database DatabaseConfig `yaml:"database"`
	Game     GameConfig     `yaml:"game"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

const defaultPort = 3000

// Load читает config/config.yaml, раскрывает ${ENV} и валидирует обязательные поля.
func Load() (*Config, error) {
	return LoadFile("config/config.yaml")
}

func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if (cfg.Game.URL == "") == (cfg.Game.PlaceID == "") {
		return nil, fmt.Errorf("validate config: exactly one of game.url or game.place_id must be set")
	}
	return &cfg, nil
}
