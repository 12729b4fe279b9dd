package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/nusakov/remontbot/core/config"
	coredatabase "github.com/nusakov/remontbot/core/database"
)

// BotConfig holds the report-bot specific settings.
type BotConfig struct {
	// HousesPath points at the house-directory JSON produced by the
	// spreadsheet converter.
	HousesPath string `yaml:"houses_path" envconfig:"BOT_HOUSES_PATH"`
	WorksPath  string `yaml:"works_path" envconfig:"BOT_WORKS_PATH"`
	// ReportsRoot is the root of the report tree; must match any existing
	// archive for resume to find old tasks.
	ReportsRoot string `yaml:"reports_root" envconfig:"BOT_REPORTS_ROOT"`
	// FontPath is a TTF with Cyrillic coverage for PDF rendering.
	FontPath string `yaml:"font_path" envconfig:"BOT_FONT_PATH"`

	ItemsPerPage int `yaml:"items_per_page" envconfig:"BOT_ITEMS_PER_PAGE"`
	MessageLimit int `yaml:"message_limit" envconfig:"BOT_MESSAGE_LIMIT"`

	// CaptureContacts asks first-time users for a phone number and full name.
	CaptureContacts bool `yaml:"capture_contacts" envconfig:"BOT_CAPTURE_CONTACTS"`
}

// Config aggregates core and bot configuration loaded from one YAML file
// with environment overrides.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Bot      BotConfig           `yaml:"bot"`
}

// CoreConfig exposes the embedded core configuration for the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// LoadConfig reads the YAML file, applies env overrides, and validates.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("app: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("app: parse config %s: %w", path, err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("app: process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := normalizeBot(&cfg.Bot); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Database.Path) == "" {
		return nil, fmt.Errorf("app: database.path is required")
	}
	return &cfg, nil
}

func normalizeBot(cfg *BotConfig) error {
	if strings.TrimSpace(cfg.HousesPath) == "" {
		return fmt.Errorf("app: bot.houses_path is required")
	}
	if strings.TrimSpace(cfg.WorksPath) == "" {
		return fmt.Errorf("app: bot.works_path is required")
	}
	if strings.TrimSpace(cfg.ReportsRoot) == "" {
		cfg.ReportsRoot = "reports"
	}
	if strings.TrimSpace(cfg.FontPath) == "" {
		return fmt.Errorf("app: bot.font_path is required")
	}
	if cfg.ItemsPerPage <= 0 {
		cfg.ItemsPerPage = 30
	}
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = 4096
	}
	return nil
}
