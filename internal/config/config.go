package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the application.
type Config struct {
	RecipesFile  string   `yaml:"recipes_file" json:"recipes_file" jsonschema:"default=recipes.json,description=Recipe collection file"`
	HistoryFile  string   `yaml:"history_file" json:"history_file" jsonschema:"default=previous_day_meals.json,description=Previous day's meals"`
	OutboxDir    string   `yaml:"outbox_dir" json:"outbox_dir" jsonschema:"default=emails,description=Directory for saved plans when emails are off"`
	DatabasePath string   `yaml:"database_path" json:"database_path" jsonschema:"default=data/meal-mailer.db,description=SQLite archive"`
	Slots        []string `yaml:"slots" json:"slots" jsonschema:"description=Ordered meal slots"`
	Recipients   []string `yaml:"recipients" json:"recipients" jsonschema:"description=Family members receiving the plan when email.recipients is empty"`

	Email    EmailConfig    `yaml:"email" json:"email"`
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`
	Ghost    GhostConfig    `yaml:"ghost" json:"ghost"`
}

// EmailConfig configures SMTP delivery.
type EmailConfig struct {
	Enabled    bool     `yaml:"send_emails" json:"send_emails" jsonschema:"default=false,description=Send emails instead of saving files"`
	Host       string   `yaml:"smtp_host" json:"smtp_host" jsonschema:"default=smtp.gmail.com"`
	Port       int      `yaml:"smtp_port" json:"smtp_port" jsonschema:"default=465"`
	Sender     string   `yaml:"sender" json:"sender"`
	Password   string   `yaml:"password" json:"password"`
	Recipients []string `yaml:"recipients" json:"recipients"`
}

// TelegramConfig configures the optional Telegram channel.
type TelegramConfig struct {
	BotToken string  `yaml:"bot_token" json:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids" json:"chat_ids"`
}

// Enabled reports whether plans should be posted to Telegram.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && len(t.ChatIDs) > 0
}

// GhostConfig holds the Ghost blog credentials used for import and drafts.
type GhostConfig struct {
	URL        string `yaml:"url" json:"url"`
	ContentKey string `yaml:"content_key" json:"content_key"`
	AdminKey   string `yaml:"admin_key" json:"admin_key"`
}

// DraftsEnabled reports whether plans should be published as Ghost drafts.
func (g GhostConfig) DraftsEnabled() bool {
	return g.URL != "" && g.AdminKey != ""
}

// DefaultSlots are used when the configuration names none.
var DefaultSlots = []string{"breakfast", "lunch", "dinner"}

// Load reads the optional config file at path, then applies .env and
// environment overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
			if len(cfg.Email.Recipients) == 0 {
				cfg.Email.Recipients = cfg.Recipients
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("GMAIL_SENDER_EMAIL"); v != "" {
		cfg.Email.Sender = v
	}
	if v := os.Getenv("GMAIL_APP_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}
	// the file wins over the environment for recipients
	if v := os.Getenv("FAMILY_RECIPIENTS_EMAILS"); v != "" && len(cfg.Email.Recipients) == 0 {
		cfg.Email.Recipients = splitList(v)
	}
	if v := os.Getenv("SEND_EMAILS"); v != "" {
		cfg.Email.Enabled = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("failed to parse SMTP_PORT %q: %w", v, err)
		}
		cfg.Email.Port = port
	}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_IDS"); v != "" {
		ids := []int64{}
		for _, s := range splitList(v) {
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("failed to parse TELEGRAM_CHAT_IDS entry %q: %w", s, err)
			}
			ids = append(ids, id)
		}
		cfg.Telegram.ChatIDs = ids
	}

	if v := os.Getenv("GHOST_API_URL"); v != "" {
		cfg.Ghost.URL = v
	}
	if v := os.Getenv("GHOST_CONTENT_API_KEY"); v != "" {
		cfg.Ghost.ContentKey = v
	}
	if v := os.Getenv("GHOST_ADMIN_API_KEY"); v != "" {
		cfg.Ghost.AdminKey = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.RecipesFile == "" {
		cfg.RecipesFile = "recipes.json"
	}
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = "previous_day_meals.json"
	}
	if cfg.OutboxDir == "" {
		cfg.OutboxDir = "emails"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "data/meal-mailer.db"
	}
	if len(cfg.Slots) == 0 {
		cfg.Slots = slices.Clone(DefaultSlots)
	}
	if cfg.Email.Host == "" {
		cfg.Email.Host = "smtp.gmail.com"
	}
	if cfg.Email.Port == 0 {
		cfg.Email.Port = 465
	}
}

func validate(cfg *Config) error {
	seen := make(map[string]struct{}, len(cfg.Slots))
	for _, s := range cfg.Slots {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("slots must not contain empty names")
		}
		if _, ok := seen[s]; ok {
			return fmt.Errorf("slot %q is listed more than once", s)
		}
		seen[s] = struct{}{}
	}
	if cfg.Email.Port < 1 || cfg.Email.Port > 65535 {
		return fmt.Errorf("smtp port %d is out of range", cfg.Email.Port)
	}
	return nil
}

// Secrets lists the configured credentials that must never be logged.
func (c *Config) Secrets() []string {
	var secrets []string
	for _, s := range []string{c.Email.Password, c.Telegram.BotToken, c.Ghost.ContentKey, c.Ghost.AdminKey} {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	return secrets
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
