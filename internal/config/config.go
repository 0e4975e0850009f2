package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Portal struct {
		URL               string `yaml:"url"`
		CustomerNumbers   string `yaml:"customer_numbers"`
		TimeoutSeconds    int    `yaml:"timeout_seconds"`
		MaxAttempts       int    `yaml:"max_attempts"`
		RetryDelaySeconds int    `yaml:"retry_delay_seconds"`
	} `yaml:"portal"`
	Monitor struct {
		LowBalanceThreshold float64 `yaml:"low_balance_threshold"`
		ThrottleEnabled     bool    `yaml:"throttle_enabled"`
		LowIntervalHours    int     `yaml:"low_interval_hours"`
		NormalIntervalHours int     `yaml:"normal_interval_hours"`
		StateFile           string  `yaml:"state_file"`
		Cron                string  `yaml:"cron"`
	} `yaml:"monitor"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("PORTAL_URL"); v != "" {
		cfg.Portal.URL = v
	}
	if v := os.Getenv("CUST_NO"); v != "" {
		cfg.Portal.CustomerNumbers = v
	}
	if v := os.Getenv("LOW_BALANCE_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Monitor.LowBalanceThreshold = threshold
		}
	}
	if v := os.Getenv("CRON_SCHEDULE"); v != "" {
		cfg.Monitor.Cron = v
	}
	if v := os.Getenv("STATE_FILE"); v != "" {
		cfg.Monitor.StateFile = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if cfg.Portal.URL == "" {
		cfg.Portal.URL = "https://customer.nesco.gov.bd/pre/panel"
	}
	if cfg.Portal.TimeoutSeconds == 0 {
		cfg.Portal.TimeoutSeconds = 20
	}
	if cfg.Portal.MaxAttempts == 0 {
		cfg.Portal.MaxAttempts = 3
	}
	if cfg.Portal.RetryDelaySeconds == 0 {
		cfg.Portal.RetryDelaySeconds = 5
	}
	if cfg.Monitor.LowBalanceThreshold == 0 {
		cfg.Monitor.LowBalanceThreshold = 50.0
	}
	if cfg.Monitor.LowIntervalHours == 0 {
		cfg.Monitor.LowIntervalHours = 12
	}
	if cfg.Monitor.NormalIntervalHours == 0 {
		cfg.Monitor.NormalIntervalHours = 24
	}
	if cfg.Monitor.StateFile == "" {
		cfg.Monitor.StateFile = "data/meter_state.json"
	}
	if cfg.Monitor.Cron == "" {
		cfg.Monitor.Cron = "0 0 */8 * * *"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/meterwatch.db"
	}

	return cfg, nil
}

// CustomerList splits the comma-separated customer numbers, trimming each
// entry and skipping empties.
func (c *Config) CustomerList() []string {
	var out []string
	for _, cust := range strings.Split(c.Portal.CustomerNumbers, ",") {
		cust = strings.TrimSpace(cust)
		if cust != "" {
			out = append(out, cust)
		}
	}
	return out
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	if len(c.CustomerList()) == 0 {
		return fmt.Errorf("portal.customer_numbers must list at least one customer")
	}
	return nil
}
