package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Penalty   PenaltyConfig   `yaml:"penalty"`
	Drawer    DrawerConfig    `yaml:"drawer"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Email     EmailConfig     `yaml:"email"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig selects and configures the loan store backend
type StoreConfig struct {
	Type            string `yaml:"type"` // "firestore" or "memory"
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// PenaltyConfig contains late-payment penalty settings
type PenaltyConfig struct {
	MonthlyRate float64 `yaml:"monthly_rate"` // prorated daily over 30 days
}

// DrawerConfig contains cash drawer reconciliation settings
type DrawerConfig struct {
	Timezone     string  `yaml:"timezone"` // local business day for bucketing
	RoundingStep float64 `yaml:"rounding_step"`
}

// GatewayConfig contains card/wallet payment gateway settings
type GatewayConfig struct {
	APIKey        string `yaml:"api_key"`
	SecretKey     string `yaml:"secret_key"`
	BaseURL       string `yaml:"base_url"`
	ReturnURLBase string `yaml:"return_url_base"`
	NotifyURL     string `yaml:"notify_url"`
}

// EmailConfig contains email delivery settings
type EmailConfig struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	From           string `yaml:"from"`
	FromName       string `yaml:"from_name"`
	Enabled        bool   `yaml:"enabled"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	SendOverdueReminders string `yaml:"send_overdue_reminders"`
	LogDrawerSummary     string `yaml:"log_drawer_summary"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables if present
	cfg.overrideWithEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Store
	if val := os.Getenv("STORE_TYPE"); val != "" {
		c.Store.Type = val
	}
	if val := os.Getenv("FIRESTORE_PROJECT_ID"); val != "" {
		c.Store.ProjectID = val
	}
	if val := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); val != "" {
		c.Store.CredentialsFile = val
	}

	// Gateway
	if val := os.Getenv("GATEWAY_API_KEY"); val != "" {
		c.Gateway.APIKey = val
	}
	if val := os.Getenv("GATEWAY_SECRET_KEY"); val != "" {
		c.Gateway.SecretKey = val
	}
	if val := os.Getenv("GATEWAY_BASE_URL"); val != "" {
		c.Gateway.BaseURL = val
	}

	// Email
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Email.SendGridAPIKey = val
	}
	if val := os.Getenv("EMAIL_FROM"); val != "" {
		c.Email.From = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Store validation
	switch c.Store.Type {
	case "", "memory":
		c.Store.Type = "memory"
	case "firestore":
		if c.Store.ProjectID == "" {
			return fmt.Errorf("firestore project_id is required")
		}
	default:
		return fmt.Errorf("unknown store type: %s", c.Store.Type)
	}

	// Email validation
	if c.Email.Enabled {
		if c.Email.SendGridAPIKey == "" {
			return fmt.Errorf("sendgrid API key is required when email is enabled")
		}
		if c.Email.From == "" {
			return fmt.Errorf("email sender address is required when email is enabled")
		}
	}

	// Penalty defaults
	if c.Penalty.MonthlyRate == 0 {
		c.Penalty.MonthlyRate = 0.01 // 1% monthly, prorated daily
	}
	if c.Penalty.MonthlyRate < 0 {
		return fmt.Errorf("penalty monthly rate must not be negative")
	}

	// Drawer defaults
	if c.Drawer.Timezone == "" {
		c.Drawer.Timezone = "America/Lima"
	}
	if c.Drawer.RoundingStep == 0 {
		c.Drawer.RoundingStep = 0.10
	}
	if c.Drawer.RoundingStep < 0 {
		return fmt.Errorf("drawer rounding step must not be negative")
	}

	// Scheduler defaults
	if c.Scheduler.SendOverdueReminders == "" {
		c.Scheduler.SendOverdueReminders = "0 0 9 * * *" // 9 AM UTC
	}
	if c.Scheduler.LogDrawerSummary == "" {
		c.Scheduler.LogDrawerSummary = "0 0 23 * * *" // 11 PM UTC
	}

	return nil
}

// GetServerAddress returns the HTTP server listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
