// Package config loads and watches the inboxmind configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all inboxmind configuration.
type Config struct {
	// Operator identity
	Operator OperatorConfig `yaml:"operator"`

	// Decision procedure
	LLM LLMConfig `yaml:"llm"`

	// Durable memory
	Memory MemoryConfig `yaml:"memory"`

	// Hard safety limits
	Safety SafetyConfig `yaml:"safety"`

	// Cycle scheduling
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Google Workspace credentials
	Google GoogleConfig `yaml:"google"`

	// Escalation alerts
	Alerts AlertsConfig `yaml:"alerts"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// OperatorConfig identifies the inbox being operated and its goals.
type OperatorConfig struct {
	Name string `yaml:"name"`
	// Email is the address the agent operates on behalf of.
	Email string `yaml:"email"`
	// Objectives steer the decision procedure. Reloadable at runtime via
	// the config watcher.
	Objectives []string `yaml:"objectives"`
}

// LLMConfig configures the decision procedure.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// MemoryConfig configures the durable store.
type MemoryConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// SafetyConfig configures the gate's tunable thresholds. The rule set
// itself is not configurable.
type SafetyConfig struct {
	DailyActionLimit int `yaml:"daily_action_limit"`
	MaxRecipients    int `yaml:"max_recipients"`
}

// SchedulerConfig configures the cycle loop.
type SchedulerConfig struct {
	Interval   string `yaml:"interval"`
	FetchLimit int    `yaml:"fetch_limit"`
}

// GoogleConfig locates Gmail and Calendar credentials.
type GoogleConfig struct {
	CredentialsPath string `yaml:"credentials_path"`
	TokenPath       string `yaml:"token_path"`
	CalendarID      string `yaml:"calendar_id"`
}

// AlertsConfig configures human escalation delivery.
type AlertsConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	Channel         string `yaml:"channel"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Operator: OperatorConfig{
			Name: "inboxmind",
			Objectives: []string{
				"respond helpfully and promptly to legitimate inbound email",
				"escalate anything ambiguous or sensitive to a human",
			},
		},
		LLM: LLMConfig{
			Model:   "gemini-2.5-flash",
			Timeout: "60s",
		},
		Memory: MemoryConfig{
			DatabasePath: "data/inboxmind.db",
		},
		Safety: SafetyConfig{
			DailyActionLimit: 50,
			MaxRecipients:    50,
		},
		Scheduler: SchedulerConfig{
			Interval:   "5m",
			FetchLimit: 20,
		},
		Google: GoogleConfig{
			CredentialsPath: "credentials.json",
			TokenPath:       "token.json",
			CalendarID:      "primary",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; a malformed one is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("INBOXMIND_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if path := os.Getenv("INBOXMIND_DB"); path != "" {
		c.Memory.DatabasePath = path
	}
	if url := os.Getenv("INBOXMIND_SLACK_WEBHOOK"); url != "" {
		c.Alerts.SlackWebhookURL = url
	}
	if email := os.Getenv("INBOXMIND_OPERATOR_EMAIL"); email != "" {
		c.Operator.Email = email
	}
	if limit := os.Getenv("INBOXMIND_DAILY_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			c.Safety.DailyActionLimit = n
		}
	}
}

// GetInterval returns the scheduler interval as a duration.
func (c *Config) GetInterval() time.Duration {
	d, err := time.ParseDuration(c.Scheduler.Interval)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetLLMTimeout returns the decision-procedure timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}
