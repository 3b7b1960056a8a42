// ABOUTME: Configuration loading and parsing for the courier sidecar
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete courier configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Matrix    MatrixConfig    `yaml:"matrix"`
	Bot       BotConfig       `yaml:"bot"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration. When enabled, the
// sidecar serves its API on the tailnet instead of Server.HTTPAddr.
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	HTTPS     bool   `yaml:"https"`  // Serve HTTPS with Tailscale-provisioned certs
	Funnel    bool   `yaml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// MatrixConfig holds the channel session credentials. The access token is a
// previously created session artifact; courier never performs a login flow.
type MatrixConfig struct {
	Homeserver  string `yaml:"homeserver"`
	UserID      string `yaml:"user_id"`
	AccessToken string `yaml:"access_token"`
}

// BotConfig holds defaults for the responder bot.
type BotConfig struct {
	Handle          string `yaml:"handle"`
	MessageTemplate string `yaml:"message_template"`

	WaitAfterSend time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	WaitAfterSendRaw string `yaml:"wait_after_send"`
}

// AuthConfig holds API authentication configuration. At least one of Token or
// JWTSecret must be set; both may be set, in which case either is accepted.
type AuthConfig struct {
	Token     string `yaml:"token"`
	JWTSecret string `yaml:"jwt_secret"`
}

// DatabaseConfig holds the contact directory / audit ledger database path.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the config file leaves bot fields empty.
const (
	DefaultMessageTemplate = "{phone}"
	DefaultWaitAfterSend   = 12 * time.Second
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in defaults for optional bot settings.
func applyDefaults(cfg *Config) {
	if cfg.Bot.MessageTemplate == "" {
		cfg.Bot.MessageTemplate = DefaultMessageTemplate
	}
	if cfg.Bot.WaitAfterSendRaw == "" {
		cfg.Bot.WaitAfterSend = DefaultWaitAfterSend
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// The HTTP address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Matrix.Homeserver == "" {
		return fmt.Errorf("matrix.homeserver is required")
	}
	if c.Matrix.UserID == "" {
		return fmt.Errorf("matrix.user_id is required")
	}
	if c.Matrix.AccessToken == "" {
		return fmt.Errorf("matrix.access_token is required (create the session externally first)")
	}

	if c.Auth.Token == "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.token or auth.jwt_secret is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Bot.WaitAfterSendRaw != "" {
		cfg.Bot.WaitAfterSend, err = time.ParseDuration(cfg.Bot.WaitAfterSendRaw)
		if err != nil {
			return fmt.Errorf("parsing wait_after_send %q: %w", cfg.Bot.WaitAfterSendRaw, err)
		}
	}

	return nil
}
