package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Zapier  ZapierConfig  `mapstructure:"zapier" yaml:"zapier"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Paths   PathsConfig   `mapstructure:"paths" yaml:"paths"`
	MCP     MCPConfig     `mapstructure:"mcp" yaml:"mcp"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ZapierConfig carries the account credentials consumed by the login flow.
// Credentials come from the config file or the ZAPCTL_ZAPIER_EMAIL /
// ZAPCTL_ZAPIER_PASSWORD environment variables; they are never persisted by
// this tool.
type ZapierConfig struct {
	Email    string `mapstructure:"email" yaml:"email"`
	Password string `mapstructure:"password" yaml:"-"`
	// BaseURL is the vendor web root; tests point it at a local server.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// BrowserConfig holds settings for the driven browser instance.
type BrowserConfig struct {
	// Interactive runs the browser headful with extended timeouts so an
	// operator can complete two-factor challenges. Set by the global
	// --interactive flag.
	Interactive   bool     `mapstructure:"interactive" yaml:"interactive"`
	ExecPath      string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args          []string `mapstructure:"args" yaml:"args"`
	DebuggingPort int      `mapstructure:"debugging_port" yaml:"debugging_port"`
}

// NetworkConfig tunes the bounded timeouts. Every wait in the tool is bounded
// by one of these; the only extended wait is the interactive challenge.
type NetworkConfig struct {
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	ReconnectTimeout  time.Duration `mapstructure:"reconnect_timeout" yaml:"reconnect_timeout"`
	InterceptTimeout  time.Duration `mapstructure:"intercept_timeout" yaml:"intercept_timeout"`
	LoginTimeout      time.Duration `mapstructure:"login_timeout" yaml:"login_timeout"`
	ChallengeTimeout  time.Duration `mapstructure:"challenge_timeout" yaml:"challenge_timeout"`
	// RequestsPerSecond paces primary-path calls against the internal API.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// PathsConfig locates the two on-disk areas the tool uses: the volatile
// session directory and the durable screenshot directory.
type PathsConfig struct {
	SessionDir    string `mapstructure:"session_dir" yaml:"session_dir"`
	ScreenshotDir string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// MCPConfig configures the remote-actions collaborator.
type MCPConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string `mapstructure:"api_key" yaml:"-"`
}

// MissingCredentialsError is the hard configuration error surfaced before any
// browser launch when a login-requiring operation has no credentials to work
// with. There is no retry; the operator must fix their configuration.
type MissingCredentialsError struct {
	Missing []string
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("missing Zapier credentials (%v); set zapier.email/zapier.password in the config file or the ZAPCTL_ZAPIER_EMAIL/ZAPCTL_ZAPIER_PASSWORD environment variables", e.Missing)
}

// Credentials returns the login credentials or a MissingCredentialsError.
func (c *Config) Credentials() (email, password string, err error) {
	var missing []string
	if c.Zapier.Email == "" {
		missing = append(missing, "zapier.email")
	}
	if c.Zapier.Password == "" {
		missing = append(missing, "zapier.password")
	}
	if len(missing) > 0 {
		return "", "", &MissingCredentialsError{Missing: missing}
	}
	return c.Zapier.Email, c.Zapier.Password, nil
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "zapctl")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Zapier --
	v.SetDefault("zapier.base_url", "https://zapier.com")

	// -- Browser --
	v.SetDefault("browser.interactive", false)
	v.SetDefault("browser.debugging_port", 9777)

	// -- Network --
	v.SetDefault("network.request_timeout", "30s")
	v.SetDefault("network.navigation_timeout", "30s")
	v.SetDefault("network.probe_timeout", "10s")
	v.SetDefault("network.reconnect_timeout", "8s")
	v.SetDefault("network.intercept_timeout", "15s")
	v.SetDefault("network.login_timeout", "60s")
	v.SetDefault("network.challenge_timeout", "120s")
	v.SetDefault("network.requests_per_second", 2.0)

	// -- Paths --
	v.SetDefault("paths.session_dir", "")
	v.SetDefault("paths.screenshot_dir", "~/zapctl-screenshots")

	// -- MCP --
	v.SetDefault("mcp.endpoint", "https://mcp.zapier.com/api/mcp/mcp")
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Sensitive values come from the environment, never the config file.
	v.BindEnv("zapier.email", "ZAPCTL_ZAPIER_EMAIL")
	v.BindEnv("zapier.password", "ZAPCTL_ZAPIER_PASSWORD")
	v.BindEnv("mcp.api_key", "ZAPCTL_MCP_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand ~ in the screenshot directory.
	if cfg.Paths.ScreenshotDir != "" {
		expanded, err := homedir.Expand(cfg.Paths.ScreenshotDir)
		if err != nil {
			return nil, fmt.Errorf("invalid screenshot directory: %w", err)
		}
		cfg.Paths.ScreenshotDir = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values. Credentials are not
// validated here: commands that never log in must work without them.
func (c *Config) Validate() error {
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("network.request_timeout must be a positive duration")
	}
	if c.Network.InterceptTimeout <= 0 {
		return fmt.Errorf("network.intercept_timeout must be a positive duration")
	}
	if c.Network.LoginTimeout <= 0 {
		return fmt.Errorf("network.login_timeout must be a positive duration")
	}
	if c.Network.ChallengeTimeout < c.Network.LoginTimeout {
		return fmt.Errorf("network.challenge_timeout must not be shorter than network.login_timeout")
	}
	if c.Browser.DebuggingPort <= 0 || c.Browser.DebuggingPort > 65535 {
		return fmt.Errorf("browser.debugging_port must be a valid TCP port")
	}
	if c.Network.RequestsPerSecond <= 0 {
		return fmt.Errorf("network.requests_per_second must be positive")
	}
	return nil
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}
