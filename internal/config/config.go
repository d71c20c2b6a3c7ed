package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the complete taskboard configuration
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	UI        UIConfig        `mapstructure:"ui"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Paths     PathsConfig     `mapstructure:"paths"`
}

// APIConfig controls how the backend is reached
type APIConfig struct {
	// BaseURL is the API root every request path is appended to
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// Timeout bounds a single request, including reading the body
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// SendBearer also sends the session token as an Authorization header.
	// The userId header is always sent.
	SendBearer bool `mapstructure:"send_bearer"`
}

// UIConfig controls the terminal UI behavior
type UIConfig struct {
	// ToastDuration is how long a notification stays on screen (default: 2.5s)
	ToastDuration time.Duration `mapstructure:"toast_duration" validate:"gt=0"`
	// RestoreLastProject reopens the project that was open when the app last quit
	RestoreLastProject bool `mapstructure:"restore_last_project"`
}

// LoggingConfig controls the debug log
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	// File is the log file path. Empty means <state dir>/taskboard.log
	File string `mapstructure:"file"`
}

// TelemetryConfig controls the trace and metric export
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// File receives spans and metrics as JSON. Empty means <state dir>/telemetry.jsonl
	File string `mapstructure:"file"`
}

// PathsConfig controls where taskboard stores data
type PathsConfig struct {
	// DataDir holds the session database. Empty means $XDG_DATA_HOME/taskboard
	DataDir string `mapstructure:"data_dir"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "http://localhost:8080/api",
			Timeout:    10 * time.Second,
			SendBearer: false,
		},
		UI: UIConfig{
			ToastDuration:      2500 * time.Millisecond,
			RestoreLastProject: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
			File:    "",
		},
		Paths: PathsConfig{
			DataDir: "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("api.base_url", defaults.API.BaseURL)
	v.SetDefault("api.timeout", defaults.API.Timeout)
	v.SetDefault("api.send_bearer", defaults.API.SendBearer)

	v.SetDefault("ui.toast_duration", defaults.UI.ToastDuration)
	v.SetDefault("ui.restore_last_project", defaults.UI.RestoreLastProject)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.file", defaults.Logging.File)

	v.SetDefault("telemetry.enabled", defaults.Telemetry.Enabled)
	v.SetDefault("telemetry.file", defaults.Telemetry.File)

	v.SetDefault("paths.data_dir", defaults.Paths.DataDir)
}

// Init prepares v to read the config file, environment and defaults.
// cfgFile overrides the search path when non-empty.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TASKBOARD")
	// TASKBOARD_API_BASE_URL for api.base_url
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load reads the configuration from v into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks every field against its constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "taskboard")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskboard"
	}
	return filepath.Join(home, ".config", "taskboard")
}

// StateDir returns the directory for logs and other runtime state
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "taskboard")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskboard"
	}
	return filepath.Join(home, ".local", "state", "taskboard")
}

// LogFile returns the resolved log file path
func (l LoggingConfig) LogFile() string {
	if l.File != "" {
		return l.File
	}
	return filepath.Join(StateDir(), "taskboard.log")
}

// ExportFile returns the resolved telemetry file path
func (t TelemetryConfig) ExportFile() string {
	if t.File != "" {
		return t.File
	}
	return filepath.Join(StateDir(), "telemetry.jsonl")
}
