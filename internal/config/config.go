// Package config handles configuration management for workspaced.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/brianly1003/workspaced/internal/pathutil"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Manager ManagerConfig `mapstructure:"manager"`
	Backend BackendConfig `mapstructure:"backend"`
	Health  HealthConfig  `mapstructure:"health"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the control API configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ManagerConfig holds server manager configuration.
type ManagerConfig struct {
	DataDir           string `mapstructure:"data_dir"`             // Private data directory (registry, logs, backend instances)
	StopGraceMS       int    `mapstructure:"stop_grace_ms"`        // Graceful-stop wait before force kill
	StopServersOnExit bool   `mapstructure:"stop_servers_on_exit"` // Tear down workspace servers on daemon exit
}

// BackendConfig describes how workspace server processes are spawned
// and which endpoints they expose.
type BackendConfig struct {
	Command       string   `mapstructure:"command"`
	BaseArgs      []string `mapstructure:"base_args"`
	PortFlag      string   `mapstructure:"port_flag"`
	HostnameFlag  string   `mapstructure:"hostname_flag"`
	Hostname      string   `mapstructure:"hostname"`
	DirFlag       string   `mapstructure:"dir_flag"`
	ConfigDirFlag string   `mapstructure:"config_dir_flag"` // Empty disables the isolated config dir argument
	DataDirFlag   string   `mapstructure:"data_dir_flag"`   // Empty disables the isolated data dir argument
	ReadinessPath string   `mapstructure:"readiness_path"`
	SessionsPath  string   `mapstructure:"sessions_path"`
	StatusPath    string   `mapstructure:"status_path"`
	EventsPath    string   `mapstructure:"events_path"`
}

// HealthConfig holds readiness probing configuration.
type HealthConfig struct {
	TimeoutMS        int `mapstructure:"timeout_ms"`         // Overall readiness budget per start
	AttemptTimeoutMS int `mapstructure:"attempt_timeout_ms"` // Per-request timeout
	IntervalMS       int `mapstructure:"interval_ms"`        // Delay between attempts
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	FileEnabled bool   `mapstructure:"file_enabled"`
	FilePath    string `mapstructure:"file_path"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default search paths
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.workspaced")
		v.AddConfigPath("/etc/workspaced")
	}

	// Environment variable prefix
	v.SetEnvPrefix("WORKSPACED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file (optional - not an error if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// Post-process configuration
	if err := postProcess(&cfg); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Control API defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8788)

	// Manager defaults
	v.SetDefault("manager.data_dir", "")
	v.SetDefault("manager.stop_grace_ms", 5000)
	v.SetDefault("manager.stop_servers_on_exit", false)

	// Backend spawn contract defaults
	v.SetDefault("backend.command", "opencode")
	v.SetDefault("backend.base_args", []string{"serve"})
	v.SetDefault("backend.port_flag", "--port")
	v.SetDefault("backend.hostname_flag", "--hostname")
	v.SetDefault("backend.hostname", "127.0.0.1")
	v.SetDefault("backend.dir_flag", "--dir")
	v.SetDefault("backend.config_dir_flag", "--config-dir")
	v.SetDefault("backend.data_dir_flag", "--data-dir")
	v.SetDefault("backend.readiness_path", "/health")
	v.SetDefault("backend.sessions_path", "/session")
	v.SetDefault("backend.status_path", "/session/status")
	v.SetDefault("backend.events_path", "/event")

	// Health probing defaults
	v.SetDefault("health.timeout_ms", 30000)
	v.SetDefault("health.attempt_timeout_ms", 2000)
	v.SetDefault("health.interval_ms", 250)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file_enabled", false)
	v.SetDefault("logging.file_path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 7)
}

// postProcess applies post-processing to configuration.
func postProcess(cfg *Config) error {
	// Resolve the data directory
	if cfg.Manager.DataDir == "" {
		dir, err := GetConfigDir()
		if err != nil {
			return fmt.Errorf("failed to resolve data directory: %w", err)
		}
		cfg.Manager.DataDir = dir
	} else {
		expanded, err := expandHome(cfg.Manager.DataDir)
		if err != nil {
			return fmt.Errorf("failed to expand data directory: %w", err)
		}
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return fmt.Errorf("failed to resolve data directory: %w", err)
		}
		cfg.Manager.DataDir = abs
	}

	// Default log file location lives inside the data directory
	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = filepath.Join(cfg.LogDir(), "workspaced.log")
	} else {
		expanded, err := expandHome(cfg.Logging.FilePath)
		if err != nil {
			return fmt.Errorf("failed to expand log file path: %w", err)
		}
		cfg.Logging.FilePath = expanded
	}

	return nil
}

// expandHome expands a leading "~" to the user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// RegistryPath returns the path of the persistent workspace-port
// registry file.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.Manager.DataDir, "workspaces.json")
}

// LogDir returns the directory for daemon and backend log files.
func (c *Config) LogDir() string {
	return filepath.Join(c.Manager.DataDir, "logs")
}

// BackendConfigDir returns the isolated config directory for one
// workspace's backend instance.
func (c *Config) BackendConfigDir(workspacePath string) string {
	return filepath.Join(c.Manager.DataDir, "backends", pathutil.EncodePath(workspacePath), "config")
}

// BackendDataDir returns the isolated data directory for one
// workspace's backend instance.
func (c *Config) BackendDataDir(workspacePath string) string {
	return filepath.Join(c.Manager.DataDir, "backends", pathutil.EncodePath(workspacePath), "data")
}

// BackendLogPath returns the combined stdout/stderr log file for one
// workspace's backend instance.
func (c *Config) BackendLogPath(workspacePath string) string {
	return filepath.Join(c.LogDir(), "backends", pathutil.EncodePath(workspacePath)+".log")
}

// GetConfigDir returns the user config directory for workspaced.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".workspaced"), nil
}

// EnsureConfigDir creates the user config directory if needed and
// returns it.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// EnsureDataDir ensures the data directory exists and returns it.
func (c *Config) EnsureDataDir() (string, error) {
	if err := os.MkdirAll(c.Manager.DataDir, 0755); err != nil {
		return "", err
	}
	return c.Manager.DataDir, nil
}
