package config

import (
	"fmt"
	"strings"
)

// Validate validates the configuration.
func Validate(cfg *Config) error {
	// Validate server config
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}

	// Validate manager config
	if err := validateManager(&cfg.Manager); err != nil {
		return err
	}

	// Validate backend config
	if err := validateBackend(&cfg.Backend); err != nil {
		return err
	}

	// Validate health config
	if err := validateHealth(&cfg.Health); err != nil {
		return err
	}

	// Validate logging config
	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}

	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if cfg.Host == "" {
		return fmt.Errorf("server.host cannot be empty")
	}
	return nil
}

func validateManager(cfg *ManagerConfig) error {
	if cfg.StopGraceMS < 0 {
		return fmt.Errorf("manager.stop_grace_ms cannot be negative")
	}
	if cfg.StopGraceMS > 60000 {
		return fmt.Errorf("manager.stop_grace_ms cannot exceed 60000ms")
	}
	return nil
}

func validateBackend(cfg *BackendConfig) error {
	if cfg.Command == "" {
		return fmt.Errorf("backend.command cannot be empty")
	}
	if cfg.PortFlag == "" {
		return fmt.Errorf("backend.port_flag cannot be empty")
	}
	if cfg.HostnameFlag != "" && cfg.Hostname == "" {
		return fmt.Errorf("backend.hostname cannot be empty when backend.hostname_flag is set")
	}

	paths := map[string]string{
		"backend.readiness_path": cfg.ReadinessPath,
		"backend.sessions_path":  cfg.SessionsPath,
		"backend.status_path":    cfg.StatusPath,
		"backend.events_path":    cfg.EventsPath,
	}
	for field, p := range paths {
		if p == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with /", field)
		}
	}

	return nil
}

func validateHealth(cfg *HealthConfig) error {
	if cfg.TimeoutMS < 100 {
		return fmt.Errorf("health.timeout_ms must be at least 100")
	}
	if cfg.TimeoutMS > 600000 {
		return fmt.Errorf("health.timeout_ms cannot exceed 600000 (10 minutes)")
	}
	if cfg.AttemptTimeoutMS < 50 {
		return fmt.Errorf("health.attempt_timeout_ms must be at least 50")
	}
	if cfg.AttemptTimeoutMS > cfg.TimeoutMS {
		return fmt.Errorf("health.attempt_timeout_ms cannot exceed health.timeout_ms")
	}
	if cfg.IntervalMS < 10 {
		return fmt.Errorf("health.interval_ms must be at least 10")
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	switch strings.ToLower(cfg.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json")
	}

	if cfg.FileEnabled {
		if cfg.MaxSizeMB < 1 {
			return fmt.Errorf("logging.max_size_mb must be at least 1")
		}
		if cfg.MaxBackups < 0 {
			return fmt.Errorf("logging.max_backups cannot be negative")
		}
		if cfg.MaxAgeDays < 0 {
			return fmt.Errorf("logging.max_age_days cannot be negative")
		}
	}

	return nil
}
