// Package config provides centralized default configuration values.
package config

// DefaultConfigYAML is the commented starter file written by
// `workspaced config init`. Values mirror setDefaults; keeping them in
// one template means a freshly written file and an absent file load
// identically.
const DefaultConfigYAML = `# workspaced configuration

# Control API for the desktop shell / UI. Loopback only.
server:
  host: "127.0.0.1"
  port: 8788

manager:
  # Private data directory (registry, logs, per-workspace backend state).
  # Empty means ~/.workspaced
  data_dir: ""
  # How long a graceful stop may take before escalating to a force kill.
  stop_grace_ms: 5000
  # When true, workspace servers are torn down on daemon exit. The
  # default leaves them running; the next boot reconciles via the
  # registry.
  stop_servers_on_exit: false

# How workspace server processes are spawned and which endpoints they
# expose. The defaults match the opencode server.
backend:
  command: "opencode"
  base_args: ["serve"]
  port_flag: "--port"
  hostname_flag: "--hostname"
  hostname: "127.0.0.1"
  dir_flag: "--dir"
  # Per-workspace isolation. Empty flags disable the argument.
  config_dir_flag: "--config-dir"
  data_dir_flag: "--data-dir"
  readiness_path: "/health"
  sessions_path: "/session"
  status_path: "/session/status"
  events_path: "/event"

health:
  # Overall readiness budget for one server start.
  timeout_ms: 30000
  # Per-request timeout; one hung probe cannot eat the whole budget.
  attempt_timeout_ms: 2000
  interval_ms: 250

logging:
  level: "info"     # trace, debug, info, warn, error
  format: "console" # console or json
  file_enabled: false
  # Empty means <data_dir>/logs/workspaced.log
  file_path: ""
  max_size_mb: 10
  max_backups: 3
  max_age_days: 7
`
