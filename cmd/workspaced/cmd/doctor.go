package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/brianly1003/workspaced/internal/config"
	"github.com/brianly1003/workspaced/internal/health"
	"github.com/brianly1003/workspaced/internal/portutil"
	"github.com/brianly1003/workspaced/internal/registry"
)

var (
	doctorJSON        bool
	doctorStrict      bool
	doctorHTTPTimeout int
)

type doctorStatus string

const (
	doctorStatusOK   doctorStatus = "ok"
	doctorStatusWarn doctorStatus = "warn"
	doctorStatusFail doctorStatus = "fail"
)

type doctorCheck struct {
	ID          string                 `json:"id"`
	Status      doctorStatus           `json:"status"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Remediation string                 `json:"remediation,omitempty"`
}

type doctorSummary struct {
	Total int `json:"total"`
	OK    int `json:"ok"`
	Warn  int `json:"warn"`
	Fail  int `json:"fail"`
}

type doctorReport struct {
	Version      string        `json:"version"`
	GeneratedAt  string        `json:"generated_at"`
	Overall      doctorStatus  `json:"overall_status"`
	Summary      doctorSummary `json:"summary"`
	Checks       []doctorCheck `json:"checks"`
	SearchConfig []string      `json:"config_search_paths,omitempty"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run local diagnostics with remediation hints",
	Long: `Run read-only diagnostics against the local workspaced setup and print
actionable hints.

By default the output is human-readable text.
Use --json for machine-readable output.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output machine-readable JSON")
	doctorCmd.Flags().BoolVar(&doctorStrict, "strict", false, "return non-zero on warnings")
	doctorCmd.Flags().IntVar(&doctorHTTPTimeout, "http-timeout", 2, "probe timeout in seconds")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	report := collectDoctorReport()

	if doctorJSON {
		if err := printDoctorJSON(report); err != nil {
			return err
		}
	} else {
		printDoctorText(report)
	}

	if report.Summary.Fail > 0 {
		return fmt.Errorf("doctor found %d failing check(s)", report.Summary.Fail)
	}
	if doctorStrict && report.Summary.Warn > 0 {
		return fmt.Errorf("doctor strict mode failed with %d warning(s)", report.Summary.Warn)
	}
	return nil
}

func collectDoctorReport() doctorReport {
	checks := make([]doctorCheck, 0, 8)

	cfg := defaultDoctorConfig()
	loadedCfg, cfgCheck := checkConfigLoad(cfgFile)
	checks = append(checks, cfgCheck)
	if loadedCfg != nil {
		cfg = loadedCfg
	}

	checks = append(checks, checkConfigFileSyntax(cfgFile))
	checks = append(checks, checkConfigDirectory())
	checks = append(checks, checkDirectoryExists(
		"manager.data_dir",
		cfg.Manager.DataDir,
		"Data directory exists",
		"Run `workspaced start` once to create the data directory.",
	))
	checks = append(checks, checkCommandBinary("backend.command", cfg.Backend.Command, true))

	records, registryCheck := checkRegistryFile(cfg.RegistryPath())
	checks = append(checks, registryCheck)
	checks = append(checks, checkRegistryServers(records, cfg.Backend.ReadinessPath, doctorHTTPTimeout))
	checks = append(checks, checkListeningPorts(records))

	checks = append(checks, checkHealthEndpoint(cfg.Server.Host, cfg.Server.Port, doctorHTTPTimeout))

	summary := summarizeDoctorChecks(checks)
	return doctorReport{
		Version:      "1.0",
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		Overall:      overallStatus(summary),
		Summary:      summary,
		Checks:       checks,
		SearchConfig: configSearchPaths(cfgFile),
	}
}

func checkConfigLoad(path string) (*config.Config, doctorCheck) {
	cfg, err := config.Load(path)
	searchPaths := configSearchPaths(path)
	if err != nil {
		return nil, doctorCheck{
			ID:      "config.load",
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Failed to load config: %v", err),
			Details: map[string]interface{}{
				"config_path":  strings.TrimSpace(path),
				"search_paths": searchPaths,
			},
			Remediation: "Fix the config file, or run `workspaced config init --force` to regenerate defaults.",
		}
	}

	source := findFirstExistingPath(searchPaths)
	msg := "Configuration loaded using built-in defaults and environment overrides"
	if source != "" {
		msg = "Configuration loaded successfully"
	}

	return cfg, doctorCheck{
		ID:      "config.load",
		Status:  doctorStatusOK,
		Message: msg,
		Details: map[string]interface{}{
			"loaded_from":  source,
			"search_paths": searchPaths,
		},
	}
}

// checkConfigFileSyntax reparses the active config file as plain YAML.
// Viper's load errors can be vague; a direct parse points at the line.
func checkConfigFileSyntax(explicit string) doctorCheck {
	path := findFirstExistingPath(configSearchPaths(explicit))
	if path == "" {
		return doctorCheck{
			ID:      "config.file_syntax",
			Status:  doctorStatusOK,
			Message: "No config file present (built-in defaults in use)",
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return doctorCheck{
			ID:      "config.file_syntax",
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Failed to read config file: %v", err),
			Details: map[string]interface{}{
				"path": path,
			},
			Remediation: "Check file permissions and ownership.",
		}
	}

	var payload interface{}
	if err := yaml.Unmarshal(content, &payload); err != nil {
		return doctorCheck{
			ID:      "config.file_syntax",
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Invalid YAML: %v", err),
			Details: map[string]interface{}{
				"path": path,
			},
			Remediation: "Fix the YAML syntax, or run `workspaced config init --force` to regenerate defaults.",
		}
	}

	return doctorCheck{
		ID:      "config.file_syntax",
		Status:  doctorStatusOK,
		Message: "Config file is valid YAML",
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

func checkConfigDirectory() doctorCheck {
	dir, err := config.GetConfigDir()
	if err != nil {
		return doctorCheck{
			ID:          "config.directory",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("Failed to resolve config directory: %v", err),
			Remediation: "Verify your HOME environment and filesystem permissions.",
		}
	}

	info, statErr := os.Stat(dir)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return doctorCheck{
				ID:      "config.directory",
				Status:  doctorStatusWarn,
				Message: "Config directory does not exist yet",
				Details: map[string]interface{}{
					"path": dir,
				},
				Remediation: "Run `workspaced config init` to create initial configuration.",
			}
		}
		return doctorCheck{
			ID:      "config.directory",
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Failed to access config directory: %v", statErr),
			Details: map[string]interface{}{
				"path": dir,
			},
			Remediation: "Fix directory permissions or create the directory manually.",
		}
	}

	if !info.IsDir() {
		return doctorCheck{
			ID:      "config.directory",
			Status:  doctorStatusFail,
			Message: "Config path exists but is not a directory",
			Details: map[string]interface{}{
				"path": dir,
			},
			Remediation: "Remove the file and recreate the directory with `mkdir -p ~/.workspaced`.",
		}
	}

	return doctorCheck{
		ID:      "config.directory",
		Status:  doctorStatusOK,
		Message: "Config directory is available",
		Details: map[string]interface{}{
			"path": dir,
		},
	}
}

// checkRegistryFile parses the on-disk registry and returns its
// records for the probe checks below.
func checkRegistryFile(path string) (map[string]registry.Record, doctorCheck) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, doctorCheck{
				ID:      "registry.file",
				Status:  doctorStatusOK,
				Message: "No registry file yet (no server has been started)",
				Details: map[string]interface{}{
					"path": path,
				},
			}
		}
		return nil, doctorCheck{
			ID:      "registry.file",
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Failed to read registry file: %v", err),
			Details: map[string]interface{}{
				"path": path,
			},
			Remediation: "Check file permissions and ownership.",
		}
	}

	var file registry.File
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, doctorCheck{
			ID:      "registry.file",
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Invalid JSON format: %v", err),
			Details: map[string]interface{}{
				"path": path,
			},
			Remediation: "Remove the file; the daemon rebuilds it as servers start and stop.",
		}
	}

	return file.Workspaces, doctorCheck{
		ID:      "registry.file",
		Status:  doctorStatusOK,
		Message: "Registry file is readable",
		Details: map[string]interface{}{
			"path":       path,
			"workspaces": len(file.Workspaces),
		},
	}
}

// checkRegistryServers probes each tracked server's health endpoint.
func checkRegistryServers(records map[string]registry.Record, readinessPath string, timeoutSeconds int) doctorCheck {
	if len(records) == 0 {
		return doctorCheck{
			ID:      "registry.servers",
			Status:  doctorStatusOK,
			Message: "No tracked workspace servers",
		}
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 2
	}

	checker := health.NewCheckerWithTimeouts(time.Duration(timeoutSeconds)*time.Second, 0)
	ctx := context.Background()

	healthy := make([]string, 0, len(records))
	stale := make([]string, 0)
	for path, rec := range records {
		entry := fmt.Sprintf("%s (port %d)", path, rec.Port)
		if checker.Check(ctx, rec.Port, readinessPath) {
			healthy = append(healthy, entry)
		} else {
			stale = append(stale, entry)
		}
	}
	sort.Strings(healthy)
	sort.Strings(stale)

	if len(stale) > 0 {
		return doctorCheck{
			ID:      "registry.servers",
			Status:  doctorStatusWarn,
			Message: fmt.Sprintf("%d of %d tracked server(s) failed the health probe", len(stale), len(records)),
			Details: map[string]interface{}{
				"healthy": healthy,
				"stale":   stale,
			},
			Remediation: "Run `workspaced cleanup` to drop entries for dead servers.",
		}
	}

	return doctorCheck{
		ID:      "registry.servers",
		Status:  doctorStatusOK,
		Message: "All tracked servers answered the health probe",
		Details: map[string]interface{}{
			"healthy": healthy,
		},
	}
}

// checkListeningPorts cross-checks registry ports against listening
// TCP sockets. A record without a bound socket is stale even when the
// health probe cannot say why.
func checkListeningPorts(records map[string]registry.Record) doctorCheck {
	if len(records) == 0 {
		return doctorCheck{
			ID:      "registry.ports",
			Status:  doctorStatusOK,
			Message: "No registry ports to cross-check",
		}
	}

	candidates := make([]int, 0, len(records))
	byPort := make(map[int]string, len(records))
	for path, rec := range records {
		candidates = append(candidates, rec.Port)
		byPort[rec.Port] = path
	}
	sort.Ints(candidates)

	listening, err := portutil.NewAllocator().ListeningPorts(candidates)
	if err != nil {
		return doctorCheck{
			ID:          "registry.ports",
			Status:      doctorStatusWarn,
			Message:     fmt.Sprintf("Failed to enumerate listening ports: %v", err),
			Remediation: "Install lsof (or netstat on Windows) so sockets can be enumerated.",
		}
	}

	bound := make(map[int]bool, len(listening))
	for _, lp := range listening {
		bound[lp.Port] = true
	}

	missing := make([]string, 0)
	for port, path := range byPort {
		if !bound[port] {
			missing = append(missing, fmt.Sprintf("%s (port %d)", path, port))
		}
	}
	sort.Strings(missing)

	if len(missing) > 0 {
		return doctorCheck{
			ID:      "registry.ports",
			Status:  doctorStatusWarn,
			Message: fmt.Sprintf("%d registry port(s) have no listening socket", len(missing)),
			Details: map[string]interface{}{
				"missing": missing,
			},
			Remediation: "Run `workspaced cleanup` to reconcile the registry with running servers.",
		}
	}

	return doctorCheck{
		ID:      "registry.ports",
		Status:  doctorStatusOK,
		Message: "Every registry port has a listening socket",
		Details: map[string]interface{}{
			"checked": len(records),
		},
	}
}

func checkCommandBinary(id, command string, recommended bool) doctorCheck {
	execName := extractCommandName(command)
	if execName == "" {
		return doctorCheck{
			ID:          id,
			Status:      doctorStatusFail,
			Message:     "Command is empty",
			Remediation: "Set the command in config to a valid executable name or absolute path.",
		}
	}

	resolved, err := exec.LookPath(execName)
	if err != nil {
		status := doctorStatusWarn
		remediation := fmt.Sprintf("Install `%s` and ensure it is available in PATH.", execName)
		if recommended {
			status = doctorStatusFail
			remediation = fmt.Sprintf("Install `%s` or update config to a valid command path.", execName)
		}
		return doctorCheck{
			ID:      id,
			Status:  status,
			Message: fmt.Sprintf("Command not found in PATH: %s", execName),
			Details: map[string]interface{}{
				"configured": command,
			},
			Remediation: remediation,
		}
	}

	return doctorCheck{
		ID:      id,
		Status:  doctorStatusOK,
		Message: "Command is available",
		Details: map[string]interface{}{
			"configured": command,
			"resolved":   resolved,
		},
	}
}

func checkDirectoryExists(id, path, okMessage, missingRemediation string) doctorCheck {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doctorCheck{
				ID:      id,
				Status:  doctorStatusWarn,
				Message: "Directory not found",
				Details: map[string]interface{}{
					"path": path,
				},
				Remediation: missingRemediation,
			}
		}
		return doctorCheck{
			ID:      id,
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Failed to read directory: %v", err),
			Details: map[string]interface{}{
				"path": path,
			},
			Remediation: "Check filesystem permissions.",
		}
	}

	if !info.IsDir() {
		return doctorCheck{
			ID:      id,
			Status:  doctorStatusFail,
			Message: "Path exists but is not a directory",
			Details: map[string]interface{}{
				"path": path,
			},
			Remediation: "Remove the file and create the directory path.",
		}
	}

	return doctorCheck{
		ID:      id,
		Status:  doctorStatusOK,
		Message: okMessage,
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

func checkHealthEndpoint(host string, port, timeoutSeconds int) doctorCheck {
	if strings.TrimSpace(host) == "" {
		host = "127.0.0.1"
	}
	if port <= 0 {
		port = 8788
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 2
	}

	url := fmt.Sprintf("http://%s:%d/health", host, port)
	client := &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return doctorCheck{
			ID:      "server.health_endpoint",
			Status:  doctorStatusWarn,
			Message: fmt.Sprintf("Health endpoint is not reachable: %v", err),
			Details: map[string]interface{}{
				"url": url,
			},
			Remediation: "Start the daemon with `workspaced start` and verify host/port configuration.",
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return doctorCheck{
			ID:      "server.health_endpoint",
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Health endpoint returned non-200 status: %d", resp.StatusCode),
			Details: map[string]interface{}{
				"url":         url,
				"status_code": resp.StatusCode,
				"body":        strings.TrimSpace(string(body)),
			},
			Remediation: "Check daemon logs (`workspaced start -v`) to diagnose HTTP startup issues.",
		}
	}

	return doctorCheck{
		ID:      "server.health_endpoint",
		Status:  doctorStatusOK,
		Message: "Health endpoint is reachable",
		Details: map[string]interface{}{
			"url":         url,
			"status_code": resp.StatusCode,
		},
	}
}

func summarizeDoctorChecks(checks []doctorCheck) doctorSummary {
	summary := doctorSummary{Total: len(checks)}
	for _, check := range checks {
		switch check.Status {
		case doctorStatusOK:
			summary.OK++
		case doctorStatusWarn:
			summary.Warn++
		case doctorStatusFail:
			summary.Fail++
		}
	}
	return summary
}

func overallStatus(summary doctorSummary) doctorStatus {
	if summary.Fail > 0 {
		return doctorStatusFail
	}
	if summary.Warn > 0 {
		return doctorStatusWarn
	}
	return doctorStatusOK
}

func printDoctorJSON(report doctorReport) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func printDoctorText(report doctorReport) {
	fmt.Printf("workspaced doctor v%s\n", report.Version)
	fmt.Printf("generated_at: %s\n", report.GeneratedAt)
	fmt.Printf("overall: %s  (ok=%d warn=%d fail=%d total=%d)\n\n",
		strings.ToUpper(string(report.Overall)),
		report.Summary.OK,
		report.Summary.Warn,
		report.Summary.Fail,
		report.Summary.Total,
	)

	for _, check := range report.Checks {
		label := "[OK]"
		if check.Status == doctorStatusWarn {
			label = "[WARN]"
		}
		if check.Status == doctorStatusFail {
			label = "[FAIL]"
		}

		fmt.Printf("%s %s: %s\n", label, check.ID, check.Message)
		if check.Remediation != "" && check.Status != doctorStatusOK {
			fmt.Printf("  fix: %s\n", check.Remediation)
		}
	}

	fmt.Println()
	fmt.Println("Tip: run `workspaced doctor --json` for machine-readable output.")
}

func defaultDoctorConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: 8788,
		},
		Manager: config.ManagerConfig{
			DataDir: filepath.Join(userHomeDir(), ".workspaced"),
		},
		Backend: config.BackendConfig{
			Command:       "opencode",
			ReadinessPath: "/health",
		},
	}
}

func configSearchPaths(explicit string) []string {
	if strings.TrimSpace(explicit) != "" {
		return []string{explicit}
	}

	home := userHomeDir()
	return []string{
		filepath.Join(".", "config.yaml"),
		filepath.Join(home, ".workspaced", "config.yaml"),
		"/etc/workspaced/config.yaml",
	}
}

func findFirstExistingPath(paths []string) string {
	for _, candidate := range paths {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func extractCommandName(command string) string {
	parts := strings.Fields(strings.TrimSpace(command))
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func userHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
