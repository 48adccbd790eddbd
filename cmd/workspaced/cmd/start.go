package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/brianly1003/workspaced/internal/app"
	"github.com/brianly1003/workspaced/internal/config"
)

var (
	apiPort     int
	dataDirFlag string
	backendFlag string
)

// startCmd represents the start command.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the workspaced daemon",
	Long: `Start the workspaced daemon in the foreground.

The daemon exposes the control API on 127.0.0.1:8788 (default), launches
one backend server per workspace on demand, and supervises those servers
until they stop or the daemon exits. Servers left running by a previous
daemon are re-adopted through the on-disk registry.

Example:
  workspaced start
  workspaced start --port 9000
  workspaced start --data-dir /tmp/workspaced
  workspaced start --backend /usr/local/bin/opencode`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().IntVar(&apiPort, "port", 0, "control API port (default: 8788)")
	startCmd.Flags().StringVar(&dataDirFlag, "data-dir", "", "data directory for registry and logs (default: ~/.workspaced)")
	startCmd.Flags().StringVar(&backendFlag, "backend", "", "backend server command (default: opencode)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with flags
	if apiPort != 0 {
		cfg.Server.Port = apiPort
	}
	if dataDirFlag != "" {
		cfg.Manager.DataDir = dataDirFlag
	}
	if backendFlag != "" {
		cfg.Backend.Command = backendFlag
	}

	// Re-validate after overrides
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Setup logging
	setupLogging(cfg)

	log.Info().
		Str("version", version).
		Str("backend", cfg.Backend.Command).
		Str("data_dir", cfg.Manager.DataDir).
		Int("port", cfg.Server.Port).
		Msg("starting workspaced")

	// Create application
	application, err := app.New(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	fmt.Printf("\n✓ workspaced running on %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  - HTTP API: http://%s:%d/api/workspaces\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  - WebSocket: ws://%s:%d/ws\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  - Health: http://%s:%d/health\n\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("Press Ctrl+C to stop...")

	// Start the application (blocks until shutdown)
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	fmt.Println("workspaced stopped")
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// setupLogging configures both global loggers: zerolog for the
// infrastructure packages and slog (tint) for the manager and HTTP
// layers. When file output is on, both share one rotated sink.
func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var fileSink io.Writer
	if cfg.Logging.FileEnabled {
		path := cfg.Logging.FilePath
		if path == "" {
			path = filepath.Join(cfg.LogDir(), "workspaced.log")
		}
		fileSink = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAgeDays,
			Compress:   true,
		}
	}

	switch {
	case cfg.Logging.Format == "console" || verbose:
		console := zerolog.ConsoleWriter{Out: os.Stderr}
		if fileSink != nil {
			log.Logger = log.Output(zerolog.MultiLevelWriter(console, fileSink))
		} else {
			log.Logger = log.Output(console)
		}
	case fileSink != nil:
		log.Logger = log.Output(zerolog.MultiLevelWriter(os.Stderr, fileSink))
	}

	slogLevel := slog.LevelInfo
	switch level {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		slogLevel = slog.LevelDebug
	case zerolog.WarnLevel:
		slogLevel = slog.LevelWarn
	case zerolog.ErrorLevel:
		slogLevel = slog.LevelError
	}

	out := io.Writer(os.Stderr)
	noColor := false
	if fileSink != nil {
		out = io.MultiWriter(os.Stderr, fileSink)
		noColor = true
	}
	slog.SetDefault(slog.New(tint.NewHandler(out, &tint.Options{
		Level:      slogLevel,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	})))
}

// printConfig prints the effective configuration as key: value lines.
func printConfig(cfg *config.Config) {
	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("API Host:        %s\n", cfg.Server.Host)
	fmt.Printf("API Port:        %d\n", cfg.Server.Port)
	fmt.Printf("Data Dir:        %s\n", cfg.Manager.DataDir)
	fmt.Printf("Stop Grace:      %dms\n", cfg.Manager.StopGraceMS)
	fmt.Printf("Stop On Exit:    %t\n", cfg.Manager.StopServersOnExit)
	fmt.Printf("Backend:         %s\n", cfg.Backend.Command)
	fmt.Printf("Readiness Path:  %s\n", cfg.Backend.ReadinessPath)
	fmt.Printf("Health Budget:   %dms\n", cfg.Health.TimeoutMS)
	fmt.Printf("Log Level:       %s\n", cfg.Logging.Level)
	fmt.Printf("Log Format:      %s\n", cfg.Logging.Format)
}
