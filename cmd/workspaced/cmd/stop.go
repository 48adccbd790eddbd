package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brianly1003/workspaced/internal/config"
	"github.com/brianly1003/workspaced/internal/server/workspacehttp"
)

var stopAll bool

// stopCmd stops workspace servers through the running daemon.
var stopCmd = &cobra.Command{
	Use:   "stop [workspace-path]",
	Short: "Stop a workspace server",
	Long: `Stop the backend server for a workspace via the running daemon.

Stopping a workspace that has no tracked server is not an error. With
--all, every tracked server is stopped.

Example:
  workspaced stop /path/to/project
  workspaced stop --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStop,
}

func init() {
	stopCmd.Flags().BoolVar(&stopAll, "all", false, "stop all tracked workspace servers")
}

func runStop(cmd *cobra.Command, args []string) error {
	if !stopAll && len(args) == 0 {
		return fmt.Errorf("workspace path required (or use --all)")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client := workspacehttp.NewClient(apiBaseURL(cfg))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if stopAll {
		workspaces, err := client.Workspaces(ctx)
		if err != nil {
			return fmt.Errorf("daemon not reachable at %s: %w", apiBaseURL(cfg), err)
		}
		if len(workspaces) == 0 {
			fmt.Println("No workspace servers running")
			return nil
		}
		for _, ws := range workspaces {
			if err := client.StopWorkspace(ctx, ws.Path); err != nil {
				return fmt.Errorf("failed to stop %s: %w", ws.Path, err)
			}
			fmt.Printf("Stopped %s\n", ws.Path)
		}
		return nil
	}

	if err := client.StopWorkspace(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to stop workspace: %w", err)
	}
	fmt.Printf("Stopped %s\n", args[0])
	return nil
}

// apiBaseURL returns the daemon base URL for CLI clients. Wildcard
// binds are dialed over loopback.
func apiBaseURL(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
}
