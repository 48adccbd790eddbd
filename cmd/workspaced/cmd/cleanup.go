package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brianly1003/workspaced/internal/server/workspacehttp"
)

// cleanupCmd prunes dead registry entries through the running daemon.
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale registry entries",
	Long: `Remove registry entries whose server no longer answers its health
endpoint. The daemon probes each tracked server and drops the dead ones.

Example:
  workspaced cleanup`,
	RunE: runCleanup,
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client := workspacehttp.NewClient(apiBaseURL(cfg))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := client.Cleanup(ctx)
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", apiBaseURL(cfg), err)
	}

	if result.Count == 0 {
		fmt.Println("Registry already clean")
		return nil
	}
	for _, path := range result.Removed {
		fmt.Printf("Removed %s\n", path)
	}
	fmt.Printf("%d stale entries removed\n", result.Count)
	return nil
}
