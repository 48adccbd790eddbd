package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/brianly1003/workspaced/internal/server/workspacehttp"
)

// statusCmd shows workspace server state via the running daemon.
var statusCmd = &cobra.Command{
	Use:   "status [workspace-path]",
	Short: "Show workspace server status",
	Long: `Show tracked workspace servers and their agent activity.

Without arguments, every tracked workspace is listed. With a path, the
agent status for that single workspace is shown.

Example:
  workspaced status
  workspaced status /path/to/project`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client := workspacehttp.NewClient(apiBaseURL(cfg))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if len(args) == 1 {
		st, err := client.Status(ctx, args[0])
		if err != nil {
			return fmt.Errorf("daemon not reachable at %s: %w", apiBaseURL(cfg), err)
		}
		fmt.Printf("Workspace: %s\n", st.WorkspacePath)
		fmt.Printf("Agent:     %s\n", st.Status)
		fmt.Printf("Sessions:  %d idle, %d busy\n", st.Counts.Idle, st.Counts.Busy)
		return nil
	}

	workspaces, err := client.Workspaces(ctx)
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", apiBaseURL(cfg), err)
	}
	if len(workspaces) == 0 {
		fmt.Println("No workspace servers running")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tPORT\tSTATE\tAGENT\tPID")
	for _, ws := range workspaces {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\n", ws.Path, ws.Port, ws.State, ws.AgentStatus, ws.PID)
	}
	return w.Flush()
}
