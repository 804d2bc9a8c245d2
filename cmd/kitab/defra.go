package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/kitab/internal/defra"
	"github.com/jackzampolin/kitab/internal/svcctx"
)

var defraCmd = &cobra.Command{
	Use:   "defra",
	Short: "Manage the DefraDB container",
	Long: `Manage the DefraDB container lifecycle.

DefraDB is the optional page store backend (store.backend: defra). The
database runs in a Docker container with data persisted to
~/.kitab/defradb/.

Examples:
  kitab defra start   # Start the DefraDB container
  kitab defra stop    # Stop the container (data preserved)
  kitab defra status  # Check container status
  kitab defra logs    # View container logs`,
	Annotations: map[string]string{annotationServices: servicesBase},
}

// withContainer runs fn against the configured node container.
func withContainer(cmd *cobra.Command, fn func(node *defra.Container) error) error {
	svcs := svcctx.ServicesFrom(cmd.Context())
	if svcs == nil {
		return fmt.Errorf("services not initialized")
	}
	node, err := defraContainer(svcs.Home, svcs.Config.Get(), svcs.Logger)
	if err != nil {
		return err
	}
	defer node.Close()
	return fn(node)
}

var defraStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the DefraDB container",
	Long: `Start the DefraDB container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(node *defra.Container) error {
			out := cmd.OutOrStdout()
			if err := node.Check(cmd.Context()); err != nil {
				return fmt.Errorf("existing container does not match config: %w", err)
			}
			fmt.Fprintln(out, "Starting DefraDB...")
			if err := node.Start(cmd.Context()); err != nil {
				return fmt.Errorf("failed to start DefraDB: %w", err)
			}
			fmt.Fprintf(out, "DefraDB is running at %s\n", node.URL())
			return nil
		})
	},
}

var defraStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the DefraDB container",
	Long: `Stop the DefraDB container.

This stops the container but preserves data. Use 'kitab defra start'
to restart it later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(node *defra.Container) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Stopping DefraDB...")
			if err := node.Stop(cmd.Context()); err != nil {
				return fmt.Errorf("failed to stop DefraDB: %w", err)
			}
			fmt.Fprintln(out, "DefraDB stopped")
			return nil
		})
	},
}

var defraStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show DefraDB container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(node *defra.Container) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			status, err := node.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			switch status {
			case defra.StatusRunning:
				fmt.Fprintf(out, "Status: %s\n", status)
				fmt.Fprintf(out, "Container: %s\n", node.Name())
				fmt.Fprintf(out, "URL: %s\n", node.URL())
				if err := defra.NewClient(node.URL()).HealthCheck(ctx); err != nil {
					fmt.Fprintf(out, "Health: unhealthy (%v)\n", err)
				} else {
					fmt.Fprintln(out, "Health: healthy")
				}
			case defra.StatusStopped:
				fmt.Fprintf(out, "Status: %s (use 'kitab defra start' to start)\n", status)
			case defra.StatusMissing:
				fmt.Fprintf(out, "Status: %s (use 'kitab defra start' to create)\n", status)
			default:
				fmt.Fprintf(out, "Status: %s\n", status)
			}
			return nil
		})
	},
}

var defraLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show DefraDB container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		tail, _ := cmd.Flags().GetString("tail")
		return withContainer(cmd, func(node *defra.Container) error {
			logs, err := node.Logs(cmd.Context(), tail)
			if err != nil {
				return fmt.Errorf("failed to get logs: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), logs)
			return nil
		})
	},
}

var defraRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the DefraDB container",
	Long: `Remove the DefraDB container.

This stops and removes the container. Data in ~/.kitab/defradb/
is NOT deleted - only the container is removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(node *defra.Container) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Removing DefraDB container...")
			if err := node.Remove(cmd.Context()); err != nil {
				return fmt.Errorf("failed to remove container: %w", err)
			}
			fmt.Fprintln(out, "DefraDB container removed (data preserved)")
			return nil
		})
	},
}

var defraWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for DefraDB to be ready",
	Long: `Wait for DefraDB to be ready to accept connections.

This is useful in scripts to ensure DefraDB is fully started
before running other commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		return withContainer(cmd, func(node *defra.Container) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Waiting for DefraDB (timeout: %s)...\n", timeout)
			if err := node.WaitReady(cmd.Context(), timeout); err != nil {
				return fmt.Errorf("DefraDB not ready: %w", err)
			}
			fmt.Fprintln(out, "DefraDB is ready")
			return nil
		})
	},
}

func init() {
	defraCmd.AddCommand(defraStartCmd)
	defraCmd.AddCommand(defraStopCmd)
	defraCmd.AddCommand(defraStatusCmd)
	defraCmd.AddCommand(defraLogsCmd)
	defraCmd.AddCommand(defraRemoveCmd)
	defraCmd.AddCommand(defraWaitCmd)

	defraLogsCmd.Flags().String("tail", "100", "Number of lines to show from the end")
	defraWaitCmd.Flags().Duration("timeout", 30*time.Second, "Timeout waiting for DefraDB")

	rootCmd.AddCommand(defraCmd)
}
