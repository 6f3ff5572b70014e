package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sayit/config"
	"sayit/daemon"
	"sayit/log"
)

func newManager(g *globalFlags) (*daemon.Manager, error) {
	pidPath, err := config.PIDPath()
	if err != nil {
		return nil, fmt.Errorf("resolve pid path: %w", err)
	}
	args := []string{"run"}
	if g.configPath != "" {
		args = append(args, "--config", g.configPath)
	}
	if g.logPath != "" {
		args = append(args, "--logpath", g.logPath)
	}
	if guiBuild {
		args = append(args, "--gui")
	}
	return daemon.NewManager(pidPath, args...), nil
}

func newStartCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the background daemon",
		Long: `Start the background daemon and wait until it is listening for the hotkey.

Startup checks run in the daemon before it reports ready, so a failing
check makes start fail; details go to diagnostics_log.txt.

The floating indicator needs a binary built with -tags gui. Without it
the daemon runs headless and only sound cues mark recording.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Fail here rather than in a detached child nobody watches.
			if _, err := loadConfig(g.configPath); err != nil {
				return err
			}
			if err := setupLogDir(g.logPath); err != nil {
				return err
			}
			m, err := newManager(g)
			if err != nil {
				return err
			}
			res, err := m.Start()
			if err != nil {
				return err
			}
			if err := res.Err(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (pid %d)\n", okStyle.Render("started"), res.PID)
			return nil
		},
	}
}

func newStopCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newManager(g)
			if err != nil {
				return err
			}
			res, err := m.Stop()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Outcome == daemon.NotRunning {
				fmt.Fprintln(out, dimStyle.Render("not running"))
				return nil
			}
			msg := "stopped"
			if res.Outcome == daemon.Killed {
				msg = "killed after timeout"
			}
			fmt.Fprintf(out, "%s (pid %d)\n", okStyle.Render(msg), res.PID)
			return nil
		},
	}
}

func newStatusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the daemon is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newManager(g)
			if err != nil {
				return err
			}
			res, err := m.Status()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Outcome == daemon.Running {
				fmt.Fprintf(out, "%s (pid %d)\n", okStyle.Render("running"), res.PID)
				return nil
			}
			fmt.Fprintln(out, dimStyle.Render("not running"))
			if res.Stale {
				fmt.Fprintf(out, "%s\n", dimStyle.Render(fmt.Sprintf("removed stale pid record (%d)", res.PID)))
			}
			return nil
		},
	}
}

// setupLogDir resolves and creates the log directory without opening the
// log files.
func setupLogDir(flagPath string) error {
	dir, err := log.ResolveDir(flagPath)
	if err != nil {
		return fmt.Errorf("failed to resolve log directory: %w", err)
	}
	log.SetDir(dir)
	return log.EnsureDir()
}
