package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"sayit/apperr"
	"sayit/preflight"
)

var version = "dev"

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// The indicator window and, on macOS, the hotkey backend need the process
// main thread.
func init() {
	runtime.LockOSThread()
}

type globalFlags struct {
	configPath string
	logPath    string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "sayit",
		Short:         "Hold a key, speak, and paste the transcript at the cursor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default ~/.config/sayit/config.toml)")
	root.PersistentFlags().StringVar(&g.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")

	root.AddCommand(
		newStartCmd(g),
		newStopCmd(g),
		newStatusCmd(g),
		newRunCmd(g),
		newConfigCmd(g),
		newDevicesCmd(g),
		newAutostartCmd(g),
		newCheckCmd(g),
		newVersionCmd(),
	)
	return root
}

func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", failStyle.Render("Error:"), err)
	if hint := preflight.Hint(err); hint != "" {
		fmt.Fprintln(os.Stderr, dimStyle.Render("hint: "+hint))
	}
	return exitCode(err)
}

// exitCode keeps lifecycle and configuration failures distinguishable
// for scripts.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, apperr.ErrConfigInvalid):
		return 2
	case errors.Is(err, apperr.ErrAlreadyRunning), errors.Is(err, apperr.ErrNotRunning):
		return 3
	case errors.Is(err, apperr.ErrPermissionDenied):
		return 4
	}
	return 1
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sayit %s\n", version)
		},
	}
}
