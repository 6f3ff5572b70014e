package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sayit/audio"
	"sayit/autostart"
	"sayit/clipboard"
	"sayit/config"
	"sayit/preflight"
)

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.Path(g.configPath)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			text, err := config.Encode(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, dimStyle.Render("# "+path))
			fmt.Fprint(out, text)
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.Path(g.configPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Render("wrote"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

func newDevicesCmd(g *globalFlags) *cobra.Command {
	var sel bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Long:  "List capture devices. Names can be used as `device` in the config file; --select picks one interactively and saves it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := audio.NewContext()
			if err != nil {
				return fmt.Errorf("initializing audio: %w", err)
			}
			defer ctx.Close()

			if sel {
				return selectDevice(ctx, g.configPath, cmd)
			}

			devices, err := ctx.Devices()
			if err != nil {
				return fmt.Errorf("enumerating devices: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, dimStyle.Render("no capture devices found"))
				return nil
			}
			for _, d := range devices {
				line := d.Name
				if audio.IsBluetooth(d.Name) {
					line += dimStyle.Render("  (bluetooth: lower audio quality)")
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&sel, "select", false, "pick a device and save it to the config file")
	return cmd
}

func selectDevice(ctx audio.Context, flagPath string, cmd *cobra.Command) error {
	dev, err := audio.SelectDevice(ctx)
	if errors.Is(err, audio.ErrSelectionAborted) {
		return nil
	}
	if err != nil {
		return err
	}
	path, err := config.Path(flagPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg.Device = dev.Name
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (restart the daemon to apply)\n", okStyle.Render("using"), dev.Name)
	return nil
}

func newAutostartCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Manage starting sayit at login (macOS)",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "on",
			Short: "Run the daemon at login",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := autostart.Enable(g.logPath); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("autostart enabled"))
				return nil
			},
		},
		&cobra.Command{
			Use:   "off",
			Short: "Stop running the daemon at login",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := autostart.Disable(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "autostart disabled")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report whether autostart is installed",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				if autostart.Enabled() {
					fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("enabled"))
					return
				}
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("disabled"))
			},
		},
	)
	return cmd
}

func newCheckCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the startup checks without starting the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g.configPath)
			if err != nil {
				return err
			}
			ctx, err := audio.NewContext()
			if err != nil {
				ctx = nil
			} else {
				defer ctx.Close()
			}
			checks := standardChecks(cfg, ctx)
			if _, err := preflight.Run(checks, cmd.OutOrStdout()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("all checks passed"))
			return nil
		},
	}
}

func standardChecks(cfg config.Config, ctx audio.Context) []preflight.Check {
	return preflight.Standard(preflight.Options{
		Hotkey: cfg.Hotkey,
		Device: cfg.Device,
		Audio:  ctx,
		Clipboard: func() error {
			_, err := clipboard.Read()
			return err
		},
		Paste: clipboard.Verify,
	})
}
