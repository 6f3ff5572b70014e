package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sayit/apperr"
	"sayit/audio"
	"sayit/beep"
	"sayit/clipboard"
	"sayit/config"
	"sayit/daemon"
	"sayit/hotkey"
	"sayit/indicator"
	"sayit/inject"
	"sayit/log"
	"sayit/preflight"
	"sayit/session"
	"sayit/shutdown"
	"sayit/transcriber"
)

const shutdownGrace = 3 * time.Second

type runOptions struct {
	tui bool
	gui bool
}

func newRunCmd(g *globalFlags) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		Long: "Run the daemon in the foreground. `sayit start` runs this in a detached " +
			"process; use it directly to watch the log or the terminal indicator.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(g, *o)
		},
	}
	cmd.Flags().BoolVar(&o.tui, "tui", false, "show the indicator in the terminal")
	cmd.Flags().BoolVar(&o.gui, "gui", false, "show the floating indicator window (gui builds)")
	cmd.MarkFlagsMutuallyExclusive("tui", "gui")
	return cmd
}

func loadConfig(flagPath string) (config.Config, error) {
	path, err := config.Path(flagPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("resolve config path: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	envPath, err := config.EnvPath()
	if err != nil {
		return cfg, fmt.Errorf("resolve env path: %w", err)
	}
	return cfg, config.LoadEnv(envPath)
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func runDaemon(g *globalFlags, o runOptions) (err error) {
	if err := setupLogDir(g.logPath); err != nil {
		return err
	}
	if !o.tui && term.IsTerminal(int(os.Stderr.Fd())) {
		log.Mirror(os.Stderr)
	}
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()
	// a detached daemon has no stderr; this is the only place the cause shows up
	defer func() {
		if err != nil {
			log.Errorf("daemon: %v", err)
		}
	}()
	initCrashLog()

	cfg, err := loadConfig(g.configPath)
	if err != nil {
		return err
	}

	pidPath, err := config.PIDPath()
	if err != nil {
		return fmt.Errorf("resolve pid path: %w", err)
	}
	pid := os.Getpid()
	// RemovePID leaves records of other processes alone, so this is safe
	// even when the record is never written.
	defer daemon.RemovePID(pidPath, pid)

	audioCtx, err := audio.NewContext()
	if err != nil {
		return fmt.Errorf("%w: audio init: %w", apperr.ErrDeviceUnavailable, err)
	}
	defer audioCtx.Close()

	checks := standardChecks(cfg, audioCtx)
	if _, err := preflight.Run(checks, os.Stderr); err != nil {
		return err
	}

	device, err := audio.FindDevice(audioCtx, cfg.Device)
	if err != nil {
		return err
	}
	engine, err := transcriber.New(cfg.Engine, transcriber.Options{Model: cfg.Model})
	if err != nil {
		return err
	}
	key, err := hotkey.Parse(cfg.Hotkey)
	if err != nil {
		return err
	}
	hk, err := hotkey.New(key)
	if err != nil {
		return err
	}

	sounds := beep.NewPlayer(cfg.SoundsEnabled)
	defer sounds.Close()

	var stop func()
	surface, termSurface, err := newSurface(o, cfg.Hotkey, func() { stop() })
	if err != nil {
		return err
	}

	orch := session.New(session.Deps{
		Scheduler:   surface,
		Recorder:    audio.NewRecorder(audioCtx, device),
		Transcriber: engine,
		Injector:    inject.New(clipboard.System{}, clipboard.System{}, inject.OSFocus{}, cfg.PasteSettle.D()),
		Indicator:   indicator.NewController(surface, cfg.ErrorDisplay.D()),
		Sounds:      sounds,
	}, session.SettingsFrom(cfg))
	if termSurface != nil {
		orch.OnSessionEnd(func(s session.Session) {
			termSurface.ShowResult(s.Text, s.Err)
		})
	}

	stop = sync.OnceFunc(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := orch.Shutdown(ctx); err != nil {
			log.Warnf("shutdown: %v", err)
		}
		surface.Quit()
	})

	defer shutdown.Watch(func(sig os.Signal) {
		log.Infof("received %v", sig)
		stop()
	})()

	// `sayit start` waits for the PID record, so it is published only
	// once every startup step has passed and the hotkey is live.
	listenErr := make(chan error, 1)
	ready := func() {
		if err := orch.Listen(hk); err != nil {
			listenErr <- err
			stop()
			return
		}
		if err := daemon.WritePID(pidPath, pid); err != nil {
			listenErr <- err
			stop()
			return
		}
		log.DaemonStart(cfg.Hotkey, engine.Name(), surfaceName(o))
	}

	runErr := surface.Run(ready)
	log.DaemonStop(orch.Sessions())

	select {
	case err := <-listenErr:
		return errors.Join(err, runErr)
	default:
	}
	return runErr
}

func surfaceName(o runOptions) string {
	switch {
	case o.gui:
		return "window"
	case o.tui:
		return "terminal"
	}
	return "headless"
}

// newSurface picks the indicator. The terminal surface is also returned
// on its own so finished sessions can show their transcript.
func newSurface(o runOptions, hotkeyName string, quit func()) (indicator.Surface, *indicator.Terminal, error) {
	switch {
	case o.gui:
		w, err := indicator.NewWindow(quit)
		if err != nil {
			return nil, nil, err
		}
		return w, nil, nil
	case o.tui:
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return nil, nil, fmt.Errorf("%w: --tui needs a terminal", apperr.ErrConfigInvalid)
		}
		t := indicator.NewTerminal(hotkeyName, quit)
		return t, t, nil
	}
	return indicator.NewHeadless(), nil, nil
}
