// Package daemon starts, stops and inspects the background sayit process
// through its PID record.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"sayit/apperr"
	"sayit/log"
)

const (
	DefaultStartWait = 5 * time.Second
	DefaultStopWait  = 5 * time.Second
	pollInterval     = 100 * time.Millisecond
)

type Outcome int

const (
	NotRunning Outcome = iota
	Running
	Started
	AlreadyRunning
	Stopped
	Killed
)

func (o Outcome) String() string {
	switch o {
	case NotRunning:
		return "not running"
	case Running:
		return "running"
	case Started:
		return "started"
	case AlreadyRunning:
		return "already running"
	case Stopped:
		return "stopped"
	case Killed:
		return "force killed"
	}
	return "unknown"
}

type Result struct {
	Outcome Outcome
	PID     int
	// Stale is set when a record for a dead process was cleaned up.
	Stale bool
}

// Err maps results the CLI treats as failures onto the error taxonomy.
// Stopping a daemon that is not running is not a failure.
func (r Result) Err() error {
	if r.Outcome == AlreadyRunning {
		return fmt.Errorf("%w (pid %d)", apperr.ErrAlreadyRunning, r.PID)
	}
	return nil
}

type Manager struct {
	PIDPath string
	// Command builds the detached child; it must write its own PID
	// record at PIDPath once its startup checks pass and it is listening.
	Command   func() (*exec.Cmd, error)
	StartWait time.Duration
	StopWait  time.Duration
}

// NewManager spawns the current executable with args.
func NewManager(pidPath string, args ...string) *Manager {
	return &Manager{
		PIDPath: pidPath,
		Command: func() (*exec.Cmd, error) {
			exe, err := os.Executable()
			if err != nil {
				return nil, fmt.Errorf("resolve executable: %w", err)
			}
			return exec.Command(exe, args...), nil
		},
		StartWait: DefaultStartWait,
		StopWait:  DefaultStopWait,
	}
}

// Status reports whether the recorded process is alive, removing a stale
// record.
func (m *Manager) Status() (Result, error) {
	pid, err := ReadPID(m.PIDPath)
	if errors.Is(err, os.ErrNotExist) {
		return Result{Outcome: NotRunning}, nil
	}
	if err != nil {
		log.Warnf("removing unreadable pid record: %v", err)
		return Result{Outcome: NotRunning, Stale: true}, RemovePID(m.PIDPath, 0)
	}
	if alive(pid) {
		return Result{Outcome: Running, PID: pid}, nil
	}
	log.Infof("removing stale pid record for %d", pid)
	return Result{Outcome: NotRunning, PID: pid, Stale: true}, RemovePID(m.PIDPath, pid)
}

// Start spawns the daemon unless one is alive, then waits for the child
// to publish its PID record.
func (m *Manager) Start() (Result, error) {
	st, err := m.Status()
	if err != nil {
		return Result{}, err
	}
	if st.Outcome == Running {
		return Result{Outcome: AlreadyRunning, PID: st.PID}, nil
	}

	if err := os.MkdirAll(filepath.Dir(m.PIDPath), 0o755); err != nil {
		return Result{}, fmt.Errorf("create pid dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return Result{}, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(m.PIDPath)); err != nil {
		return Result{}, fmt.Errorf("watch %s: %w", filepath.Dir(m.PIDPath), err)
	}

	cmd, err := m.Command()
	if err != nil {
		return Result{}, err
	}
	cmd.SysProcAttr = detached()
	// nil stdio is /dev/null
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("spawn daemon: %w", err)
	}
	child := cmd.Process.Pid

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	ready := func() bool {
		pid, err := ReadPID(m.PIDPath)
		return err == nil && pid == child
	}

	timeout := time.NewTimer(m.StartWait)
	defer timeout.Stop()
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	events, errs := watcher.Events, watcher.Errors
	for {
		if ready() {
			log.Infof("daemon started (pid %d)", child)
			return Result{Outcome: Started, PID: child}, nil
		}
		select {
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warnf("pid watcher: %v", err)
		case <-poll.C:
		case err := <-exited:
			if ready() {
				// wrote its record and exited at once; let Status sort it out
				return Result{Outcome: Started, PID: child}, nil
			}
			if err == nil {
				err = errors.New("exited with status 0")
			}
			return Result{}, fmt.Errorf("daemon exited during startup: %w (see %s)", err, log.Dir())
		case <-timeout.C:
			terminate(child, true)
			return Result{}, fmt.Errorf("daemon did not start within %v (see %s)", m.StartWait, log.Dir())
		}
	}
}

// Stop sends SIGTERM, waits up to StopWait for a clean exit, then kills.
// The record is removed either way.
func (m *Manager) Stop() (Result, error) {
	st, err := m.Status()
	if err != nil {
		return Result{}, err
	}
	if st.Outcome != Running {
		return Result{Outcome: NotRunning, Stale: st.Stale}, nil
	}
	pid := st.PID

	if err := terminate(pid, false); err != nil {
		return Result{}, fmt.Errorf("signal pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(m.StopWait)
	for time.Now().Before(deadline) {
		time.Sleep(pollInterval)
		if !alive(pid) {
			log.Infof("daemon stopped (pid %d)", pid)
			return Result{Outcome: Stopped, PID: pid}, RemovePID(m.PIDPath, pid)
		}
	}

	log.Warnf("daemon %d ignored SIGTERM for %v, killing", pid, m.StopWait)
	if err := terminate(pid, true); err != nil && alive(pid) {
		return Result{}, fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return Result{Outcome: Killed, PID: pid}, RemovePID(m.PIDPath, pid)
}
