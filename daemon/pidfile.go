package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sayit/apperr"
)

// ReadPID returns the PID stored at path. A missing file is reported as
// an error satisfying errors.Is(err, os.ErrNotExist).
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed pid record %s: %q", path, data)
	}
	return pid, nil
}

// WritePID records pid at path, replacing it atomically. It refuses with
// apperr.ErrAlreadyRunning if the record names another live process.
func WritePID(path string, pid int) error {
	if old, err := ReadPID(path); err == nil && old != pid && alive(old) {
		return fmt.Errorf("%w (pid %d)", apperr.ErrAlreadyRunning, old)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".sayit-pid-*")
	if err != nil {
		return fmt.Errorf("create pid file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := fmt.Fprintf(tmp, "%d\n", pid); err != nil {
		tmp.Close()
		return fmt.Errorf("write pid file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync pid file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// RemovePID deletes the record if it still holds pid, or unconditionally
// when pid is 0. A missing file is not an error.
func RemovePID(path string, pid int) error {
	if pid != 0 {
		cur, err := ReadPID(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err == nil && cur != pid {
			return nil
		}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
