// Package apperr defines the error kinds shared across sayit components.
package apperr

import "errors"

var (
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrModelUnavailable  = errors.New("model unavailable")
	ErrInference         = errors.New("inference error")
	ErrInjectionFailed   = errors.New("injection failed")
	ErrConfigInvalid     = errors.New("config invalid")

	ErrAlreadyRunning = errors.New("already running")
	ErrNotRunning     = errors.New("not running")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrDeviceUnavailable, "device_unavailable"},
	{ErrPermissionDenied, "permission_denied"},
	{ErrModelUnavailable, "model_unavailable"},
	{ErrInference, "inference_error"},
	{ErrInjectionFailed, "injection_failed"},
	{ErrConfigInvalid, "config_invalid"},
	{ErrAlreadyRunning, "already_running"},
	{ErrNotRunning, "not_running"},
}

// Kind returns a stable label for err suitable for log fields.
// Errors outside the taxonomy report "unknown"; nil reports "".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "unknown"
}
