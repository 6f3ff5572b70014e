package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	for _, tt := range []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInference, "inference_error"},
		{fmt.Errorf("groq: %w", ErrInference), "inference_error"},
		{fmt.Errorf("paste: %w", fmt.Errorf("cmd+v: %w", ErrPermissionDenied)), "permission_denied"},
		{errors.Join(context.DeadlineExceeded, ErrInference), "inference_error"},
		{errors.New("boom"), "unknown"},
	} {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
