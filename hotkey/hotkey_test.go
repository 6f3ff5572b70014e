package hotkey

import (
	"errors"
	"testing"
	"time"

	"sayit/apperr"
)

func waitEdge(t *testing.T, d *Debounced, want Edge) {
	t.Helper()
	select {
	case got := <-d.Edges():
		if got != want {
			t.Fatalf("got %v, want %v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %v", want)
	}
}

func expectNoEdge(t *testing.T, d *Debounced) {
	t.Helper()
	select {
	case e := <-d.Edges():
		t.Fatalf("unexpected %v", e)
	case <-time.After(30 * time.Millisecond):
	}
}

func newDebounced(t *testing.T) (*FakeHotkey, *Debounced) {
	t.Helper()
	fk := NewFake()
	d := Debounce(fk)
	if err := d.Register(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(d.Unregister)
	return fk, d
}

func TestDebouncePressRelease(t *testing.T) {
	fk, d := newDebounced(t)

	fk.SimKeydown()
	waitEdge(t, d, Press)
	fk.SimKeyup()
	waitEdge(t, d, Release)
}

func TestDebounceDropsRepeat(t *testing.T) {
	fk, d := newDebounced(t)

	fk.SimKeydown()
	waitEdge(t, d, Press)
	for range 3 {
		fk.SimKeydown()
	}
	expectNoEdge(t, d)
	fk.SimKeyup()
	waitEdge(t, d, Release)
}

func TestDebounceDropsStrayRelease(t *testing.T) {
	fk, d := newDebounced(t)

	fk.SimKeyup()
	expectNoEdge(t, d)
	fk.SimKeydown()
	waitEdge(t, d, Press)
}

func TestDebounceMultipleCycles(t *testing.T) {
	fk, d := newDebounced(t)

	for range 3 {
		fk.SimKeydown()
		waitEdge(t, d, Press)
		fk.SimKeyup()
		waitEdge(t, d, Release)
	}
}

func TestDebounceUnregister(t *testing.T) {
	fk, d := newDebounced(t)
	if !fk.Registered() {
		t.Fatal("backend not registered")
	}
	d.Unregister()
	d.Unregister()
	if fk.Registered() {
		t.Error("backend still registered")
	}
}

func TestDebounceRegisterError(t *testing.T) {
	boom := errors.New("no accessibility")
	d := Debounce(NewFake().FailRegister(boom))
	if err := d.Register(); !errors.Is(err, boom) {
		t.Errorf("Register = %v", err)
	}
}

func TestParse(t *testing.T) {
	for _, tt := range []struct {
		name     string
		modifier bool
	}{
		{"alt_r", true},
		{"Option", true},
		{"F5", false},
		{" f12 ", false},
		{"cmd", true},
	} {
		k, err := Parse(tt.name)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.name, err)
			continue
		}
		if k.Modifier != tt.modifier {
			t.Errorf("Parse(%q).Modifier = %v", tt.name, k.Modifier)
		}
	}

	if _, err := Parse("space"); !errors.Is(err, apperr.ErrConfigInvalid) {
		t.Errorf("Parse(space) = %v, want ErrConfigInvalid", err)
	}
}

func TestKeyMatches(t *testing.T) {
	k, _ := Parse("ctrl")
	if !k.matches(29) || !k.matches(97) || k.matches(42) {
		t.Error("ctrl should match both control keys only")
	}
	k, _ = Parse("alt_r")
	if k.matches(56) || !k.matches(100) {
		t.Error("alt_r should match right alt only")
	}
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	if len(names) != len(keys) {
		t.Fatalf("got %d names", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}

func TestDefaultKeySupported(t *testing.T) {
	if err := Check(DefaultKey); err != nil {
		t.Errorf("default key %q: %v", DefaultKey, err)
	}
}
