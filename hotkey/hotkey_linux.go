//go:build linux

package hotkey

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"sayit/apperr"
)

// DefaultKey is the right Alt key, which is rarely bound to anything.
const DefaultKey = "alt_r"

const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0
)

// input_event is 24 bytes on 64-bit Linux:
// timeval (16 bytes) + type (2) + code (2) + value (4)
const inputEventSize = 24

type evdevHotkey struct {
	key     Key
	keydown chan struct{}
	keyup   chan struct{}
	files   []*os.File
	stop    chan struct{}
	once    sync.Once

	// held is shared by every device
	mu   sync.Mutex
	held heldKeys
}

func supported(Key) error { return nil }

// New watches every keyboard under /dev/input for key. Reading is
// passive, so typing is never swallowed. The user must be in the
// 'input' group.
func New(key Key) (Hotkey, error) {
	return &evdevHotkey{
		key:     key,
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}, nil
}

func (h *evdevHotkey) Register() error {
	keyboards, err := findKeyboards(h.key)
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return fmt.Errorf("%w: no keyboard devices found (is user in 'input' group?)", apperr.ErrPermissionDenied)
	}

	h.stop = make(chan struct{})

	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f)
	}

	if len(h.files) == 0 {
		return fmt.Errorf("%w: could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)",
			apperr.ErrPermissionDenied)
	}
	return nil
}

func (h *evdevHotkey) readEvents(f *os.File) {
	buf := make([]byte, inputEventSize*16)

	for {
		n, err := f.Read(buf)
		if err != nil {
			// Unregister closes the file to unblock the read
			return
		}
		decodeEvents(buf[:n], func(code uint16, value int32) {
			if !h.key.matches(code) {
				return
			}
			h.mu.Lock()
			e := h.held.update(code, value)
			h.mu.Unlock()
			switch e {
			case edgeDown:
				h.send(h.keydown)
			case edgeUp:
				h.send(h.keyup)
			}
		})
	}
}

type edge int

const (
	edgeNone edge = iota
	edgeDown
	edgeUp
)

// heldKeys tracks which of a key's codes are down, so "alt" stays pressed
// until both alt keys are released.
type heldKeys []uint16

// update applies one EV_KEY value (2 is autorepeat and changes nothing).
func (h *heldKeys) update(code uint16, value int32) edge {
	i := slices.Index(*h, code)
	switch {
	case value == keyPress && i < 0:
		*h = append(*h, code)
		if len(*h) == 1 {
			return edgeDown
		}
	case value == keyRelease && i >= 0:
		*h = slices.Delete(*h, i, i+1)
		if len(*h) == 0 {
			return edgeUp
		}
	}
	return edgeNone
}

// decodeEvents calls fn for every EV_KEY event in buf. A trailing partial
// event is ignored.
func decodeEvents(buf []byte, fn func(code uint16, value int32)) {
	for i := 0; i+inputEventSize <= len(buf); i += inputEventSize {
		if binary.LittleEndian.Uint16(buf[i+16:]) != evKey {
			continue
		}
		fn(binary.LittleEndian.Uint16(buf[i+18:]), int32(binary.LittleEndian.Uint32(buf[i+20:])))
	}
}

func (h *evdevHotkey) send(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	case <-h.stop:
	}
}

func (h *evdevHotkey) Unregister() {
	h.once.Do(func() {
		if h.stop != nil {
			close(h.stop)
		}
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *evdevHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *evdevHotkey) Keyup() <-chan struct{} {
	return h.keyup
}

// findKeyboards lists the event devices that can emit key.
func findKeyboards(key Key) ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}

	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		capsPath := filepath.Join("/sys/class/input", e.Name(), "device", "capabilities", "key")
		data, err := os.ReadFile(capsPath)
		if err != nil {
			continue
		}
		if slices.ContainsFunc(key.evdev, func(code uint16) bool { return capsHas(string(data), code) }) {
			keyboards = append(keyboards, filepath.Join("/dev/input", e.Name()))
		}
	}
	return keyboards, nil
}

// capsHas reports whether bit code is set in a sysfs capability bitmap:
// space-separated hex words, most significant first, 64 bits each.
func capsHas(caps string, code uint16) bool {
	words := strings.Fields(caps)
	idx := len(words) - 1 - int(code/64)
	if idx < 0 {
		return false
	}
	w, err := strconv.ParseUint(words[idx], 16, 64)
	if err != nil {
		return false
	}
	return w&(1<<(code%64)) != 0
}

// Diagnose checks that at least one keyboard with key can be opened.
func Diagnose(key Key) (string, error) {
	keyboards, err := findKeyboards(key)
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", fmt.Errorf("%w: no keyboard devices found (is user in 'input' group?)", apperr.ErrPermissionDenied)
	}

	var opened string
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			opened = path
			break
		}
	}
	if opened == "" {
		return "", fmt.Errorf("%w: found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)",
			apperr.ErrPermissionDenied, len(keyboards))
	}
	return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), opened), nil
}
