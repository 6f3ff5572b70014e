package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var ErrSelectionAborted = errors.New("device selection aborted")

var (
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// SelectDevice presents an interactive picker on the terminal and returns
// the chosen device. With a single device it returns that device without
// prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, fmt.Errorf("no capture devices found")
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	idx, err := pick(os.Stdin, os.Stdout, devices)
	if err != nil {
		return nil, err
	}
	return &devices[idx], nil
}

func renderDevices(w io.Writer, devices []DeviceInfo, cursor int) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Select input device (↑/↓, Enter to confirm):\r\n\r\n")
	for i, d := range devices {
		tag := ""
		if IsBluetooth(d.Name) {
			tag = warnStyle.Render(" [bluetooth: lower audio quality]")
		}
		if i == cursor {
			fmt.Fprintf(w, "  %s%s\r\n", cursorStyle.Render("▶ "+d.Name), tag)
		} else {
			fmt.Fprintf(w, "    %s%s\r\n", d.Name, tag)
		}
	}
}

// pick reads arrow keys (or j/k) from in until Enter. Ctrl+C aborts.
func pick(in io.Reader, out io.Writer, devices []DeviceInfo) (int, error) {
	cursor := 0
	renderDevices(out, devices, cursor)

	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return 0, fmt.Errorf("reading input: %w", err)
		}

		switch {
		case n == 1 && (buf[0] == '\r' || buf[0] == '\n'):
			fmt.Fprint(out, "\r\n")
			return cursor, nil
		case n == 1 && buf[0] == 3: // Ctrl+C
			fmt.Fprint(out, "\r\n")
			return 0, ErrSelectionAborted
		case n == 1 && buf[0] == 'j', n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'B':
			if cursor < len(devices)-1 {
				cursor++
			}
		case n == 1 && buf[0] == 'k', n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'A':
			if cursor > 0 {
				cursor--
			}
		}

		fmt.Fprintf(out, "\x1b[%dA", len(devices)+2)
		renderDevices(out, devices, cursor)
	}
}
