package indicator

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sayit/mainloop"
)

type runMsg func()
type tickMsg time.Time

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	recordingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF3B30"))
	processingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF9500"))
	errorStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
	textStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).PaddingLeft(2)
)

var spinner = []string{"◐", "◓", "◑", "◒"}

// Terminal is a bubbletea Surface for foreground runs. Scheduled callbacks
// execute inside the program's Update, so they share its goroutine with View.
type Terminal struct {
	program *tea.Program
	pump    *mainloop.Loop
	model   *termModel
}

type termModel struct {
	hotkey      string
	onInterrupt func()

	state    State
	since    time.Time
	frame    int
	width    int
	lastText string
	lastErr  string
}

// NewTerminal builds the surface. onInterrupt runs on its own goroutine
// when the user presses ctrl+c or q; it is expected to shut down and Quit.
func NewTerminal(hotkeyName string, onInterrupt func()) *Terminal {
	m := &termModel{hotkey: hotkeyName, onInterrupt: onInterrupt, since: time.Now()}
	return &Terminal{
		program: tea.NewProgram(m, tea.WithAltScreen()),
		pump:    mainloop.New(),
		model:   m,
	}
}

// Schedule forwards fn through a pump goroutine so callers never wait on
// the program's unbuffered message channel.
func (t *Terminal) Schedule(fn func()) {
	t.pump.Schedule(func() { t.program.Send(runMsg(fn)) })
}

func (t *Terminal) Apply(s State) {
	t.model.state = s
	t.model.since = time.Now()
	if s != Error {
		t.model.lastErr = ""
	}
}

// ShowResult displays the latest transcript or failure. Must run on the
// surface thread.
func (t *Terminal) ShowResult(text string, err error) {
	if err != nil {
		t.model.lastErr = err.Error()
		return
	}
	if text != "" {
		t.model.lastText = text
	}
}

func (t *Terminal) Run(ready func()) error {
	go t.pump.Run()
	go ready()
	_, err := t.program.Run()
	return err
}

func (t *Terminal) Quit() {
	t.program.Quit()
	t.pump.Quit()
}

func termTick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *termModel) Init() tea.Cmd {
	return termTick()
}

func (m *termModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runMsg:
		msg()

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.onInterrupt == nil {
				return m, tea.Quit
			}
			go m.onInterrupt()
		}

	case tickMsg:
		m.frame++
		return m, termTick()
	}
	return m, nil
}

func (m *termModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("sayit"))
	b.WriteString(dimStyle.Render("  hold " + m.hotkey + " to dictate, q to quit"))
	b.WriteString("\n\n  ")

	elapsed := time.Since(m.since).Seconds()
	switch m.state {
	case Recording:
		dot := "●"
		if m.frame%8 >= 4 {
			dot = "○"
		}
		b.WriteString(recordingStyle.Render(fmt.Sprintf("%s REC %.1fs", dot, elapsed)))
	case Processing:
		b.WriteString(processingStyle.Render(spinner[m.frame%len(spinner)] + " transcribing"))
	case Error:
		b.WriteString(errorStyle.Render("✕ error"))
		if m.lastErr != "" {
			b.WriteString(dimStyle.Render("  " + m.lastErr))
		}
	default:
		b.WriteString(dimStyle.Render("○ ready"))
	}
	b.WriteString("\n\n")

	if m.lastText != "" {
		width := m.width - 4
		if width < 20 {
			width = 76
		}
		for _, line := range wrapText(m.lastText, width) {
			b.WriteString(textStyle.Render(line))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// wrapText breaks on spaces where possible, counting runes so CJK text is
// never split mid-character.
func wrapText(text string, width int) []string {
	if text == "" {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	runes := []rune(text)
	for len(runes) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(runes[:splitAt]))
		runes = []rune(strings.TrimLeft(string(runes[splitAt:]), " "))
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}
