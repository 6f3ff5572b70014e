//go:build gui

package indicator

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"github.com/go-gl/glfw/v3.3/glfw"

	"sayit/mainloop"
)

const (
	windowSize   = 60
	windowMargin = 20
	menuBarGap   = 40
)

var (
	colorRecording  = color.RGBA{0xFF, 0x3B, 0x30, 0xFF}
	colorProcessing = color.RGBA{0xFF, 0x95, 0x00, 0xFF}
	colorError      = color.RGBA{0xFF, 0xCC, 0x00, 0xFF}
)

// Window is the floating always-on-top indicator. It owns the process main
// thread while running.
type Window struct {
	fyneApp fyne.App
	window  fyne.Window
	dot     *canvas.Circle
	glyph   *canvas.Text
	pump    *mainloop.Loop
	onQuit  func()
	posX    int
	posY    int
}

// NewWindow builds the surface; onQuit runs on its own goroutine when the
// tray Quit item is chosen.
func NewWindow(onQuit func()) (*Window, error) {
	return &Window{pump: mainloop.New(), onQuit: onQuit}, nil
}

// Schedule queues fn until the fyne app exists, then hands it to fyne.Do,
// which never blocks.
func (w *Window) Schedule(fn func()) {
	w.pump.Schedule(func() { fyne.Do(fn) })
}

func (w *Window) Run(ready func()) error {
	w.fyneApp = app.NewWithID("io.sayit.indicator")
	w.fyneApp.Settings().SetTheme(newOverlayTheme())

	if desk, ok := w.fyneApp.(desktop.App); ok {
		menu := fyne.NewMenu("sayit",
			fyne.NewMenuItem("Quit", func() {
				if w.onQuit != nil {
					go w.onQuit()
					return
				}
				w.fyneApp.Quit()
			}),
		)
		desk.SetSystemTrayMenu(menu)
		desk.SetSystemTrayIcon(theme.MediaRecordIcon())
	}

	var screenW int
	if monitor := glfw.GetPrimaryMonitor(); monitor != nil {
		_, _, screenW, _ = monitor.GetWorkarea()
	} else {
		screenW = 1440
	}
	w.posX = screenW - windowSize - windowMargin
	w.posY = menuBarGap

	if drv, ok := w.fyneApp.Driver().(desktop.Driver); ok {
		w.window = drv.CreateSplashWindow()
	} else {
		w.window = w.fyneApp.NewWindow("sayit")
	}

	w.dot = canvas.NewCircle(colorRecording)
	w.dot.StrokeColor = color.White
	w.dot.StrokeWidth = 2
	w.glyph = canvas.NewText("●", color.White)
	w.glyph.TextSize = 18
	w.glyph.Alignment = fyne.TextAlignCenter

	w.window.SetContent(container.NewStack(w.dot, container.NewCenter(w.glyph)))
	w.window.SetFixedSize(true)
	w.window.SetPadded(false)
	w.window.Resize(fyne.NewSize(windowSize, windowSize))

	go w.pump.Run()
	go ready()

	// stays hidden until the first Recording state
	w.fyneApp.Run()
	return nil
}

func (w *Window) Quit() {
	w.pump.Quit()
	if w.fyneApp != nil {
		fyne.Do(w.fyneApp.Quit)
	}
}

func (w *Window) Apply(s State) {
	if w.window == nil {
		return
	}
	switch s {
	case Hidden:
		w.window.Hide()
		return
	case Recording:
		w.dot.FillColor = colorRecording
		w.glyph.Text = "●"
	case Processing:
		w.dot.FillColor = colorProcessing
		w.glyph.Text = "…"
	case Error:
		w.dot.FillColor = colorError
		w.glyph.Text = "!"
	}
	w.dot.Refresh()
	w.glyph.Refresh()
	w.show()
}

// show raises the window without stealing focus from the text field the
// paste will land in.
func (w *Window) show() {
	if glfwWin := glfw.GetCurrentContext(); glfwWin != nil {
		glfwWin.SetPos(w.posX, w.posY)
		glfwWin.SetAttrib(glfw.FocusOnShow, glfw.False)
		glfwWin.SetAttrib(glfw.Floating, glfw.True)
		glfwWin.Show()
		return
	}
	w.window.Show()
}
