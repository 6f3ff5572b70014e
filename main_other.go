//go:build !linux

package main

import (
	"os"
	"slices"

	"golang.design/x/hotkey/mainthread"
)

func main() {
	// The window surface runs the platform event loop itself and must
	// keep the main thread.
	if guiBuild && slices.Contains(os.Args[1:], "--gui") {
		os.Exit(execute(os.Args[1:]))
	}
	code := 0
	mainthread.Init(func() { code = execute(os.Args[1:]) })
	os.Exit(code)
}
