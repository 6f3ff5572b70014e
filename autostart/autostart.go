// Package autostart installs a per-user login item that runs the daemon
// in the foreground under launchd.
package autostart

import (
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
)

const Label = "com.sayit.agent"

var ErrUnsupported = errors.New("autostart is only supported on macOS")

func plistPath() string {
	return filepath.Join(os.Getenv("HOME"), "Library", "LaunchAgents", Label+".plist")
}

// Enabled reports whether the login item is installed.
func Enabled() bool {
	_, err := os.Stat(plistPath())
	return err == nil
}

// plist runs `exe run`. launchd gives agents a bare environment, so PATH
// is carried over for engines that shell out. API keys are read from the
// env file next to the config, never embedded here.
func plist(exe, logDir string) string {
	args := []string{exe, "run"}
	if logDir != "" {
		args = append(args, "--logpath", logDir)
	}
	var argXML strings.Builder
	for _, a := range args {
		fmt.Fprintf(&argXML, "\t\t<string>%s</string>\n", html.EscapeString(a))
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>%s</string>
	<key>ProgramArguments</key>
	<array>
%s	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>LimitLoadToSessionType</key>
	<string>Aqua</string>
	<key>EnvironmentVariables</key>
	<dict>
		<key>PATH</key>
		<string>%s</string>
	</dict>
</dict>
</plist>
`, Label, argXML.String(), html.EscapeString(os.Getenv("PATH")))
}
