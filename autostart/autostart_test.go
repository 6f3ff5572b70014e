package autostart

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestPlist(t *testing.T) {
	t.Setenv("PATH", "/usr/bin:/opt/homebrew/bin")
	p := plist("/Applications/Say It/sayit", "/tmp/logs & more")

	for _, want := range []string{
		"<string>" + Label + "</string>",
		"<string>/Applications/Say It/sayit</string>",
		"<string>run</string>",
		"<string>--logpath</string>",
		"<string>/tmp/logs &amp; more</string>",
		"<string>/usr/bin:/opt/homebrew/bin</string>",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("plist missing %q:\n%s", want, p)
		}
	}
	if strings.Contains(p, "API_KEY") {
		t.Error("plist must not carry API keys")
	}
}

func TestPlistWithoutLogDir(t *testing.T) {
	if strings.Contains(plist("/bin/sayit", ""), "--logpath") {
		t.Error("unexpected --logpath")
	}
}

func TestEnabledFollowsPlistPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if Enabled() {
		t.Error("enabled without a plist")
	}
	if filepath.Base(plistPath()) != Label+".plist" {
		t.Errorf("plist path %s", plistPath())
	}
}
