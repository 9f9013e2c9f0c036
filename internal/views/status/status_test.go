package status

import (
	"errors"
	"strings"
	"testing"

	"github.com/devbook-dev/devbook/internal/session"
)

func TestViewShowsConnection(t *testing.T) {
	m := New()
	m.Width = 100
	m.Env = "nodejs"
	m.Status = session.Connected
	m.Port = 3000
	m.URL = "https://3000-abc.o.usedevbook.app"

	v := m.View()
	for _, want := range []string{"connected", "nodejs", "https://3000-abc.o.usedevbook.app"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
	if strings.Contains(v, "[debug]") {
		t.Error("debug badge shown while debug is off")
	}
}

func TestViewPortStates(t *testing.T) {
	tests := []struct {
		name string
		port int
		url  string
		want string
	}{
		{"no port", 0, "", "no port"},
		{"pending", 8080, "", ":8080 pending"},
		{"resolved", 8080, "https://8080-h", "https://8080-h"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.Width = 100
			m.Port = tt.port
			m.URL = tt.url
			if v := m.View(); !strings.Contains(v, tt.want) {
				t.Errorf("view missing %q:\n%s", tt.want, v)
			}
		})
	}
}

func TestViewDebugAndError(t *testing.T) {
	m := New()
	m.Width = 120
	m.Env = "go"
	m.Debug = true
	m.Err = errors.New("connect to environment \"go\": refused")

	v := m.View()
	if !strings.Contains(v, "[debug]") {
		t.Error("debug badge missing")
	}
	if !strings.Contains(v, "refused") {
		t.Error("error missing from status bar")
	}
	if !strings.Contains(v, "disconnected") {
		t.Error("zero status should render as disconnected")
	}
}
