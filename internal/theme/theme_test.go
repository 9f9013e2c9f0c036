package theme

import "testing"

func TestStatusColor(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"connected", string(ColorConnected)},
		{"connecting", string(ColorConnecting)},
		{"disconnected", string(ColorDisconnected)},
		{"bogus", string(ColorDefault)},
	}
	for _, tt := range tests {
		if got := string(StatusColor(tt.status)); got != tt.want {
			t.Errorf("StatusColor(%q) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestStatusGlyphDistinct(t *testing.T) {
	seen := map[string]string{}
	for _, s := range []string{"connected", "connecting", "disconnected"} {
		g := StatusGlyph(s)
		if prev, ok := seen[g]; ok {
			t.Errorf("%s and %s share glyph %q", prev, s, g)
		}
		seen[g] = s
	}
}
