package debug

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devbook-dev/devbook/internal/session"
)

var (
	nodeKey = session.Key{Env: "nodejs", Port: 3000}
	goKey   = session.Key{Env: "go", Debug: true}
)

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return t0 }
}

// twoSessions logs a configure, a command and an error for nodejs, then the
// same kinds for go.
func twoSessions() Model {
	m := New()
	m.now = fixedClock()

	m.Current, m.Revision = nodeKey, 1
	m.Add(KindConfig, "configured %s", nodeKey.Env)
	m.Revision = 4
	m.Add(KindCommand, "npm test")

	m.Current, m.Revision = goKey, 7
	m.Add(KindConfig, "configured %s", goKey.Env)
	m.Add(KindError, "connect refused")
	m.Add(KindState, "connecting")
	return m
}

func TestAddTagsSession(t *testing.T) {
	m := twoSessions()
	entries := m.Visible()
	require.Len(t, entries, 5)

	assert.Equal(t, nodeKey, entries[1].Session)
	assert.Equal(t, uint64(4), entries[1].Revision)
	assert.Equal(t, "npm test", entries[1].Message)
	assert.Equal(t, goKey, entries[3].Session)
	assert.Equal(t, "configured go", entries[2].Message)
}

func TestCapKeepsNewest(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+50; i++ {
		m.Add(KindCommand, "cmd-%d", i)
	}
	require.Equal(t, maxEntries, m.Len())
	v := m.Visible()
	assert.Equal(t, "cmd-50", v[0].Message)
	assert.Equal(t, fmt.Sprintf("cmd-%d", maxEntries+49), v[len(v)-1].Message)
}

func TestFilterByKind(t *testing.T) {
	m := twoSessions()

	tests := []struct {
		filter Kind
		want   int
	}{
		{KindState, 1},
		{KindConfig, 2},
		{KindCommand, 1},
		{KindError, 1},
		{KindAll, 5},
	}
	for _, tt := range tests {
		m.CycleFilter()
		assert.Equal(t, tt.filter, m.filter)
		assert.Len(t, m.Visible(), tt.want, tt.filter.String())
	}
}

func TestCurrentOnly(t *testing.T) {
	m := twoSessions()
	m.ToggleCurrentOnly()
	for _, e := range m.Visible() {
		assert.Equal(t, goKey, e.Session)
	}
	assert.Len(t, m.Visible(), 3)

	m.Current = nodeKey
	assert.Len(t, m.Visible(), 2)

	m.CycleFilter() // state
	m.CycleFilter() // cfg
	assert.Len(t, m.Visible(), 1, "kind and scope filters combine")

	m.ToggleCurrentOnly()
	assert.Len(t, m.Visible(), 2)
}

func TestScrollBoundsFollowFilter(t *testing.T) {
	m := twoSessions()
	m.ScrollUp(100)
	assert.Equal(t, 4, m.offset)

	m.CycleFilter() // state: one entry
	assert.Equal(t, 0, m.offset, "changing the filter resets scroll")
	m.ScrollUp(3)
	assert.Equal(t, 0, m.offset)

	m.CycleFilter()
	m.CycleFilter()
	m.CycleFilter()
	m.CycleFilter() // all
	m.ScrollUp(2)
	m.ScrollDown(5)
	assert.Equal(t, 0, m.offset)

	m.ScrollUp(2)
	m.Add(KindState, "connected")
	assert.Equal(t, 0, m.offset, "new entries jump back to the bottom")
}

func TestSessionLabel(t *testing.T) {
	assert.Equal(t, "nodejs:3000", SessionLabel(nodeKey))
	assert.Equal(t, "go+debug", SessionLabel(goKey))
	assert.Equal(t, "-", SessionLabel(session.Key{}))
}

func TestView(t *testing.T) {
	m := twoSessions()
	v := m.View(100, 30)
	for _, want := range []string{"npm test", "nodejs:3000#4", "go+debug#7", "1 cmd  1 err  5 total", "kind:all", "scope:all sessions"} {
		assert.Contains(t, v, want)
	}

	m.ToggleCurrentOnly()
	m.CycleFilter()
	m.CycleFilter() // cfg
	v = m.View(100, 30)
	assert.Contains(t, v, "scope:go+debug")
	assert.Contains(t, v, "kind:cfg")
	assert.NotContains(t, v, "npm test")
}

func TestViewEmpty(t *testing.T) {
	m := New()
	v := m.View(80, 20)
	assert.True(t, strings.Contains(v, "No matching events"))
}
