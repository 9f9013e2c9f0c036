package app

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/devbook-dev/devbook/internal/session"
)

// StateMsg carries the newest session snapshot into Update.
type StateMsg struct {
	State session.State
}

// Feed coalesces binding notifications so a slow UI only ever sees the
// newest snapshot. Publish never blocks.
type Feed struct {
	mu     sync.Mutex
	latest session.State
	has    bool
	signal chan struct{}
}

func NewFeed() *Feed {
	return &Feed{signal: make(chan struct{}, 1)}
}

// Publish records st unless a newer revision is already pending. It is meant
// to be passed to session.WithNotify.
func (f *Feed) Publish(st session.State) {
	f.mu.Lock()
	if !f.has || st.Revision >= f.latest.Revision {
		f.latest = st
		f.has = true
	}
	f.mu.Unlock()

	select {
	case f.signal <- struct{}{}:
	default:
	}
}

// Wait returns a command that blocks until a snapshot is pending.
func (f *Feed) Wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-f.signal:
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		return StateMsg{State: f.latest}
	}
}
