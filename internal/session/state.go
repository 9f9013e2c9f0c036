package session

import (
	"encoding/json"
	"fmt"
)

// Status is the connection status a session client reports.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
)

var statusNames = map[Status]string{
	Disconnected: "disconnected",
	Connecting:   "connecting",
	Connected:    "connected",
}

var statusFromName = map[string]Status{
	"disconnected": Disconnected,
	"connecting":   Connecting,
	"connected":    Connected,
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	v, ok := statusFromName[name]
	if !ok {
		return fmt.Errorf("unknown status %q", name)
	}
	*s = v
	return nil
}

// State is the read-only projection of what the live client has reported.
// Stdout and Stderr hold the output of the most recent command only. URL is
// empty until the client resolves one for the configured port.
type State struct {
	Status Status
	Stdout []string
	Stderr []string
	URL    string

	// Revision increases with every mutation. Hosts that receive snapshots
	// out of order keep the one with the highest revision.
	Revision uint64
}

func (s State) clone() State {
	out := s
	out.Stdout = append([]string(nil), s.Stdout...)
	out.Stderr = append([]string(nil), s.Stderr...)
	return out
}

// resetOutput drops everything a previous client or command produced.
func (s *State) resetOutput() {
	s.Stdout = nil
	s.Stderr = nil
}

// idle reports whether s is what a binding without a client shows.
func (s *State) idle() bool {
	return s.Status == Disconnected && len(s.Stdout) == 0 && len(s.Stderr) == 0 && s.URL == ""
}
