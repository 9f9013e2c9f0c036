// Package client provides the websocket session client and the REST
// filesystem handle for devbook environments. Types mirror the environment
// wire protocol.
package client

import (
	"encoding/json"

	"github.com/devbook-dev/devbook/internal/session"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	// Server to client.
	MsgStatus MessageType = "status"
	MsgStdout MessageType = "stdout"
	MsgStderr MessageType = "stderr"
	MsgURL    MessageType = "url"
	MsgError  MessageType = "error"

	// Client to server.
	MsgAuth MessageType = "auth"
	MsgRun  MessageType = "run"
)

// WSMessage is the envelope for all WebSocket messages.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// StatusPayload reports the environment's view of the session.
type StatusPayload struct {
	Status session.Status `json:"status"`
}

// OutputPayload carries one line of command output.
type OutputPayload struct {
	Line string `json:"line"`
}

// URLPayload announces the host under which environment ports are exposed.
type URLPayload struct {
	Host string `json:"host"`
}

// ErrorPayload wraps a server-side error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// AuthPayload is the first frame sent when a token is configured.
type AuthPayload struct {
	Token string `json:"token"`
}

// RunPayload asks the environment to run a command.
type RunPayload struct {
	ID      string `json:"id"`
	Command string `json:"command"`
}

// FileEntry is one item returned by a directory listing.
type FileEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDir"`
	Size  int64  `json:"size"`
}
