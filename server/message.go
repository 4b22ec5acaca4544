package server

import (
	"encoding/json"
)

// Message types exchanged over the live editing WebSocket.
const (
	MsgJoin    = "join"
	MsgLeave   = "leave"
	MsgContent = "content"
	MsgAck     = "ack"
	MsgPreview = "preview"
	MsgDoc     = "doc"
	MsgError   = "error"
)

// ClientMessage is a message from an editor to the server. Content
// carries the whole serialized document; Revision is the revision it
// was edited from.
type ClientMessage struct {
	Type     string `json:"type"`
	WorkID   string `json:"workId,omitempty"`
	Revision int    `json:"revision"`
	Content  string `json:"content,omitempty"`
}

// ServerMessage is a message from the server to an editor.
type ServerMessage struct {
	Type     string       `json:"type"`
	WorkID   string       `json:"workId,omitempty"`
	Content  string       `json:"content,omitempty"`
	Revision int          `json:"revision"`
	HTML     string       `json:"html,omitempty"`
	ClientID string       `json:"clientId,omitempty"`
	Name     string       `json:"name,omitempty"`
	Color    string       `json:"color,omitempty"`
	Message  string       `json:"message,omitempty"`
	Clients  []ClientInfo `json:"clients,omitempty"`
}

// ClientInfo describes a connected editor.
type ClientInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Encode serializes a ServerMessage to JSON bytes.
func (m ServerMessage) Encode() []byte {
	b, _ := json.Marshal(m)
	return b
}
