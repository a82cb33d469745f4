package ws

import "time"

// MessageType discriminates WebSocket messages. Bus events are forwarded
// with their topic as the type.
type MessageType string

const (
	MessageHello         MessageType = "hello"
	MessageConfigSaved   MessageType = "config.saved"
	MessageConfigRestore MessageType = "config.restored"
	MessageConfigChanged MessageType = "config.changed"
	MessageBackupDeleted MessageType = "config.backup_deleted"
	MessageThemeReloaded MessageType = "theme.reloaded"
	MessageThemeChanged  MessageType = "enhancer.theme_changed"
	MessageEnhancerReady MessageType = "enhancer.initialized"
)

// Message is the envelope for all WebSocket messages. Seq increases by one
// for every forwarded event, so a gap tells the page it missed some.
type Message struct {
	Type      MessageType `json:"type"`
	Seq       uint64      `json:"seq,omitempty"`
	EventID   string      `json:"event_id,omitempty"`
	Source    string      `json:"source,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data,omitempty"`
}

// HelloData opens every stream. Topics lists what this connection will
// receive; Seq is the last event sequence at connect time, to pass back as
// ?since= when reconnecting. State is the snapshot supplied by the server,
// typically the enhancer status.
type HelloData struct {
	Version string   `json:"version"`
	Topics  []string `json:"topics"`
	Seq     uint64   `json:"seq"`
	Missed  int      `json:"missed,omitempty"`
	State   any      `json:"state,omitempty"`
}
