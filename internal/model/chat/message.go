package chat

import "time"

// MessageType distinguishes user prompts from model replies.
type MessageType string

const (
	// TypeUser marks a prompt typed by the user.
	TypeUser MessageType = "user"
	// TypeText marks generated (or error) text shown on the assistant side.
	TypeText MessageType = "text"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	return t == TypeUser || t == TypeText
}

// Message is a single entry of a session's append-only log.
type Message struct {
	Type      MessageType `json:"type"`
	Text      string      `json:"text"`
	Timestamp int64       `json:"timestamp"`
}

// Time returns the message timestamp in local time.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}
