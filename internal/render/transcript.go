package render

import (
	"time"

	"github.com/zhouzirui/gemini-chat/backend/internal/model/chat"
)

// WelcomeText is shown in place of an empty transcript.
const WelcomeText = "👋 Hello! I'm your AI Assistant. Ask me anything!"

// TimestampLayout formats the optional per-message annotation.
const TimestampLayout = "15:04:05"

// Role 标识消息显示在哪一侧。
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Entry is one rendered message.
type Entry struct {
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Transcript is the projected message log of one session.
type Transcript struct {
	SessionID string  `json:"sessionId"`
	Title     string  `json:"title"`
	Welcome   string  `json:"welcome,omitempty"`
	Entries   []Entry `json:"entries"`
}

// TranscriptOptions 控制消息渲染。
type TranscriptOptions struct {
	ShowTimestamps bool
	// Location used for timestamps, time.Local when nil.
	Location *time.Location
}

// BuildTranscript renders every message of the session in insertion order.
// Messages of an unknown type are skipped.
func BuildTranscript(session chat.Session, opts TranscriptOptions) Transcript {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	transcript := Transcript{
		SessionID: session.ID,
		Title:     session.Title,
		Entries:   make([]Entry, 0, len(session.Messages)),
	}

	for _, msg := range session.Messages {
		var role Role
		switch msg.Type {
		case chat.TypeUser:
			role = RoleUser
		case chat.TypeText:
			role = RoleAI
		default:
			continue
		}

		entry := Entry{Role: role, Text: msg.Text}
		if opts.ShowTimestamps {
			entry.Timestamp = msg.Time().In(loc).Format(TimestampLayout)
		}
		transcript.Entries = append(transcript.Entries, entry)
	}

	if len(transcript.Entries) == 0 {
		transcript.Welcome = WelcomeText
	}
	return transcript
}
