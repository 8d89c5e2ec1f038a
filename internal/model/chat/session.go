package chat

import (
	"sort"
	"time"
)

// Session is one conversation with its own title, creation time and message log.
// CreatedAt is stored as Unix milliseconds so the persisted form matches the
// browser client's `chats` document.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt int64     `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

// Created returns the creation time in local time.
func (s Session) Created() time.Time {
	return time.UnixMilli(s.CreatedAt)
}

// Clone returns a copy whose message slice does not alias the receiver's.
func (s Session) Clone() Session {
	copied := s
	copied.Messages = make([]Message, len(s.Messages))
	copy(copied.Messages, s.Messages)
	return copied
}

// DefaultTitle 生成新会话的默认标题，例如 "Chat 3/14/2025"。
func DefaultTitle(now time.Time) string {
	return "Chat " + now.Format("1/2/2006")
}

// SortNewestFirst orders sessions by creation time descending, ties broken by
// id descending so the order is stable across calls.
func SortNewestFirst(sessions []Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt != sessions[j].CreatedAt {
			return sessions[i].CreatedAt > sessions[j].CreatedAt
		}
		return sessions[i].ID > sessions[j].ID
	})
}
