// Package render projects the session registry into the views shown to a user.
// Every function is a pure projection: the caller re-renders in full after each
// mutation and nothing here keeps state between calls.
package render

import (
	"strings"

	"github.com/zhouzirui/gemini-chat/backend/internal/model/chat"
)

const (
	EmptyListText   = "No chats yet"
	NoMatchListText = "No matching chats"
)

// ListItem is one row of the sidebar list.
type ListItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"createdAt"`
	Messages  int    `json:"messages"`
	Active    bool   `json:"active"`
}

// ListView is the filtered, newest-first session list.
type ListView struct {
	Query     string     `json:"query,omitempty"`
	Items     []ListItem `json:"items"`
	Empty     bool       `json:"empty"`
	EmptyText string     `json:"emptyText,omitempty"`
}

// List filters sessions by a case-insensitive title match and orders them
// newest first. The input slice is not modified.
// Whitespace in query is significant.
func List(sessions []chat.Session, activeID, query string) ListView {
	needle := strings.ToLower(query)

	matched := make([]chat.Session, 0, len(sessions))
	for _, session := range sessions {
		if needle != "" && !strings.Contains(strings.ToLower(session.Title), needle) {
			continue
		}
		matched = append(matched, session)
	}
	chat.SortNewestFirst(matched)

	view := ListView{Query: query, Items: make([]ListItem, 0, len(matched))}
	for _, session := range matched {
		view.Items = append(view.Items, ListItem{
			ID:        session.ID,
			Title:     session.Title,
			CreatedAt: session.CreatedAt,
			Messages:  len(session.Messages),
			Active:    session.ID == activeID,
		})
	}

	if len(view.Items) == 0 {
		view.Empty = true
		view.EmptyText = EmptyListText
		if query != "" {
			view.EmptyText = NoMatchListText
		}
	}
	return view
}
