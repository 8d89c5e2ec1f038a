package preference

import "strings"

// Storage keys shared with the browser client.
const (
	KeyChats          = "chats"
	KeyTheme          = "theme"
	KeyAutoSave       = "autoSave"
	KeyShowTimestamps = "showTimestamps"
	KeyAutoScroll     = "autoScroll"
	KeyCurrentUser    = "currentUser"
	KeyLoginTime      = "loginTime"

	draftPrefix = "draft_"
)

// Theme 界面主题，仅作为偏好值保存。
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ParseTheme normalizes raw input, falling back to the dark theme.
func ParseTheme(raw string) Theme {
	if strings.EqualFold(strings.TrimSpace(raw), string(ThemeLight)) {
		return ThemeLight
	}
	return ThemeDark
}

// Preferences captures the settings toggles of the chat client.
type Preferences struct {
	Theme          Theme `json:"theme"`
	AutoSave       bool  `json:"autoSave"`
	ShowTimestamps bool  `json:"showTimestamps"`
	AutoScroll     bool  `json:"autoScroll"`
}

// Defaults mirrors the client behaviour when nothing has been stored yet:
// autoSave and autoScroll are opt-out, timestamps are opt-in.
func Defaults() Preferences {
	return Preferences{
		Theme:          ThemeDark,
		AutoSave:       true,
		ShowTimestamps: false,
		AutoScroll:     true,
	}
}

// DraftKey returns the namespaced key holding a session's draft text.
func DraftKey(sessionID string) string {
	return draftPrefix + sessionID
}
