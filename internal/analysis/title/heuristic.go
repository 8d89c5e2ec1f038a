package title

import (
	"regexp"
	"strings"
)

const (
	// MaxWords 本地回退标题保留的最大词数。
	MaxWords = 6
	// MaxFallbackRunes 本地回退标题的最大字符数。
	MaxFallbackRunes = 40
	// MaxTitleRunes 远程生成标题的最大字符数。
	MaxTitleRunes = 50

	// DefaultTitle is used when the model answers with nothing at all.
	DefaultTitle = "New Chat"

	ellipsis = "..."
)

var firstSentence = regexp.MustCompile(`^[^.!?]*[.!?]`)

// Extract 根据用户首条消息推断一个简短标题，不依赖任何远程调用。
// It keeps the first sentence-terminated clause when one exists, then limits the
// result to MaxWords words or MaxFallbackRunes characters, appending an ellipsis
// when it had to cut.
func Extract(prompt string) string {
	title := strings.TrimSpace(prompt)

	if match := firstSentence.FindString(title); match != "" {
		title = strings.TrimSpace(match)
	}

	words := strings.Fields(title)
	if len(words) > MaxWords {
		return strings.Join(words[:MaxWords], " ") + ellipsis
	}

	runes := []rune(title)
	if len(runes) > MaxFallbackRunes {
		return strings.TrimSpace(string(runes[:MaxFallbackRunes])) + ellipsis
	}
	return title
}

// Clean post-processes a model-generated title: one leading and one trailing
// quote character are stripped, whitespace trimmed, and the result capped at
// MaxTitleRunes characters.
func Clean(raw string) string {
	title := raw
	if strings.HasPrefix(title, `"`) || strings.HasPrefix(title, "'") {
		title = title[1:]
	}
	if strings.HasSuffix(title, `"`) || strings.HasSuffix(title, "'") {
		title = title[:len(title)-1]
	}
	title = strings.TrimSpace(title)

	runes := []rune(title)
	if len(runes) > MaxTitleRunes {
		return string(runes[:MaxTitleRunes]) + ellipsis
	}
	return title
}
