package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/gemini-chat/backend/internal/model/chat"
	chatsvc "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
)

// isoMillis matches the ISO-8601 form with millisecond precision in UTC.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// unsafeRun matches whitespace, path separators and characters most file
// systems reject. Runs collapse into a single "_".
var unsafeRun = regexp.MustCompile(`[\s/\\:*?"<>|\x00-\x1f]+`)

// ExportedMessage is a message with its timestamp as an ISO-8601 string.
type ExportedMessage struct {
	Type      chat.MessageType `json:"type"`
	Text      string           `json:"text"`
	Timestamp string           `json:"timestamp"`
}

// ExportDocument is the downloadable form of a session.
type ExportDocument struct {
	Title     string            `json:"title"`
	CreatedAt string            `json:"createdAt"`
	Messages  []ExportedMessage `json:"messages"`
}

// Export is an encoded ExportDocument with its suggested file name.
type Export struct {
	Filename string
	Document ExportDocument
	Data     []byte
}

// Export renders a session as indented JSON. The file name is the title with
// whitespace and path separator runs replaced by "_", followed by the export
// time in Unix ms.
func (a *App) Export(id string) (Export, error) {
	session, ok := a.chats.Get(id)
	if !ok {
		return Export{}, fmt.Errorf("%w: %s", chatsvc.ErrSessionNotFound, id)
	}

	doc := ExportDocument{
		Title:     session.Title,
		CreatedAt: isoTime(session.CreatedAt),
		Messages:  make([]ExportedMessage, 0, len(session.Messages)),
	}
	for _, msg := range session.Messages {
		doc.Messages = append(doc.Messages, ExportedMessage{
			Type:      msg.Type,
			Text:      msg.Text,
			Timestamp: isoTime(msg.Timestamp),
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return Export{}, fmt.Errorf("encode export: %w", err)
	}

	filename := exportBaseName(session.Title) + "_" +
		strconv.FormatInt(a.now().UnixMilli(), 10) + ".json"

	return Export{
		Filename: filename,
		Document: doc,
		Data:     bytes.TrimRight(buf.Bytes(), "\n"),
	}, nil
}

// exportBaseName turns a title into a single path element.
func exportBaseName(title string) string {
	name := unsafeRun.ReplaceAllString(title, "_")
	if strings.Trim(name, "._") == "" {
		return "chat"
	}
	return name
}

func isoTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(isoMillis)
}
