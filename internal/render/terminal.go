package render

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Terminal writes the views as plain text, e.g. for the interactive client.
type Terminal struct {
	out      io.Writer
	revealer *Revealer
}

// NewTerminal 创建终端渲染器。revealer 为 nil 时回复一次性输出。
func NewTerminal(out io.Writer, revealer *Revealer) *Terminal {
	if revealer == nil {
		revealer = NewRevealer(0)
	}
	return &Terminal{out: out, revealer: revealer}
}

// RenderList prints the session list, marking the active row with "*".
func (t *Terminal) RenderList(view ListView) error {
	if view.Empty {
		_, err := fmt.Fprintf(t.out, "  %s\n", view.EmptyText)
		return err
	}

	for i, item := range view.Items {
		marker := " "
		if item.Active {
			marker = "*"
		}
		if _, err := fmt.Fprintf(t.out, "%s %2d. %s (%d)\n", marker, i+1, item.Title, item.Messages); err != nil {
			return err
		}
	}
	return nil
}

// RenderTranscript prints the whole transcript.
func (t *Terminal) RenderTranscript(transcript Transcript) error {
	if _, err := fmt.Fprintf(t.out, "=== %s ===\n", transcript.Title); err != nil {
		return err
	}
	if transcript.Welcome != "" {
		_, err := fmt.Fprintln(t.out, transcript.Welcome)
		return err
	}
	for _, entry := range transcript.Entries {
		if err := t.RenderEntry(entry); err != nil {
			return err
		}
	}
	return nil
}

// RenderEntry prints a single message.
func (t *Terminal) RenderEntry(entry Entry) error {
	_, err := fmt.Fprintf(t.out, "%s%s\n", t.prefix(entry), entry.Text)
	return err
}

// RevealEntry prints an entry with the character-reveal animation. Only the
// newly revealed suffix is written on each tick.
func (t *Terminal) RevealEntry(ctx context.Context, entry Entry) error {
	if _, err := io.WriteString(t.out, t.prefix(entry)); err != nil {
		return err
	}

	written := 0
	err := t.revealer.Reveal(ctx, entry.Text, func(prefix string) error {
		_, err := io.WriteString(t.out, prefix[written:])
		written = len(prefix)
		return err
	})
	if err != nil {
		// 动画被中断时仍输出完整文本。
		if written < len(entry.Text) {
			_, _ = io.WriteString(t.out, entry.Text[written:])
		}
		_, _ = io.WriteString(t.out, "\n")
		return err
	}

	_, err = io.WriteString(t.out, "\n")
	return err
}

func (t *Terminal) prefix(entry Entry) string {
	var b strings.Builder
	if entry.Timestamp != "" {
		b.WriteString("[")
		b.WriteString(entry.Timestamp)
		b.WriteString("] ")
	}
	if entry.Role == RoleUser {
		b.WriteString("you> ")
	} else {
		b.WriteString("ai> ")
	}
	return b.String()
}
