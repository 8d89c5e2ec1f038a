package render

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevealEmitsGrowingRunePrefixes(t *testing.T) {
	var got []string
	err := NewRevealer(time.Millisecond).Reveal(context.Background(), "héy", func(prefix string) error {
		got = append(got, prefix)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"h", "hé", "héy"}, got)
}

func TestRevealWithoutIntervalEmitsOnce(t *testing.T) {
	var got []string
	err := NewRevealer(0).Reveal(context.Background(), "whole", func(prefix string) error {
		got = append(got, prefix)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"whole"}, got)
}

func TestRevealEmptyTextEmitsNothing(t *testing.T) {
	called := false
	err := NewRevealer(time.Millisecond).Reveal(context.Background(), "", func(string) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestRevealStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	err := NewRevealer(time.Hour).Reveal(ctx, "abc", func(string) error {
		count++
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, count)
}

func TestRevealStopsOnEmitError(t *testing.T) {
	boom := errors.New("closed")
	err := NewRevealer(time.Millisecond).Reveal(context.Background(), "abc", func(string) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
}

func TestTerminalRendering(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, NewRevealer(time.Millisecond))

	require.NoError(t, term.RenderList(ListView{Items: []ListItem{
		{ID: "a", Title: "First", Messages: 2, Active: true},
		{ID: "b", Title: "Second"},
	}}))
	assert.Equal(t, "*  1. First (2)\n   2. Second (0)\n", buf.String())

	buf.Reset()
	require.NoError(t, term.RenderList(ListView{Empty: true, EmptyText: EmptyListText}))
	assert.Equal(t, "  No chats yet\n", buf.String())

	buf.Reset()
	require.NoError(t, term.RenderTranscript(Transcript{Title: "T", Entries: []Entry{
		{Role: RoleUser, Text: "Hello", Timestamp: "09:00:00"},
		{Role: RoleAI, Text: "Hi"},
	}}))
	assert.Equal(t, "=== T ===\n[09:00:00] you> Hello\nai> Hi\n", buf.String())

	buf.Reset()
	require.NoError(t, term.RevealEntry(context.Background(), Entry{Role: RoleAI, Text: "Hi there!"}))
	assert.Equal(t, "ai> Hi there!\n", buf.String())
}

func TestTerminalRevealInterruptedStillPrintsWholeText(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, NewRevealer(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := term.RevealEntry(ctx, Entry{Role: RoleAI, Text: "abc"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "ai> abc\n", buf.String())
}
