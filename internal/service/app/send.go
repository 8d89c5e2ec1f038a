package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/gemini-chat/backend/internal/model/chat"
	chatsvc "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
)

// MaxPromptRunes caps a prompt the way the input's character counter does.
const MaxPromptRunes = 2000

// SendResult describes what one Send appended.
type SendResult struct {
	SessionID string       `json:"sessionId"`
	User      chat.Message `json:"user"`
	Reply     chat.Message `json:"reply"`
	// Failed is set when Reply carries the error text instead of a model reply.
	Failed bool `json:"failed"`
	// Title is the generated title when this was the session's first message.
	Title string `json:"title,omitempty"`
}

// Send appends the prompt to the session, asks the generator for a reply and
// appends it, or exactly one error message when the call fails. On the first
// message of a session the title is generated concurrently with the reply.
// An empty sessionID targets the active session.
func (a *App) Send(ctx context.Context, sessionID, prompt string) (SendResult, error) {
	prompt = truncatePrompt(strings.TrimSpace(prompt))
	if prompt == "" {
		return SendResult{}, ErrEmptyPrompt
	}
	if sessionID == "" {
		sessionID = a.chats.ActiveID()
	}

	if _, ok := a.chats.Get(sessionID); !ok {
		return SendResult{}, fmt.Errorf("%w: %s", chatsvc.ErrSessionNotFound, sessionID)
	}

	if !a.acquire(sessionID) {
		return SendResult{}, ErrSendInFlight
	}
	defer a.release(sessionID)

	// 持有发送标记后重新读取，避免并发发送完成后重复生成标题。
	session, ok := a.chats.Get(sessionID)
	if !ok {
		return SendResult{}, fmt.Errorf("%w: %s", chatsvc.ErrSessionNotFound, sessionID)
	}
	firstMessage := len(session.Messages) == 0
	result := SendResult{SessionID: sessionID}

	userMsg, ok, err := a.chats.Append(ctx, sessionID, chat.TypeUser, prompt)
	if err != nil {
		return SendResult{}, fmt.Errorf("append prompt: %w", err)
	}
	if !ok {
		// 会话在发送期间被删除。
		return SendResult{}, fmt.Errorf("%w: %s", chatsvc.ErrSessionNotFound, sessionID)
	}
	result.User = userMsg

	var g errgroup.Group

	if firstMessage && a.titles != nil {
		g.Go(func() error {
			title := a.titles.Generate(ctx, prompt)
			renamed, err := a.chats.Rename(ctx, sessionID, title)
			if errors.Is(err, chatsvc.ErrEmptyTitle) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("apply title: %w", err)
			}
			if renamed {
				result.Title = title
			}
			return nil
		})
	}

	g.Go(func() error {
		text, err := a.generator.Generate(ctx, prompt)
		if err != nil {
			log.Printf("[app] generation failed session=%s: %v", sessionID, err)
			text = a.errorText(err)
			result.Failed = true
		}

		reply, _, err := a.chats.Append(ctx, sessionID, chat.TypeText, text)
		if err != nil {
			return fmt.Errorf("append reply: %w", err)
		}
		result.Reply = reply
		return nil
	})

	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

// Sending reports whether a send is pending for the session.
func (a *App) Sending(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, busy := a.inFlight[sessionID]
	return busy
}

func (a *App) acquire(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inFlight[sessionID]; busy {
		return false
	}
	a.inFlight[sessionID] = struct{}{}
	return true
}

func (a *App) release(sessionID string) {
	a.mu.Lock()
	delete(a.inFlight, sessionID)
	a.mu.Unlock()
}

func truncatePrompt(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= MaxPromptRunes {
		return prompt
	}
	return string(runes[:MaxPromptRunes])
}
