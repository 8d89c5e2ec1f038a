// Package app holds the application state shared by the HTTP surface and the
// terminal client: the session registry, preferences, profile and the send
// pipeline that ties the registry to the generator and the title service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zhouzirui/gemini-chat/backend/internal/model/chat"
	"github.com/zhouzirui/gemini-chat/backend/internal/model/preference"
	"github.com/zhouzirui/gemini-chat/backend/internal/render"
	chatsvc "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
	"github.com/zhouzirui/gemini-chat/backend/internal/storage"
)

var (
	ErrNothingToClear = errors.New("no chats to clear")
	ErrSendInFlight   = errors.New("a message is already being sent for this chat")
	ErrEmptyPrompt    = errors.New("prompt is required")
)

// Generator 返回模型对提示的完整回复。
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TitleGenerator derives a session title from its first prompt and never fails.
type TitleGenerator interface {
	Generate(ctx context.Context, prompt string) string
}

// Option customizes an App.
type Option func(*App)

// WithClock overrides the time source used for login time and export names.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

// WithErrorText overrides how a failed generation is shown in the transcript.
func WithErrorText(format func(error) string) Option {
	return func(a *App) {
		if format != nil {
			a.errorText = format
		}
	}
}

// App is the explicit application state. It is safe for concurrent use: the
// registry serializes mutations and the remote call runs outside any lock.
type App struct {
	chats     *chatsvc.Service
	store     storage.Store
	generator Generator
	titles    TitleGenerator

	mu       sync.Mutex
	prefs    preference.Preferences
	inFlight map[string]struct{}

	now       func() time.Time
	errorText func(error) string
}

// New wires the application state. Call Load before serving requests.
func New(chats *chatsvc.Service, store storage.Store, generator Generator, titles TitleGenerator, opts ...Option) (*App, error) {
	if chats == nil || store == nil {
		return nil, errors.New("app: chat service and store are required")
	}
	if generator == nil {
		return nil, errors.New("app: generator is required")
	}

	a := &App{
		chats:     chats,
		store:     store,
		generator: generator,
		titles:    titles,
		prefs:     preference.Defaults(),
		inFlight:  make(map[string]struct{}),
		now:       time.Now,
		errorText: ErrorText,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ErrorText is the inline message stored in place of a reply when a call fails.
func ErrorText(err error) string {
	return "Error: Make sure the server is running!\n\n" + err.Error()
}

// Load restores preferences and sessions from the store.
func (a *App) Load(ctx context.Context) (chat.Session, error) {
	prefs, err := loadPreferences(ctx, a.store)
	if err != nil {
		return chat.Session{}, err
	}

	a.mu.Lock()
	a.prefs = prefs
	a.mu.Unlock()
	a.chats.SetAutoSave(prefs.AutoSave)

	active, err := a.chats.Load(ctx)
	if err != nil {
		return chat.Session{}, err
	}
	log.Printf("[app] loaded sessions=%d active=%s theme=%s", a.chats.Len(), active.ID, prefs.Theme)
	return active, nil
}

// NewChat creates and activates an empty session.
func (a *App) NewChat(ctx context.Context) (chat.Session, error) {
	return a.chats.Create(ctx)
}

// Select activates a session; unknown ids are ignored.
func (a *App) Select(id string) bool {
	return a.chats.Select(id)
}

// Session returns a copy of one session.
func (a *App) Session(id string) (chat.Session, bool) {
	return a.chats.Get(id)
}

// Active returns the active session.
func (a *App) Active() (chat.Session, bool) {
	return a.chats.Active()
}

// Rename 重命名会话，空标题会被拒绝并保留原标题。
func (a *App) Rename(ctx context.Context, id, title string) (bool, error) {
	return a.chats.Rename(ctx, id, title)
}

// Delete removes a session, keeping exactly one session active afterwards.
func (a *App) Delete(ctx context.Context, id string) (bool, error) {
	return a.chats.Delete(ctx, id)
}

// ClearAll deletes every session and starts over with a fresh one.
func (a *App) ClearAll(ctx context.Context) (chat.Session, error) {
	if a.chats.Len() == 0 {
		return chat.Session{}, ErrNothingToClear
	}
	return a.chats.ClearAll(ctx)
}

// Search projects the registry into the list view for query.
func (a *App) Search(query string) render.ListView {
	return render.List(a.chats.Search(query), a.chats.ActiveID(), query)
}

// Transcript projects one session. showTimestamps overrides the stored
// preference when non-nil.
func (a *App) Transcript(id string, showTimestamps *bool) (render.Transcript, bool) {
	session, ok := a.chats.Get(id)
	if !ok {
		return render.Transcript{}, false
	}

	show := a.Preferences().ShowTimestamps
	if showTimestamps != nil {
		show = *showTimestamps
	}
	return render.BuildTranscript(session, render.TranscriptOptions{ShowTimestamps: show}), true
}

// Draft returns the auto-saved text of a session.
func (a *App) Draft(ctx context.Context, id string) (string, error) {
	if _, ok := a.chats.Get(id); !ok {
		return "", fmt.Errorf("%w: %s", chatsvc.ErrSessionNotFound, id)
	}
	return a.chats.Draft(ctx, id)
}
