package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/gemini-chat/backend/internal/model/chat"
	"github.com/zhouzirui/gemini-chat/backend/internal/model/preference"
	"github.com/zhouzirui/gemini-chat/backend/internal/storage"
)

var (
	ErrEmptyTitle         = errors.New("title must not be empty")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidMessageType = errors.New("invalid message type")
)

// Option 自定义 Service 的行为。
type Option func(*Service)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the session id source.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithAutoSave sets the initial draft auto-save flag.
func WithAutoSave(enabled bool) Option {
	return func(s *Service) {
		s.autoSave = enabled
	}
}

// Service is the session registry and message log. It mirrors the `chats`
// document of the store in memory and writes it back after every mutation.
// A failed write rolls the in-memory state back, so memory and store never
// diverge.
type Service struct {
	mu       sync.RWMutex
	store    storage.Store
	sessions map[string]chat.Session
	activeID string
	autoSave bool

	now   func() time.Time
	newID func() string
}

// NewService 创建会话注册表。调用方需要随后调用 Load 完成冷启动。
func NewService(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		sessions: make(map[string]chat.Session),
		autoSave: true,
		now:      time.Now,
		newID:    newSessionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newSessionID returns a time-ordered UUIDv7.
func newSessionID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Load performs the cold start: it reads the persisted session map, treating an
// absent or corrupt document as empty, then activates the newest session or
// creates a first one.
func (s *Service) Load(ctx context.Context) (chat.Session, error) {
	raw, err := s.store.Get(ctx, preference.KeyChats)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		raw = ""
	case err != nil:
		return chat.Session{}, fmt.Errorf("load chats: %w", err)
	}

	sessions := decodeSessions(raw)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = sessions
	s.activeID = ""
	if newest, ok := s.newestLocked(); ok {
		s.activeID = newest.ID
		log.Printf("[chat] loaded %d sessions, active=%s", len(s.sessions), newest.ID)
		return newest.Clone(), nil
	}
	return s.createLocked(ctx)
}

func decodeSessions(raw string) map[string]chat.Session {
	sessions := make(map[string]chat.Session)
	if strings.TrimSpace(raw) == "" {
		return sessions
	}

	var decoded map[string]chat.Session
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		log.Printf("[chat] stored chats are corrupt, starting empty: %v", err)
		return sessions
	}

	for key, session := range decoded {
		if session.ID == "" {
			session.ID = key
		}
		if session.ID != key {
			log.Printf("[chat] session key %q does not match id %q, keeping key", key, session.ID)
			session.ID = key
		}
		if session.Messages == nil {
			session.Messages = []chat.Message{}
		}
		sessions[key] = session
	}
	return sessions
}

// SetAutoSave toggles draft saving on Append.
func (s *Service) SetAutoSave(enabled bool) {
	s.mu.Lock()
	s.autoSave = enabled
	s.mu.Unlock()
}

// Create 新建一个会话，持久化并设为当前会话。
func (s *Service) Create(ctx context.Context) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(ctx)
}

func (s *Service) createLocked(ctx context.Context) (chat.Session, error) {
	session := s.newSession()

	err := s.mutateLocked(ctx, func() {
		s.sessions[session.ID] = session
		s.activeID = session.ID
	})
	if err != nil {
		return chat.Session{}, err
	}

	log.Printf("[chat] created session id=%s", session.ID)
	return session.Clone(), nil
}

func (s *Service) newSession() chat.Session {
	now := s.now()
	return chat.Session{
		ID:        s.newID(),
		Title:     chat.DefaultTitle(now),
		CreatedAt: now.UnixMilli(),
		Messages:  []chat.Message{},
	}
}

// Rename 修改会话标题。会话不存在时返回 ok=false 且不做任何修改。
func (s *Service) Rename(ctx context.Context, id, title string) (bool, error) {
	title = strings.TrimSpace(title)

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return false, nil
	}
	if title == "" {
		return true, ErrEmptyTitle
	}
	if session.Title == title {
		return true, nil
	}

	session.Title = title
	return true, s.mutateLocked(ctx, func() {
		s.sessions[id] = session
	})
}

// Delete removes a session and its draft. When the active session is removed the
// newest remaining one becomes active, or a fresh session is created so that
// exactly one session is always active.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}

	wasActive := s.activeID == id
	var replacement *chat.Session
	err := s.mutateLocked(ctx, func() {
		delete(s.sessions, id)
		if !wasActive {
			return
		}
		if newest, ok := s.newestLocked(); ok {
			s.activeID = newest.ID
			return
		}
		// 删除与新建在同一次写入中完成，失败时整体回滚。
		fresh := s.newSession()
		s.sessions[fresh.ID] = fresh
		s.activeID = fresh.ID
		replacement = &fresh
	})
	if err != nil {
		return true, err
	}
	s.dropDraft(ctx, id)

	if replacement != nil {
		log.Printf("[chat] created session id=%s", replacement.ID)
	}
	return true, nil
}

// ClearAll 清空所有会话后自动创建一个新的空会话。
func (s *Service) ClearAll(ctx context.Context) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}

	fresh := s.newSession()
	err := s.mutateLocked(ctx, func() {
		s.sessions = map[string]chat.Session{fresh.ID: fresh}
		s.activeID = fresh.ID
	})
	if err != nil {
		return chat.Session{}, err
	}
	for _, id := range ids {
		s.dropDraft(ctx, id)
	}

	log.Printf("[chat] cleared %d sessions, created session id=%s", len(ids), fresh.ID)
	return fresh.Clone(), nil
}

// Select 切换当前会话，未知 id 时不做任何修改。
func (s *Service) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	s.activeID = id
	return true
}

// Get returns a copy of the session.
func (s *Service) Get(id string) (chat.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return chat.Session{}, false
	}
	return session.Clone(), true
}

// Active returns the active session.
func (s *Service) Active() (chat.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[s.activeID]
	if !ok {
		return chat.Session{}, false
	}
	return session.Clone(), true
}

// ActiveID returns the id of the active session, empty when there is none.
func (s *Service) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Len returns the number of sessions.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// List returns every session, newest first.
func (s *Service) List() []chat.Session {
	return s.Search("")
}

// Search 按标题做不区分大小写的子串匹配，结果按创建时间倒序。
// 查询串原样匹配（不去除空白），只有空串返回全部会话。
func (s *Service) Search(query string) []chat.Session {
	query = strings.ToLower(query)

	s.mu.RLock()
	result := make([]chat.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		if query != "" && !strings.Contains(strings.ToLower(session.Title), query) {
			continue
		}
		result = append(result, session.Clone())
	}
	s.mu.RUnlock()

	chat.SortNewestFirst(result)
	return result
}

// Append pushes a timestamped message onto a session's log. An unknown session
// is rejected silently with ok=false and nothing is persisted.
func (s *Service) Append(ctx context.Context, sessionID string, typ chat.MessageType, text string) (chat.Message, bool, error) {
	if !typ.Valid() {
		return chat.Message{}, false, fmt.Errorf("%w: %q", ErrInvalidMessageType, typ)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Message{}, false, nil
	}

	message := chat.Message{Type: typ, Text: text, Timestamp: s.now().UnixMilli()}
	messages := make([]chat.Message, len(session.Messages), len(session.Messages)+1)
	copy(messages, session.Messages)
	session.Messages = append(messages, message)

	if err := s.mutateLocked(ctx, func() {
		s.sessions[sessionID] = session
	}); err != nil {
		return chat.Message{}, true, err
	}

	if s.autoSave {
		if err := s.store.Set(ctx, preference.DraftKey(sessionID), text); err != nil {
			log.Printf("[chat] save draft failed session=%s: %v", sessionID, err)
		}
	}
	return message, true, nil
}

// Messages returns a copy of a session's log.
func (s *Service) Messages(sessionID string) ([]chat.Message, bool) {
	session, ok := s.Get(sessionID)
	if !ok {
		return nil, false
	}
	return session.Messages, true
}

// Draft returns the last auto-saved text of a session, empty when none exists.
func (s *Service) Draft(ctx context.Context, sessionID string) (string, error) {
	draft, err := s.store.Get(ctx, preference.DraftKey(sessionID))
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load draft: %w", err)
	}
	return draft, nil
}

// mutateLocked applies fn, persists the session map and restores the previous
// state when the write fails. Callers hold s.mu.
func (s *Service) mutateLocked(ctx context.Context, fn func()) error {
	prevSessions := maps.Clone(s.sessions)
	prevActive := s.activeID

	fn()

	if err := s.persistLocked(ctx); err != nil {
		s.sessions = prevSessions
		s.activeID = prevActive
		return err
	}
	return nil
}

func (s *Service) persistLocked(ctx context.Context) error {
	payload, err := json.Marshal(s.sessions)
	if err != nil {
		return fmt.Errorf("encode chats: %w", err)
	}
	if err := s.store.Set(ctx, preference.KeyChats, string(payload)); err != nil {
		return fmt.Errorf("persist chats: %w", err)
	}
	return nil
}

func (s *Service) dropDraft(ctx context.Context, sessionID string) {
	if err := s.store.Delete(ctx, preference.DraftKey(sessionID)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("[chat] delete draft failed session=%s: %v", sessionID, err)
	}
}

func (s *Service) newestLocked() (chat.Session, bool) {
	var (
		newest chat.Session
		found  bool
	)
	for _, session := range s.sessions {
		if !found || session.CreatedAt > newest.CreatedAt ||
			(session.CreatedAt == newest.CreatedAt && session.ID > newest.ID) {
			newest = session
			found = true
		}
	}
	return newest, found
}
