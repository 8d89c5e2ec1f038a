package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/gemini-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/gemini-chat/backend/internal/render"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/app"
	"github.com/zhouzirui/gemini-chat/backend/pkg/utils"
)

// Handler sends a prompt and streams the reply back as Server-Sent Events with
// the character-reveal animation applied on the server side.
type Handler struct {
	app      *app.App
	revealer *render.Revealer
}

// New creates a new stream handler
func New(application *app.App, revealer *render.Revealer) *Handler {
	return &Handler{app: application, revealer: revealer}
}

// RegisterRoutes 注册流式路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Title     string `json:"title,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")
	if userMessage == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}
	if _, ok := h.app.Session(sessionID); !ok {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
		if errors.Is(err, utils.ErrStreamingUnsupported) {
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		log.Printf("[stream] session=%s: %v", sessionID, err)
	}
}

// HandleStreamRequest sends userMessage to the session and streams start,
// delta, message, title and end events. Send failures are reported as an error
// event once the stream has been opened.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, userMessage string) error {
	sse, err := utils.NewSSEWriter(w)
	if err != nil {
		return err
	}

	if err := sse.Send(StreamResponse{Event: "start", SessionID: sessionID}); err != nil {
		return err
	}

	result, err := h.app.Send(ctx, sessionID, userMessage)
	if err != nil {
		_ = sse.Send(StreamResponse{
			Event:     "error",
			SessionID: sessionID,
			Error:     err.Error(),
		})
		return fmt.Errorf("send failed with status %d: %w", chat.StatusForSendError(err), err)
	}

	// 数据已经保存，以下只负责展示。
	written := 0
	revealErr := h.revealer.Reveal(ctx, result.Reply.Text, func(prefix string) error {
		delta := prefix[written:]
		written = len(prefix)
		return sse.Send(StreamResponse{Event: "delta", SessionID: sessionID, Content: delta})
	})
	if revealErr != nil {
		return fmt.Errorf("reveal interrupted: %w", revealErr)
	}

	if err := sse.Send(StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   result.Reply.Text,
		Failed:    result.Failed,
	}); err != nil {
		return err
	}
	if result.Title != "" {
		if err := sse.Send(StreamResponse{Event: "title", SessionID: sessionID, Title: result.Title}); err != nil {
			return err
		}
	}

	log.Printf("[stream] completed response for session=%s", sessionID)
	return sse.Send(StreamResponse{Event: "end", SessionID: sessionID, Finished: true})
}
