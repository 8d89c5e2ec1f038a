package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/gemini-chat/backend/internal/render"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/app"
	"github.com/zhouzirui/gemini-chat/backend/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler WebSocket会话处理器：接收提示，按字符推送回复。
type Handler struct {
	app      *app.App
	revealer *render.Revealer
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(application *app.App, revealer *render.Revealer) *Handler {
	return &Handler{
		app:      application,
		revealer: revealer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

// InboundMessage is a client frame. Only "prompt" is understood.
type InboundMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Text      string `json:"text"`
}

// OutgoingMessage is a server frame: connected, reveal, message, title, error or end.
type OutgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, ok := h.app.Session(sessionID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go pingLoop(ctx, conn)

	h.send(conn, sessionID, "connected", map[string]any{"title": session.Title})

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(conn, sessionID, "session mismatch")
			continue
		}

		switch msg.Type {
		case "prompt":
			if err := h.handlePrompt(ctx, conn, sessionID, msg.Text); err != nil {
				log.Printf("[websocket] session=%s: %v", sessionID, err)
				return
			}
		default:
			h.sendError(conn, sessionID, "unsupported message type: "+msg.Type)
		}
	}
}

// handlePrompt runs one send. A returned error means the connection is unusable.
func (h *Handler) handlePrompt(ctx context.Context, conn *websocket.Conn, sessionID, text string) error {
	result, err := h.app.Send(ctx, sessionID, text)
	if err != nil {
		h.sendError(conn, sessionID, err.Error())
		return nil
	}

	err = h.revealer.Reveal(ctx, result.Reply.Text, func(prefix string) error {
		return h.write(conn, OutgoingMessage{
			Type:      "reveal",
			SessionID: sessionID,
			Data:      map[string]string{"text": prefix},
			Timestamp: time.Now().UnixMilli(),
		})
	})
	if err != nil {
		return err
	}

	h.send(conn, sessionID, "message", map[string]any{
		"user":   result.User,
		"reply":  result.Reply,
		"failed": result.Failed,
	})
	if result.Title != "" {
		h.send(conn, sessionID, "title", map[string]string{"title": result.Title})
	}
	h.send(conn, sessionID, "end", nil)
	return nil
}

func (h *Handler) write(conn *websocket.Conn, msg OutgoingMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}

func (h *Handler) send(conn *websocket.Conn, sessionID, typ string, data any) {
	msg := OutgoingMessage{Type: typ, SessionID: sessionID, Data: data, Timestamp: time.Now().UnixMilli()}
	if err := h.write(conn, msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", typ, err)
	}
}

func (h *Handler) sendError(conn *websocket.Conn, sessionID, message string) {
	h.send(conn, sessionID, "error", map[string]string{"message": message})
}

// pingLoop 定期发送ping消息。WriteControl 可与其他写操作并发调用。
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
