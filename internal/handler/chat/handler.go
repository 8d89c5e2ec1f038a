package chat

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/gemini-chat/backend/internal/service/app"
	chatService "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
	"github.com/zhouzirui/gemini-chat/backend/pkg/utils"
)

// Handler 会话接口的HTTP处理器
type Handler struct {
	app *app.App
}

// New 创建聊天处理器
func New(application *app.App) *Handler {
	return &Handler{app: application}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chats", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Delete("/", h.handleClearAll)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.handleTranscript)
			r.Patch("/", h.handleRename)
			r.Delete("/", h.handleDelete)
			r.Post("/select", h.handleSelect)
			r.Post("/messages", h.handleSend)
			r.Get("/export", h.handleExport)
			r.Get("/draft", h.handleDraft)
		})
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.app.Search(r.URL.Query().Get("q")))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	session, err := h.app.NewChat(r.Context())
	if err != nil {
		log.Printf("[chat] create session failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleClearAll(w http.ResponseWriter, r *http.Request) {
	session, err := h.app.ClearAll(r.Context())
	if errors.Is(err, app.ErrNothingToClear) {
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		log.Printf("[chat] clear all failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"active": session})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	var override *bool
	if raw := r.URL.Query().Get("timestamps"); raw != "" {
		show, err := strconv.ParseBool(raw)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "timestamps must be a boolean")
			return
		}
		override = &show
	}

	transcript, ok := h.app.Transcript(chi.URLParam(r, "sessionID"), override)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, chatService.ErrSessionNotFound.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, transcript)
}

func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title string `json:"title"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	ok, err := h.app.Rename(r.Context(), sessionID, payload.Title)
	switch {
	case !ok:
		utils.RespondError(w, http.StatusNotFound, chatService.ErrSessionNotFound.Error())
		return
	case errors.Is(err, chatService.ErrEmptyTitle):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Printf("[chat] rename session=%s failed: %v", sessionID, err)
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	session, _ := h.app.Session(sessionID)
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ok, err := h.app.Delete(r.Context(), sessionID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, chatService.ErrSessionNotFound.Error())
		return
	}
	if err != nil {
		log.Printf("[chat] delete session=%s failed: %v", sessionID, err)
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	active, _ := h.app.Active()
	utils.RespondJSON(w, http.StatusOK, map[string]any{"active": active})
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !h.app.Select(sessionID) {
		utils.RespondError(w, http.StatusNotFound, chatService.ErrSessionNotFound.Error())
		return
	}
	transcript, _ := h.app.Transcript(sessionID, nil)
	utils.RespondJSON(w, http.StatusOK, transcript)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Prompt string `json:"prompt"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.app.Send(r.Context(), chi.URLParam(r, "sessionID"), payload.Prompt)
	if err != nil {
		utils.RespondError(w, StatusForSendError(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

// StatusForSendError maps app.Send errors to HTTP status codes.
func StatusForSendError(err error) int {
	switch {
	case errors.Is(err, app.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrSendInFlight):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	export, err := h.app.Export(chi.URLParam(r, "sessionID"))
	if errors.Is(err, chatService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(export.Data); err != nil {
		log.Printf("[chat] write export failed: %v", err)
	}
}

func (h *Handler) handleDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.app.Draft(r.Context(), chi.URLParam(r, "sessionID"))
	if errors.Is(err, chatService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"draft": draft})
}
