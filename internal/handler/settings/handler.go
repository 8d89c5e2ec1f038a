package settings

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/gemini-chat/backend/internal/model/preference"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/app"
	"github.com/zhouzirui/gemini-chat/backend/pkg/utils"
)

// Handler 偏好设置与登录占位接口
type Handler struct {
	app *app.App
}

// New 创建设置处理器
func New(application *app.App) *Handler {
	return &Handler{app: application}
}

// RegisterRoutes 注册设置相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/preferences", h.handleGetPreferences)
	r.Put("/preferences", h.handlePutPreferences)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

func (h *Handler) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.app.Preferences())
}

// preferencesPatch leaves unset fields unchanged.
type preferencesPatch struct {
	Theme          *string `json:"theme"`
	AutoSave       *bool   `json:"autoSave"`
	ShowTimestamps *bool   `json:"showTimestamps"`
	AutoScroll     *bool   `json:"autoScroll"`
}

func (p preferencesPatch) apply(prefs preference.Preferences) preference.Preferences {
	if p.Theme != nil {
		prefs.Theme = preference.ParseTheme(*p.Theme)
	}
	if p.AutoSave != nil {
		prefs.AutoSave = *p.AutoSave
	}
	if p.ShowTimestamps != nil {
		prefs.ShowTimestamps = *p.ShowTimestamps
	}
	if p.AutoScroll != nil {
		prefs.AutoScroll = *p.AutoScroll
	}
	return prefs
}

func (h *Handler) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var patch preferencesPatch
	if err := utils.DecodeJSON(w, r, &patch); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	prefs, err := h.app.UpdatePreferences(r.Context(), patch.apply(h.app.Preferences()))
	if err != nil {
		log.Printf("[settings] update preferences failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, prefs)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.app.Login(r.Context(), payload.Username, payload.Password)
	if errors.Is(err, app.ErrInvalidCredentials) {
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Logout(r.Context()); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, ok, err := h.app.CurrentUser(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	utils.RespondJSON(w, http.StatusOK, profile)
}
