package proxy

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/gemini-chat/backend/internal/service/ai"
	"github.com/zhouzirui/gemini-chat/backend/pkg/utils"
)

// Generator 将提示转发给模型并返回原始文本。
type Generator interface {
	GenerateWithModel(ctx context.Context, prompt, model string) (string, error)
	ListModels(ctx context.Context) ([]ai.ModelInfo, error)
}

// Handler serves the two proxy endpoints.
type Handler struct {
	generator Generator
}

// New 创建代理处理器
func New(generator Generator) *Handler {
	return &Handler{generator: generator}
}

// RegisterRoutes 注册代理路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/ask-gemini", h.handleAsk)
	r.Get("/list-models", h.handleListModels)
}

type askRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type askResponse struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var payload askRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		respondAIError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(payload.Prompt) == "" {
		respondAIError(w, http.StatusBadRequest, ai.ErrEmptyPrompt)
		return
	}

	text, err := h.generator.GenerateWithModel(r.Context(), payload.Prompt, payload.Model)
	if err != nil {
		log.Printf("[proxy] ask-gemini failed: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, ai.ErrEmptyPrompt) {
			status = http.StatusBadRequest
		}
		respondAIError(w, status, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, askResponse{Type: "text", Text: text})
}

func respondAIError(w http.ResponseWriter, status int, err error) {
	utils.RespondJSON(w, status, askResponse{Text: "AI Error: " + err.Error()})
}

func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.generator.ListModels(r.Context())
	if err != nil {
		log.Printf("[proxy] list-models failed: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, ai.ErrListModelsUnsupported) {
			status = http.StatusNotImplemented
		}
		utils.RespondError(w, status, "Error listing models: "+err.Error())
		return
	}
	if models == nil {
		models = []ai.ModelInfo{}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"models": models})
}
