package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/gemini-chat/backend/internal/service/ai"
)

type stubGenerator struct {
	reply     string
	err       error
	models    []ai.ModelInfo
	listErr   error
	gotPrompt string
	gotModel  string
}

func (s *stubGenerator) GenerateWithModel(_ context.Context, prompt, model string) (string, error) {
	s.gotPrompt = prompt
	s.gotModel = model
	return s.reply, s.err
}

func (s *stubGenerator) ListModels(context.Context) ([]ai.ModelInfo, error) {
	return s.models, s.listErr
}

func setupRouter(gen *stubGenerator) *chi.Mux {
	r := chi.NewRouter()
	New(gen).RegisterRoutes(r)
	return r
}

func serve(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAskGemini(t *testing.T) {
	gen := &stubGenerator{reply: "Hi there!"}
	rec := serve(setupRouter(gen), http.MethodPost, "/ask-gemini", `{"prompt":"Hello","model":"gemini-2.5-flash"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"type":"text","text":"Hi there!"}`, rec.Body.String())
	assert.Equal(t, "Hello", gen.gotPrompt)
	assert.Equal(t, "gemini-2.5-flash", gen.gotModel)
}

func TestAskGeminiProviderError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("API key not valid")}
	rec := serve(setupRouter(gen), http.MethodPost, "/ask-gemini", `{"prompt":"Hello"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"text":"AI Error: API key not valid"}`, rec.Body.String())
}

func TestAskGeminiBadRequests(t *testing.T) {
	for name, body := range map[string]string{
		"malformed":    `{"prompt":`,
		"empty body":   ``,
		"blank prompt": `{"prompt":"   "}`,
	} {
		t.Run(name, func(t *testing.T) {
			gen := &stubGenerator{reply: "unused"}
			rec := serve(setupRouter(gen), http.MethodPost, "/ask-gemini", body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"text":"AI Error: `)
			assert.Empty(t, gen.gotPrompt)
		})
	}
}

func TestListModels(t *testing.T) {
	gen := &stubGenerator{models: []ai.ModelInfo{{
		Name:                       "models/gemini-2.5-flash",
		DisplayName:                "Gemini 2.5 Flash",
		SupportedGenerationMethods: []string{"generateContent"},
	}}}
	rec := serve(setupRouter(gen), http.MethodGet, "/list-models", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"models":[{"name":"models/gemini-2.5-flash","displayName":"Gemini 2.5 Flash","supportedGenerationMethods":["generateContent"]}]}`, rec.Body.String())
}

func TestListModelsErrors(t *testing.T) {
	rec := serve(setupRouter(&stubGenerator{listErr: errors.New("boom")}), http.MethodGet, "/list-models", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Error listing models: boom"}`, rec.Body.String())

	rec = serve(setupRouter(&stubGenerator{listErr: ai.ErrListModelsUnsupported}), http.MethodGet, "/list-models", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = serve(setupRouter(&stubGenerator{}), http.MethodGet, "/list-models", "")
	assert.JSONEq(t, `{"models":[]}`, rec.Body.String())
}
