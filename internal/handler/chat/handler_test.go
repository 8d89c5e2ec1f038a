package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatModel "github.com/zhouzirui/gemini-chat/backend/internal/model/chat"
	"github.com/zhouzirui/gemini-chat/backend/internal/render"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/app"
	chatService "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/title"
	"github.com/zhouzirui/gemini-chat/backend/internal/storage"
)

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, prompt string) (string, error) {
	if strings.HasPrefix(prompt, "Generate a very short title") {
		return "Echo Title", nil
	}
	return "echo: " + prompt, nil
}

func setupRouter(t *testing.T) (*chi.Mux, *app.App, chatModel.Session) {
	t.Helper()
	store := storage.NewMemoryStore(nil)
	application, err := app.New(chatService.NewService(store), store, echoGenerator{}, title.NewService(echoGenerator{}))
	require.NoError(t, err)
	active, err := application.Load(context.Background())
	require.NoError(t, err)

	r := chi.NewRouter()
	New(application).RegisterRoutes(r)
	return r, application, active
}

func serve(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndList(t *testing.T) {
	r, _, first := setupRouter(t)

	rec := serve(r, http.MethodPost, "/chats", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var created chatModel.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEqual(t, first.ID, created.ID)

	rec = serve(r, http.MethodGet, "/chats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view render.ListView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Items, 2)
	assert.True(t, view.Items[0].Active)

	rec = serve(r, http.MethodGet, "/chats?q=nomatch", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, render.NoMatchListText, view.EmptyText)
}

func TestSendAndTranscript(t *testing.T) {
	r, _, session := setupRouter(t)

	rec := serve(r, http.MethodPost, "/chats/"+session.ID+"/messages", `{"prompt":"Hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var result app.SendResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "echo: Hello", result.Reply.Text)
	assert.Equal(t, "Echo Title", result.Title)

	rec = serve(r, http.MethodGet, "/chats/"+session.ID+"?timestamps=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var transcript render.Transcript
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transcript))
	require.Len(t, transcript.Entries, 2)
	assert.Equal(t, render.RoleUser, transcript.Entries[0].Role)
	assert.Equal(t, render.RoleAI, transcript.Entries[1].Role)
	assert.NotEmpty(t, transcript.Entries[0].Timestamp)

	rec = serve(r, http.MethodGet, "/chats/"+session.ID+"?timestamps=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendErrors(t *testing.T) {
	r, _, session := setupRouter(t)

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/chats/"+session.ID+"/messages", `{"prompt":" "}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/chats/"+session.ID+"/messages", `nope`).Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodPost, "/chats/missing/messages", `{"prompt":"hi"}`).Code)
	assert.Equal(t, http.StatusConflict, StatusForSendError(app.ErrSendInFlight))
}

func TestRenameSelectDelete(t *testing.T) {
	r, application, session := setupRouter(t)

	rec := serve(r, http.MethodPatch, "/chats/"+session.ID, `{"title":"Renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got, _ := application.Session(session.ID)
	assert.Equal(t, "Renamed", got.Title)

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPatch, "/chats/"+session.ID, `{"title":"  "}`).Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodPatch, "/chats/missing", `{"title":"x"}`).Code)

	other, err := application.NewChat(context.Background())
	require.NoError(t, err)
	rec = serve(r, http.MethodPost, "/chats/"+session.ID+"/select", "")
	require.Equal(t, http.StatusOK, rec.Code)
	active, _ := application.Active()
	assert.Equal(t, session.ID, active.ID)

	rec = serve(r, http.MethodDelete, "/chats/"+session.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Active chatModel.Session `json:"active"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, other.ID, body.Active.ID)

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodDelete, "/chats/"+session.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodPost, "/chats/missing/select", "").Code)
}

func TestClearAll(t *testing.T) {
	r, application, _ := setupRouter(t)
	_, err := application.NewChat(context.Background())
	require.NoError(t, err)

	rec := serve(r, http.MethodDelete, "/chats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, application.Search("").Items, 1)
}

func TestExportAndDraft(t *testing.T) {
	r, application, session := setupRouter(t)
	_, err := application.Send(context.Background(), session.ID, "Hello")
	require.NoError(t, err)

	rec := serve(r, http.MethodGet, "/chats/"+session.ID+"/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="Echo_Title_`)
	var doc app.ExportDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Echo Title", doc.Title)
	assert.Len(t, doc.Messages, 2)

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/chats/missing/export", "").Code)

	rec = serve(r, http.MethodGet, "/chats/"+session.ID+"/draft", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"draft":"echo: Hello"}`, rec.Body.String())
}
