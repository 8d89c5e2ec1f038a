package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/gemini-chat/backend/internal/render"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/app"
	chatService "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/title"
	"github.com/zhouzirui/gemini-chat/backend/internal/storage"
)

type fixedGenerator struct{}

func (fixedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	if strings.HasPrefix(prompt, "Generate a very short title") {
		return "Greeting", nil
	}
	return "Hi there!", nil
}

func setup(t *testing.T) (*chi.Mux, string) {
	t.Helper()
	store := storage.NewMemoryStore(nil)
	application, err := app.New(chatService.NewService(store), store, fixedGenerator{}, title.NewService(fixedGenerator{}))
	require.NoError(t, err)
	session, err := application.Load(context.Background())
	require.NoError(t, err)

	r := chi.NewRouter()
	New(application, render.NewRevealer(time.Microsecond)).RegisterRoutes(r)
	return r, session.ID
}

func readEvents(t *testing.T, body string) []StreamResponse {
	t.Helper()
	var events []StreamResponse
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev StreamResponse
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestStreamRevealsReply(t *testing.T) {
	r, sessionID := setup(t)

	req := httptest.NewRequest(http.MethodGet, "/stream/"+sessionID+"?message="+url.QueryEscape("Hello"), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := readEvents(t, rec.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, "start", events[0].Event)
	assert.Equal(t, "end", events[len(events)-1].Event)

	var revealed strings.Builder
	var message, titleEvent *StreamResponse
	for i := range events {
		switch events[i].Event {
		case "delta":
			revealed.WriteString(events[i].Content)
		case "message":
			message = &events[i]
		case "title":
			titleEvent = &events[i]
		}
	}
	assert.Equal(t, "Hi there!", revealed.String())
	require.NotNil(t, message)
	assert.Equal(t, "Hi there!", message.Content)
	require.NotNil(t, titleEvent)
	assert.Equal(t, "Greeting", titleEvent.Title)
}

func TestStreamValidation(t *testing.T) {
	r, sessionID := setup(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/"+sessionID, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/missing?message=hi", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamSendErrorBecomesEvent(t *testing.T) {
	r, sessionID := setup(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/"+sessionID+"?message=%20%20", nil))

	events := readEvents(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "error", events[1].Event)
	assert.Equal(t, app.ErrEmptyPrompt.Error(), events[1].Error)
}
