package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zhouzirui/gemini-chat/backend/internal/config"
	"github.com/zhouzirui/gemini-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/gemini-chat/backend/internal/handler/proxy"
	"github.com/zhouzirui/gemini-chat/backend/internal/handler/settings"
	"github.com/zhouzirui/gemini-chat/backend/internal/handler/stream"
	"github.com/zhouzirui/gemini-chat/backend/internal/handler/ws"
	"github.com/zhouzirui/gemini-chat/backend/internal/render"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/app"
)

// Dependencies 路由所需的服务。
type Dependencies struct {
	App       *app.App
	Generator proxy.Generator
	Revealer  *render.Revealer
	Server    config.ServerConfig
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	timeout := deps.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// 普通请求受超时限制，流式连接不受限制。
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		proxy.New(deps.Generator).RegisterRoutes(r)
	})

	r.Route("/api", func(api chi.Router) {
		api.Group(func(api chi.Router) {
			api.Use(middleware.Timeout(timeout))
			chat.New(deps.App).RegisterRoutes(api)
			settings.New(deps.App).RegisterRoutes(api)
		})

		stream.New(deps.App, deps.Revealer).RegisterRoutes(api)
		ws.New(deps.App, deps.Revealer).RegisterRoutes(api)
	})

	if dir := strings.TrimSpace(deps.Server.StaticDir); dir != "" {
		r.Handle("/*", http.FileServer(http.Dir(dir)))
	}

	return r
}
