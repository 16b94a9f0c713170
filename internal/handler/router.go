package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/complymate/internal/handler/chat"
	"github.com/zhouzirui/complymate/internal/metrics"
	middlewarePkg "github.com/zhouzirui/complymate/internal/middleware"
	aiService "github.com/zhouzirui/complymate/internal/service/ai"
	chatService "github.com/zhouzirui/complymate/internal/service/chat"
	"github.com/zhouzirui/complymate/pkg/utils"
)

// NewRouter wires HTTP routes to core services. aiSvc may be nil when the
// model is not configured.
func NewRouter(chatSvc *chatService.Service, aiSvc *aiService.Service, m *metrics.Metrics, tokens []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)
	r.Use(middlewarePkg.Instrument(m))

	var replier chat.Replier
	if aiSvc != nil {
		replier = aiSvc
	}
	chatHandler := chat.New(chatSvc, replier, m)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{"status": "ok", "ai": aiSvc != nil})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middlewarePkg.BearerAuth(tokens))
		chatHandler.RegisterRoutes(api)
	})

	return r
}
