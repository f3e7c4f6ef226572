package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/mindmend/backend/internal/handler/chat"
	memoryHandler "github.com/mindmend/backend/internal/handler/memory"
	middlewarePkg "github.com/mindmend/backend/internal/middleware"
	"github.com/mindmend/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. Nil collaborators degrade the
// matching endpoints instead of failing startup.
func NewRouter(chatH *chatHandler.Handler, memoryH *memoryHandler.Handler, memoryEnabled, generationEnabled bool) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		chatH.RegisterRoutes(api)
		memoryH.RegisterRoutes(api)

		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":     "ok",
				"memory":     memoryEnabled,
				"generation": generationEnabled,
			})
		})
	})

	return r
}
