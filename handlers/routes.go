package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/camden-git/acnesense/media"
	"github.com/camden-git/acnesense/realtime"
	"github.com/camden-git/acnesense/repository"
	"github.com/camden-git/acnesense/services"
)

// RouterDeps collects everything the HTTP API is wired to.
type RouterDeps struct {
	Users          repository.UserRepository
	Tokens         *TokenIssuer
	Detections     *services.DetectionService
	Store          media.Store
	Hub            *realtime.Hub
	Metrics        http.Handler // may be nil
	AllowedOrigins []string
	RequestTimeout time.Duration
	StartedAt      time.Time
	SecureCookie   bool
}

// NewRouter builds the chi router with all API routes.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	authHandler := NewAuthHandler(deps.Users, deps.Tokens)
	authHandler.SecureCookie = deps.SecureCookie
	detectionHandler := NewDetectionHandler(deps.Detections)
	requireAuth := AuthMiddleware(deps.Users, deps.Tokens)

	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r.Get("/health", HealthHandler(deps.StartedAt))
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Get("/me", authHandler.CurrentUser)
				r.Post("/save-detection", detectionHandler.SaveDetection)
				r.Get("/hasil/{id_riwayat}", detectionHandler.GetReport)
				r.Get("/riwayat", detectionHandler.ListHistory)
				r.Delete("/riwayat/{id_riwayat}", detectionHandler.DeleteHistory)
				if deps.Store != nil {
					r.Get("/assets/*", AssetServer(deps.Store, deps.Detections))
				}
			})
		})

		// long-lived; no request timeout
		if deps.Hub != nil {
			r.With(requireAuth).Get("/ws", RealtimeHandler(deps.Hub))
		}
	})

	return r
}
