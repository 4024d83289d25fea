package router

import (
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/queueit/backend/internal/broker"
	"github.com/queueit/backend/internal/catalog"
	"github.com/queueit/backend/internal/config"
	"github.com/queueit/backend/internal/handlers"
	"github.com/queueit/backend/internal/middleware"
	"github.com/queueit/backend/internal/services"
	"github.com/queueit/backend/internal/store"
)

// New wires services and handlers onto a chi router. The hub must be the one
// the caller closes on shutdown. The returned func releases the router's
// background workers and must be called once the server stops.
func New(cfg *config.Config, st *store.Store, hub *broker.Broker) (http.Handler, func()) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.NewRealIPMiddleware(cfg.TrustedProxies).Handler)
	r.Use(middleware.RequestContextMiddleware)
	r.Use(middleware.AccessLogMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true, Timeout: 2 * time.Second}).Handle)
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))

	// Services
	retry := services.RetryPolicy{Attempts: services.DefaultRetryPolicy.Attempts, Delay: cfg.StoreRetryDelay}
	authService := services.NewAuthService(cfg.JWTSecret, cfg.HostTokenDuration, cfg.MemberTokenDuration)
	joinCodes := services.NewJoinCodeService(st)
	resolver := catalog.Chain{catalog.StaticResolver{}}
	if spotify := catalog.NewSpotifyResolver(cfg.SpotifyClientID, cfg.SpotifyClientSecret); spotify.Enabled() {
		resolver = append(resolver, spotify)
	}
	sessionService := services.NewSessionService(st, joinCodes, retry)
	queueService := services.NewQueueService(st, services.NewVoteLedger(st), resolver, hub, retry)

	// Handlers
	configHandler := handlers.NewConfigHandler(cfg)
	sessionHandler := handlers.NewSessionHandler(sessionService, queueService, authService)
	queueHandler := handlers.NewQueueHandler(queueService)
	streamHandler := handlers.NewStreamHandler(hub, sessionService, cfg.SSEHeartbeat, cfg.CORSAllowedOrigins)

	// Rate limiter for queue mutations
	queueRateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	// Routes
	r.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Public configuration (Spotify client ID, poll interval)
		r.Get("/config", configHandler.PublicConfig)

		// Session management
		r.Route("/sessions", func(r chi.Router) {
			// Create session; the caller becomes host
			r.Post("/", sessionHandler.Create)

			// Join session with join code (no auth)
			r.Post("/join", sessionHandler.Join)

			// Rejoin as host with the host secret (no auth)
			r.Post("/rejoin", sessionHandler.Rejoin)

			// Protected session routes
			r.Route("/{id}", func(r chi.Router) {
				r.Use(middleware.AuthMiddleware(authService))
				r.Use(middleware.SessionScopeMiddleware)
				r.Use(middleware.UpdateRequestContextMiddleware)

				r.Get("/", sessionHandler.Get)
				r.Get("/state", queueHandler.State)
				r.Post("/leave", sessionHandler.Leave)

				// Event streams
				r.Get("/events", streamHandler.Events)
				r.Get("/ws", streamHandler.WebSocket)

				// Queue mutations (rate limited)
				r.Group(func(r chi.Router) {
					r.Use(queueRateLimiter.Middleware)
					r.Post("/queue", queueHandler.AddSong)
					r.Post("/queue/{entryId}/vote", queueHandler.Vote)
				})

				// Host-only playback and session controls
				r.Group(func(r chi.Router) {
					r.Use(middleware.HostOnlyMiddleware)
					r.Patch("/control", sessionHandler.Control)
					r.Delete("/", sessionHandler.End)
					r.Post("/finished", queueHandler.Finished)
					r.Post("/skip", queueHandler.Skip)
				})
			})
		})
	})

	return r, queueRateLimiter.Stop
}
