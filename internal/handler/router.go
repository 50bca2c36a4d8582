package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig carries what NewRouter needs besides the handlers.
type RouterConfig struct {
	Logger  *zap.Logger
	Auth    *Authenticator
	Limiter *RateLimiter
	// Gatherer backs GET /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the chi router with the global middleware stack.
func NewRouter(h *EventHandler, cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(log))             // structured access log
	r.Use(CORS)

	r.Get("/health", HealthCheck)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	organizers := RequireRole(RoleOrganizer, RoleAdmin)
	limit := func(next http.Handler) http.Handler { return next }
	if cfg.Limiter != nil {
		limit = cfg.Limiter.Limit
	}

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)
		r.Get("/{id}/quote", h.Quote)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth.Authenticate)
			r.Get("/{id}/registration", h.RegistrationStatus)

			r.Group(func(r chi.Router) {
				r.Use(limit)
				r.With(RequireRole(RoleAttendee)).Post("/{id}/register", h.Register)
				r.With(RequireRole(RoleAttendee)).Post("/{id}/purchase", h.Purchase)
				r.Delete("/{id}/registration", h.Unregister)
			})

			r.Group(func(r chi.Router) {
				r.Use(organizers)
				r.Post("/", h.CreateEvent)
				r.Put("/{id}/price", h.RepriceEvent)
				r.Put("/{id}/tickets/{type}/price", h.RepriceTicket)
				r.Get("/{id}/attendees", h.ListAttendees)
			})
		})
	})

	r.With(cfg.Auth.Authenticate).Get("/me/registrations", h.MyRegistrations)
	r.With(cfg.Auth.Authenticate, organizers).Get("/stats", h.Stats)

	return r
}
