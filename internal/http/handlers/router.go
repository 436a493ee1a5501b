package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/diagnosis/streetink-bookings/internal/http/middleware"
	mw "github.com/diagnosis/streetink-bookings/pkg/middleware"
)

type RouterConfig struct {
	JWTSecret   string
	CORSOrigins []string
	Ping        func(ctx context.Context) error
	Counters    *mw.Counters

	// LoginLimiter throttles POST /auth/login; nil disables it.
	LoginLimiter func(http.Handler) http.Handler

	Auth     *AuthHandler
	Bookings *BookingHandler
	Clients  *ClientHandler
	Account  *AccountHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Counters == nil {
		cfg.Counters = &mw.Counters{}
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("streetink"))
	r.Use(mw.Logging)
	r.Use(chimw.Recoverer)
	r.Use(mw.CORS(cfg.CORSOrigins))
	r.Use(mw.Health(cfg.Ping))
	r.Use(mw.Metrics(cfg.Counters))

	r.Route("/auth", func(r chi.Router) {
		if cfg.LoginLimiter != nil {
			r.Use(cfg.LoginLimiter)
		}
		r.Mount("/", cfg.Auth.Routes())
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireJWT(cfg.JWTSecret))
		r.Mount("/bookings", cfg.Bookings.Routes())
		r.Mount("/clients", cfg.Clients.Routes())
		r.Mount("/account", cfg.Account.Routes())
	})
	return r
}
