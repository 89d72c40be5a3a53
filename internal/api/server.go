// Package api provides the HTTP server for agrolend.
// It renders the farmer app and the bank back office from the lending API,
// streams live views over SSE and guards every irreversible command behind a
// confirmation preview.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agrocredit/agrolend/internal/app/confirm"
	"github.com/agrocredit/agrolend/internal/domain"
	"github.com/agrocredit/agrolend/internal/i18n"
)

// Options wires a Server.
type Options struct {
	Backend   domain.Backend
	Flow      *confirm.Flow
	Directory domain.FarmerDirectory
	Sessions  *SessionManager
	Catalog   *i18n.Catalog
	Logger    *zap.Logger

	LoansInterval         time.Duration // live loans poll (default: 5s)
	NotificationsInterval time.Duration // live bell poll (default: 10s)
	RequestTimeout        time.Duration // non-streaming requests (default: 60s)
	CORSOrigins           []string      // origins allowed on JSON endpoints
}

// Server is the agrolend HTTP server.
type Server struct {
	backend   domain.Backend
	flow      *confirm.Flow
	directory domain.FarmerDirectory
	sessions  *SessionManager
	cat       *i18n.Catalog
	pages     *Renderer
	logger    *zap.Logger

	loansInterval         time.Duration
	notificationsInterval time.Duration
	requestTimeout        time.Duration
	corsOrigins           []string
	metricsEnabled        bool
}

// NewServer creates the server and parses its templates.
func NewServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Catalog == nil {
		opts.Catalog = i18n.MustLoad(i18n.Fallback)
	}
	if opts.LoansInterval <= 0 {
		opts.LoansInterval = 5 * time.Second
	}
	if opts.NotificationsInterval <= 0 {
		opts.NotificationsInterval = 10 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	pages, err := NewRenderer(opts.Catalog)
	if err != nil {
		return nil, err
	}

	return &Server{
		backend:               opts.Backend,
		flow:                  opts.Flow,
		directory:             opts.Directory,
		sessions:              opts.Sessions,
		cat:                   opts.Catalog,
		pages:                 pages,
		logger:                opts.Logger,
		loansInterval:         opts.LoansInterval,
		notificationsInterval: opts.NotificationsInterval,
		requestTimeout:        opts.RequestTimeout,
		corsOrigins:           opts.CORSOrigins,
	}, nil
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	// Health check for Render
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Live feeds hold the connection open, so they skip the request timeout.
	r.Group(func(r chi.Router) {
		r.Use(s.sessions.Require(domain.RoleFarmer))
		r.Get("/farmer/loans/live", s.handleLoansLive)
		r.Get("/farmer/notifications/live", s.handleNotificationsLive)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout))

		r.Get("/", s.handleLanding)
		r.Post("/session", s.handleSessionCreate)
		r.Post("/session/logout", s.handleSessionLogout)

		r.Route("/farmer", func(r chi.Router) {
			r.Use(s.sessions.Require(domain.RoleFarmer))
			r.Get("/home", s.handleFarmerHome)
			r.Get("/loans", s.handleLoans)
			r.Post("/loans/{id}/sign/open", s.handleSignOpen)
			r.Post("/loans/{id}/sign", s.handleSignConfirm)
			r.Post("/loans/{id}/pay/open", s.handlePayOpen)
			r.Post("/loans/{id}/pay", s.handlePayConfirm)
			r.Post("/previews/{token}/cancel", s.handleCancel("/farmer/loans"))
			r.Get("/applications/new", s.handleApplyForm)
			r.Post("/applications", s.handleApplySubmit)
			r.Get("/notifications", s.handleNotifications)
			r.Get("/profile", s.handleProfile)

			r.Group(func(r chi.Router) {
				r.Use(cors.Handler(cors.Options{
					AllowedOrigins:   s.corsOrigins,
					AllowedMethods:   []string{"GET", "OPTIONS"},
					AllowedHeaders:   []string{"Accept", "Content-Type"},
					AllowCredentials: true,
					MaxAge:           300,
				}))
				r.Get("/estimate", s.handleEstimate)
			})
		})

		r.Route("/bank", func(r chi.Router) {
			r.Use(s.sessions.Require(domain.RoleBank))
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/applications", s.handleApplications)
			r.Post("/applications/{id}/preview", s.handleReviewPreview)
			r.Post("/applications/{id}/review", s.handleReviewConfirm)
			r.Post("/previews/{token}/cancel", s.handleCancel("/bank/applications"))
			r.Get("/farmers", s.handleFarmers)
		})
	})

	return r
}

// requestLogger logs every request with zap once it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}
