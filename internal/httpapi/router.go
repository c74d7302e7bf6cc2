// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpapi exposes the account operations as a JSON HTTP API.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/accounts/internal/account"
)

var tracer = otel.Tracer("accounts/httpapi")

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// AccountService is the set of account operations the API serves.
// *account.Service implements it.
type AccountService interface {
	Register(ctx context.Context, in account.RegisterInput) (*account.User, error)
	Login(ctx context.Context, email, password string) (*account.LoginResult, error)
	Authenticate(token string) (account.Identity, error)
	EditProfile(ctx context.Context, id account.Identity, upd account.ProfileUpdate) (bool, error)
	DeleteAccount(ctx context.Context, id account.Identity) error
	ForgotPassword(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, newPassword string) error
	Logout(ctx context.Context)
}

var _ AccountService = (*account.Service)(nil)

// RequestObserver records per-operation request outcomes.
type RequestObserver interface {
	ObserveRequest(operation string, status int, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(string, int, time.Duration) {}

// Handler serves the account API.
type Handler struct {
	svc     AccountService
	logger  *slog.Logger
	metrics RequestObserver
	origins []string
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics sets where request outcomes are recorded.
func WithMetrics(m RequestObserver) Option {
	return func(h *Handler) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithAllowedOrigins sets the CORS origins. The default allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		if len(origins) > 0 {
			h.origins = origins
		}
	}
}

// NewHandler creates a Handler for svc.
func NewHandler(svc AccountService, opts ...Option) *Handler {
	h := &Handler{
		svc:     svc,
		logger:  slog.Default(),
		metrics: noopObserver{},
		origins: []string{"*"},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns the API routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, response{Message: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, response{Message: "Method not allowed"})
	})

	r.Post("/register", h.instrument("register", h.register))
	r.Post("/user-login", h.instrument("login", h.login))
	r.Post("/logout", h.instrument("logout", h.logout))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/forgot-password", h.instrument("forgot_password", h.forgotPassword))
		r.Post("/verify-otp", h.instrument("verify_otp", h.verifyOTP))
		r.Post("/reset-password", h.instrument("reset_password", h.resetPassword))
	})

	r.Route("/user", func(r chi.Router) {
		r.Use(h.requireBearer)
		r.Put("/edit", h.instrument("edit_profile", h.editProfile))
		r.Delete("/delete", h.instrument("delete_account", h.deleteAccount))
	})

	return r
}

// instrument wraps one operation in a server span and records its status
// and latency.
func (h *Handler) instrument(operation string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracer.Start(r.Context(), "accounts."+operation,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
			),
		)
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		elapsed := time.Since(start)
		h.metrics.ObserveRequest(operation, status, elapsed)
		h.logger.DebugContext(ctx, "request handled",
			"operation", operation,
			"status", status,
			"request_id", middleware.GetReqID(r.Context()),
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}
