package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dtroode/otpauth-server/internal/api/http/handler"
	"github.com/dtroode/otpauth-server/internal/api/http/middleware"
	"github.com/dtroode/otpauth-server/internal/apierrors"
	"github.com/dtroode/otpauth-server/internal/logger"
	"github.com/dtroode/otpauth-server/internal/model"
)

// Methods reported in the Allow header of a 405 response, in header order.
var allowCandidates = []string{
	http.MethodDelete,
	http.MethodGet,
	http.MethodPatch,
	http.MethodPost,
	http.MethodPut,
}

// Router wires the HTTP API routes to their handlers and middleware.
type Router struct {
	authService         handler.AuthService
	verificationService handler.VerificationService
	tokens              middleware.TokenResolver
	contextManager      model.ContextManager
	pingers             []handler.Pinger
	logger              *logger.Logger
}

// New creates a new Router instance. Pingers are checked by GET /health.
func New(
	authService handler.AuthService,
	verificationService handler.VerificationService,
	tokens middleware.TokenResolver,
	contextManager model.ContextManager,
	logger *logger.Logger,
	pingers ...handler.Pinger,
) *Router {
	return &Router{
		authService:         authService,
		verificationService: verificationService,
		tokens:              tokens,
		contextManager:      contextManager,
		pingers:             pingers,
		logger:              logger,
	}
}

// Register builds the HTTP handler serving every route.
func (r *Router) Register() (http.Handler, error) {
	validator, err := handler.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	logging := middleware.NewLogging(r.logger)
	recoverer := middleware.NewRecover(r.logger)
	authenticate := middleware.NewAuthenticate(r.tokens, r.contextManager, r.logger)

	auth := handler.NewAuth(r.authService, r.verificationService, r.contextManager, validator, r.logger)
	health := handler.NewHealth(r.logger, r.pingers...)

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(recoverer.Handle)
	mux.Use(logging.Handle)
	mux.Use(chimw.StripSlashes)

	mux.Post("/register", auth.Register)
	mux.Post("/verify", auth.Verify)
	mux.Post("/login", auth.Login)
	mux.Get("/health", health.Check)

	mux.Group(func(protected chi.Router) {
		protected.Use(authenticate.Handle)
		protected.Post("/logout", auth.Logout)
		protected.Get("/me", auth.Me)
		protected.Get("/email-verified", auth.EmailVerified)
	})

	mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		handler.WriteError(w, apierrors.NewErrRouteNotFound())
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Allow", allowedMethods(mux, routePath(req)))
		handler.WriteError(w, apierrors.NewErrMethodNotAllowed())
	})

	return mux, nil
}

// allowedMethods lists the methods mux serves for path, comma separated.
func allowedMethods(mux *chi.Mux, path string) string {
	var methods []string
	for _, m := range allowCandidates {
		if mux.Match(chi.NewRouteContext(), m, path) {
			methods = append(methods, m)
		}
	}
	return strings.Join(methods, ", ")
}

func routePath(req *http.Request) string {
	if rctx := chi.RouteContext(req.Context()); rctx != nil && rctx.RoutePath != "" {
		return rctx.RoutePath
	}
	path := req.URL.Path
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
