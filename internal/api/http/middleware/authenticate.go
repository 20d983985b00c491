package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/dtroode/otpauth-server/internal/api/http/handler"
	"github.com/dtroode/otpauth-server/internal/apierrors"
	"github.com/dtroode/otpauth-server/internal/logger"
	"github.com/dtroode/otpauth-server/internal/model"
)

// TokenResolver resolves the user a bearer token belongs to.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (uuid.UUID, error)
}

// Authenticate validates bearer tokens and injects the caller into the
// request context.
type Authenticate struct {
	tokens         TokenResolver
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(tokens TokenResolver, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{tokens: tokens, contextManager: contextManager, logger: logger}
}

// Handle rejects requests without a live bearer token.
func (m *Authenticate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := handler.BearerToken(r)

		userID, err := m.authenticateUser(r.Context(), token)
		if err != nil {
			handler.WriteError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(m.contextManager.SetAuth(r.Context(), userID, token)))
	})
}

func (m *Authenticate) authenticateUser(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, apierrors.NewErrMissingAuthorizationToken()
	}

	userID, err := m.tokens.Resolve(ctx, token)
	if errors.Is(err, model.ErrTokenInvalid) {
		m.logger.Debug("Authenticate middleware: token rejected",
			"error", err.Error())
		return uuid.Nil, apierrors.NewErrInvalidAuthorizationToken()
	}
	if err != nil {
		m.logger.Error("Authenticate middleware: failed to resolve token",
			"error", err.Error())
		return uuid.Nil, err
	}

	if userID == uuid.Nil {
		return uuid.Nil, apierrors.NewErrInvalidAuthorizationToken()
	}

	return userID, nil
}
