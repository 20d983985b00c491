package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/dtroode/otpauth-server/internal/api/http/handler"
	"github.com/dtroode/otpauth-server/internal/apierrors"
	"github.com/dtroode/otpauth-server/internal/logger"
)

// Recover turns handler panics into internal server error responses.
type Recover struct {
	logger *logger.Logger
}

func NewRecover(logger *logger.Logger) *Recover {
	return &Recover{logger: logger}
}

func (m *Recover) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			m.logger.Error("Recover middleware: handler panicked",
				"path", r.URL.Path,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()))
			handler.WriteError(w, apierrors.NewErrInternalServerError(nil))
		}()

		next.ServeHTTP(w, r)
	})
}
