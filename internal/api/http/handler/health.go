package handler

import (
	"context"
	"net/http"

	"github.com/dtroode/otpauth-server/internal/logger"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
}

// Health answers liveness probes.
type Health struct {
	pingers []Pinger
	logger  *logger.Logger
}

func NewHealth(logger *logger.Logger, pingers ...Pinger) *Health {
	return &Health{pingers: pingers, logger: logger}
}

func (h *Health) Check(w http.ResponseWriter, r *http.Request) {
	for _, p := range h.pingers {
		if err := p.Ping(r.Context()); err != nil {
			h.logger.Error("Health handler: dependency unavailable",
				"error", err.Error())
			WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}
	WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
