package model

import (
	"context"

	"github.com/google/uuid"
)

// ContextManager carries the authenticated caller through a request context.
type ContextManager interface {
	SetAuth(ctx context.Context, userID uuid.UUID, token string) context.Context
	GetUserID(ctx context.Context) (uuid.UUID, bool)
	GetToken(ctx context.Context) (string, bool)
}
