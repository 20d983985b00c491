package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenManager signs and parses bearer tokens.
type TokenManager interface {
	Generate(userID uuid.UUID) (token string, jti string, expiresAt time.Time, err error)
	Parse(token string) (userID uuid.UUID, jti string, err error)
}

// AccessTokenStore persists issued bearer tokens so they can be revoked.
type AccessTokenStore interface {
	Create(ctx context.Context, token AccessToken) error
	GetByJTI(ctx context.Context, jti string) (AccessToken, error)
	RevokeByJTI(ctx context.Context, jti string) error
	RevokeAllByUser(ctx context.Context, userID uuid.UUID) error
}

// AccessToken is the stored side of an issued bearer token.
type AccessToken struct {
	ID        uuid.UUID
	JTI       string
	UserID    uuid.UUID
	TokenHash []byte
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenIssuer mints, resolves and revokes bearer tokens bound to a user.
type TokenIssuer interface {
	Issue(ctx context.Context, userID uuid.UUID) (string, error)
	Resolve(ctx context.Context, token string) (uuid.UUID, error)
	RevokeByToken(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}
