package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/otpauth-server/internal/logger"
	"github.com/dtroode/otpauth-server/internal/model"
)

// TokenService issues, resolves and revokes bearer tokens. It composes the
// TokenManager, which signs tokens, and the AccessTokenStore, which decides
// whether a signed token is still live.
type TokenService struct {
	manager model.TokenManager
	store   model.AccessTokenStore
	logger  *logger.Logger
	now     func() time.Time
}

var _ model.TokenIssuer = (*TokenService)(nil)

func NewTokenService(manager model.TokenManager, store model.AccessTokenStore, logger *logger.Logger) *TokenService {
	return &TokenService{manager: manager, store: store, logger: logger, now: time.Now}
}

// Issue mints a token for userID and records it. Existing tokens are left alone.
func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	token, jti, expiresAt, err := s.manager.Generate(userID)
	if err != nil {
		return "", fmt.Errorf("issue access: %w", err)
	}

	now := s.now()
	at := model.AccessToken{
		ID:        uuid.New(),
		JTI:       jti,
		UserID:    userID,
		TokenHash: hashToken(token),
		IssuedAt:  now,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, at); err != nil {
		return "", fmt.Errorf("persist access: %w", err)
	}

	s.logger.Debug("Token service: token issued",
		"user_id", userID,
		"jti", jti)

	return token, nil
}

// Resolve returns the user a live token belongs to. Rejections wrap
// model.ErrTokenInvalid; store failures do not.
func (s *TokenService) Resolve(ctx context.Context, token string) (uuid.UUID, error) {
	userID, jti, err := s.manager.Parse(token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", model.ErrTokenInvalid, err)
	}

	at, err := s.store.GetByJTI(ctx, jti)
	if errors.Is(err, model.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("%w: %w", model.ErrTokenInvalid, err)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("load access: %w", err)
	}

	if err := validateRecord(at, userID, hashToken(token), s.now()); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", model.ErrTokenInvalid, err)
	}

	return userID, nil
}

// RevokeByToken revokes exactly the presented token.
func (s *TokenService) RevokeByToken(ctx context.Context, token string) error {
	_, jti, err := s.manager.Parse(token)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrTokenInvalid, err)
	}
	if err := s.store.RevokeByJTI(ctx, jti); err != nil {
		return fmt.Errorf("revoke access: %w", err)
	}
	return nil
}

// RevokeAll revokes every token of userID.
func (s *TokenService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.RevokeAllByUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all access: %w", err)
	}
	return nil
}

func hashToken(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

func validateRecord(at model.AccessToken, userID uuid.UUID, presentedHash []byte, now time.Time) error {
	if at.RevokedAt != nil {
		return model.ErrTokenRevoked
	}
	if now.After(at.ExpiresAt) {
		return model.ErrTokenExpired
	}
	if at.UserID != userID || subtle.ConstantTimeCompare(at.TokenHash, presentedHash) != 1 {
		return model.ErrTokenMismatch
	}
	return nil
}
