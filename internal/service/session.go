package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/otpauth-server/internal/model"
)

// Session is the result of any operation that hands the caller a new token.
type Session struct {
	User        model.User
	AccessToken string
	// VerificationPending is set when a verification code was just sent.
	VerificationPending bool
}

// startSession enforces the single active session policy: every token of
// userID is revoked before exactly one new token is issued.
func startSession(ctx context.Context, tokens model.TokenIssuer, userID uuid.UUID) (string, error) {
	if err := tokens.RevokeAll(ctx, userID); err != nil {
		return "", fmt.Errorf("failed to revoke tokens: %w", err)
	}

	token, err := tokens.Issue(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	return token, nil
}
