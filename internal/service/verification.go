package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dtroode/otpauth-server/internal/apierrors"
	"github.com/dtroode/otpauth-server/internal/logger"
	"github.com/dtroode/otpauth-server/internal/model"
)

const (
	codeMin = 100000
	codeMax = 999999

	// DefaultCodeTTL is how long an issued verification code stays valid.
	DefaultCodeTTL = 15 * time.Minute

	verificationSubject = "Your verification code"
)

// Verification issues and checks the email verification codes that move a
// user into the verified state.
type Verification struct {
	userStore    model.UserStore
	tokens       model.TokenIssuer
	mailer       model.Mailer
	codeTTL      time.Duration
	logger       *logger.Logger
	now          func() time.Time
	generateCode func() (string, error)
}

func NewVerification(
	userStore model.UserStore,
	tokens model.TokenIssuer,
	mailer model.Mailer,
	codeTTL time.Duration,
	logger *logger.Logger,
) *Verification {
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	return &Verification{
		userStore:    userStore,
		tokens:       tokens,
		mailer:       mailer,
		codeTTL:      codeTTL,
		logger:       logger,
		now:          time.Now,
		generateCode: generateCode,
	}
}

// IssueCode attaches a fresh code to user, persists it and mails it.
//
// The code is stored before the mail is sent. A delivery failure is
// returned to the caller but the stored code is kept.
func (v *Verification) IssueCode(ctx context.Context, user model.User) (model.User, error) {
	code, err := v.generateCode()
	if err != nil {
		return model.User{}, fmt.Errorf("failed to generate verification code: %w", err)
	}

	user.SetVerificationCode(code, v.now().Add(v.codeTTL))

	saved, err := v.userStore.Update(ctx, user)
	if err != nil {
		v.logger.Error("Verification service: failed to store code",
			"user_id", user.ID,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to store verification code: %w", err)
	}

	err = v.mailer.Send(ctx, model.Message{
		To:      saved.Email,
		Subject: verificationSubject,
		Body:    verificationBody(code, v.codeTTL),
	})
	if err != nil {
		v.logger.Error("Verification service: failed to send code",
			"user_id", saved.ID,
			"email", saved.Email,
			"error", err.Error())
		return saved, fmt.Errorf("failed to send verification code: %w", err)
	}

	v.logger.Info("Verification service: code sent",
		"user_id", saved.ID,
		"expires_at", saved.VerificationExpiresAt)

	return saved, nil
}

// CheckCode verifies the caller identified by token with the presented code.
// The code is compared before the expiry is checked, so a wrong code is
// always reported as invalid even when it has also expired.
func (v *Verification) CheckCode(ctx context.Context, token, code string) (Session, error) {
	if token == "" {
		return Session{}, apierrors.NewErrMissingAuthorizationToken()
	}

	userID, err := v.tokens.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrTokenInvalid) {
			return Session{}, apierrors.NewErrInvalidAuthorizationToken()
		}
		return Session{}, fmt.Errorf("failed to resolve token: %w", err)
	}

	user, err := v.userStore.GetByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return Session{}, apierrors.NewErrInvalidAuthorizationToken()
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to get user by id: %w", err)
	}

	if user.VerificationCode == nil || *user.VerificationCode != code {
		v.logger.Info("Verification service: code mismatch",
			"user_id", user.ID)
		return Session{}, apierrors.NewErrInvalidCode()
	}

	if user.VerificationExpiresAt == nil || user.VerificationExpiresAt.Before(v.now()) {
		v.logger.Info("Verification service: code expired",
			"user_id", user.ID)
		return Session{}, apierrors.NewErrCodeExpired()
	}

	user.MarkVerified(v.now())
	user, err = v.userStore.Update(ctx, user)
	if err != nil {
		return Session{}, fmt.Errorf("failed to mark user verified: %w", err)
	}

	newToken, err := startSession(ctx, v.tokens, user.ID)
	if err != nil {
		return Session{}, err
	}

	v.logger.Info("Verification service: email verified",
		"user_id", user.ID)

	return Session{User: user, AccessToken: newToken}, nil
}

// generateCode draws a code uniformly from [codeMin, codeMax].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

func verificationBody(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your verification code is %s.\n\nIt expires in %d minutes.\n", code, int(ttl.Minutes()))
}
