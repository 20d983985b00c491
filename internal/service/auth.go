package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/otpauth-server/internal/apierrors"
	"github.com/dtroode/otpauth-server/internal/logger"
	"github.com/dtroode/otpauth-server/internal/model"
)

// CodeIssuer attaches and mails a fresh verification code.
type CodeIssuer interface {
	IssueCode(ctx context.Context, user model.User) (model.User, error)
}

type Auth struct {
	userStore    model.UserStore
	hasher       model.SecretHasher
	tokens       model.TokenIssuer
	verification CodeIssuer
	logger       *logger.Logger
	now          func() time.Time
}

func NewAuth(
	userStore model.UserStore,
	hasher model.SecretHasher,
	tokens model.TokenIssuer,
	verification CodeIssuer,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		userStore:    userStore,
		hasher:       hasher,
		tokens:       tokens,
		verification: verification,
		logger:       logger,
		now:          time.Now,
	}
}

// Register creates an unverified account, mails it a code and opens its
// only session.
func (a *Auth) Register(ctx context.Context, name, email, password string) (Session, error) {
	a.logger.Debug("Auth service: starting user registration",
		"email", email)

	existing, err := a.userStore.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		a.logger.Error("Auth service: failed to get user by email",
			"email", email,
			"error", err.Error())
		return Session{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	if existing.ID != uuid.Nil {
		a.logger.Info("Auth service: user already exists",
			"email", email)
		return Session{}, apierrors.NewErrEmailIsTaken()
	}

	hash, err := a.hasher.Hash(password)
	if err != nil {
		return Session{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := a.now()
	user, err := a.userStore.Create(ctx, model.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, model.ErrAlreadyExists) {
		a.logger.Info("Auth service: user created concurrently",
			"email", email)
		return Session{}, apierrors.NewErrEmailIsTaken()
	}
	if err != nil {
		a.logger.Error("Auth service: failed to create user",
			"email", email,
			"error", err.Error())
		return Session{}, fmt.Errorf("failed to create user: %w", err)
	}

	user, err = a.verification.IssueCode(ctx, user)
	if err != nil {
		return Session{}, err
	}

	token, err := startSession(ctx, a.tokens, user.ID)
	if err != nil {
		a.logger.Error("Auth service: failed to start session",
			"user_id", user.ID,
			"error", err.Error())
		return Session{}, err
	}

	a.logger.Info("Auth service: user registered",
		"user_id", user.ID)

	return Session{User: user, AccessToken: token, VerificationPending: true}, nil
}

// Login checks credentials and replaces every session of the user with a
// new one. Unverified users get a fresh code.
func (a *Auth) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := a.userStore.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		a.logger.Info("Auth service: login for unknown email",
			"email", email)
		return Session{}, apierrors.NewErrInvalidCredentials()
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	ok, err := a.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return Session{}, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		a.logger.Info("Auth service: password mismatch",
			"user_id", user.ID)
		return Session{}, apierrors.NewErrInvalidCredentials()
	}

	token, err := startSession(ctx, a.tokens, user.ID)
	if err != nil {
		a.logger.Error("Auth service: failed to start session",
			"user_id", user.ID,
			"error", err.Error())
		return Session{}, err
	}

	if user.IsVerified() {
		a.logger.Info("Auth service: user logged in",
			"user_id", user.ID)
		return Session{User: user, AccessToken: token}, nil
	}

	user, err = a.verification.IssueCode(ctx, user)
	if err != nil {
		return Session{}, err
	}

	a.logger.Info("Auth service: unverified user logged in",
		"user_id", user.ID)

	return Session{User: user, AccessToken: token, VerificationPending: true}, nil
}

// Logout revokes only the presented token.
func (a *Auth) Logout(ctx context.Context, token string) error {
	err := a.tokens.RevokeByToken(ctx, token)
	if errors.Is(err, model.ErrTokenInvalid) {
		return apierrors.NewErrInvalidAuthorizationToken()
	}
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (a *Auth) Me(ctx context.Context, userID uuid.UUID) (model.User, error) {
	user, err := a.userStore.GetByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return model.User{}, apierrors.NewErrInvalidAuthorizationToken()
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

func (a *Auth) CheckEmailVerified(ctx context.Context, userID uuid.UUID) (bool, error) {
	user, err := a.Me(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsVerified(), nil
}
