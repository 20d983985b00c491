package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dtroode/otpauth-server/internal/apierrors"
	"github.com/dtroode/otpauth-server/internal/logger"
	"github.com/dtroode/otpauth-server/internal/model"
	"github.com/dtroode/otpauth-server/internal/service"
)

const (
	msgRegistered     = "User registered successfully. Please verify your email with the code sent."
	msgVerified       = "Email verified successfully"
	msgLoginPending   = "Please verify your email first. Verification code sent."
	msgLoginSuccess   = "Login successful"
	msgCurrentUser    = "Current user fetched"
	msgLoggedOut      = "Logged out successfully"
	msgVerifiedStatus = "Email verification status fetched"
)

// AuthService defines account and session operations.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (service.Session, error)
	Login(ctx context.Context, email, password string) (service.Session, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, userID uuid.UUID) (model.User, error)
	CheckEmailVerified(ctx context.Context, userID uuid.UUID) (bool, error)
}

// VerificationService checks email verification codes.
type VerificationService interface {
	CheckCode(ctx context.Context, token, code string) (service.Session, error)
}

type registerRequest struct {
	Name     string `json:"name"     validate:"required,max=255"`
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyRequest struct {
	Code looseString `json:"code" validate:"required"`
}

// Auth handles the HTTP endpoints for authentication.
type Auth struct {
	authService         AuthService
	verificationService VerificationService
	contextManager      model.ContextManager
	validator           *Validator
	logger              *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(
	authService AuthService,
	verificationService VerificationService,
	contextManager model.ContextManager,
	validator *Validator,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		authService:         authService,
		verificationService: verificationService,
		contextManager:      contextManager,
		validator:           validator,
		logger:              logger,
	}
}

// Register creates an account and answers with its first session.
func (h *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.validator.Decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	h.logger.Debug("Auth handler: processing register request",
		"email", req.Email)

	session, err := h.authService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.logger.Error("Auth handler: register failed",
			"email", req.Email,
			"error", err.Error())
		WriteError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, msgRegistered, newSessionResponse(session))
}

// Verify checks the emailed code for the caller of the bearer token.
func (h *Auth) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := h.validator.Decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	session, err := h.verificationService.CheckCode(r.Context(), BearerToken(r), string(req.Code))
	if err != nil {
		h.logger.Info("Auth handler: verification failed",
			"error", err.Error())
		WriteError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgVerified, newSessionResponse(session))
}

// Login exchanges credentials for a session.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.validator.Decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	session, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("Auth handler: login failed",
			"email", req.Email,
			"error", err.Error())
		WriteError(w, err)
		return
	}

	msg := msgLoginSuccess
	if session.VerificationPending {
		msg = msgLoginPending
	}
	writeSuccess(w, http.StatusOK, msg, newSessionResponse(session))
}

// Logout revokes the token the request was authenticated with.
func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := h.contextManager.GetToken(r.Context())
	if !ok {
		WriteError(w, apierrors.NewErrMissingAuthorizationToken())
		return
	}

	if err := h.authService.Logout(r.Context(), token); err != nil {
		h.logger.Error("Auth handler: logout failed",
			"error", err.Error())
		WriteError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgLoggedOut, nil)
}

func (h *Auth) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.contextManager.GetUserID(r.Context())
	if !ok {
		WriteError(w, apierrors.NewErrInvalidAuthorizationToken())
		return
	}

	user, err := h.authService.Me(r.Context(), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgCurrentUser, newUserResponse(user))
}

func (h *Auth) EmailVerified(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.contextManager.GetUserID(r.Context())
	if !ok {
		WriteError(w, apierrors.NewErrInvalidAuthorizationToken())
		return
	}

	verified, err := h.authService.CheckEmailVerified(r.Context(), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgVerifiedStatus, verifiedResponse{Verified: verified})
}

// BearerToken returns the token from an "Authorization: Bearer" header, or
// an empty string.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
