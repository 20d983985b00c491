package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apicontext "github.com/dtroode/otpauth-server/internal/api/http/context"
	"github.com/dtroode/otpauth-server/internal/apierrors"
	"github.com/dtroode/otpauth-server/internal/model"
	"github.com/dtroode/otpauth-server/internal/service"
	"github.com/dtroode/otpauth-server/internal/testutil"
)

type authServiceMock struct {
	mock.Mock
}

func (m *authServiceMock) Register(ctx context.Context, name, email, password string) (service.Session, error) {
	args := m.Called(ctx, name, email, password)
	return args.Get(0).(service.Session), args.Error(1)
}

func (m *authServiceMock) Login(ctx context.Context, email, password string) (service.Session, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(service.Session), args.Error(1)
}

func (m *authServiceMock) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *authServiceMock) Me(ctx context.Context, userID uuid.UUID) (model.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *authServiceMock) CheckEmailVerified(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type verificationServiceMock struct {
	mock.Mock
}

func (m *verificationServiceMock) CheckCode(ctx context.Context, token, code string) (service.Session, error) {
	args := m.Called(ctx, token, code)
	return args.Get(0).(service.Session), args.Error(1)
}

type response struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

func newTestHandler(t *testing.T) (*Auth, *authServiceMock, *verificationServiceMock) {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)

	as := &authServiceMock{}
	as.Test(t)
	vs := &verificationServiceMock{}
	vs.Test(t)
	t.Cleanup(func() {
		as.AssertExpectations(t)
		vs.AssertExpectations(t)
	})

	return NewAuth(as, vs, apicontext.NewManager(), v, testutil.MakeNoopLogger()), as, vs
}

func do(t *testing.T, h http.HandlerFunc, req *http.Request) (int, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, resp
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func testSession() service.Session {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return service.Session{
		User:        model.User{ID: uuid.New(), Name: "Ann", Email: "ann@example.com", PasswordHash: "secret-hash", CreatedAt: now, UpdatedAt: now},
		AccessToken: "tok",
	}
}

func TestAuth_Register(t *testing.T) {
	h, as, _ := newTestHandler(t)
	s := testSession()
	s.VerificationPending = true
	as.On("Register", mock.Anything, "Ann", "ann@example.com", "password1").Return(s, nil).Once()

	code, resp := do(t, h.Register, jsonRequest(http.MethodPost, "/register",
		`{"name":"Ann","email":"ann@example.com","password":"password1"}`))

	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, msgRegistered, resp.Message)

	var data map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "tok", data["access_token"])
	assert.Equal(t, "Bearer", data["token_type"])
	user := data["user"].(map[string]any)
	assert.Equal(t, "ann@example.com", user["email"])
	assert.Equal(t, false, user["verified"])
	assert.Nil(t, user["email_verified_at"])
	assert.NotContains(t, user, "password_hash")
	assert.NotContains(t, user, "verification_code")
}

func TestAuth_Register_Validation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields map[string][]string
	}{
		{
			name: "empty body",
			body: ``,
			fields: map[string][]string{
				"name":     {"The name field is required."},
				"email":    {"The email field is required."},
				"password": {"The password field is required."},
			},
		},
		{
			name: "bad email and short password",
			body: `{"name":"Ann","email":"nope","password":"short"}`,
			fields: map[string][]string{
				"email":    {"The email must be a valid email address."},
				"password": {"The password must be at least 8 characters."},
			},
		},
		{
			name: "long name",
			body: `{"name":"` + strings.Repeat("a", 256) + `","email":"ann@example.com","password":"password1"}`,
			fields: map[string][]string{
				"name": {"The name must not be greater than 255 characters."},
			},
		},
		{
			name: "name not a string",
			body: `{"name":42,"email":"ann@example.com","password":"password1"}`,
			fields: map[string][]string{
				"name": {"The name must be a string."},
			},
		},
		{
			name: "not json",
			body: `name=Ann`,
			fields: map[string][]string{
				"body": {"The request body must be valid JSON."},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := newTestHandler(t)

			code, resp := do(t, h.Register, jsonRequest(http.MethodPost, "/register", tt.body))

			assert.Equal(t, http.StatusUnprocessableEntity, code)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, "Validation failed", resp.Message)
			assert.Equal(t, tt.fields, resp.Errors)
		})
	}
}

func TestAuth_Register_EmailTaken(t *testing.T) {
	h, as, _ := newTestHandler(t)
	as.On("Register", mock.Anything, "Ann", "ann@example.com", "password1").
		Return(service.Session{}, apierrors.NewErrEmailIsTaken()).Once()

	code, resp := do(t, h.Register, jsonRequest(http.MethodPost, "/register",
		`{"name":"Ann","email":"ann@example.com","password":"password1"}`))

	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, []string{"The email has already been taken."}, resp.Errors["email"])
}

func TestAuth_Register_InternalError(t *testing.T) {
	h, as, _ := newTestHandler(t)
	as.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(service.Session{}, assert.AnError).Once()

	code, resp := do(t, h.Register, jsonRequest(http.MethodPost, "/register",
		`{"name":"Ann","email":"ann@example.com","password":"password1"}`))

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, assert.AnError.Error(), resp.Message)
	assert.Nil(t, resp.Errors)
}

func TestAuth_Verify(t *testing.T) {
	t.Run("numeric code and bearer token", func(t *testing.T) {
		h, _, vs := newTestHandler(t)
		vs.On("CheckCode", mock.Anything, "tok", "123456").Return(testSession(), nil).Once()

		req := jsonRequest(http.MethodPost, "/verify", `{"code":123456}`)
		req.Header.Set("Authorization", "Bearer tok")
		code, resp := do(t, h.Verify, req)

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, msgVerified, resp.Message)
	})

	t.Run("missing code is checked before the token", func(t *testing.T) {
		h, _, _ := newTestHandler(t)

		code, resp := do(t, h.Verify, jsonRequest(http.MethodPost, "/verify", `{}`))

		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Equal(t, []string{"The code field is required."}, resp.Errors["code"])
	})

	t.Run("no token", func(t *testing.T) {
		h, _, vs := newTestHandler(t)
		vs.On("CheckCode", mock.Anything, "", "123456").
			Return(service.Session{}, apierrors.NewErrMissingAuthorizationToken()).Once()

		code, resp := do(t, h.Verify, jsonRequest(http.MethodPost, "/verify", `{"code":"123456"}`))

		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, "Token not provided", resp.Message)
	})

	t.Run("expired code", func(t *testing.T) {
		h, _, vs := newTestHandler(t)
		vs.On("CheckCode", mock.Anything, "tok", "123456").
			Return(service.Session{}, apierrors.NewErrCodeExpired()).Once()

		req := jsonRequest(http.MethodPost, "/verify", `{"code":"123456"}`)
		req.Header.Set("Authorization", "Bearer tok")
		code, resp := do(t, h.Verify, req)

		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Code expired", resp.Message)
	})
}

func TestAuth_Login(t *testing.T) {
	t.Run("verified", func(t *testing.T) {
		h, as, _ := newTestHandler(t)
		as.On("Login", mock.Anything, "ann@example.com", "password1").Return(testSession(), nil).Once()

		code, resp := do(t, h.Login, jsonRequest(http.MethodPost, "/login",
			`{"email":"ann@example.com","password":"password1"}`))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, msgLoginSuccess, resp.Message)
	})

	t.Run("verification pending", func(t *testing.T) {
		h, as, _ := newTestHandler(t)
		s := testSession()
		s.VerificationPending = true
		as.On("Login", mock.Anything, "ann@example.com", "password1").Return(s, nil).Once()

		code, resp := do(t, h.Login, jsonRequest(http.MethodPost, "/login",
			`{"email":"ann@example.com","password":"password1"}`))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, msgLoginPending, resp.Message)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		h, as, _ := newTestHandler(t)
		as.On("Login", mock.Anything, "ann@example.com", "wrong").
			Return(service.Session{}, apierrors.NewErrInvalidCredentials()).Once()

		code, resp := do(t, h.Login, jsonRequest(http.MethodPost, "/login",
			`{"email":"ann@example.com","password":"wrong"}`))

		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, "Invalid credentials", resp.Message)
	})

	t.Run("short password is accepted by login validation", func(t *testing.T) {
		h, as, _ := newTestHandler(t)
		as.On("Login", mock.Anything, "ann@example.com", "x").
			Return(service.Session{}, apierrors.NewErrInvalidCredentials()).Once()

		code, _ := do(t, h.Login, jsonRequest(http.MethodPost, "/login",
			`{"email":"ann@example.com","password":"x"}`))

		assert.Equal(t, http.StatusUnauthorized, code)
	})
}

func TestAuth_AuthenticatedEndpoints(t *testing.T) {
	userID := uuid.New()
	ctxm := apicontext.NewManager()
	authed := func(path string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		return req.WithContext(ctxm.SetAuth(req.Context(), userID, "tok"))
	}

	t.Run("me", func(t *testing.T) {
		h, as, _ := newTestHandler(t)
		as.On("Me", mock.Anything, userID).Return(model.User{ID: userID, Name: "Ann"}, nil).Once()

		code, resp := do(t, h.Me, authed("/me"))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, msgCurrentUser, resp.Message)
		assert.Contains(t, string(resp.Data), `"name":"Ann"`)
	})

	t.Run("logout", func(t *testing.T) {
		h, as, _ := newTestHandler(t)
		as.On("Logout", mock.Anything, "tok").Return(nil).Once()

		code, resp := do(t, h.Logout, authed("/logout"))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, msgLoggedOut, resp.Message)
		assert.Equal(t, "null", string(resp.Data))
	})

	t.Run("email verified", func(t *testing.T) {
		h, as, _ := newTestHandler(t)
		as.On("CheckEmailVerified", mock.Anything, userID).Return(true, nil).Once()

		code, resp := do(t, h.EmailVerified, authed("/email-verified"))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, msgVerifiedStatus, resp.Message)
		assert.JSONEq(t, `{"verified":true}`, string(resp.Data))
	})

	t.Run("no caller in context", func(t *testing.T) {
		h, _, _ := newTestHandler(t)

		code, _ := do(t, h.Me, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, code)
	})
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":   "abc",
		"bearer abc":   "abc",
		"Bearer  abc ": "abc",
		"Basic abc":    "",
		"abc":          "",
		"":             "",
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, BearerToken(req), header)
	}
}
