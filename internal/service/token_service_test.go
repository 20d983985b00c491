package service

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	servermocks "github.com/dtroode/otpauth-server/internal/mocks"
	"github.com/dtroode/otpauth-server/internal/model"
	"github.com/dtroode/otpauth-server/internal/testutil"
)

func tokenHash(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

func TestTokenService_Issue(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	expiresAt := time.Now().Add(time.Hour)

	manager := servermocks.NewTokenManager(t)
	store := servermocks.NewAccessTokenStore(t)

	manager.On("Generate", userID).Return("access", "jti-1", expiresAt, nil).Once()
	store.On("Create", ctx, mock.MatchedBy(func(at model.AccessToken) bool {
		return at.JTI == "jti-1" &&
			at.UserID == userID &&
			at.ExpiresAt.Equal(expiresAt) &&
			assert.ObjectsAreEqual(tokenHash("access"), at.TokenHash)
	})).Return(nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	access, err := svc.Issue(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "access", access)
}

func TestTokenService_Issue_ManagerError(t *testing.T) {
	userID := uuid.New()

	manager := servermocks.NewTokenManager(t)
	store := servermocks.NewAccessTokenStore(t)

	manager.On("Generate", userID).Return("", "", time.Time{}, assert.AnError).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	_, err := svc.Issue(context.Background(), userID)
	require.ErrorIs(t, err, assert.AnError)
}

func TestTokenService_Issue_StoreError(t *testing.T) {
	userID := uuid.New()

	manager := servermocks.NewTokenManager(t)
	store := servermocks.NewAccessTokenStore(t)

	manager.On("Generate", userID).Return("access", "jti", time.Now().Add(time.Hour), nil).Once()
	store.On("Create", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	_, err := svc.Issue(context.Background(), userID)
	require.ErrorIs(t, err, assert.AnError)
}

func TestTokenService_Resolve(t *testing.T) {
	userID := uuid.New()
	otherID := uuid.New()
	revokedAt := time.Now().Add(-time.Minute)

	tests := []struct {
		name        string
		parseErr    error
		record      model.AccessToken
		storeErr    error
		wantInvalid bool
		wantErr     error
	}{
		{
			name:   "live token",
			record: model.AccessToken{JTI: "jti", UserID: userID, TokenHash: tokenHash("tok"), ExpiresAt: time.Now().Add(time.Hour)},
		},
		{
			name:        "unparseable token",
			parseErr:    assert.AnError,
			wantInvalid: true,
		},
		{
			name:        "unknown jti",
			storeErr:    model.ErrNotFound,
			wantInvalid: true,
		},
		{
			name:        "revoked",
			record:      model.AccessToken{JTI: "jti", UserID: userID, TokenHash: tokenHash("tok"), ExpiresAt: time.Now().Add(time.Hour), RevokedAt: &revokedAt},
			wantInvalid: true,
			wantErr:     model.ErrTokenRevoked,
		},
		{
			name:        "expired record",
			record:      model.AccessToken{JTI: "jti", UserID: userID, TokenHash: tokenHash("tok"), ExpiresAt: time.Now().Add(-time.Second)},
			wantInvalid: true,
			wantErr:     model.ErrTokenExpired,
		},
		{
			name:        "hash mismatch",
			record:      model.AccessToken{JTI: "jti", UserID: userID, TokenHash: tokenHash("other"), ExpiresAt: time.Now().Add(time.Hour)},
			wantInvalid: true,
			wantErr:     model.ErrTokenMismatch,
		},
		{
			name:        "user mismatch",
			record:      model.AccessToken{JTI: "jti", UserID: otherID, TokenHash: tokenHash("tok"), ExpiresAt: time.Now().Add(time.Hour)},
			wantInvalid: true,
			wantErr:     model.ErrTokenMismatch,
		},
		{
			name:     "store failure",
			storeErr: assert.AnError,
			wantErr:  assert.AnError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			manager := servermocks.NewTokenManager(t)
			store := servermocks.NewAccessTokenStore(t)

			if tt.parseErr != nil {
				manager.On("Parse", "tok").Return(uuid.Nil, "", tt.parseErr).Once()
			} else {
				manager.On("Parse", "tok").Return(userID, "jti", nil).Once()
				store.On("GetByJTI", ctx, "jti").Return(tt.record, tt.storeErr).Once()
			}

			svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

			got, err := svc.Resolve(ctx, "tok")
			if !tt.wantInvalid && tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, userID, got)
				return
			}

			require.Error(t, err)
			assert.Equal(t, uuid.Nil, got)
			if tt.wantInvalid {
				assert.ErrorIs(t, err, model.ErrTokenInvalid)
			} else {
				assert.NotErrorIs(t, err, model.ErrTokenInvalid)
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestTokenService_RevokeByToken(t *testing.T) {
	ctx := context.Background()
	manager := servermocks.NewTokenManager(t)
	store := servermocks.NewAccessTokenStore(t)

	manager.On("Parse", "tok").Return(uuid.New(), "jti", nil).Once()
	store.On("RevokeByJTI", ctx, "jti").Return(nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())
	require.NoError(t, svc.RevokeByToken(ctx, "tok"))
}

func TestTokenService_RevokeByToken_Invalid(t *testing.T) {
	manager := servermocks.NewTokenManager(t)
	store := servermocks.NewAccessTokenStore(t)

	manager.On("Parse", "bad").Return(uuid.Nil, "", assert.AnError).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())
	err := svc.RevokeByToken(context.Background(), "bad")
	require.ErrorIs(t, err, model.ErrTokenInvalid)
}
