// Package redis stores issued bearer tokens in Redis.
//
// Each token lives under <prefix>:token:<jti> until it expires; the jtis of a
// user are indexed in the set <prefix>:user:<userID>. Revoked tokens are
// deleted rather than flagged, so GetByJTI reports them as not found.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dtroode/otpauth-server/internal/model"
)

var _ model.AccessTokenStore = (*AccessTokenRepository)(nil)

// revokeAllLua deletes every token of a user and the user index atomically.
// KEYS[1] = user index key
// ARGV[1] = token key prefix
var revokeAllLua = redis.NewScript(`
local jtis = redis.call('SMEMBERS', KEYS[1])
for _, jti in ipairs(jtis) do
  redis.call('DEL', ARGV[1] .. jti)
end
redis.call('DEL', KEYS[1])
return #jtis
`)

// AccessTokenRepository needs a single-node or sentinel client: Create and
// RevokeAllByUser touch token and user keys that hash to different cluster
// slots in one transaction or script.
type AccessTokenRepository struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewAccessTokenRepository(client *redis.Client, prefix string) *AccessTokenRepository {
	if prefix == "" {
		prefix = "otpauth"
	}
	return &AccessTokenRepository{client: client, prefix: prefix, now: time.Now}
}

type tokenRecord struct {
	ID        uuid.UUID `json:"id"`
	JTI       string    `json:"jti"`
	UserID    uuid.UUID `json:"user_id"`
	TokenHash []byte    `json:"token_hash"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *AccessTokenRepository) tokenPrefix() string {
	return r.prefix + ":token:"
}

func (r *AccessTokenRepository) tokenKey(jti string) string {
	return r.tokenPrefix() + jti
}

func (r *AccessTokenRepository) userKey(userID uuid.UUID) string {
	return r.prefix + ":user:" + userID.String()
}

func (r *AccessTokenRepository) Create(ctx context.Context, token model.AccessToken) error {
	now := r.now()
	ttl := token.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return errors.New("access token already expired")
	}

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	data, err := json.Marshal(tokenRecord{
		ID:        token.ID,
		JTI:       token.JTI,
		UserID:    token.UserID,
		TokenHash: token.TokenHash,
		IssuedAt:  token.IssuedAt,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to encode access token: %w", err)
	}

	userKey := r.userKey(token.UserID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.tokenKey(token.JTI), data, ttl)
		pipe.SAdd(ctx, userKey, token.JTI)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create access token: %w", err)
	}
	return nil
}

func (r *AccessTokenRepository) GetByJTI(ctx context.Context, jti string) (model.AccessToken, error) {
	data, err := r.client.Get(ctx, r.tokenKey(jti)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.AccessToken{}, model.ErrNotFound
		}
		return model.AccessToken{}, fmt.Errorf("failed to get access token by jti: %w", err)
	}

	var rec tokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.AccessToken{}, fmt.Errorf("failed to decode access token: %w", err)
	}

	return model.AccessToken{
		ID:        rec.ID,
		JTI:       rec.JTI,
		UserID:    rec.UserID,
		TokenHash: rec.TokenHash,
		IssuedAt:  rec.IssuedAt,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.CreatedAt,
	}, nil
}

func (r *AccessTokenRepository) RevokeByJTI(ctx context.Context, jti string) error {
	t, err := r.GetByJTI(ctx, jti)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.tokenKey(jti))
		pipe.SRem(ctx, r.userKey(t.UserID), jti)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}
	return nil
}

func (r *AccessTokenRepository) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	err := revokeAllLua.Run(ctx, r.client, []string{r.userKey(userID)}, r.tokenPrefix()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to revoke access tokens by user: %w", err)
	}
	return nil
}
