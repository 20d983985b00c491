package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for users.
type UserStore interface {
	Create(ctx context.Context, user User) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	Update(ctx context.Context, user User) (User, error)
}

// User represents a registered account.
//
// VerificationCode and VerificationExpiresAt are set together while a
// verification attempt is outstanding and cleared together once the email
// is confirmed.
type User struct {
	ID                    uuid.UUID
	Name                  string
	Email                 string
	PasswordHash          string
	VerificationCode      *string
	VerificationExpiresAt *time.Time
	EmailVerifiedAt       *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsVerified reports whether the user has confirmed their email.
func (u User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}

// SetVerificationCode attaches an outstanding code that expires at expiresAt.
func (u *User) SetVerificationCode(code string, expiresAt time.Time) {
	u.VerificationCode = &code
	u.VerificationExpiresAt = &expiresAt
}

// MarkVerified confirms the email at the given time and drops the code.
func (u *User) MarkVerified(at time.Time) {
	u.EmailVerifiedAt = &at
	u.VerificationCode = nil
	u.VerificationExpiresAt = nil
}
