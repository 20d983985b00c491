package model

import "errors"

var (
	// ErrNotFound is returned by stores when the requested row or key does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned by stores when a unique key is taken.
	ErrAlreadyExists = errors.New("already exists")
)

// ErrTokenInvalid wraps every reason a presented bearer token is rejected.
var ErrTokenInvalid = errors.New("invalid access token")

var (
	ErrTokenRevoked  = errors.New("access token revoked")
	ErrTokenExpired  = errors.New("access token expired")
	ErrTokenMismatch = errors.New("access token mismatch")
)
