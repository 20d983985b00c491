package model

// SecretHasher produces and checks one-way password hashes.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) (bool, error)
}
