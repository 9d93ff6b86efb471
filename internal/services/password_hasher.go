package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify reports whether password matches hash. A mismatch is not an error.
	Verify(password, hash string) (bool, error)
}

// BcryptHasher peppers the password with an HMAC-SHA256 of a process-wide
// secret and then hashes it with bcrypt. The pepper is never stored.
type BcryptHasher struct {
	secret []byte
	cost   int
}

// NewBcryptHasher returns a hasher keyed by secret. A cost of 0 selects bcrypt.DefaultCost.
func NewBcryptHasher(secret string, cost int) (*BcryptHasher, error) {
	if secret == "" {
		return nil, oops.Code("HASHER_CONFIG").Errorf("password hashing secret is required")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code("HASHER_CONFIG").
			With("cost", cost).
			Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{secret: []byte(secret), cost: cost}, nil
}

// Hash returns a salted bcrypt hash of the peppered password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(h.pepper(password), h.cost)
	if err != nil {
		return "", oops.Code("PASSWORD_HASH_FAILED").Wrapf(err, "failed to hash password")
	}
	return string(hashed), nil
}

// Verify checks password against a hash produced by Hash.
func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), h.pepper(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("PASSWORD_VERIFY_FAILED").Wrapf(err, "failed to verify password")
	}
}

// pepper keeps the bcrypt input at a fixed 44 bytes, under bcrypt's 72-byte limit.
func (h *BcryptHasher) pepper(password string) []byte {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}
