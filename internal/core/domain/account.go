package domain

import (
	"errors"
	"time"
)

var (
	ErrDuplicateKey       = errors.New("activation key already in use")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid user or key")
	ErrAlreadyActivated   = errors.New("key already activated")
	ErrKeyExpired         = errors.New("activation key expired")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountUnchanged   = errors.New("account already in requested state")
	ErrStoreUnavailable   = errors.New("account store unavailable")

	ErrInvalidEmail       = errors.New("email is required")
	ErrInvalidKey         = errors.New("key is required")
	ErrInvalidKeyValidity = errors.New("key validity must be at least one day")
)

// Account is a registered user and its activation state.
type Account struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Key       string `json:"-"`
	Activated bool   `json:"activated"`
	// KeyExpiration is zero for accounts whose key never expires.
	KeyExpiration time.Time `json:"key_expiration,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// KeyExpired reports whether the activation key is past its expiration at now.
func (a *Account) KeyExpired(now time.Time) bool {
	if a.KeyExpiration.IsZero() {
		return false
	}
	return now.After(a.KeyExpiration)
}

// KeyIssued is emitted when the service generates a key that the caller must
// receive out-of-band.
type KeyIssued struct {
	AccountID string
	Email     string
	Key       string
	ExpiresAt time.Time
	IssuedAt  time.Time
}
