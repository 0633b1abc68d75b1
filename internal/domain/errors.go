package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrConfigMissing     = errors.New("config file missing")
	ErrLoginFailed       = errors.New("login failed")
	ErrChallengeRejected = errors.New("challenge code rejected")
	ErrSessionRejected   = errors.New("stored session rejected")
	ErrIdentityMissing   = errors.New("api identity missing")
	ErrEntityNotFound    = errors.New("entity not found")
	ErrStoreIO           = errors.New("store io failure")
	ErrDeliveryFailed    = errors.New("delivery failed")
	ErrNoAccounts        = errors.New("no accounts configured")
	ErrNoSessions        = errors.New("no account logged in")
	ErrSecretNotFound    = errors.New("secret not found")
)

// LoginError is returned by the session manager when an account cannot be
// authenticated. Nothing is persisted for the account when it is returned.
type LoginError struct {
	Phone  PhoneID
	Reason error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login %s: %v", e.Phone, e.Reason)
}

func (e *LoginError) Unwrap() []error {
	return []error{ErrLoginFailed, e.Reason}
}
