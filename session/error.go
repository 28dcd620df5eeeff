// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import "errors"

var (
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrNilParameter       = errors.New("nil parameter")
	ErrAlreadyInitialized = errors.New("controller already initialized")
	ErrStopped            = errors.New("controller stopped")
)

// Fallback messages used when a failure carries no message of its own.
const (
	InitFailedMessage    = "Keycloak initialization failed."
	ProfileFailedMessage = "Failed to load user profile."
)

// ErrorMessage returns the user visible message for err: the message of the
// first error in its chain that carries one (see UserMessager), otherwise the
// innermost cause, so the chain of failed operations stays in the logs.  An
// error without text gets the fallback.
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var m UserMessager
	if errors.As(err, &m) {
		if msg := m.UserMessage(); msg != "" {
			return msg
		}
	}
	cause := err
	for {
		var next error
		switch u := cause.(type) {
		case interface{ Unwrap() error }:
			next = u.Unwrap()
		case interface{ Unwrap() []error }:
			// the last wrapped error is the cause, the first ones are
			// sentinels classifying it
			if errs := u.Unwrap(); len(errs) > 0 {
				next = errs[len(errs)-1]
			}
		}
		if next == nil {
			break
		}
		cause = next
	}
	if msg := cause.Error(); msg != "" {
		return msg
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}

// UserMessager is implemented by errors that carry a message meant for the
// user, like a provider's error description.
type UserMessager interface {
	UserMessage() string
}
