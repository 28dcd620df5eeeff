// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter           = errors.New("invalid parameter")
	ErrNilParameter               = errors.New("nil parameter")
	ErrInvalidCACert              = errors.New("invalid CA certificate")
	ErrInvalidIssuer              = errors.New("invalid issuer")
	ErrUnsupportedAlg             = errors.New("unsupported signing algorithm")
	ErrUnsupportedChallengeMethod = errors.New("unsupported PKCE challenge method")
	ErrIDGeneratorFailed          = errors.New("id generation failed")
	ErrExpiredRequest             = errors.New("request is expired")
	ErrNotFound                   = errors.New("not found")
	ErrMissingIDToken             = errors.New("id_token is missing")
	ErrInvalidNonce               = errors.New("invalid nonce")
	ErrInvalidAudience            = errors.New("invalid audience")
	ErrNotAuthenticated           = errors.New("not authenticated")
	ErrNoRefreshToken             = errors.New("refresh_token is missing")
	ErrLoginRequired              = errors.New("login required")
	ErrLoginFailed                = errors.New("login failed")
	ErrUserInfoFailed             = errors.New("user info failed")
	ErrSilentCheckTimeout         = errors.New("silent check timed out")
	ErrFrameUnsupported           = errors.New("hidden frames are not supported")
)

// ProviderError is an OAuth2 authorization error response returned to a
// redirect URI. See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type ProviderError struct {
	Code        string
	Description string
	URI         string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("provider error: %s", e.Code)
	}
	return fmt.Sprintf("provider error: %s: %s", e.Code, e.Description)
}

// UserMessage returns the provider's description of the error, or its code
// when there's no description.
func (e *ProviderError) UserMessage() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Code
}

// Is matches ErrLoginRequired for the error codes a provider returns when a
// prompt=none request can't be completed without user interaction, and
// ErrLoginFailed for every other code.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrLoginRequired:
		switch e.Code {
		case "login_required", "interaction_required", "consent_required", "account_selection_required":
			return true
		}
		return false
	case ErrLoginFailed:
		return true
	}
	return false
}
