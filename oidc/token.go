// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"time"

	"golang.org/x/oauth2"
)

// AccessToken is an oauth access_token.
type AccessToken string

// RedactedAccessToken is the redacted string or json for an oauth access_token.
const RedactedAccessToken = "[REDACTED: access_token]"

// String will redact the token.
func (t AccessToken) String() string {
	return RedactedAccessToken
}

// MarshalJSON will redact the token.
func (t AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedAccessToken)
}

// RefreshToken is an oauth refresh_token.
type RefreshToken string

// RedactedRefreshToken is the redacted string or json for an oauth refresh_token.
const RedactedRefreshToken = "[REDACTED: refresh_token]"

// String will redact the token.
func (t RefreshToken) String() string {
	return RedactedRefreshToken
}

// MarshalJSON will redact the token.
func (t RefreshToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedRefreshToken)
}

// IDToken is an oidc id_token.
type IDToken string

// RedactedIDToken is the redacted string or json for an oidc id_token.
const RedactedIDToken = "[REDACTED: id_token]"

// String will redact the token.
func (t IDToken) String() string {
	return RedactedIDToken
}

// MarshalJSON will redact the token.
func (t IDToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedIDToken)
}

// Token is the set of tokens held for an authenticated session.
type Token struct {
	underlying *oauth2.Token
	idToken    IDToken
	expiry     time.Time
	roles      roles
}

// newToken wraps t.  The expiry is computed from the response's expires_in
// against now when it's present, so it follows the caller's clock.
func newToken(t *oauth2.Token, idToken IDToken, r roles, now time.Time) *Token {
	expiry := t.Expiry
	if secs, ok := t.Extra("expires_in").(float64); ok && secs > 0 {
		expiry = now.Add(time.Duration(secs) * time.Second)
	}
	return &Token{underlying: t, idToken: idToken, expiry: expiry, roles: r}
}

// AccessToken returns the access_token.
func (t *Token) AccessToken() AccessToken {
	if t == nil || t.underlying == nil {
		return ""
	}
	return AccessToken(t.underlying.AccessToken)
}

// RefreshToken returns the refresh_token, if any.
func (t *Token) RefreshToken() RefreshToken {
	if t == nil || t.underlying == nil {
		return ""
	}
	return RefreshToken(t.underlying.RefreshToken)
}

// IDToken returns the id_token.
func (t *Token) IDToken() IDToken {
	if t == nil {
		return ""
	}
	return t.idToken
}

// Expiry returns the access_token's expiration. Zero means it never expires.
func (t *Token) Expiry() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.expiry
}

// validFor reports whether the access_token is still valid d after now.
func (t *Token) validFor(now time.Time, d time.Duration) bool {
	if t == nil || t.underlying == nil || t.underlying.AccessToken == "" {
		return false
	}
	if t.expiry.IsZero() {
		return true
	}
	return t.expiry.Round(0).After(now.Add(d))
}

// StaticTokenSource returns an oauth2.TokenSource that always returns the
// access_token.  Handy for calls to the provider on behalf of the session.
func (t *Token) StaticTokenSource() oauth2.TokenSource {
	if t == nil || t.underlying == nil {
		return nil
	}
	return oauth2.StaticTokenSource(t.underlying)
}
