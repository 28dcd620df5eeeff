// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"time"
)

// OnLoad defines what an IdentityClient does during Init when no session is
// found.
type OnLoad string

const (
	// CheckSSO only checks for an existing session and never forces an
	// interactive login.
	CheckSSO OnLoad = "check-sso"

	// LoginRequired starts an interactive login when no session exists.
	LoginRequired OnLoad = "login-required"
)

// PKCEMethodS256 is the only supported PKCE code challenge method.
const PKCEMethodS256 = "S256"

// InitOptions configure an IdentityClient's session check.
type InitOptions struct {
	OnLoad     OnLoad
	PKCEMethod string

	// CheckLoginIframe enables polling the provider's login status from an
	// iframe.  The controller always disables it.
	CheckLoginIframe bool

	// RedirectURI is where the provider returns after an interactive login.
	RedirectURI string

	// SilentCheckSSORedirectURI is the well-known resource the provider
	// returns to inside the hidden frame during a silent session check.
	SilentCheckSSORedirectURI string
}

// LoginOptions configure an interactive login.  An empty RedirectURI means
// the client's configured default.
type LoginOptions struct {
	RedirectURI string
}

// Profile is the set of user claims returned by an IdentityClient.
type Profile struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	ID        string
}

// IdentityClient is the identity provider client the Controller mediates.
// Implementations own the protocol state; Login and Logout trigger
// navigation away from the current view.
//
// Implementations must be concurrently safe: the refresh timer calls
// Authenticated and UpdateToken from its own goroutine.
type IdentityClient interface {
	// Init checks for an existing session and reports whether one exists.
	Init(ctx context.Context, opts InitOptions) (bool, error)

	// LoadUserProfile fetches the profile claims of the current session.
	LoadUserProfile(ctx context.Context) (*Profile, error)

	// Login starts an interactive login.
	Login(ctx context.Context, opts LoginOptions) error

	// Logout ends the session at the provider.
	Logout(ctx context.Context) error

	// UpdateToken refreshes the access token if it expires within
	// minValidity.  It returns an error if a refresh is impossible.
	UpdateToken(ctx context.Context, minValidity time.Duration) error

	// Authenticated reports whether the client currently holds a session.
	Authenticated() bool

	// ClientID is the client identifier registered with the provider.
	ClientID() string

	// RealmRoles returns the realm level role grants of the session.
	RealmRoles() []string

	// ClientRoles returns the role grants scoped to clientID.
	ClientRoles(clientID string) []string
}
