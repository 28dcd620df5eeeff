// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"sync"
	"time"
)

// Names of TestIdentityClient methods, for use with Calls.
const (
	CallInit            = "Init"
	CallLoadUserProfile = "LoadUserProfile"
	CallLogin           = "Login"
	CallLogout          = "Logout"
	CallUpdateToken     = "UpdateToken"
	CallAuthenticated   = "Authenticated"
)

// TestIdentityClient is an IdentityClient spy which makes testing a
// Controller (or a view built on one) much easier.  Its behavior is set with
// the exported func fields, which must be configured before the client is
// used.  A nil func field succeeds with zero values.
//
// TestIdentityClient is concurrently safe.
type TestIdentityClient struct {
	InitFunc            func(ctx context.Context, opts InitOptions) (bool, error)
	LoadUserProfileFunc func(ctx context.Context) (*Profile, error)
	LoginFunc           func(ctx context.Context, opts LoginOptions) error
	LogoutFunc          func(ctx context.Context) error
	UpdateTokenFunc     func(ctx context.Context, minValidity time.Duration) error

	mu            sync.Mutex
	clientID      string
	authenticated bool
	realmRoles    []string
	clientRoles   map[string][]string
	calls         map[string]int
	initOpts      []InitOptions
	loginOpts     []LoginOptions
}

// ensure that TestIdentityClient implements the IdentityClient interface
var _ IdentityClient = (*TestIdentityClient)(nil)

// NewTestIdentityClient creates a TestIdentityClient for clientID.
func NewTestIdentityClient(clientID string) *TestIdentityClient {
	return &TestIdentityClient{
		clientID:    clientID,
		clientRoles: map[string][]string{},
		calls:       map[string]int{},
	}
}

// SetAuthenticated sets the value returned by Authenticated.
func (c *TestIdentityClient) SetAuthenticated(b bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = b
}

// SetRoles sets the realm roles and the roles of the test client's own
// client id.
func (c *TestIdentityClient) SetRoles(realm, client []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.realmRoles = realm
	c.clientRoles[c.clientID] = client
}

// Calls returns how many times the named method has been called.
func (c *TestIdentityClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// InitOptions returns the options of every Init call.
func (c *TestIdentityClient) InitOptions() []InitOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]InitOptions(nil), c.initOpts...)
}

// LoginOptions returns the options of every Login call.
func (c *TestIdentityClient) LoginOptions() []LoginOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LoginOptions(nil), c.loginOpts...)
}

func (c *TestIdentityClient) record(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
}

// Init implements IdentityClient.
func (c *TestIdentityClient) Init(ctx context.Context, opts InitOptions) (bool, error) {
	c.mu.Lock()
	c.calls[CallInit]++
	c.initOpts = append(c.initOpts, opts)
	c.mu.Unlock()
	if c.InitFunc == nil {
		return false, nil
	}
	return c.InitFunc(ctx, opts)
}

// LoadUserProfile implements IdentityClient.
func (c *TestIdentityClient) LoadUserProfile(ctx context.Context) (*Profile, error) {
	c.record(CallLoadUserProfile)
	if c.LoadUserProfileFunc == nil {
		return &Profile{}, nil
	}
	return c.LoadUserProfileFunc(ctx)
}

// Login implements IdentityClient.
func (c *TestIdentityClient) Login(ctx context.Context, opts LoginOptions) error {
	c.mu.Lock()
	c.calls[CallLogin]++
	c.loginOpts = append(c.loginOpts, opts)
	c.mu.Unlock()
	if c.LoginFunc == nil {
		return nil
	}
	return c.LoginFunc(ctx, opts)
}

// Logout implements IdentityClient.
func (c *TestIdentityClient) Logout(ctx context.Context) error {
	c.record(CallLogout)
	if c.LogoutFunc == nil {
		return nil
	}
	return c.LogoutFunc(ctx)
}

// UpdateToken implements IdentityClient.
func (c *TestIdentityClient) UpdateToken(ctx context.Context, minValidity time.Duration) error {
	c.record(CallUpdateToken)
	if c.UpdateTokenFunc == nil {
		return nil
	}
	return c.UpdateTokenFunc(ctx, minValidity)
}

// Authenticated implements IdentityClient.
func (c *TestIdentityClient) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[CallAuthenticated]++
	return c.authenticated
}

// ClientID implements IdentityClient.
func (c *TestIdentityClient) ClientID() string { return c.clientID }

// RealmRoles implements IdentityClient.
func (c *TestIdentityClient) RealmRoles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.realmRoles...)
}

// ClientRoles implements IdentityClient.
func (c *TestIdentityClient) ClientRoles(clientID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.clientRoles[clientID]...)
}
