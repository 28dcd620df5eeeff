// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/cap-session/session"
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

var _ session.IdentityClient = (*Client)(nil)

// discoveryTimeout bounds fetching the discovery document.
const discoveryTimeout = 30 * time.Second

// Client is an OIDC relying party for a single user session.  It runs the
// authorization code flow with PKCE (S256), checks for existing sessions with
// prompt=none in a hidden frame and refreshes tokens with the refresh_token
// grant.
//
// The redirects of the flow are completed with Exchange or Reject, usually
// from the handlers in the callback package.
type Client struct {
	config             *Config
	logger             hclog.Logger
	clock              clockwork.Clock
	navigator          Navigator
	silentCheckTimeout time.Duration
	requestExpiry      time.Duration
	httpClient         *http.Client

	mu            sync.Mutex
	provider      *oidc.Provider
	endSessionURL string
	redirectURL   string
	requests      map[string]*request
	token         *Token

	discoveries singleflight.Group
	refreshes   singleflight.Group
}

// NewClient creates a Client for the config.  Discovery is deferred until the
// first call that needs the provider.
//
// Supported options:
//	WithClock
//	WithLogger
//	WithNavigator
//	WithSilentCheckTimeout
//	WithRequestExpiry
func NewClient(c *Config, opt ...Option) (*Client, error) {
	const op = "oidc.NewClient"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: config is invalid: %w", op, err)
	}
	opts := getClientOpts(append([]Option{WithClock(c.Clock)}, opt...)...)
	if opts.withSilentCheckTimeout <= 0 {
		return nil, fmt.Errorf("%s: silent check timeout must be positive: %w", op, ErrInvalidParameter)
	}
	if opts.withRequestExpiry <= 0 {
		return nil, fmt.Errorf("%s: request expiry must be positive: %w", op, ErrInvalidParameter)
	}
	hc, err := c.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	return &Client{
		config:             c,
		logger:             opts.withLogger,
		clock:              opts.withClock,
		navigator:          opts.withNavigator,
		silentCheckTimeout: opts.withSilentCheckTimeout,
		requestExpiry:      opts.withRequestExpiry,
		httpClient:         hc,
		redirectURL:        c.DefaultRedirectURL,
		requests:           map[string]*request{},
	}, nil
}

// SetNavigator replaces the client's Navigator.
func (c *Client) SetNavigator(n Navigator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.navigator = n
}

// Init checks for an existing session.  A held token is reused (and
// refreshed when expired), otherwise a silent check runs in a hidden frame
// when opts has a SilentCheckSSORedirectURI.  With session.LoginRequired an
// interactive login starts instead.
func (c *Client) Init(ctx context.Context, opts session.InitOptions) (bool, error) {
	const op = "Client.Init"
	switch opts.PKCEMethod {
	case "", session.PKCEMethodS256:
	default:
		return false, fmt.Errorf("%s: %q: %w", op, opts.PKCEMethod, ErrUnsupportedChallengeMethod)
	}
	if opts.CheckLoginIframe {
		return false, fmt.Errorf("%s: login status iframe is not supported: %w", op, ErrInvalidParameter)
	}
	switch opts.OnLoad {
	case "", session.CheckSSO, session.LoginRequired:
	default:
		return false, fmt.Errorf("%s: unknown on load action %q: %w", op, opts.OnLoad, ErrInvalidParameter)
	}
	if opts.RedirectURI != "" {
		c.mu.Lock()
		c.redirectURL = opts.RedirectURI
		c.mu.Unlock()
	}
	if _, err := c.discover(ctx); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if c.Authenticated() {
		return true, nil
	}
	if c.currentToken().RefreshToken() != "" {
		err := c.UpdateToken(ctx, 0)
		if err == nil {
			return true, nil
		}
		c.logger.Debug("held session could not be refreshed", "error", err)
	}

	if opts.OnLoad == session.LoginRequired {
		return false, c.Login(ctx, session.LoginOptions{RedirectURI: opts.RedirectURI})
	}
	if opts.SilentCheckSSORedirectURI == "" || c.nav() == nil {
		return false, nil
	}
	return c.silentCheck(ctx, opts.SilentCheckSSORedirectURI)
}

func (c *Client) silentCheck(ctx context.Context, redirectURL string) (bool, error) {
	const op = "Client.silentCheck"
	p, err := c.discover(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	req, err := c.newRequest(redirectURL, true)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	u := c.authURL(p, req, oauth2.SetAuthURLParam("prompt", "none"))

	timer := c.clock.NewTimer(c.silentCheckTimeout)
	defer timer.Stop()
	if err := c.nav().Frame(ctx, u); err != nil {
		c.dropRequest(req.state)
		if errors.Is(err, ErrFrameUnsupported) {
			c.logger.Debug("silent check skipped", "reason", err)
			return false, nil
		}
		return false, fmt.Errorf("%s: unable to load hidden frame: %w", op, err)
	}

	select {
	case err := <-req.done:
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, ErrLoginRequired):
			c.logger.Debug("no existing session", "error", err)
			return false, nil
		default:
			return false, fmt.Errorf("%s: %w", op, err)
		}
	case <-timer.Chan():
		c.dropRequest(req.state)
		return false, fmt.Errorf("%s: no response after %s: %w", op, c.silentCheckTimeout, ErrSilentCheckTimeout)
	case <-ctx.Done():
		c.dropRequest(req.state)
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

// Exchange completes the request identified by state with the authorization
// code returned to its redirect URI.  The tokens are verified and held as the
// session's tokens.
func (c *Client) Exchange(ctx context.Context, state, code string) error {
	const op = "Client.Exchange"
	req, err := c.takeRequest(state)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	fail := func(err error) error {
		err = fmt.Errorf("%s: %w", op, err)
		req.resolve(err)
		return err
	}
	if code == "" {
		return fail(fmt.Errorf("authorization code is empty: %w", ErrInvalidParameter))
	}
	p, err := c.discover(ctx)
	if err != nil {
		return fail(err)
	}
	oauthToken, err := c.oauth2Config(p, req.redirectURL).Exchange(
		HTTPClientContext(ctx, c.httpClient),
		code,
		oauth2.VerifierOption(req.verifier),
	)
	if err != nil {
		return fail(fmt.Errorf("unable to exchange auth code with provider: %w", err))
	}
	rawIDToken, ok := oauthToken.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return fail(ErrMissingIDToken)
	}
	idToken, err := c.verifyIDToken(ctx, p, rawIDToken)
	if err != nil {
		return fail(err)
	}
	if idToken.Nonce != req.nonce {
		return fail(fmt.Errorf("id_token nonce does not match request: %w", ErrInvalidNonce))
	}

	c.storeToken(oauthToken, IDToken(rawIDToken))
	c.logger.Debug("session established", "subject", idToken.Subject, "silent", req.silent)
	req.resolve(nil)
	return nil
}

// Reject completes the request identified by state with the error the
// provider returned to its redirect URI.  The provider error is returned
// wrapped.
func (c *Client) Reject(ctx context.Context, state string, providerErr *ProviderError) error {
	const op = "Client.Reject"
	if providerErr == nil {
		return fmt.Errorf("%s: provider error is nil: %w", op, ErrNilParameter)
	}
	req, err := c.takeRequest(state)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	err = fmt.Errorf("%s: %w", op, providerErr)
	req.resolve(err)
	return err
}

// LoadUserProfile returns the profile claims from the provider's userinfo
// endpoint.
func (c *Client) LoadUserProfile(ctx context.Context) (*session.Profile, error) {
	const op = "Client.LoadUserProfile"
	t := c.currentToken()
	if !t.validFor(c.clock.Now(), 0) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}
	p, err := c.discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	info, err := p.UserInfo(HTTPClientContext(ctx, c.httpClient), t.StaticTokenSource())
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUserInfoFailed, err)
	}
	var claims struct {
		PreferredUsername string `json:"preferred_username"`
		GivenName         string `json:"given_name"`
		FamilyName        string `json:"family_name"`
	}
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to decode claims: %w: %w", op, ErrUserInfoFailed, err)
	}
	return &session.Profile{
		Username:  claims.PreferredUsername,
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
		Email:     info.Email,
		ID:        info.Subject,
	}, nil
}

// Login starts an interactive authorization code flow by navigating to the
// provider.  An empty opts.RedirectURI uses the redirect of the last Init, or
// the config's DefaultRedirectURL.
func (c *Client) Login(ctx context.Context, opts session.LoginOptions) error {
	const op = "Client.Login"
	n := c.nav()
	if n == nil {
		return fmt.Errorf("%s: navigator is nil: %w", op, ErrNilParameter)
	}
	p, err := c.discover(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	redirectURL := opts.RedirectURI
	if redirectURL == "" {
		c.mu.Lock()
		redirectURL = c.redirectURL
		c.mu.Unlock()
	}
	req, err := c.newRequest(redirectURL, false)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := n.Navigate(ctx, c.authURL(p, req)); err != nil {
		c.dropRequest(req.state)
		return fmt.Errorf("%s: unable to navigate to provider: %w", op, err)
	}
	return nil
}

// Logout forgets the session's tokens and navigates to the provider's
// end_session_endpoint.  Providers without one only get the tokens dropped
// and the user agent is sent to the redirect URL.
func (c *Client) Logout(ctx context.Context) error {
	const op = "Client.Logout"
	n := c.nav()
	if n == nil {
		return fmt.Errorf("%s: navigator is nil: %w", op, ErrNilParameter)
	}
	if _, err := c.discover(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.mu.Lock()
	t := c.token
	c.token = nil
	redirectURL := c.redirectURL
	endSessionURL := c.endSessionURL
	c.mu.Unlock()

	target := redirectURL
	if endSessionURL != "" {
		u, err := url.Parse(endSessionURL)
		if err != nil {
			return fmt.Errorf("%s: invalid end_session_endpoint: %w", op, err)
		}
		q := u.Query()
		q.Set("client_id", c.config.ClientID)
		q.Set("post_logout_redirect_uri", redirectURL)
		if id := t.IDToken(); id != "" {
			q.Set("id_token_hint", string(id))
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}
	if err := n.Navigate(ctx, target); err != nil {
		return fmt.Errorf("%s: unable to navigate: %w", op, err)
	}
	return nil
}

// UpdateToken refreshes the access token when it expires within
// minValidity.  A negative minValidity always refreshes.  When the provider
// rejects the refresh_token the session's tokens are dropped.
func (c *Client) UpdateToken(ctx context.Context, minValidity time.Duration) error {
	const op = "Client.UpdateToken"
	t := c.currentToken()
	if t == nil {
		return fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}
	if minValidity >= 0 && t.validFor(c.clock.Now(), minValidity) {
		return nil
	}
	if t.RefreshToken() == "" {
		return fmt.Errorf("%s: %w", op, ErrNoRefreshToken)
	}
	// refresh_tokens rotate, so concurrent grants with the same one would
	// have all but the first rejected.
	_, err, _ := c.refreshes.Do(string(t.RefreshToken()), func() (interface{}, error) {
		return nil, c.refresh(ctx, t)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// refresh runs the refresh_token grant for t and stores the result.
func (c *Client) refresh(ctx context.Context, t *Token) error {
	const op = "Client.refresh"
	if c.currentToken() != t {
		// refreshed (or dropped) since t was read
		return nil
	}
	p, err := c.discover(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	ctx = HTTPClientContext(ctx, c.httpClient)
	ts := c.oauth2Config(p, "").TokenSource(ctx, &oauth2.Token{RefreshToken: string(t.RefreshToken())})
	refreshed, err := ts.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			c.clearToken(t)
		}
		return fmt.Errorf("%s: unable to refresh token: %w", op, err)
	}

	idToken := t.IDToken()
	if raw, ok := refreshed.Extra("id_token").(string); ok && raw != "" {
		if _, err := c.verifyIDToken(ctx, p, raw); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		idToken = IDToken(raw)
	}
	c.storeToken(refreshed, idToken)
	c.logger.Trace("token refreshed", "expiry", c.currentToken().Expiry())
	return nil
}

// Authenticated reports whether the client holds an unexpired access token.
func (c *Client) Authenticated() bool {
	return c.currentToken().validFor(c.clock.Now(), 0)
}

// ClientID returns the config's client ID.
func (c *Client) ClientID() string {
	return c.config.ClientID
}

// RealmRoles returns the realm roles of the current access token.
func (c *Client) RealmRoles() []string {
	t := c.currentToken()
	if t == nil {
		return nil
	}
	return slices.Clone(t.roles.realm)
}

// ClientRoles returns the roles the current access token grants for
// clientID.
func (c *Client) ClientRoles(clientID string) []string {
	t := c.currentToken()
	if t == nil {
		return nil
	}
	return slices.Clone(t.roles.client[clientID])
}

// Token returns the session's tokens, or nil when not authenticated.
func (c *Client) Token() *Token {
	return c.currentToken()
}

// discover returns the provider, running discovery on first use.  Concurrent
// first uses share one discovery, which runs without c.mu held; each caller
// stops waiting when its ctx is done.
func (c *Client) discover(ctx context.Context) (*oidc.Provider, error) {
	const op = "Client.discover"
	c.mu.Lock()
	p := c.provider
	c.mu.Unlock()
	if p != nil {
		return p, nil
	}

	ch := c.discoveries.DoChan(c.config.Issuer, func() (interface{}, error) {
		// the discovery outlives a caller that gives up waiting
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discoveryTimeout)
		defer cancel()
		return c.fetchProvider(dctx)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, fmt.Errorf("%s: %w", op, r.Err)
		}
		return r.Val.(*oidc.Provider), nil
	}
}

// fetchProvider fetches the discovery document and publishes the provider.
func (c *Client) fetchProvider(ctx context.Context) (*oidc.Provider, error) {
	const op = "Client.fetchProvider"
	c.mu.Lock()
	p := c.provider
	c.mu.Unlock()
	if p != nil {
		return p, nil
	}
	p, err := oidc.NewProvider(HTTPClientContext(ctx, c.httpClient), c.config.Issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to discover provider %s: %w", op, c.config.Issuer, err)
	}
	var claims struct {
		EndSessionURL string `json:"end_session_endpoint"`
	}
	if err := p.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to decode discovery document: %w", op, err)
	}
	c.mu.Lock()
	c.provider = p
	c.endSessionURL = claims.EndSessionURL
	c.mu.Unlock()
	c.logger.Debug("provider discovered", "issuer", c.config.Issuer, "end_session", claims.EndSessionURL != "")
	return p, nil
}

func (c *Client) oauth2Config(p *oidc.Provider, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.config.ClientID,
		ClientSecret: string(c.config.ClientSecret),
		Endpoint:     p.Endpoint(),
		RedirectURL:  redirectURL,
		Scopes:       c.config.Scopes,
	}
}

func (c *Client) authURL(p *oidc.Provider, req *request, opt ...oauth2.AuthCodeOption) string {
	opts := append([]oauth2.AuthCodeOption{
		oidc.Nonce(req.nonce),
		oauth2.S256ChallengeOption(req.verifier),
	}, opt...)
	return c.oauth2Config(p, req.redirectURL).AuthCodeURL(req.state, opts...)
}

func (c *Client) verifyIDToken(ctx context.Context, p *oidc.Provider, raw string) (*oidc.IDToken, error) {
	algs := make([]string, 0, len(c.config.SupportedSigningAlgs))
	for _, a := range c.config.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	v := p.Verifier(&oidc.Config{
		ClientID:             c.config.ClientID,
		SupportedSigningAlgs: algs,
		Now:                  c.clock.Now,
	})
	idToken, err := v.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("unable to verify id_token: %w", err)
	}
	if len(c.config.Audiences) > 0 {
		found := false
		for _, aud := range idToken.Audience {
			if slices.Contains(c.config.Audiences, aud) {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("id_token audience %v: %w", idToken.Audience, ErrInvalidAudience)
		}
	}
	return idToken, nil
}

func (c *Client) storeToken(t *oauth2.Token, idToken IDToken) {
	r, err := parseRoles(t.AccessToken)
	if err != nil {
		c.logger.Debug("access token roles unavailable", "error", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = newToken(t, idToken, r, c.clock.Now())
}

// clearToken drops t if it's still the session's token.
func (c *Client) clearToken(t *Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == t {
		c.token = nil
	}
}

func (c *Client) currentToken() *Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) nav() Navigator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.navigator
}

func (c *Client) newRequest(redirectURL string, silent bool) (*request, error) {
	now := c.clock.Now()
	req, err := newRequest(redirectURL, silent, now.Add(c.requestExpiry))
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for state, r := range c.requests {
		if r.expired(now) {
			delete(c.requests, state)
			r.resolve(ErrExpiredRequest)
		}
	}
	c.requests[req.state] = req
	return req, nil
}

// takeRequest removes and returns the request for state.
func (c *Client) takeRequest(state string) (*request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.requests[state]
	if !ok {
		return nil, fmt.Errorf("request for state %q: %w", state, ErrNotFound)
	}
	delete(c.requests, state)
	if req.expired(c.clock.Now()) {
		req.resolve(ErrExpiredRequest)
		return nil, fmt.Errorf("request for state %q: %w", state, ErrExpiredRequest)
	}
	return req, nil
}

func (c *Client) dropRequest(state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.requests, state)
}
