// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

// Controller owns the session state of a single mounted view and mediates
// between the view and an IdentityClient.  A Controller is mounted once with
// Initialize and torn down with Stop; it can't be re-mounted.  Create a new
// Controller for every mount.
//
// Controller is concurrently safe.
type Controller struct {
	client          IdentityClient
	logger          hclog.Logger
	clock           clockwork.Clock
	refreshInterval time.Duration
	minValidity     time.Duration

	// ctx is the mount context passed into every async operation.  It's
	// canceled by Stop.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	err         error
	redirectURI string
	initialized bool
	stopped     bool

	done     chan struct{}
	doneOnce sync.Once

	// refreshWg tracks the refresh loop, so Stop can guarantee no further
	// ticks once it returns.
	refreshWg sync.WaitGroup
}

// NewController creates a Controller for the client.  The returned
// controller is loading until Initialize resolves its session check.
//
// Supported options:
//	WithClock
//	WithLogger
//	WithRefreshInterval
//	WithMinValidity
func NewController(client IdentityClient, opt ...Option) (*Controller, error) {
	const op = "session.NewController"
	if client == nil {
		return nil, fmt.Errorf("%s: identity client is nil: %w", op, ErrNilParameter)
	}
	opts := getControllerOpts(opt...)
	if opts.withRefreshInterval <= 0 {
		return nil, fmt.Errorf("%s: refresh interval must be greater than zero: %w", op, ErrInvalidParameter)
	}
	if opts.withMinValidity < 0 {
		return nil, fmt.Errorf("%s: min validity must not be negative: %w", op, ErrInvalidParameter)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		client:          client,
		logger:          opts.withLogger,
		clock:           opts.withClock,
		refreshInterval: opts.withRefreshInterval,
		minValidity:     opts.withMinValidity,
		ctx:             ctx,
		cancel:          cancel,
		state:           State{Loading: true},
		done:            make(chan struct{}),
	}, nil
}

// Initialize mounts the controller.  It starts the silent session check and
// the token refresh timer, then returns without waiting for either.  The
// redirectURI is the page's origin + path; the silent check redirect URI is
// derived from its origin.
//
// Use Done to wait for the session check to resolve.
func (c *Controller) Initialize(redirectURI string) error {
	const op = "session.(Controller).Initialize"
	redirect, silent, err := RedirectURIs(redirectURI)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.stopped:
		return fmt.Errorf("%s: %w", op, ErrStopped)
	case c.initialized:
		return fmt.Errorf("%s: %w", op, ErrAlreadyInitialized)
	}
	c.initialized = true
	c.redirectURI = redirect

	initOpts := InitOptions{
		OnLoad:                    CheckSSO,
		PKCEMethod:                PKCEMethodS256,
		CheckLoginIframe:          false,
		RedirectURI:               redirect,
		SilentCheckSSORedirectURI: silent,
	}
	go c.checkSession(c.ctx, initOpts)

	ticker := c.clock.NewTicker(c.refreshInterval)
	c.refreshWg.Add(1)
	go c.refreshLoop(c.ctx, ticker)

	c.logger.Debug("controller initialized", "redirect_uri", redirect, "silent_check_uri", silent)
	return nil
}

// State returns a snapshot of the session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Profile = c.state.Profile.clone()
	return s
}

// Err returns the error behind State.Error, nil when the session check
// hasn't failed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done returns a channel that's closed once the session check has resolved
// or the controller has been stopped.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Login clears any existing error and starts an interactive login.  An empty
// redirectURI uses the one the controller was initialized with.
func (c *Controller) Login(ctx context.Context, redirectURI string) error {
	const op = "session.(Controller).Login"
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrStopped)
	}
	c.state.Error = ""
	c.err = nil
	if redirectURI == "" {
		redirectURI = c.redirectURI
	}
	c.mu.Unlock()

	if err := c.client.Login(ctx, LoginOptions{RedirectURI: redirectURI}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Logout ends the session at the provider.  Local state isn't cleared since
// the view is discarded by the navigation.
func (c *Controller) Logout(ctx context.Context) error {
	const op = "session.(Controller).Logout"
	if err := c.client.Logout(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Stop tears the controller down.  It cancels the mount context and stops
// the refresh timer; once Stop returns there are no further ticks and no
// further state changes.  A session check still pending in the client is not
// waited for, its result is discarded.  Stop is idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	c.cancel()
	c.refreshWg.Wait()
	c.doneOnce.Do(func() { close(c.done) })
	c.logger.Debug("controller stopped")
}

// update applies fn to the state unless the controller has been stopped.  It
// reports whether fn was applied.
func (c *Controller) update(fn func(s *State)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	fn(&c.state)
	return true
}

func (c *Controller) checkSession(ctx context.Context, opts InitOptions) {
	const op = "session.(Controller).checkSession"
	defer c.finishLoading()

	authenticated, err := c.client.Init(ctx, opts)
	if err != nil {
		c.logger.Error("session check failed", "op", op, "error", err)
		c.update(func(s *State) {
			s.Error = ErrorMessage(err, InitFailedMessage)
			c.err = err
		})
		return
	}
	if !c.update(func(s *State) { s.Authenticated = authenticated }) || !authenticated {
		return
	}

	profile, err := c.client.LoadUserProfile(ctx)
	if err != nil {
		c.logger.Error("unable to load user profile", "op", op, "error", err)
		c.update(func(s *State) {
			s.Error = ErrorMessage(err, ProfileFailedMessage)
			c.err = err
		})
		return
	}
	if profile == nil {
		profile = &Profile{}
	}
	view := &ProfileView{
		Username:    profile.Username,
		FirstName:   profile.FirstName,
		LastName:    profile.LastName,
		Email:       profile.Email,
		ID:          profile.ID,
		RealmRoles:  c.client.RealmRoles(),
		ClientRoles: c.client.ClientRoles(c.client.ClientID()),
	}
	c.update(func(s *State) {
		if s.Authenticated {
			s.Profile = view
		}
	})
}

// finishLoading resolves the loading phase exactly once.
func (c *Controller) finishLoading() {
	if c.update(func(s *State) { s.Loading = false }) {
		c.doneOnce.Do(func() { close(c.done) })
	}
}

func (c *Controller) refreshLoop(ctx context.Context, ticker clockwork.Ticker) {
	defer c.refreshWg.Done()
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.refresh(ctx)
		}
	}
}

// refresh keeps the access token fresh.  A failed refresh forces an
// interactive login, there are no retries.
func (c *Controller) refresh(ctx context.Context) {
	const op = "session.(Controller).refresh"
	if !c.client.Authenticated() {
		return
	}
	err := c.client.UpdateToken(ctx, c.minValidity)
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		// torn down while refreshing
		return
	}
	c.logger.Warn("token refresh failed, forcing login", "op", op, "error", err)
	if err := c.client.Login(ctx, LoginOptions{}); err != nil {
		c.logger.Error("forced login failed", "op", op, "error", err)
	}
}
