// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"testing"
)

// Completer completes an authorization request from its redirect.  Client
// implements it.
type Completer interface {
	Exchange(ctx context.Context, state, code string) error
	Reject(ctx context.Context, state string, providerErr *ProviderError) error
}

// Complete parses a redirect URL the provider sent the user agent to and
// completes its request with c.  Redirects without a state (like the one
// after a logout) are ignored.
func Complete(ctx context.Context, c Completer, redirectURL string) error {
	const op = "oidc.Complete"
	u, err := url.Parse(redirectURL)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidParameter, err)
	}
	q := u.Query()
	state := q.Get("state")
	switch {
	case state == "":
		return nil
	case q.Get("error") != "":
		return c.Reject(ctx, state, &ProviderError{
			Code:        q.Get("error"),
			Description: q.Get("error_description"),
			URI:         q.Get("error_uri"),
		})
	default:
		return c.Exchange(ctx, state, q.Get("code"))
	}
}

// TestNavigator is a Navigator that plays the part of a browser against a
// TestProvider.  It records every navigation and frame.  With Follow set it
// loads provider URLs and completes the redirects with its Completer, frames
// asynchronously like a browser would.
type TestNavigator struct {
	// Completer completes the redirects, usually the Client using the
	// navigator.
	Completer Completer

	// Follow loads navigations and frames instead of only recording them.
	Follow bool

	// FrameErr is returned by Frame when set.
	FrameErr error

	httpClient *http.Client
	t          *testing.T

	mu          sync.Mutex
	navigations []string
	frames      []string
	errs        []error
	wg          sync.WaitGroup
}

// NewTestNavigator returns a TestNavigator using httpClient, which must not
// follow redirects (see TestProvider.HTTPClient).
func NewTestNavigator(t *testing.T, httpClient *http.Client) *TestNavigator {
	t.Helper()
	n := &TestNavigator{httpClient: httpClient, t: t}
	t.Cleanup(n.wg.Wait)
	return n
}

// Navigate records u and loads it when Follow is set.
func (n *TestNavigator) Navigate(ctx context.Context, u string) error {
	n.mu.Lock()
	n.navigations = append(n.navigations, u)
	n.mu.Unlock()
	if !n.Follow {
		return nil
	}
	return n.load(ctx, u)
}

// Frame records u and, when Follow is set, loads it in the background.
func (n *TestNavigator) Frame(ctx context.Context, u string) error {
	n.mu.Lock()
	n.frames = append(n.frames, u)
	n.mu.Unlock()
	if n.FrameErr != nil {
		return n.FrameErr
	}
	if !n.Follow {
		return nil
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.load(context.WithoutCancel(ctx), u); err != nil {
			n.mu.Lock()
			n.errs = append(n.errs, err)
			n.mu.Unlock()
		}
	}()
	return nil
}

// load requests u and completes the redirect it answers with.
func (n *TestNavigator) load(ctx context.Context, u string) error {
	const op = "TestNavigator.load"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	location := resp.Header.Get("Location")
	if location == "" {
		return nil
	}
	if n.Completer == nil {
		return fmt.Errorf("%s: completer is nil: %w", op, ErrNilParameter)
	}
	return Complete(ctx, n.Completer, location)
}

// Navigations returns the URLs passed to Navigate.
func (n *TestNavigator) Navigations() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.navigations...)
}

// Frames returns the URLs passed to Frame.
func (n *TestNavigator) Frames() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.frames...)
}

// Errs returns the errors of background frame loads.
func (n *TestNavigator) Errs() []error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]error(nil), n.errs...)
}

// TestClient returns a Client for the TestProvider, configured with
// redirectURL and a following TestNavigator.
func TestClient(t *testing.T, p *TestProvider, redirectURL string, opt ...Option) (*Client, *TestNavigator) {
	t.Helper()
	p.mu.Lock()
	clientID, clientSecret := p.clientID, p.clientSecret
	p.mu.Unlock()

	cfg, err := NewConfig(p.Addr(), clientID, ClientSecret(clientSecret), redirectURL,
		WithProviderCA(p.CACert()),
		WithSupportedSigningAlgs(ES256),
		WithScopes("profile", "email"),
	)
	if err != nil {
		t.Fatalf("TestClient: %s", err)
	}
	nav := NewTestNavigator(t, p.HTTPClient())
	nav.Follow = true
	c, err := NewClient(cfg, append([]Option{WithNavigator(nav)}, opt...)...)
	if err != nil {
		t.Fatalf("TestClient: %s", err)
	}
	nav.Completer = c
	return c, nav
}
