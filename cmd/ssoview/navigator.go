// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/cap-session/oidc"
	"github.com/pkg/browser"
)

var (
	_ oidc.Navigator = (*webNavigator)(nil)
	_ oidc.Navigator = (*browserNavigator)(nil)
)

type redirectKey struct{}

// redirect receives the navigation made while handling a request.
type redirect struct {
	url string
}

func withRedirect(ctx context.Context) (context.Context, *redirect) {
	r := &redirect{}
	return context.WithValue(ctx, redirectKey{}, r), r
}

// webNavigator navigates the page served by serve.  Navigations made while
// handling a request become that request's redirect; navigations made in
// the background (a login forced by a failed refresh) wait for the next
// page load.  The hidden frame is rendered into the page.
type webNavigator struct {
	mu      sync.Mutex
	pending string
	frame   string
}

func (n *webNavigator) Navigate(ctx context.Context, url string) error {
	if r, ok := ctx.Value(redirectKey{}).(*redirect); ok {
		r.url = url
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = url
	return nil
}

func (n *webNavigator) Frame(_ context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frame = url
	return nil
}

// takePending returns and forgets the background navigation, if any.
func (n *webNavigator) takePending() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	u := n.pending
	n.pending = ""
	return u
}

// clearFrame forgets the frame of a torn down controller.
func (n *webNavigator) clearFrame() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frame = ""
}

func (n *webNavigator) frameURL() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frame
}

// browserNavigator opens the system browser.  A terminal has no hidden
// frames, so silent checks are skipped.
type browserNavigator struct {
	out  io.Writer
	open func(url string) error
}

func newBrowserNavigator(out io.Writer) *browserNavigator {
	return &browserNavigator{out: out, open: browser.OpenURL}
}

func (n *browserNavigator) Navigate(_ context.Context, url string) error {
	fmt.Fprintf(n.out, "Launching browser to:\n\n    %s\n\n", url)
	if err := n.open(url); err != nil {
		fmt.Fprintf(n.out, "Error attempting to automatically open browser: '%s'.\nPlease visit the URL manually.\n", err)
	}
	return nil
}

func (n *browserNavigator) Frame(context.Context, string) error {
	return oidc.ErrFrameUnsupported
}
