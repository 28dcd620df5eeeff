// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import "context"

// Navigator moves the user agent to a provider URL.  How that happens
// depends on the surface: a web page redirects, a terminal opens a browser.
type Navigator interface {
	// Navigate sends the user agent to url, leaving the current view.
	Navigate(ctx context.Context, url string) error

	// Frame loads url in a hidden frame without leaving the current view.
	// Surfaces that can't do that return ErrFrameUnsupported.
	Frame(ctx context.Context, url string) error
}
