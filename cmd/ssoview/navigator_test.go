// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/cap-session/oidc"
	"github.com/stretchr/testify/assert"
)

func TestWebNavigator(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	n := &webNavigator{}

	reqCtx, r := withRedirect(ctx)
	assert.NoError(n.Navigate(reqCtx, "https://idp/auth?state=1"))
	assert.Equal("https://idp/auth?state=1", r.url)
	assert.Empty(n.takePending())

	assert.NoError(n.Navigate(ctx, "https://idp/auth?state=2"))
	assert.Equal("https://idp/auth?state=2", n.takePending())
	assert.Empty(n.takePending())

	assert.NoError(n.Frame(ctx, "https://idp/auth?prompt=none"))
	assert.Equal("https://idp/auth?prompt=none", n.frameURL())
}

func TestBrowserNavigator(t *testing.T) {
	assert := assert.New(t)
	var out bytes.Buffer
	var opened []string
	n := newBrowserNavigator(&out)
	n.open = func(u string) error {
		opened = append(opened, u)
		return errors.New("no display")
	}

	assert.NoError(n.Navigate(context.Background(), "https://idp/auth"))
	assert.Equal([]string{"https://idp/auth"}, opened)
	assert.Contains(out.String(), "https://idp/auth")
	assert.Contains(out.String(), "Please visit the URL manually.")

	assert.ErrorIs(n.Frame(context.Background(), "https://idp/auth?prompt=none"), oidc.ErrFrameUnsupported)
}
