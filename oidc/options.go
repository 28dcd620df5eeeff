// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

// Option defines a common functional options type
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(opts)
	}
}

// WithClock provides an optional clock for: Config, Client, TestProvider
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if c == nil {
			return
		}
		switch v := o.(type) {
		case *configOptions:
			v.withClock = c
		case *clientOptions:
			v.withClock = c
		case *testProviderOptions:
			v.withClock = c
		}
	}
}

// WithLogger provides an optional logger for: Client
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// clientOptions is the set of available options for Client functions
type clientOptions struct {
	withClock              clockwork.Clock
	withLogger             hclog.Logger
	withNavigator          Navigator
	withSilentCheckTimeout time.Duration
	withRequestExpiry      time.Duration
}

const (
	// DefaultSilentCheckTimeout bounds how long Init waits for the hidden
	// frame of a silent check to return.
	DefaultSilentCheckTimeout = 10 * time.Second

	// DefaultRequestExpiry is how long an authentication request stays
	// valid waiting for its redirect.
	DefaultRequestExpiry = 5 * time.Minute
)

// clientDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func clientDefaults() clientOptions {
	return clientOptions{
		withClock:              clockwork.NewRealClock(),
		withLogger:             hclog.NewNullLogger(),
		withSilentCheckTimeout: DefaultSilentCheckTimeout,
		withRequestExpiry:      DefaultRequestExpiry,
	}
}

func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithNavigator provides the Navigator used for logins, logouts and silent
// checks.
func WithNavigator(n Navigator) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withNavigator = n
		}
	}
}

// WithSilentCheckTimeout overrides DefaultSilentCheckTimeout.
func WithSilentCheckTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withSilentCheckTimeout = d
		}
	}
}

// WithRequestExpiry overrides DefaultRequestExpiry.
func WithRequestExpiry(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withRequestExpiry = d
		}
	}
}
