// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultRefreshInterval is how often the controller asks the client to
	// refresh the access token.
	DefaultRefreshInterval = 20 * time.Second

	// DefaultMinValidity is the minimum remaining lifetime an access token
	// must have before a refresh is requested.
	DefaultMinValidity = 30 * time.Second
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

// controllerOptions is the set of available options for a Controller
type controllerOptions struct {
	withClock           clockwork.Clock
	withLogger          hclog.Logger
	withRefreshInterval time.Duration
	withMinValidity     time.Duration
}

// controllerDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func controllerDefaults() controllerOptions {
	return controllerOptions{
		withClock:           clockwork.NewRealClock(),
		withLogger:          hclog.NewNullLogger(),
		withRefreshInterval: DefaultRefreshInterval,
		withMinValidity:     DefaultMinValidity,
	}
}

func getControllerOpts(opt ...Option) controllerOptions {
	opts := controllerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithClock provides an optional clock which drives the refresh timer.
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if o, ok := o.(*controllerOptions); ok && c != nil {
			o.withClock = c
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*controllerOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithRefreshInterval overrides DefaultRefreshInterval.
func WithRefreshInterval(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*controllerOptions); ok {
			o.withRefreshInterval = d
		}
	}
}

// WithMinValidity overrides DefaultMinValidity.
func WithMinValidity(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*controllerOptions); ok {
			o.withMinValidity = d
		}
	}
}
