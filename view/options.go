// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package view

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

type pageOptions struct {
	withTitle          string
	withProviderName   string
	withRefreshSeconds int
}

func pageDefaults() pageOptions {
	return pageOptions{
		withTitle:          "Keycloak Login",
		withProviderName:   "Keycloak",
		withRefreshSeconds: 1,
	}
}

func getPageOpts(opt ...Option) pageOptions {
	opts := pageDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTitle overrides the title and heading.
func WithTitle(t string) Option {
	return func(o interface{}) {
		if o, ok := o.(*pageOptions); ok && t != "" {
			o.withTitle = t
		}
	}
}

// WithProviderName overrides the provider named by the login control or
// command.
func WithProviderName(n string) Option {
	return func(o interface{}) {
		if o, ok := o.(*pageOptions); ok && n != "" {
			o.withProviderName = n
		}
	}
}

// WithRefreshSeconds sets how often a page reloads while the session check is
// pending.
func WithRefreshSeconds(s int) Option {
	return func(o interface{}) {
		if o, ok := o.(*pageOptions); ok && s > 0 {
			o.withRefreshSeconds = s
		}
	}
}
