// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-uuid"
	"golang.org/x/oauth2"
)

// request is a single authorization request waiting on its redirect.
type request struct {
	state       string
	nonce       string
	verifier    string
	redirectURL string
	silent      bool
	expiration  time.Time

	once sync.Once
	done chan error
}

func newRequest(redirectURL string, silent bool, expiration time.Time) (*request, error) {
	const op = "oidc.newRequest"
	state, err := newID("st_")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate state: %w", op, err)
	}
	nonce, err := newID("n_")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate nonce: %w", op, err)
	}
	return &request{
		state:       state,
		nonce:       nonce,
		verifier:    oauth2.GenerateVerifier(),
		redirectURL: redirectURL,
		silent:      silent,
		expiration:  expiration,
		done:        make(chan error, 1),
	}, nil
}

func (r *request) expired(now time.Time) bool {
	return !r.expiration.After(now)
}

// resolve completes the request.  Only the first call has an effect.
func (r *request) resolve(err error) {
	r.once.Do(func() {
		r.done <- err
		close(r.done)
	})
}

// newID generates an ID with an optional prefix, suitable for a state or
// nonce.
func newID(prefix string) (string, error) {
	const op = "oidc.newID"
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrIDGeneratorFailed, err)
	}
	return prefix + id, nil
}
