// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// roles are the realm and per-client roles a Keycloak style provider
// includes in its access tokens.
type roles struct {
	realm  []string
	client map[string][]string
}

type roleClaims struct {
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	ResourceAccess map[string]struct {
		Roles []string `json:"roles"`
	} `json:"resource_access"`
	jwt.RegisteredClaims
}

// parseRoles reads the role claims of an access token.  The signature isn't
// verified: the token came straight from the token endpoint over TLS and is
// only inspected, never trusted for authorization.
func parseRoles(accessToken string) (roles, error) {
	const op = "oidc.parseRoles"
	if accessToken == "" {
		return roles{}, fmt.Errorf("%s: missing access token: %w", op, ErrInvalidParameter)
	}
	var c roleClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &c); err != nil {
		return roles{}, fmt.Errorf("%s: %w", op, err)
	}
	r := roles{realm: slices.Clone(c.RealmAccess.Roles)}
	if len(c.ResourceAccess) > 0 {
		r.client = make(map[string][]string, len(c.ResourceAccess))
		for id, ra := range c.ResourceAccess {
			r.client[id] = slices.Clone(ra.Roles)
		}
	}
	return r, nil
}
