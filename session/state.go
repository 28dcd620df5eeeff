// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"fmt"
	"net/url"
	"strings"
)

// SilentCheckSSOPath is the well-known path of the silent session check
// resource, relative to the page's origin.
const SilentCheckSSOPath = "/silent-check-sso.html"

// State is a snapshot of a Controller's session state.
//
// Loading is true only until the initial session check resolves.  Profile is
// only set when Authenticated is true.
type State struct {
	Authenticated bool
	Loading       bool
	Profile       *ProfileView
	Error         string
}

// ProfileView is the read-only projection of a session's profile claims and
// role grants.
type ProfileView struct {
	Username    string
	FirstName   string
	LastName    string
	Email       string
	ID          string
	RealmRoles  []string
	ClientRoles []string
}

// Field is a single displayable profile entry.
type Field struct {
	Key   string
	Value string
}

// Fields returns the non-empty profile entries in display order.  Role lists
// are joined with ", ".  A nil ProfileView has no fields.
func (p *ProfileView) Fields() []Field {
	if p == nil {
		return nil
	}
	candidates := []Field{
		{Key: "username", Value: p.Username},
		{Key: "firstName", Value: p.FirstName},
		{Key: "lastName", Value: p.LastName},
		{Key: "email", Value: p.Email},
		{Key: "id", Value: p.ID},
		{Key: "realmRoles", Value: strings.Join(p.RealmRoles, ", ")},
		{Key: "clientRoles", Value: strings.Join(p.ClientRoles, ", ")},
	}
	fields := make([]Field, 0, len(candidates))
	for _, f := range candidates {
		if f.Value != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// String returns the field as "key: value"
func (f Field) String() string {
	return fmt.Sprintf("%s: %s", f.Key, f.Value)
}

// clone returns a deep copy, so callers of Controller.State can't alias the
// controller's role slices.
func (p *ProfileView) clone() *ProfileView {
	if p == nil {
		return nil
	}
	cp := *p
	cp.RealmRoles = append([]string(nil), p.RealmRoles...)
	cp.ClientRoles = append([]string(nil), p.ClientRoles...)
	return &cp
}

// RedirectURIs derives the redirect URI (origin + path) and the silent check
// redirect URI (origin + SilentCheckSSOPath) from a page URL.
func RedirectURIs(pageURL string) (redirectURI, silentCheckURI string, e error) {
	const op = "session.RedirectURIs"
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", "", fmt.Errorf("%s: unable to parse page url: %w", op, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("%s: page url %q is not absolute: %w", op, pageURL, ErrInvalidParameter)
	}
	origin := u.Scheme + "://" + u.Host
	return origin + u.EscapedPath(), origin + SilentCheckSSOPath, nil
}
