// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestTokens_Redacted(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		token fmt.Stringer
		want  string
	}{
		{name: "access", token: AccessToken("secret"), want: RedactedAccessToken},
		{name: "refresh", token: RefreshToken("secret"), want: RedactedRefreshToken},
		{name: "id", token: IDToken("secret"), want: RedactedIDToken},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			assert.Equal(tt.want, tt.token.String())
			got, err := json.Marshal(tt.token)
			require.NoError(err)
			assert.Equal(fmt.Sprintf("%q", tt.want), string(got))
		})
	}
}

func TestToken_validFor(t *testing.T) {
	t.Parallel()
	now := time.Now()
	withExpiry := func(expiresIn float64) *Token {
		raw := (&oauth2.Token{AccessToken: "at"}).WithExtra(map[string]interface{}{"expires_in": expiresIn})
		return newToken(raw, "", roles{}, now)
	}

	tests := []struct {
		name  string
		token *Token
		d     time.Duration
		want  bool
	}{
		{name: "nil", token: nil, want: false},
		{name: "no-access-token", token: newToken(&oauth2.Token{}, "", roles{}, now), want: false},
		{name: "no-expiry", token: newToken(&oauth2.Token{AccessToken: "at"}, "", roles{}, now), d: time.Hour, want: true},
		{name: "valid", token: withExpiry(300), d: 30 * time.Second, want: true},
		{name: "within-min-validity", token: withExpiry(10), d: 30 * time.Second, want: false},
		{name: "expired", token: withExpiry(10), d: 10 * time.Second, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.token.validFor(now, tt.d))
		})
	}
}

func TestToken_Accessors(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	var nilToken *Token
	assert.Empty(nilToken.AccessToken())
	assert.Empty(nilToken.RefreshToken())
	assert.Empty(nilToken.IDToken())
	assert.True(nilToken.Expiry().IsZero())
	assert.Nil(nilToken.StaticTokenSource())

	now := time.Now()
	raw := (&oauth2.Token{AccessToken: "at", RefreshToken: "rt"}).WithExtra(map[string]interface{}{"expires_in": float64(60)})
	tk := newToken(raw, "idt", roles{}, now)
	assert.Equal(AccessToken("at"), tk.AccessToken())
	assert.Equal(RefreshToken("rt"), tk.RefreshToken())
	assert.Equal(IDToken("idt"), tk.IDToken())
	assert.Equal(now.Add(time.Minute), tk.Expiry())
	src, err := tk.StaticTokenSource().Token()
	assert.NoError(err)
	assert.Equal("at", src.AccessToken)
}
