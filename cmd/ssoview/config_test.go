// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/cap-session/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name            string
		env             map[string]string
		want            *envConfig
		wantErrContains string
	}{
		{
			name: "defaults",
			env: map[string]string{
				"OIDC_ISSUER":    "http://localhost:8080/realms/demo",
				"OIDC_CLIENT_ID": "demo",
			},
			want: &envConfig{
				Issuer:      "http://localhost:8080/realms/demo",
				ClientID:    "demo",
				Port:        3000,
				SigningAlgs: []string{"RS256"},
			},
		},
		{
			name: "everything",
			env: map[string]string{
				"OIDC_ISSUER":        "https://idp.example.com/realms/demo",
				"OIDC_CLIENT_ID":     "demo",
				"OIDC_CLIENT_SECRET": "s3cr3t",
				"OIDC_PORT":          "8000",
				"OIDC_SCOPES":        "profile, roles",
				"OIDC_SIGNING_ALGS":  "RS256;ES256",
				"OIDC_PROVIDER_CA":   "/etc/ca.pem",
				"OIDC_PUBLIC_URL":    "https://app.example.com",
			},
			want: &envConfig{
				Issuer:       "https://idp.example.com/realms/demo",
				ClientID:     "demo",
				ClientSecret: "s3cr3t",
				Port:         8000,
				Scopes:       "profile, roles",
				SigningAlgs:  []string{"RS256", "ES256"},
				ProviderCA:   "/etc/ca.pem",
				PublicURL:    "https://app.example.com",
			},
		},
		{
			name:            "missing-issuer",
			env:             map[string]string{"OIDC_CLIENT_ID": "demo"},
			wantErrContains: "OIDC_ISSUER",
		},
		{
			name: "bad-port",
			env: map[string]string{
				"OIDC_ISSUER":    "http://localhost:8080/realms/demo",
				"OIDC_CLIENT_ID": "demo",
				"OIDC_PORT":      "70000",
			},
			wantErrContains: "out of range",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			for _, k := range []string{"OIDC_ISSUER", "OIDC_CLIENT_ID", "OIDC_CLIENT_SECRET", "OIDC_PORT", "OIDC_SCOPES", "OIDC_SIGNING_ALGS", "OIDC_PROVIDER_CA", "OIDC_PUBLIC_URL"} {
				t.Setenv(k, "")
				require.NoError(os.Unsetenv(k))
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			got, err := loadConfig()
			if tt.wantErrContains != "" {
				require.Error(err)
				assert.Contains(err.Error(), tt.wantErrContains)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestEnvConfig_URLs(t *testing.T) {
	assert := assert.New(t)
	c := &envConfig{Port: 3000}
	assert.Equal("http://localhost:3000/", c.pageURL())
	assert.Equal("http://localhost:3000/callback", c.callbackURL())
	assert.Equal([]string{"profile", "email"}, c.scopes())

	c.PublicURL = "https://app.example.com/"
	c.Scopes = "roles,, profile "
	assert.Equal("https://app.example.com/", c.pageURL())
	assert.Equal([]string{"roles", "profile"}, c.scopes())
}

func TestEnvConfig_oidcConfig(t *testing.T) {
	tp := oidc.StartTestProvider(t)
	caFile := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(caFile, []byte(tp.CACert()), 0o600))

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := &envConfig{
			Issuer:      tp.Addr(),
			ClientID:    "demo",
			Port:        3000,
			SigningAlgs: []string{"RS256", " ES256"},
			ProviderCA:  caFile,
		}
		got, err := c.oidcConfig(c.pageURL())
		require.NoError(err)
		assert.Equal([]string{"openid", "profile", "email"}, got.Scopes)
		assert.Equal([]oidc.Alg{oidc.RS256, oidc.ES256}, got.SupportedSigningAlgs)
		assert.Equal(tp.CACert(), got.ProviderCA)
		assert.Equal("http://localhost:3000/", got.DefaultRedirectURL)
	})
	t.Run("missing-ca-file", func(t *testing.T) {
		c := &envConfig{Issuer: tp.Addr(), ClientID: "demo", Port: 3000, SigningAlgs: []string{"RS256"}, ProviderCA: filepath.Join(t.TempDir(), "missing.pem")}
		_, err := c.oidcConfig(c.pageURL())
		assert.ErrorContains(t, err, "OIDC_PROVIDER_CA")
	})
	t.Run("unsupported-alg", func(t *testing.T) {
		c := &envConfig{Issuer: tp.Addr(), ClientID: "demo", Port: 3000, SigningAlgs: []string{"none"}}
		_, err := c.oidcConfig(c.pageURL())
		assert.ErrorIs(t, err, oidc.ErrUnsupportedAlg)
	})
}
