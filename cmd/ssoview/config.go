// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/cap-session/oidc"
	"github.com/joeshaw/envdecode"
)

const defaultScopes = "profile,email"

// envConfig is the command's configuration, read from the environment.
type envConfig struct {
	Issuer       string   `env:"OIDC_ISSUER,required"`
	ClientID     string   `env:"OIDC_CLIENT_ID,required"`
	ClientSecret string   `env:"OIDC_CLIENT_SECRET"`
	Port         int      `env:"OIDC_PORT,default=3000"`
	Scopes       string   `env:"OIDC_SCOPES"`
	SigningAlgs  []string `env:"OIDC_SIGNING_ALGS,default=RS256"`
	ProviderCA   string   `env:"OIDC_PROVIDER_CA"`
	PublicURL    string   `env:"OIDC_PUBLIC_URL"`
}

func loadConfig() (*envConfig, error) {
	const op = "main.loadConfig"
	var c envConfig
	if err := envdecode.Decode(&c); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return nil, fmt.Errorf("%s: OIDC_PORT %d is out of range: %w", op, c.Port, oidc.ErrInvalidParameter)
	}
	return &c, nil
}

// pageURL is where serve's page is reached.
func (c *envConfig) pageURL() string {
	if c.PublicURL != "" {
		return strings.TrimSuffix(c.PublicURL, "/") + "/"
	}
	return fmt.Sprintf("http://localhost:%d/", c.Port)
}

// callbackURL is the redirect URL of login.
func (c *envConfig) callbackURL() string {
	return fmt.Sprintf("http://localhost:%d/callback", c.Port)
}

func (c *envConfig) scopes() []string {
	s := c.Scopes
	if s == "" {
		s = defaultScopes
	}
	var scopes []string
	for _, scope := range strings.Split(s, ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}

// oidcConfig builds the provider config for redirectURL.
func (c *envConfig) oidcConfig(redirectURL string) (*oidc.Config, error) {
	const op = "main.(envConfig).oidcConfig"
	algs := make([]oidc.Alg, 0, len(c.SigningAlgs))
	for _, a := range c.SigningAlgs {
		algs = append(algs, oidc.Alg(strings.TrimSpace(a)))
	}
	opts := []oidc.Option{
		oidc.WithScopes(c.scopes()...),
		oidc.WithSupportedSigningAlgs(algs...),
	}
	if c.ProviderCA != "" {
		pem, err := os.ReadFile(c.ProviderCA)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to read OIDC_PROVIDER_CA: %w", op, err)
		}
		opts = append(opts, oidc.WithProviderCA(string(pem)))
	}
	cfg, err := oidc.NewConfig(c.Issuer, c.ClientID, oidc.ClientSecret(c.ClientSecret), redirectURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}
