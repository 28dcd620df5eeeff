// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// ssoview shows the single sign-on session of an OIDC provider (like
// Keycloak) either as a local web page or in the terminal.
//
// The provider is configured with environment variables:
//
//	OIDC_ISSUER         issuer URL, eg: http://localhost:8080/realms/demo
//	OIDC_CLIENT_ID      client ID
//	OIDC_CLIENT_SECRET  client secret, empty for public clients
//	OIDC_PORT           local port, default 3000
//	OIDC_SCOPES         comma separated scopes, default profile,email
//	OIDC_SIGNING_ALGS   semicolon separated id_token algs, default RS256
//	OIDC_PROVIDER_CA    path to a PEM encoded CA for the provider
//	OIDC_PUBLIC_URL     page URL of serve, default http://localhost:$OIDC_PORT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
