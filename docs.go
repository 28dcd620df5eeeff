// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// capsession provides the packages of an OIDC (Keycloak style) session
// controller: a session.Controller that tracks whether the user is logged in,
// an oidc.Client that talks to the provider, the callback handlers for the
// provider's redirects and the views that render a session.
//
// See cmd/ssoview for a complete page and terminal client.
package capsession
