// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"net/http"

	"github.com/hashicorp/cap-session/oidc"
)

// SuccessResponseFunc is used by callbacks to create a http response when the
// callback is successful.
//
// The function state parameter will contain the state that was returned as
// part of a successful oidc authentication response.  By the time it's
// called the session's tokens are held by the Completer.  The function should
// use the http.ResponseWriter to send back whatever content (headers, html,
// redirect, etc) it wishes to the client that originated the oidc flow.
type SuccessResponseFunc func(state string, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by callbacks to create a http response when the
// callback fails.
//
// The function receives the state returned as part of the oidc authentication
// response.  It also gets the provider's error response and/or the callback
// error raised while processing the request.
type ErrorResponseFunc func(state string, respErr *oidc.ProviderError, e error, w http.ResponseWriter, req *http.Request)
