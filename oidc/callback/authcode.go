// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/cap-session/oidc"
)

// AuthCode creates an oidc authorization code callback handler.  The
// request's "state" parameter identifies the pending request, which is
// completed with the Completer: a "code" is exchanged, an "error" rejects
// it.
//
// The SuccessResponseFunc is used to create a response when callback is
// successful. The ErrorResponseFunc is to create a response when the callback
// fails.
func AuthCode(ctx context.Context, c oidc.Completer, sFn SuccessResponseFunc, eFn ErrorResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.AuthCode"
	switch {
	case c == nil:
		return nil, fmt.Errorf("%s: completer is nil: %w", op, oidc.ErrInvalidParameter)
	case sFn == nil:
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, oidc.ErrInvalidParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrInvalidParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		// FormValue prioritizes body values, if found
		reqState := req.FormValue("state")
		if reqState == "" {
			eFn(reqState, nil, fmt.Errorf("%s: missing state parameter: %w", op, oidc.ErrInvalidParameter), w, req)
			return
		}

		if errCode := req.FormValue("error"); errCode != "" {
			respErr := &oidc.ProviderError{
				Code:        errCode,
				Description: req.FormValue("error_description"),
				URI:         req.FormValue("error_uri"),
			}
			err := c.Reject(ctx, reqState, respErr)
			eFn(reqState, respErr, err, w, req)
			return
		}

		if err := c.Exchange(ctx, reqState, req.FormValue("code")); err != nil {
			eFn(reqState, nil, fmt.Errorf("%s: unable to exchange authorization code: %w", op, err), w, req)
			return
		}
		sFn(reqState, w, req)
	}, nil
}
