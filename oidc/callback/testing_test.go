// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/hashicorp/cap-session/oidc"
	"github.com/hashicorp/cap-session/session"
	"github.com/stretchr/testify/require"
)

const testRedirectURL = "http://localhost:3000/"

// testSuccessFn is a test SuccessResponseFunc
func testSuccessFn(state string, w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("login successful"))
}

// testFailFn is a test ErrorResponseFunc
func testFailFn(state string, r *oidc.ProviderError, e error, w http.ResponseWriter, req *http.Request) {
	type body struct {
		Error       string `json:"error"`
		Description string `json:"error_description,omitempty"`
	}
	if r != nil {
		w.WriteHeader(http.StatusUnauthorized)
		j, _ := json.Marshal(&body{Error: r.Code, Description: r.Description})
		_, _ = w.Write(j)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	j, _ := json.Marshal(&body{Error: "internal-callback-error", Description: e.Error()})
	_, _ = w.Write(j)
}

// testProviderRedirect starts a login (or silent check) with c and returns
// the query the provider redirected back with.
func testProviderRedirect(t *testing.T, tp *oidc.TestProvider, c *oidc.Client, nav *oidc.TestNavigator, silent bool) url.Values {
	t.Helper()
	require := require.New(t)
	ctx := context.Background()
	nav.Follow = false

	var authURL string
	if silent {
		go func() {
			_, _ = c.Init(ctx, session.InitOptions{
				OnLoad:                    session.CheckSSO,
				PKCEMethod:                session.PKCEMethodS256,
				RedirectURI:               testRedirectURL,
				SilentCheckSSORedirectURI: testRedirectURL + "silent-check-sso.html",
			})
		}()
		require.Eventually(func() bool { return len(nav.Frames()) > 0 }, waitFor, tick)
		authURL = nav.Frames()[0]
	} else {
		require.NoError(c.Login(ctx, session.LoginOptions{}))
		authURL = nav.Navigations()[0]
	}

	resp, err := tp.HTTPClient().Get(authURL)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(err)
	return loc.Query()
}
