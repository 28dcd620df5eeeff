// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/cap-session/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSilentCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("nil-completer", func(t *testing.T) {
		_, err := SilentCheck(ctx, nil)
		assert.ErrorIs(t, err, oidc.ErrInvalidParameter)
	})

	tests := []struct {
		name      string
		loggedIn  bool
		wantAuthn bool
	}{
		{name: "existing-session", loggedIn: true, wantAuthn: true},
		{name: "login-required", loggedIn: false, wantAuthn: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			tp := oidc.StartTestProvider(t)
			tp.SetLoggedIn(tt.loggedIn)
			c, nav := oidc.TestClient(t, tp, testRedirectURL)

			h, err := SilentCheck(ctx, c)
			require.NoError(err)
			srv := httptest.NewServer(h)
			defer srv.Close()

			q := testProviderRedirect(t, tp, c, nav, true)
			if !tt.loggedIn {
				assert.Equal("login_required", q.Get("error"))
			}
			resp, err := http.Get(srv.URL + "/silent-check-sso.html?" + q.Encode())
			require.NoError(err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(err)

			assert.Equal(http.StatusOK, resp.StatusCode)
			assert.Equal("text/html; charset=utf-8", resp.Header.Get("Content-Type"))
			assert.Equal(silentCheckPage, string(body))
			assert.Equal(tt.wantAuthn, c.Authenticated())
		})
	}
}
