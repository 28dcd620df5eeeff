// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/go-uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testProviderKeyID = "test-provider-key"

// TestProvider is a local OIDC provider that supports the capabilities a
// Client needs: discovery, the authorization code flow with PKCE,
// prompt=none session checks, the refresh_token grant, userinfo and
// end_session.  It keeps a single browser session and a single user, which
// makes writing tests much easier.
//
// Tokens are signed with ES256, so clients must be configured with
// WithSupportedSigningAlgs(ES256).
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string
	signer     jose.Signer
	jwks       *jose.JSONWebKeySet
	clock      clockwork.Clock

	mu              sync.Mutex
	clientID        string
	clientSecret    string
	loggedIn        bool
	subject         string
	userinfo        map[string]interface{}
	realmRoles      []string
	clientRoles     map[string][]string
	accessTokenTTL  time.Duration
	codes           map[string]testAuthCode
	refreshTokens   map[string]bool
	omitIDToken     bool
	disableUserInfo bool
	disableLogout   bool
	refreshCount    int

	t *testing.T
}

type testAuthCode struct {
	nonce       string
	challenge   string
	redirectURI string
}

// StartTestProvider creates a disposable TestProvider, stopped when the test
// ends.  The only supported option is WithClock, which sets the clock used
// for issued and expiry times.
func StartTestProvider(t *testing.T, opt ...Option) *TestProvider {
	t.Helper()
	require := require.New(t)
	opts := getTestProviderOpts(opt...)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(err)
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.ES256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", testProviderKeyID),
	)
	require.NoError(err)

	p := &TestProvider{
		signer: signer,
		jwks: &jose.JSONWebKeySet{
			Keys: []jose.JSONWebKey{{
				Key:       key.Public(),
				KeyID:     testProviderKeyID,
				Algorithm: string(jose.ES256),
				Use:       "sig",
			}},
		},
		clock:          opts.withClock,
		clientID:       "test-client",
		subject:        "alice-id",
		accessTokenTTL: 5 * time.Minute,
		userinfo: map[string]interface{}{
			"preferred_username": "alice",
			"given_name":         "Alice",
			"family_name":        "Smith",
			"email":              "alice@example.com",
		},
		codes:         map[string]testAuthCode{},
		refreshTokens: map[string]bool{},
		t:             t,
	}
	p.httpServer = httptest.NewTLSServer(p)
	t.Cleanup(p.Stop)

	p.caCert = string(pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: p.httpServer.Certificate().Raw,
	}))
	return p
}

type testProviderOptions struct {
	withClock clockwork.Clock
}

func getTestProviderOpts(opt ...Option) testProviderOptions {
	opts := testProviderOptions{withClock: clockwork.NewRealClock()}
	ApplyOpts(&opts, opt...)
	return opts
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the provider's issuer, the base URL of its webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns an http client that trusts the provider and doesn't
// follow redirects.
func (p *TestProvider) HTTPClient() *http.Client {
	c := *p.httpServer.Client()
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &c
}

// SetClientCreds sets the client ID and secret the provider accepts.  An
// empty secret makes it a public client.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetLoggedIn sets whether the provider's browser session is logged in,
// which decides the outcome of prompt=none requests.
func (p *TestProvider) SetLoggedIn(loggedIn bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loggedIn = loggedIn
}

// LoggedIn reports whether the provider's browser session is logged in.
func (p *TestProvider) LoggedIn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loggedIn
}

// SetUser sets the subject and the userinfo claims of the single user.
func (p *TestProvider) SetUser(subject string, userinfo map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subject = subject
	p.userinfo = userinfo
}

// SetRoles sets the realm and per-client roles included in access tokens.
func (p *TestProvider) SetRoles(realm []string, client map[string][]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.realmRoles = realm
	p.clientRoles = client
}

// SetAccessTokenTTL sets the lifetime of issued access and id tokens.
func (p *TestProvider) SetAccessTokenTTL(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessTokenTTL = d
}

// RevokeRefreshTokens makes every refresh_token issued so far invalid.
func (p *TestProvider) RevokeRefreshTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for rt := range p.refreshTokens {
		p.refreshTokens[rt] = false
	}
}

// RefreshCount returns the number of successful refresh_token grants.
func (p *TestProvider) RefreshCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshCount
}

// OmitIDTokens leaves id_tokens out of token responses.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// DisableUserInfo makes the userinfo endpoint unavailable.
func (p *TestProvider) DisableUserInfo() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableUserInfo = true
}

// DisableLogout removes end_session_endpoint from discovery.
func (p *TestProvider) DisableLogout() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableLogout = true
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()
	u, err := url.Parse(qv.Get("redirect_uri"))
	if err != nil || qv.Get("redirect_uri") == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	q := u.Query()
	q.Set("state", qv.Get("state"))
	q.Set("error", errorCode)
	if errorMessage != "" {
		q.Set("error_description", errorMessage)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, req, u.String(), http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(&body)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		p.handleDiscovery(w, req)
	case "/auth":
		p.handleAuth(w, req)
	case "/token":
		p.handleToken(w, req)
	case "/userinfo":
		p.handleUserInfo(w, req)
	case "/certs":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.writeJSON(w, p.jwks)
	case "/logout":
		p.handleLogout(w, req)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *TestProvider) handleDiscovery(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	reply := struct {
		Issuer             string   `json:"issuer"`
		AuthEndpoint       string   `json:"authorization_endpoint"`
		TokenEndpoint      string   `json:"token_endpoint"`
		JWKSURI            string   `json:"jwks_uri"`
		UserinfoEndpoint   string   `json:"userinfo_endpoint,omitempty"`
		EndSessionEndpoint string   `json:"end_session_endpoint,omitempty"`
		Algorithms         []string `json:"id_token_signing_alg_values_supported"`
		ChallengeMethods   []string `json:"code_challenge_methods_supported"`
	}{
		Issuer:             p.Addr(),
		AuthEndpoint:       p.Addr() + "/auth",
		TokenEndpoint:      p.Addr() + "/token",
		JWKSURI:            p.Addr() + "/certs",
		UserinfoEndpoint:   p.Addr() + "/userinfo",
		EndSessionEndpoint: p.Addr() + "/logout",
		Algorithms:         []string{string(ES256)},
		ChallengeMethods:   []string{"S256"},
	}
	if p.disableUserInfo {
		reply.UserinfoEndpoint = ""
	}
	if p.disableLogout {
		reply.EndSessionEndpoint = ""
	}
	p.writeJSON(w, &reply)
}

func (p *TestProvider) handleAuth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	qv := req.URL.Query()
	switch {
	case qv.Get("redirect_uri") == "":
		w.WriteHeader(http.StatusBadRequest)
		return
	case qv.Get("response_type") != "code":
		p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
		return
	case qv.Get("client_id") != p.clientID:
		p.writeAuthErrorResponse(w, req, "unauthorized_client", "unknown client_id")
		return
	case !slices.Contains(strings.Fields(qv.Get("scope")), "openid"):
		p.writeAuthErrorResponse(w, req, "invalid_scope", "openid scope is required")
		return
	case qv.Get("state") == "":
		p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
		return
	case qv.Get("code_challenge") == "" || qv.Get("code_challenge_method") != "S256":
		p.writeAuthErrorResponse(w, req, "invalid_request", "PKCE S256 code challenge is required")
		return
	}

	if qv.Get("prompt") == "none" {
		if !p.loggedIn {
			p.writeAuthErrorResponse(w, req, "login_required", "")
			return
		}
	} else {
		// an interactive login always succeeds
		p.loggedIn = true
	}

	code, err := uuid.GenerateUUID()
	require.NoError(p.t, err)
	p.codes[code] = testAuthCode{
		nonce:       qv.Get("nonce"),
		challenge:   qv.Get("code_challenge"),
		redirectURI: qv.Get("redirect_uri"),
	}

	u, err := url.Parse(qv.Get("redirect_uri"))
	require.NoError(p.t, err)
	q := u.Query()
	q.Set("state", qv.Get("state"))
	q.Set("code", code)
	u.RawQuery = q.Encode()
	http.Redirect(w, req, u.String(), http.StatusFound)
}

func (p *TestProvider) handleToken(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := req.ParseForm(); err != nil {
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	clientID, clientSecret, ok := req.BasicAuth()
	if ok {
		clientID, _ = url.QueryUnescape(clientID)
		clientSecret, _ = url.QueryUnescape(clientSecret)
	} else {
		clientID, clientSecret = req.PostForm.Get("client_id"), req.PostForm.Get("client_secret")
	}
	if clientID != p.clientID || clientSecret != p.clientSecret {
		p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "bad client credentials")
		return
	}

	var nonce string
	switch req.PostForm.Get("grant_type") {
	case "authorization_code":
		code, ok := p.codes[req.PostForm.Get("code")]
		delete(p.codes, req.PostForm.Get("code"))
		switch {
		case !ok:
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unknown auth code")
			return
		case code.redirectURI != req.PostForm.Get("redirect_uri"):
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "redirect_uri mismatch")
			return
		case oauth2.S256ChallengeFromVerifier(req.PostForm.Get("code_verifier")) != code.challenge:
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "PKCE verification failed")
			return
		}
		nonce = code.nonce
	case "refresh_token":
		rt := req.PostForm.Get("refresh_token")
		if !p.refreshTokens[rt] {
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "refresh token is not active")
			return
		}
		// rotate
		p.refreshTokens[rt] = false
		p.refreshCount++
	default:
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "unsupported_grant_type", "")
		return
	}
	p.writeTokens(w, nonce)
}

func (p *TestProvider) writeTokens(w http.ResponseWriter, nonce string) {
	now := p.clock.Now()
	std := josejwt.Claims{
		Subject:   p.subject,
		Issuer:    p.Addr(),
		IssuedAt:  josejwt.NewNumericDate(now),
		NotBefore: josejwt.NewNumericDate(now.Add(-5 * time.Second)),
		Expiry:    josejwt.NewNumericDate(now.Add(p.accessTokenTTL)),
		Audience:  josejwt.Audience{p.clientID},
	}

	resourceAccess := map[string]interface{}{}
	for id, r := range p.clientRoles {
		resourceAccess[id] = map[string]interface{}{"roles": r}
	}
	accessToken := p.sign(std, map[string]interface{}{
		"azp":             p.clientID,
		"realm_access":    map[string]interface{}{"roles": p.realmRoles},
		"resource_access": resourceAccess,
	})
	idClaims := map[string]interface{}{"azp": p.clientID}
	if nonce != "" {
		idClaims["nonce"] = nonce
	}
	idToken := p.sign(std, idClaims)

	refreshToken, err := uuid.GenerateUUID()
	require.NoError(p.t, err)
	p.refreshTokens[refreshToken] = true

	reply := struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
		IDToken      string `json:"id_token,omitempty"`
	}{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(p.accessTokenTTL / time.Second),
		RefreshToken: refreshToken,
		IDToken:      idToken,
	}
	if p.omitIDToken {
		reply.IDToken = ""
	}
	p.writeJSON(w, &reply)
}

func (p *TestProvider) sign(std josejwt.Claims, private map[string]interface{}) string {
	raw, err := josejwt.Signed(p.signer).Claims(std).Claims(private).Serialize()
	require.NoError(p.t, err)
	return raw
}

func (p *TestProvider) handleUserInfo(w http.ResponseWriter, req *http.Request) {
	if p.disableUserInfo {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if req.Header.Get("Authorization") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	reply := map[string]interface{}{"sub": p.subject}
	for k, v := range p.userinfo {
		reply[k] = v
	}
	p.writeJSON(w, reply)
}

func (p *TestProvider) handleLogout(w http.ResponseWriter, req *http.Request) {
	if p.disableLogout {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	p.loggedIn = false
	for rt := range p.refreshTokens {
		p.refreshTokens[rt] = false
	}
	if redirect := req.URL.Query().Get("post_logout_redirect_uri"); redirect != "" {
		http.Redirect(w, req, redirect, http.StatusFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}
