// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package view

import (
	"bytes"
	"testing"

	"github.com/hashicorp/cap-session/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yhat/scrape"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func testRender(t *testing.T, p *Page, state session.State, data PageData) *html.Node {
	t.Helper()
	require := require.New(t)
	var buf bytes.Buffer
	require.NoError(p.Render(&buf, state, data))
	root, err := html.Parse(&buf)
	require.NoError(err)
	return root
}

func textsByClass(root *html.Node, class string) []string {
	var out []string
	for _, n := range scrape.FindAll(root, scrape.ByClass(class)) {
		out = append(out, scrape.Text(n))
	}
	return out
}

func refreshMeta(n *html.Node) bool {
	return n.DataAtom == atom.Meta && scrape.Attr(n, "http-equiv") == "refresh"
}

func TestPage_Render(t *testing.T) {
	t.Parallel()
	data := PageData{LoginURL: "/login", LogoutURL: "/logout"}
	alice := &session.ProfileView{
		Username:   "alice",
		FirstName:  "Alice",
		Email:      "a@x.com",
		ID:         "123",
		RealmRoles: []string{"admin", "user"},
	}

	t.Run("loading", func(t *testing.T) {
		assert := assert.New(t)
		root := testRender(t, NewPage(), session.State{Loading: true, Error: "ignored while loading"}, PageData{FrameURL: "https://idp/auth?prompt=none"})

		h1, ok := scrape.Find(root, scrape.ByTag(atom.H1))
		assert.True(ok)
		assert.Equal("Keycloak Login", scrape.Text(h1))
		assert.Equal([]string{"Checking authentication status..."}, textsByClass(root, "status"))
		assert.Empty(textsByClass(root, "error"))
		assert.Empty(scrape.FindAll(root, scrape.ByTag(atom.Button)))

		meta, ok := scrape.Find(root, refreshMeta)
		assert.True(ok)
		assert.Equal("1", scrape.Attr(meta, "content"))

		frame, ok := scrape.Find(root, scrape.ByTag(atom.Iframe))
		assert.True(ok)
		assert.Equal("https://idp/auth?prompt=none", scrape.Attr(frame, "src"))
	})
	t.Run("authenticated", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		root := testRender(t, NewPage(), session.State{Authenticated: true, Profile: alice}, data)

		assert.Equal([]string{"Logged in"}, textsByClass(root, "success"))
		assert.Empty(textsByClass(root, "error"))
		h2, ok := scrape.Find(root, scrape.ByTag(atom.H2))
		require.True(ok)
		assert.Equal("User details", scrape.Text(h2))

		var items []string
		for _, li := range scrape.FindAll(root, scrape.ByTag(atom.Li)) {
			items = append(items, scrape.Text(li))
		}
		assert.Equal([]string{
			"username: alice",
			"firstName: Alice",
			"email: a@x.com",
			"id: 123",
			"realmRoles: admin, user",
		}, items)

		form, ok := scrape.Find(root, scrape.ByTag(atom.Form))
		require.True(ok)
		assert.Equal("post", scrape.Attr(form, "method"))
		assert.Equal("/logout", scrape.Attr(form, "action"))
		button, ok := scrape.Find(form, scrape.ByTag(atom.Button))
		require.True(ok)
		assert.Equal("Log out", scrape.Text(button))

		_, ok = scrape.Find(root, refreshMeta)
		assert.False(ok)
		_, ok = scrape.Find(root, scrape.ByTag(atom.Iframe))
		assert.False(ok)
	})
	t.Run("authenticated-without-profile", func(t *testing.T) {
		assert := assert.New(t)
		root := testRender(t, NewPage(), session.State{Authenticated: true, Error: "network down"}, data)

		assert.Equal([]string{"network down"}, textsByClass(root, "error"))
		assert.Equal([]string{"Logged in"}, textsByClass(root, "success"))
		assert.Empty(scrape.FindAll(root, scrape.ByTag(atom.Li)))
		assert.Contains(scrape.Text(root), "No user details available.")
	})
	t.Run("not-authenticated", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		root := testRender(t, NewPage(WithProviderName("Example")), session.State{Error: "Keycloak initialization failed."}, data)

		assert.Equal([]string{"Keycloak initialization failed."}, textsByClass(root, "error"))
		assert.Equal([]string{"You are not logged in."}, textsByClass(root, "status"))
		assert.Empty(textsByClass(root, "success"))

		form, ok := scrape.Find(root, scrape.ByTag(atom.Form))
		require.True(ok)
		assert.Equal("/login", scrape.Attr(form, "action"))
		button, ok := scrape.Find(form, scrape.ByTag(atom.Button))
		require.True(ok)
		assert.Equal("Log in with Example", scrape.Text(button))

		// the error comes before the rest of the page
		mainNode, ok := scrape.Find(root, scrape.ByTag(atom.Main))
		require.True(ok)
		var order []string
		for c := mainNode.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				order = append(order, c.Data)
			}
		}
		assert.Equal([]string{"h1", "p", "section"}, order)
	})
	t.Run("escapes", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPage().Render(&buf, session.State{Error: "<script>alert(1)</script>"}, data))
		assert.NotContains(t, buf.String(), "<script>")
	})
	t.Run("title", func(t *testing.T) {
		root := testRender(t, NewPage(WithTitle("Example SSO")), session.State{}, data)
		title, ok := scrape.Find(root, scrape.ByTag(atom.Title))
		require.True(t, ok)
		assert.Equal(t, "Example SSO", scrape.Text(title))
	})
}
