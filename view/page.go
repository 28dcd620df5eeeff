// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package view

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"

	"github.com/hashicorp/cap-session/session"
)

//go:embed templates/page.html
var pageTemplateHTML string

var pageTemplate = template.Must(template.New("page").Parse(pageTemplateHTML))

// PageData is what the page needs besides the session state: where its
// controls post to and the hidden frame of a pending silent check.
type PageData struct {
	LoginURL  string
	LogoutURL string

	// FrameURL is loaded in a hidden iframe when set.
	FrameURL string
}

// Page renders a session.State as an html page.
type Page struct {
	title          string
	providerName   string
	refreshSeconds int
}

// NewPage creates a Page.
//
// Supported options:
//	WithTitle
//	WithProviderName
//	WithRefreshSeconds
func NewPage(opt ...Option) *Page {
	opts := getPageOpts(opt...)
	return &Page{
		title:          opts.withTitle,
		providerName:   opts.withProviderName,
		refreshSeconds: opts.withRefreshSeconds,
	}
}

// Render writes the page for state to w.  While the session check is pending
// only a status message is shown and the page reloads itself.  Once it's
// resolved any error comes first, then either the user details with a
// logout control or a login control.
func (p *Page) Render(w io.Writer, state session.State, data PageData) error {
	const op = "view.(Page).Render"
	d := struct {
		PageData
		Title          string
		ProviderName   string
		RefreshSeconds int
		State          session.State
		Fields         []session.Field
	}{
		PageData:       data,
		Title:          p.title,
		ProviderName:   p.providerName,
		RefreshSeconds: p.refreshSeconds,
		State:          state,
		Fields:         state.Profile.Fields(),
	}
	if err := pageTemplate.Execute(w, d); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
