// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hashicorp/cap-session/session"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	keyStyle     = lipgloss.NewStyle().Bold(true)
)

// Text renders state for a terminal, with the same sections as the html
// page.  The login and logout controls are printed as the commands that
// perform them.
//
// Supported options:
//	WithTitle
//	WithProviderName
func Text(state session.State, opt ...Option) string {
	opts := getPageOpts(opt...)
	var b strings.Builder
	b.WriteString(titleStyle.Render(opts.withTitle))
	b.WriteString("\n\n")

	if state.Loading {
		b.WriteString(mutedStyle.Render("Checking authentication status..."))
		b.WriteString("\n")
		return b.String()
	}

	if state.Error != "" {
		b.WriteString(errorStyle.Render(state.Error))
		b.WriteString("\n\n")
	}

	if !state.Authenticated {
		b.WriteString(mutedStyle.Render("You are not logged in."))
		b.WriteString("\n")
		fmt.Fprintf(&b, "Run `ssoview login` to log in with %s.\n", opts.withProviderName)
		return b.String()
	}

	b.WriteString(successStyle.Render("Logged in"))
	b.WriteString("\n\n")
	b.WriteString(titleStyle.Render("User details"))
	b.WriteString("\n")
	fields := state.Profile.Fields()
	if len(fields) == 0 {
		b.WriteString("No user details available.\n")
	}
	for _, f := range fields {
		b.WriteString("  ")
		b.WriteString(keyStyle.Render(f.Key))
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString("\n")
	}
	b.WriteString("\nPress Ctrl+C to log out.\n")
	return b.String()
}
