// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package capsession_test

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/cap-session/oidc"
	"github.com/hashicorp/cap-session/oidc/callback"
	"github.com/hashicorp/cap-session/session"
	"github.com/hashicorp/cap-session/view"
)

// printNavigator prints the URLs a browser would be sent to.
type printNavigator struct{}

func (printNavigator) Navigate(_ context.Context, url string) error {
	fmt.Println("open url to kick-off authentication: ", url)
	return nil
}

func (printNavigator) Frame(context.Context, string) error {
	return oidc.ErrFrameUnsupported
}

func Example_session() {
	ctx := context.Background()

	// Create a new Config
	pc, err := oidc.NewConfig(
		"http://localhost:8080/realms/demo",
		"your_client_id",
		"your_client_secret",
		"http://localhost:3000/",
		oidc.WithScopes("profile", "email"),
	)
	if err != nil {
		// handle error
	}

	// Create a client, which navigates with printNavigator
	c, err := oidc.NewClient(pc, oidc.WithNavigator(printNavigator{}))
	if err != nil {
		// handle error
	}

	// Mount a controller for the page and wait for its session check
	ctrl, err := session.NewController(c)
	if err != nil {
		// handle error
	}
	defer ctrl.Stop()
	if err := ctrl.Initialize("http://localhost:3000/"); err != nil {
		// handle error
	}
	<-ctrl.Done()
	fmt.Println(view.Text(ctrl.State()))

	// Create a http.Handler for the provider's authorization code redirects
	// and one for the silent check frame.
	success := func(state string, w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/", http.StatusSeeOther)
	}
	failed := func(state string, respErr *oidc.ProviderError, e error, w http.ResponseWriter, req *http.Request) {
		http.Error(w, e.Error(), http.StatusUnauthorized)
	}
	callbackHandler, err := callback.AuthCode(ctx, c, success, failed)
	if err != nil {
		// handle error
	}
	silentHandler, err := callback.SilentCheck(ctx, c)
	if err != nil {
		// handle error
	}
	http.HandleFunc("/", callbackHandler)
	http.HandleFunc(session.SilentCheckSSOPath, silentHandler)

	// Start an interactive login
	if !ctrl.State().Authenticated {
		if err := ctrl.Login(ctx, ""); err != nil {
			// handle error
		}
	}
}
