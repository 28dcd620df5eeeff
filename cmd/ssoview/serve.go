// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/cap-session/oidc"
	"github.com/hashicorp/cap-session/oidc/callback"
	"github.com/hashicorp/cap-session/session"
	"github.com/hashicorp/cap-session/view"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(newLogger func() hclog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the session page on OIDC_PORT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, newLogger())
		},
	}
}

func runServe(ctx context.Context, cfg *envConfig, logger hclog.Logger) error {
	const op = "main.runServe"
	oc, err := cfg.oidcConfig(cfg.pageURL())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	nav := &webNavigator{}
	client, err := oidc.NewClient(oc, oidc.WithLogger(logger.Named("oidc")), oidc.WithNavigator(nav))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s := newServer(client, nav, cfg.pageURL(), logger)
	h, err := s.routes(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer s.stop()

	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Port)),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving session page", "url", cfg.pageURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// server serves the session page.  The process is a single view: one
// controller is mounted at a time.  A controller is mounted by the page load
// that finds none, since its silent check needs a page to load the hidden
// frame, and it's remounted whenever the page would have been reloaded by
// the provider's redirect.
type server struct {
	client  *oidc.Client
	nav     *webNavigator
	page    *view.Page
	logger  hclog.Logger
	pageURL string

	mu   sync.Mutex
	ctrl *session.Controller
	// frameShown is set once a page rendered the current controller's
	// silent check frame.
	frameShown bool
}

func newServer(client *oidc.Client, nav *webNavigator, pageURL string, logger hclog.Logger) *server {
	return &server{
		client:  client,
		nav:     nav,
		page:    view.NewPage(),
		logger:  logger,
		pageURL: pageURL,
	}
}

// mount tears down the current controller and mounts a new one.
func (s *server) mount() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mountLocked()
}

func (s *server) mountLocked() error {
	const op = "main.(server).mount"
	ctrl, err := session.NewController(s.client, session.WithLogger(s.logger.Named("session")))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.ctrl != nil {
		s.ctrl.Stop()
	}
	s.nav.clearFrame()
	s.ctrl = ctrl
	s.frameShown = false
	if err := ctrl.Initialize(s.pageURL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// unmount tears down the current controller, the next page load mounts a
// new one.
func (s *server) unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl != nil {
		s.ctrl.Stop()
		s.ctrl = nil
	}
}

// viewController returns the controller a page load renders.  It mounts one
// when there's none, and remounts when the silent check timed out before any
// page showed its frame.
func (s *server) viewController() (*session.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl != nil && !s.unviewedTimeout() {
		return s.ctrl, nil
	}
	if err := s.mountLocked(); err != nil {
		return nil, err
	}
	return s.ctrl, nil
}

func (s *server) unviewedTimeout() bool {
	if s.frameShown {
		return false
	}
	select {
	case <-s.ctrl.Done():
		return errors.Is(s.ctrl.Err(), oidc.ErrSilentCheckTimeout)
	default:
		return false
	}
}

// controller returns the mounted controller, nil before the first page load.
func (s *server) controller() *session.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl
}

func (s *server) stop() {
	s.unmount()
}

func (s *server) routes(ctx context.Context) (http.Handler, error) {
	const op = "main.(server).routes"
	authCode, err := callback.AuthCode(ctx, s.client, s.loginSucceeded, s.loginFailed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	silentCheck, err := callback.SilentCheck(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, req *http.Request) {
		// the provider redirects back to the page itself
		if req.URL.Query().Has("state") {
			authCode(w, req)
			return
		}
		s.handlePage(w, req)
	})
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET "+session.SilentCheckSSOPath, silentCheck)
	mux.HandleFunc("GET /state", s.handleState)
	return mux, nil
}

func (s *server) handlePage(w http.ResponseWriter, req *http.Request) {
	if u := s.nav.takePending(); u != "" {
		http.Redirect(w, req, u, http.StatusSeeOther)
		return
	}
	ctrl, err := s.viewController()
	if err != nil {
		s.logger.Error("unable to mount controller", "error", err)
		http.Error(w, "unable to check session", http.StatusInternalServerError)
		return
	}
	state := ctrl.State()
	data := view.PageData{LoginURL: "/login", LogoutURL: "/logout"}
	if state.Loading {
		data.FrameURL = s.nav.frameURL()
		if data.FrameURL != "" {
			s.mu.Lock()
			if s.ctrl == ctrl {
				s.frameShown = true
			}
			s.mu.Unlock()
		}
	}
	s.render(w, http.StatusOK, state, data)
}

func (s *server) render(w http.ResponseWriter, status int, state session.State, data view.PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := s.page.Render(w, state, data); err != nil {
		s.logger.Error("unable to render page", "error", err)
	}
}

func (s *server) handleLogin(w http.ResponseWriter, req *http.Request) {
	ctrl, err := s.viewController()
	if err != nil {
		s.logger.Error("unable to mount controller", "error", err)
		http.Error(w, "unable to start login", http.StatusInternalServerError)
		return
	}
	ctx, r := withRedirect(req.Context())
	if err := ctrl.Login(ctx, ""); err != nil {
		s.logger.Error("login failed", "error", err)
		http.Error(w, "unable to start login", http.StatusBadGateway)
		return
	}
	http.Redirect(w, req, r.url, http.StatusSeeOther)
}

func (s *server) handleLogout(w http.ResponseWriter, req *http.Request) {
	ctrl, err := s.viewController()
	if err != nil {
		s.logger.Error("unable to mount controller", "error", err)
		http.Error(w, "unable to log out", http.StatusInternalServerError)
		return
	}
	ctx, r := withRedirect(req.Context())
	if err := ctrl.Logout(ctx); err != nil {
		s.logger.Error("logout failed", "error", err)
		http.Error(w, "unable to log out", http.StatusBadGateway)
		return
	}
	// the page comes back from the provider as a fresh view
	s.unmount()
	http.Redirect(w, req, r.url, http.StatusSeeOther)
}

func (s *server) handleState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	// an unmounted view is checking, like a page that just loaded
	state := session.State{Loading: true}
	if ctrl := s.controller(); ctrl != nil {
		state = ctrl.State()
	}
	_ = json.NewEncoder(w).Encode(newStateJSON(state))
}

func (s *server) loginSucceeded(_ string, w http.ResponseWriter, req *http.Request) {
	if err := s.mount(); err != nil {
		s.logger.Error("unable to mount controller", "error", err)
	}
	http.Redirect(w, req, s.pageURL, http.StatusSeeOther)
}

func (s *server) loginFailed(_ string, respErr *oidc.ProviderError, e error, w http.ResponseWriter, req *http.Request) {
	s.logger.Error("login callback failed", "error", e)
	msg := "Login failed."
	switch {
	case respErr != nil && respErr.Description != "":
		msg = respErr.Description
	case respErr != nil:
		msg = respErr.Error()
	}
	s.render(w, http.StatusUnauthorized, session.State{Error: msg}, view.PageData{LoginURL: "/login", LogoutURL: "/logout"})
}

type stateJSON struct {
	Authenticated bool              `json:"authenticated"`
	Loading       bool              `json:"loading"`
	Error         string            `json:"error,omitempty"`
	Profile       map[string]string `json:"profile,omitempty"`
}

func newStateJSON(s session.State) stateJSON {
	out := stateJSON{Authenticated: s.Authenticated, Loading: s.Loading, Error: s.Error}
	if fields := s.Profile.Fields(); len(fields) > 0 {
		out.Profile = make(map[string]string, len(fields))
		for _, f := range fields {
			out.Profile[f.Key] = f.Value
		}
	}
	return out
}
