// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/hashicorp/cap-session/oidc"
	"github.com/hashicorp/cap-session/oidc/callback"
	"github.com/hashicorp/cap-session/session"
	"github.com/hashicorp/cap-session/view"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	successHTML = `<!DOCTYPE html>
<html><body><p>Login successful. You can close this window and return to the terminal.</p></body></html>
`
	failedHTML = `<!DOCTYPE html>
<html><body><p>Login failed. Check the terminal for details.</p></body></html>
`
)

func newLoginCmd(newLogger func() hclog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in with the system browser and show the session in the terminal",
		Long: `login logs in with the system browser, prints the session and keeps its
tokens fresh until interrupted.  On interrupt the session is logged out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			nav := newBrowserNavigator(cmd.ErrOrStderr())
			return runLogin(cmd.Context(), cfg, nav, cmd.OutOrStdout(), newLogger())
		},
	}
}

func runLogin(ctx context.Context, cfg *envConfig, nav oidc.Navigator, out io.Writer, logger hclog.Logger) error {
	const op = "main.runLogin"
	oc, err := cfg.oidcConfig(cfg.callbackURL())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	client, err := oidc.NewClient(oc, oidc.WithLogger(logger.Named("oidc")), oidc.WithNavigator(nav))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	listener, err := net.Listen("tcp", net.JoinHostPort("localhost", strconv.Itoa(cfg.Port)))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	t := newTerminal(client, cfg.callbackURL(), out, logger)
	h, err := t.routes(ctx)
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: shutdownTimeout}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		return t.run(gctx)
	})
	return g.Wait()
}

// terminal is the terminal view of the session.  Every completed login
// callback remounts the controller, like the page reload after a browser
// redirect would.
type terminal struct {
	client      *oidc.Client
	callbackURL string
	out         io.Writer
	logger      hclog.Logger
	callbacks   chan error
	ctrl        *session.Controller
}

func newTerminal(client *oidc.Client, callbackURL string, out io.Writer, logger hclog.Logger) *terminal {
	return &terminal{
		client:      client,
		callbackURL: callbackURL,
		out:         out,
		logger:      logger,
		callbacks:   make(chan error, 1),
	}
}

func (t *terminal) routes(ctx context.Context) (http.Handler, error) {
	const op = "main.(terminal).routes"
	authCode, err := callback.AuthCode(ctx, t.client, t.loginSucceeded, t.loginFailed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", authCode)
	return mux, nil
}

func (t *terminal) loginSucceeded(_ string, w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, successHTML)
	t.notify(nil)
}

func (t *terminal) loginFailed(_ string, respErr *oidc.ProviderError, e error, w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = io.WriteString(w, failedHTML)
	if e == nil && respErr != nil {
		e = respErr
	}
	t.notify(e)
}

// notify hands a callback's outcome to run, dropping it when one is already
// waiting.
func (t *terminal) notify(err error) {
	select {
	case t.callbacks <- err:
	default:
	}
}

// run mounts the controller and shows the session until ctx is done.
func (t *terminal) run(ctx context.Context) error {
	const op = "main.(terminal).run"
	if err := t.mount(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { t.ctrl.Stop() }()
	if ctx.Err() != nil {
		return nil
	}

	if !t.ctrl.State().Authenticated {
		if err := t.ctrl.Login(ctx, ""); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			if t.ctrl.State().Authenticated {
				if err := t.ctrl.Logout(context.WithoutCancel(ctx)); err != nil {
					t.logger.Error("logout failed", "error", err)
				}
			}
			return nil
		case err := <-t.callbacks:
			if err != nil {
				t.logger.Error("login failed", "error", err)
				fmt.Fprintln(t.out, view.Text(session.State{Error: session.ErrorMessage(err, "Login failed.")}))
				continue
			}
			if err := t.mount(ctx); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
	}
}

// mount replaces the controller, waits for its session check and prints the
// result.
func (t *terminal) mount(ctx context.Context) error {
	const op = "main.(terminal).mount"
	if t.ctrl != nil {
		t.ctrl.Stop()
	}
	ctrl, err := session.NewController(t.client, session.WithLogger(t.logger.Named("session")))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	t.ctrl = ctrl
	if err := ctrl.Initialize(t.callbackURL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	select {
	case <-ctrl.Done():
	case <-ctx.Done():
		return nil
	}
	fmt.Fprintln(t.out, view.Text(ctrl.State()))
	return nil
}
