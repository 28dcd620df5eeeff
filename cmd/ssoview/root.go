// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:   "ssoview",
		Short: "Show the single sign-on session of an OIDC provider",
		Long: `ssoview checks for an existing single sign-on session of an OIDC provider
without prompting, shows the user's profile and roles when there is one and
keeps the session's tokens fresh.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	newLogger := func() hclog.Logger {
		return hclog.New(&hclog.LoggerOptions{
			Name:   "ssoview",
			Level:  hclog.LevelFromString(logLevel),
			Output: os.Stderr,
		})
	}
	root.AddCommand(newServeCmd(newLogger), newLoginCmd(newLogger))
	return root
}
