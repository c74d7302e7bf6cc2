// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/xdg"
)

// Global flags available to all subcommands.
var (
	configFile string
	envFiles   []string
)

// NewRootCmd creates the root command for the accounts CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Accounts - user registration, login and password reset",
		Long: `Accounts serves user registration, login, profile management and an
OTP-based password reset flow over HTTP, backed by PostgreSQL.

Configuration is read from defaults, an optional YAML file (--config),
ACCOUNTS_* environment variables (also loaded from .env) and flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			//nolint:wrapcheck // already coded CONFIG_DOTENV_FAILED
			return config.LoadDotEnv(envFiles...)
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/accounts/config.yaml)")
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// defaultConfigName is looked up in the XDG config directory when --config
// is not given.
const defaultConfigName = "config.yaml"

// loadConfig builds the configuration for cmd from every layer.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		path = xdg.FindConfig(defaultConfigName)
	}
	//nolint:wrapcheck // already coded by config.Load
	return config.Load(path, cmd.Flags())
}
