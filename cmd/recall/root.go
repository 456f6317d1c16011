// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/recall/internal/config"
	"github.com/sigil-dev/recall/internal/secrets"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

// NewRootCmd creates the root recall command with all subcommands registered.
// Each root gets its own viper instance so commands built in tests do not
// share bindings.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "recall",
		Short:         "Recall: vector memory and retrieval quality evaluation",
		Long:          "Recall stores content in an embedding-backed memory, retrieves the closest matches, and grades retrieved context with a judge model.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd, v)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("env-file", "", "load environment variables from a .env file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInitCmd(),
		newServeCmd(v),
		newSearchCmd(v),
		newEvalCmd(v),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up v with defaults, env bindings, flag bindings, and an
// optional config file so the standard precedence (flag > env > file >
// defaults) is handled uniformly. Keyring references are resolved later by
// loadConfig, only for commands that need the configuration.
func initViper(cmd *cobra.Command, v *viper.Viper) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	setupLogging(cmd.ErrOrStderr(), verbose)

	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return recallerr.Errorf(recallerr.CodeConfigLoadReadFailure, "loading env file %s: %w", envFile, err)
		}
	}

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return recallerr.Errorf(recallerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is omitted so viper does not fall back to the bare
		// name, which would match the ./recall binary.
		v.SetConfigName("recall")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/recall")
		// No config file is fine; parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return recallerr.Errorf(recallerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
		}
	}

	if used := v.ConfigFileUsed(); used != "" {
		config.WarnInsecurePermissions(used)
		slog.Debug("using config file", "path", used)
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return recallerr.Errorf(recallerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}
	return nil
}

// loadConfig resolves keyring references in v and decodes the result.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	if err := secrets.ResolveViper(v, secretStoreFactory()); err != nil {
		return nil, err
	}
	return config.FromViper(v)
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
