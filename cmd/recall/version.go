// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/recall/internal/embedding"
	"github.com/sigil-dev/recall/internal/index"
)

// Build-time variables set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// newVersionCmd reports the build and the default embedding model and index
// backend.
func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print recall version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if short, _ := cmd.Flags().GetBool("short"); short {
				_, err := fmt.Fprintln(out, version)
				return err
			}
			_, err := fmt.Fprintf(out, "recall %s (commit: %s, built: %s, %s)\ndefaults: embedding model %s, index %s\n",
				version, commit, date, runtime.Version(), embedding.DefaultModel, index.DefaultBackend)
			return err
		},
	}
	cmd.Flags().Bool("short", false, "print only the version number")
	return cmd
}
