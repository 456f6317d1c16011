// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Command recall stores content in a vector memory, serves it over HTTP and
// grades retrieved context with a judge model.
package main

import (
	"fmt"
	"io"
	"os"

	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run executes the CLI and returns the process exit code: 2 when the error is
// blamed on the caller (bad flags, config values or input files), 1 for any
// other failure.
func run(args []string, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}

	if code := recallerr.CodeOf(err); code != "" {
		fmt.Fprintf(stderr, "recall: %v [%s]\n", err, code)
	} else {
		fmt.Fprintf(stderr, "recall: %v\n", err)
	}
	if recallerr.BlameOf(err) == recallerr.BlameUser {
		return 2
	}
	return 1
}
