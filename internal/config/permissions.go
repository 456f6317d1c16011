// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// groupOrOtherRead covers the read bits for group and others.
const groupOrOtherRead fs.FileMode = 0o044

// WarnInsecurePermissions warns when a config file readable by other users
// carries literal provider API keys. Files whose keys are all keyring://
// references, or that hold no keys, only get a debug line.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return
	}
	if info.Mode().Perm()&groupOrOtherRead == 0 {
		return
	}

	inline, err := InlineSecrets(path)
	if err != nil {
		slog.Debug("could not scan config file for api keys", "path", path, "error", err)
		return
	}
	if len(inline) == 0 {
		slog.Debug("config file is readable by other users but holds no inline api keys", "path", path)
		return
	}

	slog.Warn(
		"config file is readable by other users and holds inline api keys",
		"path", path,
		"mode", info.Mode(),
		"keys", inline,
		"recommended", "0600, or store the keys with `recall secret set` and use keyring:// references",
	)
}
