// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build !windows

package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const insecureMsg = "readable by other users and holds inline api keys"

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return &buf
}

func TestWarnInsecurePermissions(t *testing.T) {
	const (
		inlineKey  = "judge:\n  api_key: sk-x\n"
		keyringKey = "judge:\n  api_key: keyring://recall/judge\nembedding:\n  api_key: keyring://recall/embedding\n"
		noKey      = "memory:\n  top_k: 3\n"
	)
	tests := []struct {
		name       string
		perm       os.FileMode
		content    string
		expectWarn bool
	}{
		{"owner only 0600", 0o600, inlineKey, false},
		{"read only 0400", 0o400, inlineKey, false},
		{"group readable 0640", 0o640, inlineKey, true},
		{"other readable 0604", 0o604, inlineKey, true},
		{"world readable 0644", 0o644, inlineKey, true},
		{"world readable keyring refs", 0o644, keyringKey, false},
		{"world readable without keys", 0o644, noKey, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "recall.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), tt.perm))
			require.NoError(t, os.Chmod(path, tt.perm))

			buf := captureLogs(t)
			WarnInsecurePermissions(path)

			out := buf.String()
			if tt.expectWarn {
				assert.Contains(t, out, insecureMsg)
				assert.Contains(t, out, path)
				assert.Contains(t, out, "0600")
				assert.Contains(t, out, "judge.api_key")
			} else {
				assert.NotContains(t, out, insecureMsg)
			}
		})
	}
}

func TestWarnInsecurePermissions_NoFile(t *testing.T) {
	buf := captureLogs(t)
	WarnInsecurePermissions("")
	assert.Empty(t, buf.String())

	WarnInsecurePermissions("/nonexistent/recall.yaml")
	assert.NotContains(t, buf.String(), insecureMsg)
}

func TestInlineSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.yaml")
	content := "embedding:\n  api_key: sk-embed\njudge:\n  api_key: keyring://recall/judge\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	got, err := InlineSecrets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"embedding.api_key"}, got)

	_, err = InlineSecrets(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
