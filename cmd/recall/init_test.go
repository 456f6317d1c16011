// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sigil-dev/recall/internal/config"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

func useTempConfigPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recall", "recall.yaml")
	orig := configPathForWrite
	configPathForWrite = func() (string, error) { return path, nil }
	t.Cleanup(func() { configPathForWrite = orig })
	return path
}

func press(t *testing.T, m initModel, keys ...tea.KeyMsg) initModel {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		var ok bool
		m, ok = next.(initModel)
		require.True(t, ok)
	}
	return m
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
)

func TestInitModel_SharedProviderAsksKeyOnce(t *testing.T) {
	m := newInitModel(newMockSecretStore())

	m = press(t, m, keyEnter)
	require.Equal(t, stepEmbeddingKey, m.step)
	assert.Equal(t, "openai", m.result.Embedding.Name)

	m.keyInput.SetValue("sk-emb")
	m = press(t, m, keyEnter)
	require.Equal(t, stepJudge, m.step)
	assert.Equal(t, 0, m.cursor)

	m = press(t, m, keyDown, keyEnter)
	assert.Equal(t, stepWriting, m.step)
	assert.Equal(t, "openai", m.result.Judge.Name)
	assert.Equal(t, map[string]string{"openai": "sk-emb"}, m.result.Keys)
}

func TestInitModel_LocalProvidersNeedNoKeys(t *testing.T) {
	m := newInitModel(newMockSecretStore())

	m = press(t, m, keyDown, keyDown, keyDown, keyDown, keyEnter)
	require.Equal(t, stepJudge, m.step)
	assert.Equal(t, "hash", m.result.Embedding.Name)

	m = press(t, m, keyDown, keyDown, keyDown, keyUp, keyDown, keyEnter)
	assert.Equal(t, stepWriting, m.step)
	assert.Equal(t, "ollama", m.result.Judge.Name)
	assert.Empty(t, m.result.Keys)
}

func TestInitModel_EmptyKeyRejected(t *testing.T) {
	m := newInitModel(newMockSecretStore())
	m = press(t, m, keyEnter)
	require.Equal(t, stepEmbeddingKey, m.step)

	m.keyInput.SetValue("   ")
	m = press(t, m, keyEnter)
	assert.Equal(t, stepEmbeddingKey, m.step)
	assert.NotEmpty(t, m.validationErr)
	assert.Contains(t, m.View(), "must not be empty")
}

func TestInitModel_ResultMessages(t *testing.T) {
	m := newInitModel(newMockSecretStore())

	next, cmd := m.Update(configWrittenMsg{path: "/tmp/recall.yaml"})
	done := next.(initModel)
	assert.Equal(t, stepDone, done.step)
	assert.NotNil(t, cmd)
	assert.Contains(t, done.View(), "/tmp/recall.yaml")

	next, _ = m.Update(recallerr.New(recallerr.CodeSecretStoreFailure, "keyring locked"))
	failed := next.(initModel)
	assert.Equal(t, stepError, failed.step)
	assert.Contains(t, failed.View(), "keyring locked")
}

func TestGenerateConfigYAML(t *testing.T) {
	result := initResult{
		Embedding: embeddingChoices[0],
		Judge:     judgeChoices[0],
		Keys:      map[string]string{"openai": "sk-secret", "anthropic": "sk-ant-secret"},
	}

	body, err := GenerateConfigYAML(result)
	require.NoError(t, err)
	assert.NotContains(t, body, "sk-secret")
	assert.NotContains(t, body, "sk-ant-secret")

	var raw map[string]map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(body), &raw))
	assert.Equal(t, "keyring://recall/openai-api-key", raw["embedding"]["api_key"])
	assert.Equal(t, "keyring://recall/anthropic-api-key", raw["judge"]["api_key"])
	assert.Equal(t, "text-embedding-3-large", raw["memory"]["emb_model_name"])
	assert.Equal(t, 3072, raw["memory"]["dimension"])
}

func TestGenerateConfigYAML_KeylessProvidersOmitAPIKey(t *testing.T) {
	body, err := GenerateConfigYAML(initResult{Embedding: embeddingChoices[3], Judge: judgeChoices[3]})
	require.NoError(t, err)
	assert.NotContains(t, body, "api_key")

	cfg, err := config.Load(writeTestFile(t, "recall.yaml", body))
	require.NoError(t, err)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, "ollama", cfg.Judge.Provider)
}

func TestStoreSecretsAndWriteConfig(t *testing.T) {
	path := useTempConfigPath(t)
	store := newMockSecretStore()
	result := initResult{
		Embedding: embeddingChoices[1],
		Judge:     judgeChoices[2],
		Keys:      map[string]string{"google": "g-key"},
	}

	got, err := storeSecretsAndWriteConfig(result, store, false)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	stored, err := store.Get("recall", "google-api-key")
	require.NoError(t, err)
	assert.Equal(t, "g-key", stored)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = storeSecretsAndWriteConfig(result, store, false)
	require.Error(t, err)
	assert.Equal(t, recallerr.CodeCLIInputInvalid, recallerr.CodeOf(err))

	_, err = storeSecretsAndWriteConfig(result, store, true)
	require.NoError(t, err)
}

func TestInitCommand_Defaults(t *testing.T) {
	path := useTempConfigPath(t)

	out, err := runCmd(t, "", "init", "--defaults")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(config.DefaultConfigYAML), string(data))

	_, err = runCmd(t, "", "init", "--defaults")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, err = runCmd(t, "", "init", "--defaults", "--force")
	require.NoError(t, err)
}
