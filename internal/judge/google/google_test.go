// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package google_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sigil-dev/recall/internal/judge"
	"github.com/sigil-dev/recall/internal/judge/google"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := google.New(google.Config{})
	require.Error(t, err)
	assert.True(t, recallerr.HasCode(err, recallerr.CodeJudgeRequestInvalid))
	assert.Equal(t, "google", recallerr.FieldsOf(err)["provider"])
}

func TestJudge_Invoke(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/"+google.DefaultModel+":generateContent"), "unexpected path %s", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [{"text": "score: 5, reason: precise"}]}}]}`))
	}))
	defer srv.Close()

	j, err := google.New(google.Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "google/"+google.DefaultModel, j.Name())

	out, err := j.Invoke(context.Background(), judge.Request{Query: "who wrote go", Context: "griesemer pike thompson"})
	require.NoError(t, err)
	assert.Equal(t, "score: 5, reason: precise", out)
	assert.Contains(t, body, "who wrote go")
	assert.Contains(t, body, "systemInstruction")
}

func TestJudge_InvokeEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	j, err := google.New(google.Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = j.Invoke(context.Background(), judge.Request{Query: "q", Context: "c"})
	require.Error(t, err)
	assert.True(t, recallerr.HasCode(err, recallerr.CodeJudgeResponseMalformed))
}
