// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/recall/internal/embedding"
	"github.com/sigil-dev/recall/internal/eval"
	"github.com/sigil-dev/recall/internal/judge"
	"github.com/sigil-dev/recall/internal/memory"
	"github.com/sigil-dev/recall/internal/server"
)

const testDim = 16

func newTestServer(t *testing.T) *server.Server {
	t.Helper()
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func mustNewStore(t *testing.T) *memory.Store {
	t.Helper()
	store, err := memory.New(memory.Config{Dimension: testDim, TopK: 2}, embedding.NewHash(testDim))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// newWiredServer returns a server backed by a hash-embedding store and a
// guarded judge that answers with reply.
func newWiredServer(t *testing.T, reply func(req judge.Request) (string, error)) (*server.Server, *judge.Guarded) {
	t.Helper()
	tracker, err := judge.NewHealthTracker(time.Minute)
	require.NoError(t, err)
	guarded := judge.Guard(judge.Func(func(_ context.Context, req judge.Request) (string, error) {
		return reply(req)
	}), tracker)

	srv := newTestServer(t)
	srv.RegisterServices(&server.Services{
		Memory:    mustNewStore(t),
		Retrieval: eval.NewRetrievalScorer(guarded, eval.WithTimeout(5*time.Second)),
		Judge:     guarded,
	})
	return srv, guarded
}

func do(t *testing.T, srv *server.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
