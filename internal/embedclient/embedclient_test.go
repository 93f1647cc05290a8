// SPDX-License-Identifier: MIT

package embedclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbedCachesRepeatedText(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		vecs := make([][]float32, len(req.Texts))
		for i := range vecs {
			vecs[i] = []float32{1, 2, 3}
		}
		require.NoError(t, json.NewEncoder(w).Encode(embedResponse{Embeddings: vecs}))
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL, "bge-m3")
	cfg.MaxRetries = 0
	client, err := New(cfg)
	require.NoError(t, err)

	vecs, err := client.Embed(context.Background(), []string{"hello", "hello", "world"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	require.Equal(t, vecs[0], vecs[1])

	stats := client.Stats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(3), stats.Total)

	// Second call for the same texts should be served entirely from cache.
	_, err = client.Embed(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestEmbedSurfacesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL, "bge-m3")
	cfg.MaxRetries = 1
	client, err := New(cfg)
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), []string{"hello"})
	require.Error(t, err)
}
