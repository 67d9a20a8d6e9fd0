package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JustJay7/courtlight/internal/cache"
	"github.com/JustJay7/courtlight/internal/config"
	"github.com/JustJay7/courtlight/internal/database/databasetest"
	"github.com/JustJay7/courtlight/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	store := databasetest.NewStore(t)
	return New(cfg, store.DB(), cache.NewCache(10, time.Minute), logger.NewNop())
}

func TestHealthThroughMiddleware(t *testing.T) {
	srv := newTestServer(t, &config.Config{LogLevel: "error"})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflightIsAnsweredWithoutRouting(t *testing.T) {
	srv := newTestServer(t, &config.Config{LogLevel: "error"})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/judgements", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "GET, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}

func TestWritesAreNotRouted(t *testing.T) {
	srv := newTestServer(t, &config.Config{LogLevel: "error"})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/judgements/1", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunStopsWhenContextIsCancelled(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	srv := newTestServer(t, &config.Config{Host: "127.0.0.1", Port: port, LogLevel: "error"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + port + "/api/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
