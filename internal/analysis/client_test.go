//nolint:testpackage // Testing internal retry policy requires same package access
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, cfg ClientConfig) *Client {
	t.Helper()
	cfg.BaseURL = url
	cfg.APIKey = "test-key"
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 1000
		cfg.Burst = 100
	}
	c := NewClient(cfg, nil, nil)
	c.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get(apiKeyHeader))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, map[string]string{"data": "a kid drinking milk"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, ClientConfig{MaxRetries: 3})
	text, err := c.GenerateText(context.Background(), "v1", "what happens?")

	require.NoError(t, err)
	assert.Equal(t, "a kid drinking milk", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad prompt"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, ClientConfig{MaxRetries: 3})
	_, err := c.GenerateText(context.Background(), "v1", "")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)
	assert.Equal(t, "bad prompt", statusErr.Body)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, ClientConfig{MaxRetries: 0, BreakerFailures: 2, BreakerTimeout: time.Hour})
	ctx := context.Background()

	for range 2 {
		_, err := c.GenerateText(ctx, "v1", "p")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	_, err := c.GenerateText(ctx, "v1", "p")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_EnsureIndexFindsExisting(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /indexes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "milk_campaign_index", r.URL.Query().Get("index_name"))
		writeJSON(t, w, map[string]any{"data": []map[string]string{
			{"_id": "idx-1", "index_name": "milk_campaign_index"},
		}})
	})
	mux.HandleFunc("POST /indexes", func(w http.ResponseWriter, _ *http.Request) {
		t.Error("index should not be created")
		w.WriteHeader(http.StatusConflict)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL, ClientConfig{})
	id, err := c.EnsureIndex(context.Background(), "milk_campaign_index", nil)

	require.NoError(t, err)
	assert.Equal(t, "idx-1", id)
}

func TestClient_EnsureIndexCreatesMissing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /indexes", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"data": []any{}})
	})
	mux.HandleFunc("POST /indexes", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name   string  `json:"index_name"`
			Models []Model `json:"models"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "milk_campaign_index", body.Name)
		require.Len(t, body.Models, 1)
		assert.Equal(t, "marengo2.5", body.Models[0].Name)
		writeJSON(t, w, map[string]string{"_id": "idx-new"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL, ClientConfig{})
	id, err := c.EnsureIndex(context.Background(), "milk_campaign_index",
		[]Model{{Name: "marengo2.5", Options: []string{SearchVisual}}})

	require.NoError(t, err)
	assert.Equal(t, "idx-new", id)
}

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("fake video bytes"), 0o600))
	return path
}

func TestClient_IndexVideoPollsUntilReady(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "idx-1", r.FormValue("index_id"))
		f, header, err := r.FormFile("video_file")
		require.NoError(t, err)
		defer f.Close()
		content, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "clip.mp4", header.Filename)
		assert.Equal(t, "fake video bytes", string(content))
		writeJSON(t, w, map[string]string{"_id": "task-1"})
	})
	mux.HandleFunc("GET /tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "task-1", r.PathValue("id"))
		if polls.Add(1) < 3 {
			writeJSON(t, w, map[string]string{"_id": "task-1", "status": "indexing"})
			return
		}
		writeJSON(t, w, map[string]string{"_id": "task-1", "status": "ready", "video_id": "vid-9"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL, ClientConfig{})
	videoID, err := c.IndexVideo(context.Background(), writeVideo(t), "idx-1", time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, "vid-9", videoID)
	assert.Equal(t, int32(3), polls.Load())
}

func TestClient_IndexVideoFailedTask(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]string{"_id": "task-2"})
	})
	mux.HandleFunc("GET /tasks/{id}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]string{"_id": "task-2", "status": "failed"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL, ClientConfig{})
	_, err := c.IndexVideo(context.Background(), writeVideo(t), "idx-1", time.Millisecond)

	require.ErrorIs(t, err, ErrIndexingFailed)
}

func TestClient_IndexVideoStopsAtDeadline(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]string{"_id": "task-3"})
	})
	mux.HandleFunc("GET /tasks/{id}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]string{"_id": "task-3", "status": "pending"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := newTestClient(t, srv.URL, ClientConfig{})
	_, err := c.IndexVideo(ctx, writeVideo(t), "idx-1", 5*time.Millisecond)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrIndexingFailed)
}

func TestClient_IndexVideoMissingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, ClientConfig{})
	_, err := c.IndexVideo(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), "idx-1", time.Millisecond)

	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
