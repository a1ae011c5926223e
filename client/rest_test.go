package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRESTSessionLifecycle(t *testing.T) {
	var lastQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/session", func(w http.ResponseWriter, r *http.Request) {
		lastQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sessionId":"abc"}`))
	})
	mux.HandleFunc("/api/session/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("X-Session-ID") != "abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/game/state", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no game in progress", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rest := NewREST(srv.URL+"/", srv.Client())
	ctx := context.Background()

	id, err := rest.CreateSession(ctx, "alice", 4)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
	assert.Equal(t, "abc", rest.Session())
	assert.Equal(t, "avatar=4&userName=alice", lastQuery)

	require.NoError(t, rest.Heartbeat(ctx))

	_, err = rest.GameState(ctx, "1")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "no game in progress", se.Body)

	rest.SetSession("stale")
	assert.ErrorIs(t, rest.Heartbeat(ctx), ErrUnauthorized)
	assert.Empty(t, rest.Session())
}

func TestConfigWSURL(t *testing.T) {
	assert.Equal(t, "ws://127.0.0.1:8080/ws", Config{BaseURL: "http://127.0.0.1:8080/"}.WSURL())
	assert.Equal(t, "wss://draw.example.com/ws", Config{BaseURL: "https://draw.example.com"}.WSURL())
}
