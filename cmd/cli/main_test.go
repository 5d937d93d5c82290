package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/demo", func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(messageResponse{
			Respuesta: "eco: " + req.Texto + "<br>usuario " + req.UsuarioID,
			Estado:    "saludo",
			Fase:      "start",
		})
	})
	mux.HandleFunc("POST /webhook/demo/reset", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(resetResponse{Status: "ok", Message: "Conversación reiniciada " + r.URL.Query().Get("usuario_id")})
	})
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"usuarios_activos":1,"cache_llm":2,"productos":4}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSendOnce(t *testing.T) {
	srv := fakeAPI(t)
	var out bytes.Buffer
	require.NoError(t, sendOnce(context.Background(), newAPIClient(srv.URL, time.Second), "u1", "hola", &out))
	assert.Equal(t, "Bot [saludo/start]: eco: hola\nusuario u1\n", out.String())
}

func TestInteractive(t *testing.T) {
	srv := fakeAPI(t)
	var out bytes.Buffer
	in := strings.NewReader("hola\n\n/reset\nexit\nnunca\n")
	require.NoError(t, runInteractive(context.Background(), newAPIClient(srv.URL, time.Second), "u1", in, &out))
	assert.Contains(t, out.String(), "eco: hola")
	assert.Contains(t, out.String(), "Conversación reiniciada u1")
	assert.NotContains(t, out.String(), "nunca")
}

func TestStatsCommand(t *testing.T) {
	srv := fakeAPI(t)
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"stats", "--api-url", srv.URL + "/", "--config", "does-not-exist.toml"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "usuarios activos: 1")
	assert.Contains(t, out.String(), "productos:        4")
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"usuario_id is required"}`, http.StatusBadRequest)
	}))
	defer srv.Close()
	_, err := newAPIClient(srv.URL, time.Second).Send(context.Background(), "", "hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestDefaultAPIBaseURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:8080", defaultAPIBaseURL(":8080"))
	assert.Equal(t, "http://localhost:9000", defaultAPIBaseURL("localhost:9000"))
	assert.Equal(t, "https://x.example", defaultAPIBaseURL("https://x.example/"))
	assert.Equal(t, "", defaultAPIBaseURL(" "))
}
