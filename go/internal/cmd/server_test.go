package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/dropauction/go/internal/config"
)

func newMemoryServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.Store.Driver = config.DriverMemory
	cfg.Store.Products = []config.ProductSeed{
		{ID: "jacket", Name: "Vintage Leather Jacket", InitialPrice: 150, MinimumPrice: 50},
	}

	store, closeStore, err := setupStore(t.Context(), &cfg)
	require.NoError(t, err)
	t.Cleanup(closeStore)

	services, err := setupServices(&cfg, store)
	require.NoError(t, err)

	server := httptest.NewServer(setupServer(&cfg, services).Handler)
	t.Cleanup(server.Close)
	return server
}

func TestServer_Routes(t *testing.T) {
	server := newMemoryServer(t)

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/", http.StatusOK, `"status":"ok"`},
		{"/health", http.StatusOK, "OK"},
		{"/api/products", http.StatusOK, `"id":"jacket"`},
		{"/api/products/jacket", http.StatusOK, `"current_price":150`},
		{"/api/products/ghost", http.StatusNotFound, ""},
		{"/ws/stats", http.StatusOK, `"total_connections":0`},
		{"/metrics", http.StatusOK, "dropauction_registry_active_connections"},
		{"/nope", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(server.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.body != "" {
				var buf bytes.Buffer
				_, err := buf.ReadFrom(resp.Body)
				require.NoError(t, err)
				assert.Contains(t, buf.String(), tt.body)
			}
		})
	}
}

func TestServer_CORS(t *testing.T) {
	server := newMemoryServer(t)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/products", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://shop.example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
