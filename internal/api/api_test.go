// Package api_test provides behavior tests for the API package.
package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaidyth/lexa/internal/api"
	"github.com/kaidyth/lexa/internal/api/models"
	"github.com/kaidyth/lexa/internal/config"
	"github.com/kaidyth/lexa/internal/inventory"
)

func performRequest(r http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func primedCache(t *testing.T) *inventory.Cache {
	t.Helper()
	cache := inventory.NewCache(time.Minute)
	_, err := cache.GetOrRefill(context.Background(), func(ctx context.Context) (*inventory.Inventory, error) {
		return &inventory.Inventory{Metadata: []inventory.Metadatum{
			{Name: "web", Status: "Running", Code: 103},
		}}, nil
	})
	require.NoError(t, err)
	return cache
}

func TestNew_CreatesServer(t *testing.T) {
	server := api.New(config.TLSConfig{}, primedCache(t), nil, nil)
	assert.NotNil(t, server)
	assert.NotNil(t, server.Engine())
}

func TestRoutes_HealthEndpoint(t *testing.T) {
	server := api.New(config.TLSConfig{}, primedCache(t), nil, nil)

	w := performRequest(server.Engine(), http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestRoutes_StatsEndpoint(t *testing.T) {
	server := api.New(config.TLSConfig{}, primedCache(t), nil, nil)

	w := performRequest(server.Engine(), http.MethodGet, "/stats")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.ServerStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Uptime)
}

func TestRoutes_ContainersEndpoint(t *testing.T) {
	server := api.New(config.TLSConfig{}, primedCache(t), nil, nil)

	w := performRequest(server.Engine(), http.MethodGet, "/containers")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []models.ContainerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "web", resp[0].Name)
}

func TestRoutes_SwaggerEndpoint(t *testing.T) {
	server := api.New(config.TLSConfig{}, primedCache(t), nil, nil)

	w := performRequest(server.Engine(), http.MethodGet, "/swagger/index.html")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_LandingPageFallback(t *testing.T) {
	server := api.New(config.TLSConfig{}, primedCache(t), nil, nil)

	w := performRequest(server.Engine(), http.MethodGet, "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lexa")
}

func TestServer_RunFailsOnMissingCertificate(t *testing.T) {
	server := api.New(config.TLSConfig{
		Bind:        config.BindConfig{Host: "127.0.0.1", Port: 0},
		Certificate: "/nonexistent/cert.pem",
		Key:         "/nonexistent/key.pem",
	}, primedCache(t), nil, nil)

	err := server.Run(context.Background())
	assert.Error(t, err)
}
