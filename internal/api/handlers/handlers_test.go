package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaidyth/lexa/internal/api/handlers"
	"github.com/kaidyth/lexa/internal/api/models"
	"github.com/kaidyth/lexa/internal/inventory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(r http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func testInventory() *inventory.Inventory {
	return &inventory.Inventory{Metadata: []inventory.Metadatum{
		{
			Name:     "web",
			Status:   "Running",
			Code:     103,
			Location: "node-1.example.com",
			State: inventory.MetadatumState{Network: map[string]inventory.NetworkInterface{
				"eth0": {Addresses: []inventory.Address{
					{Family: "inet", Address: "10.0.0.5", Scope: "global"},
				}},
			}},
		},
		{
			Name:   "db",
			Status: "Stopped",
			Code:   102,
		},
	}}
}

func primedCache(t *testing.T, inv *inventory.Inventory) *inventory.Cache {
	t.Helper()
	cache := inventory.NewCache(time.Minute)
	_, err := cache.GetOrRefill(context.Background(), func(ctx context.Context) (*inventory.Inventory, error) {
		return inv, nil
	})
	require.NoError(t, err)
	return cache
}

func TestHealth(t *testing.T) {
	h := handlers.New(nil, nil, nil)
	router := gin.New()
	router.GET("/health", h.Health)

	w := performRequest(router, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestStats(t *testing.T) {
	h := handlers.New(primedCache(t, testInventory()), nil, nil)
	router := gin.New()
	router.GET("/stats", h.Stats)

	w := performRequest(router, http.MethodGet, "/stats")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.ServerStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Uptime)
	assert.Equal(t, 2, resp.Inventory.CachedInstances)
	assert.False(t, resp.Inventory.Stale)
}

func TestStats_EmptyCache(t *testing.T) {
	h := handlers.New(inventory.NewCache(time.Minute), nil, nil)
	router := gin.New()
	router.GET("/stats", h.Stats)

	w := performRequest(router, http.MethodGet, "/stats")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.ServerStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Inventory.Stale)
}

func TestListContainers_DefaultsToAll(t *testing.T) {
	h := handlers.New(primedCache(t, testInventory()), nil, nil)
	router := gin.New()
	router.GET("/containers", h.ListContainers)

	w := performRequest(router, http.MethodGet, "/containers")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []models.ContainerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "web", resp[0].Name)
	assert.Equal(t, []string{"10.0.0.5"}, addressValues(resp[0].Addresses["eth0"]))
}

func TestListContainers_FiltersByGlob(t *testing.T) {
	h := handlers.New(primedCache(t, testInventory()), nil, nil)
	router := gin.New()
	router.GET("/containers", h.ListContainers)

	w := performRequest(router, http.MethodGet, "/containers?name=db*")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []models.ContainerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp, "db is stopped and excluded even though it matches the glob")
}

func TestListContainers_InvalidGlobReturnsEmptyArray(t *testing.T) {
	h := handlers.New(primedCache(t, testInventory()), nil, nil)
	router := gin.New()
	router.GET("/containers", h.ListContainers)

	w := performRequest(router, http.MethodGet, "/containers?name=[")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []models.ContainerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp)
}

func TestListContainers_NoCacheReturnsEmptyArray(t *testing.T) {
	h := handlers.New(nil, nil, nil)
	router := gin.New()
	router.GET("/containers", h.ListContainers)

	w := performRequest(router, http.MethodGet, "/containers")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []models.ContainerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp)
}

func addressValues(entries []models.AddressEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Address)
	}
	return out
}
