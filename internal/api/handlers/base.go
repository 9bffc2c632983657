// Package handlers implements the REST API endpoint handlers for lexa.
//
// @title Lexa Inventory API
// @version 1.0
// @description Read-only JSON view of the container DNS inventory lexa serves over DNS.
//
// @license.name MIT
//
// @BasePath /
package handlers

import (
	"log/slog"
	"time"

	"github.com/kaidyth/lexa/internal/inventory"
)

// Handler contains dependencies for API handlers.
type Handler struct {
	Cache     *inventory.Cache
	Load      inventory.Loader
	Logger    *slog.Logger
	startTime time.Time
}

// New creates a Handler backed by the given inventory cache and loader.
func New(cache *inventory.Cache, load inventory.Loader, logger *slog.Logger) *Handler {
	return &Handler{
		Cache:     cache,
		Load:      load,
		Logger:    logger,
		startTime: time.Now(),
	}
}
