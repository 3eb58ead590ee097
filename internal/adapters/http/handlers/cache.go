package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minjae-lim/daily-quotes/internal/app"
)

// CacheHandler exposes the quote cache's metadata and clearing surface.
type CacheHandler struct {
	resolver *app.Resolver
}

// NewCacheHandler creates a new cache handler.
func NewCacheHandler(resolver *app.Resolver) *CacheHandler {
	return &CacheHandler{resolver: resolver}
}

// GetInfo handles GET /api/v1/cache.
// Returns the cache metadata: entry count, entry IDs and last-cleared time.
func (h *CacheHandler) GetInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.resolver.CacheInfo(c.Request.Context()))
}

// Clear handles DELETE /api/v1/cache.
//
// Drops every cached payload and resets the metadata. Date bindings survive,
// so cleared dates re-resolve to the same quote deterministically.
func (h *CacheHandler) Clear(c *gin.Context) {
	h.resolver.ClearCache(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"status": "cleared",
		"cache":  h.resolver.CacheInfo(c.Request.Context()),
	})
}
