package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"storefront/internal/catalog"
)

type CatalogServer interface {
	Serve(ctx context.Context, collection string, refresh bool, key string) (*catalog.Result, error)
}

const (
	cacheControlFresh = "public, max-age=86400"
	cacheControlStale = "public, max-age=2592000"
)

type CatalogHandler struct {
	logger     *log.Logger
	gateway    CatalogServer
	collection string
}

func NewCatalogHandler(logger *log.Logger, gateway CatalogServer, collection string) *CatalogHandler {
	return &CatalogHandler{
		logger:     logger,
		gateway:    gateway,
		collection: collection,
	}
}

func (h *CatalogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	refresh := q.Get("refresh") == "true"

	res, err := h.gateway.Serve(r.Context(), h.collection, refresh, q.Get("key"))
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrUnauthorizedRefresh):
			http.Error(w, "Unauthorized cache refresh", http.StatusUnauthorized)
		default:
			h.logger.Printf("Error serving %s: %v", h.collection, err)
			http.Error(w, "Failed to fetch "+h.collection, http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", string(res.Status))
	if res.Status == catalog.CacheStaleError {
		w.Header().Set("Cache-Control", cacheControlStale)
		w.Header().Set("X-Error", "Airtable-Unavailable")
	} else {
		w.Header().Set("Cache-Control", cacheControlFresh)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Body); err != nil {
		h.logger.Printf("Error writing %s response: %v", h.collection, err)
	}
}
