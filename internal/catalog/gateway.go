package catalog

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"storefront/internal/airtable"
	"storefront/internal/mirror"
	"storefront/internal/models"
)

var (
	ErrUnauthorizedRefresh = errors.New("unauthorized refresh")
	ErrUpstreamUnavailable = errors.New("catalog upstream unavailable and no cached copy")
	ErrUnknownCollection   = errors.New("unknown catalog collection")
)

type CacheStatus string

const (
	CacheHit        CacheStatus = "HIT"
	CacheMiss       CacheStatus = "MISS"
	CacheStaleError CacheStatus = "STALE-ERROR"
)

const defaultWriteTimeout = 30 * time.Second

type CacheStore interface {
	Put(ctx context.Context, key string, entry models.CacheEntry) error
	Match(ctx context.Context, key string) (*models.CacheEntry, error)
}

type RecordsLister interface {
	List(ctx context.Context, table string, query url.Values) ([]airtable.Record, error)
}

// Collection turns one upstream table into a response payload.
type Collection interface {
	Key() string
	Table() string
	Query() url.Values
	Build(ctx context.Context, records []airtable.Record) (any, *mirror.Stats)
}

type Result struct {
	Body   []byte
	Status CacheStatus
}

type payload struct {
	Records    any           `json:"records"`
	CachedAt   time.Time     `json:"cached_at"`
	TotalCount int           `json:"total_count"`
	SyncStats  *mirror.Stats `json:"sync_stats,omitempty"`
}

// Gateway serves catalog collections from the cache, pulling from upstream
// on a miss or an authorized refresh and falling back to the last cached
// copy when upstream fails.
type Gateway struct {
	logger       *log.Logger
	cache        CacheStore
	records      RecordsLister
	adminKey     string
	collections  map[string]Collection
	writeTimeout time.Duration
	now          func() time.Time

	writes sync.WaitGroup
}

func NewGateway(logger *log.Logger, cache CacheStore, records RecordsLister, adminKey string, collections ...Collection) *Gateway {
	g := &Gateway{
		logger:       logger,
		cache:        cache,
		records:      records,
		adminKey:     adminKey,
		collections:  make(map[string]Collection, len(collections)),
		writeTimeout: defaultWriteTimeout,
		now:          time.Now,
	}
	for _, c := range collections {
		g.collections[c.Key()] = c
	}
	return g
}

// Serve answers a request for collection. refresh bypasses the cache and
// requires key to equal the admin secret.
func (g *Gateway) Serve(ctx context.Context, collection string, refresh bool, key string) (*Result, error) {
	c, ok := g.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}

	if refresh {
		if !g.authorized(key) {
			g.logger.Printf("Catalog: rejected refresh of %s", collection)
			return nil, ErrUnauthorizedRefresh
		}
	} else {
		if entry := g.match(ctx, collection); entry != nil {
			return &Result{Body: entry.Body, Status: CacheHit}, nil
		}
	}

	body, err := g.pull(ctx, c)
	if err != nil {
		g.logger.Printf("Catalog: upstream pull of %s failed: %v", collection, err)
		if entry := g.match(ctx, collection); entry != nil {
			return &Result{Body: entry.Body, Status: CacheStaleError}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	g.store(collection, body)
	return &Result{Body: body, Status: CacheMiss}, nil
}

// Refresh pulls collection from upstream and writes it to the cache,
// waiting for the write. It is used by the warmer, not the request path.
func (g *Gateway) Refresh(ctx context.Context, collection string) (*mirror.Stats, error) {
	c, ok := g.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	records, err := g.records.List(ctx, c.Table(), c.Query())
	if err != nil {
		return nil, fmt.Errorf("failed to pull %s: %w", collection, err)
	}
	body, stats, err := g.encode(ctx, c, records)
	if err != nil {
		return nil, err
	}
	if err := g.cache.Put(ctx, collection, models.CacheEntry{Key: collection, Body: body, CreatedAt: g.now()}); err != nil {
		return stats, fmt.Errorf("failed to cache %s: %w", collection, err)
	}
	return stats, nil
}

// Collections lists the registered collection keys.
func (g *Gateway) Collections() []string {
	keys := make([]string, 0, len(g.collections))
	for k := range g.collections {
		keys = append(keys, k)
	}
	return keys
}

// Wait blocks until every detached cache write has finished.
func (g *Gateway) Wait() {
	g.writes.Wait()
}

func (g *Gateway) authorized(key string) bool {
	if g.adminKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(g.adminKey)) == 1
}

func (g *Gateway) match(ctx context.Context, collection string) *models.CacheEntry {
	entry, err := g.cache.Match(ctx, collection)
	if err != nil {
		g.logger.Printf("Catalog: cache lookup of %s failed: %v", collection, err)
		return nil
	}
	return entry
}

func (g *Gateway) pull(ctx context.Context, c Collection) ([]byte, error) {
	records, err := g.records.List(ctx, c.Table(), c.Query())
	if err != nil {
		return nil, err
	}
	body, _, err := g.encode(ctx, c, records)
	return body, err
}

func (g *Gateway) encode(ctx context.Context, c Collection, records []airtable.Record) ([]byte, *mirror.Stats, error) {
	shaped, stats := c.Build(ctx, records)
	body, err := json.Marshal(payload{
		Records:    shaped,
		CachedAt:   g.now().UTC(),
		TotalCount: len(records),
		SyncStats:  stats,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode %s: %w", c.Key(), err)
	}
	return body, stats, nil
}

// store writes body to the cache without holding up the response.
func (g *Gateway) store(collection string, body []byte) {
	entry := models.CacheEntry{Key: collection, Body: body, CreatedAt: g.now()}
	g.writes.Add(1)
	go func() {
		defer g.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), g.writeTimeout)
		defer cancel()
		if err := g.cache.Put(ctx, collection, entry); err != nil {
			g.logger.Printf("Catalog: cache write of %s failed: %v", collection, err)
		}
	}()
}
