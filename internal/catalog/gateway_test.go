package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/url"
	"sync"
	"testing"
	"time"

	"storefront/internal/airtable"
	"storefront/internal/mirror"
	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	mu      sync.Mutex
	records map[string][]airtable.Record
	err     error
	calls   int
	queries []url.Values
}

func (f *fakeLister) List(_ context.Context, table string, query url.Values) ([]airtable.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.records[table], nil
}

type countingCache struct {
	*store.MemoryCache
	mu      sync.Mutex
	matches int
	puts    int
}

func (c *countingCache) Match(ctx context.Context, key string) (*models.CacheEntry, error) {
	c.mu.Lock()
	c.matches++
	c.mu.Unlock()
	return c.MemoryCache.Match(ctx, key)
}

func (c *countingCache) Put(ctx context.Context, key string, entry models.CacheEntry) error {
	c.mu.Lock()
	c.puts++
	c.mu.Unlock()
	return c.MemoryCache.Put(ctx, key, entry)
}

type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, remoteURL string) ([]byte, string, error) {
	if remoteURL == "https://remote.example.com/broken.jpg" {
		return nil, "", errors.New("gone")
	}
	return []byte("img"), "image/jpeg", nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type response struct {
	Records    json.RawMessage `json:"records"`
	CachedAt   time.Time       `json:"cached_at"`
	TotalCount int             `json:"total_count"`
	SyncStats  *mirror.Stats   `json:"sync_stats"`
}

func decode(t *testing.T, body []byte) response {
	t.Helper()
	var r response
	require.NoError(t, json.Unmarshal(body, &r))
	return r
}

func newTestGateway(lister *fakeLister, cache CacheStore) (*Gateway, *store.MemoryBucket) {
	bucket := store.NewMemoryBucket()
	m := mirror.New(testLogger(), bucket, stubFetcher{}, "https://media.example.com")
	g := NewGateway(testLogger(), cache, lister, "s3cret",
		NewProducts(m, 10), NewEvents(m, 5), NewDeals())
	return g, bucket
}

func attachment(name string) map[string]any {
	return map[string]any{"id": "att" + name, "url": "https://remote.example.com/" + name, "filename": name}
}

func productRecords() map[string][]airtable.Record {
	return map[string][]airtable.Record{
		"Products": {
			{ID: "rec1", Fields: map[string]any{"SKU": "MUG-1", "Name": "Mug", "Price": 12.5, "Images": []any{attachment("mug.jpg")}, "Pinned": true}},
			{ID: "rec2", Fields: map[string]any{"Name": "Sticker", "Price": 2.0}},
			{ID: "rec3", Fields: map[string]any{"Name": "Loose", "Images": []any{attachment("loose.jpg")}}},
		},
	}
}

func TestServeMissThenHit(t *testing.T) {
	lister := &fakeLister{records: productRecords()}
	cache := &countingCache{MemoryCache: store.NewMemoryCache()}
	g, bucket := newTestGateway(lister, cache)
	ctx := context.Background()

	res, err := g.Serve(ctx, KeyProducts, false, "")
	require.NoError(t, err)
	assert.Equal(t, CacheMiss, res.Status)
	g.Wait()

	body := decode(t, res.Body)
	assert.Equal(t, 3, body.TotalCount)
	require.NotNil(t, body.SyncStats)
	assert.Equal(t, 3, body.SyncStats.TotalRecords)
	assert.Equal(t, 1, body.SyncStats.RecordsWithAssets)
	assert.Equal(t, 1, body.SyncStats.ImagesUploaded)

	var products []models.Product
	require.NoError(t, json.Unmarshal(body.Records, &products))
	require.Len(t, products, 3)
	assert.Equal(t, "https://media.example.com/images/MUG-1/mug.jpg", products[0].Image)
	require.NotNil(t, products[0].SKU)
	assert.Equal(t, "MUG-1", *products[0].SKU)
	assert.Nil(t, products[1].SKU)
	assert.Equal(t, PlaceholderImage, products[1].Image)
	assert.Empty(t, products[1].Images)
	assert.Equal(t, "https://remote.example.com/loose.jpg", products[2].Image, "no SKU keeps the remote URL")

	_, _, ok := bucket.Object("images/MUG-1/mug.jpg")
	assert.True(t, ok)

	hit, err := g.Serve(ctx, KeyProducts, false, "")
	require.NoError(t, err)
	assert.Equal(t, CacheHit, hit.Status)
	assert.Equal(t, res.Body, hit.Body)
	assert.Equal(t, 1, lister.calls)
}

func TestServeStaleOnUpstreamFailure(t *testing.T) {
	lister := &fakeLister{records: map[string][]airtable.Record{
		"Deals": {{ID: "d1", Fields: map[string]any{"Name": "Ten off", "Min Amount": 50.0, "Discount Value": 10.0, "Active": true}}},
	}}
	g, _ := newTestGateway(lister, store.NewMemoryCache())
	ctx := context.Background()

	first, err := g.Serve(ctx, KeyDeals, false, "")
	require.NoError(t, err)
	g.Wait()

	lister.err = errors.New("upstream 503")
	res, err := g.Serve(ctx, KeyDeals, true, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, CacheStaleError, res.Status)
	assert.Equal(t, first.Body, res.Body)
}

func TestServeUpstreamFailureWithoutCache(t *testing.T) {
	lister := &fakeLister{err: errors.New("upstream 503")}
	g, _ := newTestGateway(lister, store.NewMemoryCache())

	_, err := g.Serve(context.Background(), KeyEvents, false, "")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestServeRefreshRequiresAdminKey(t *testing.T) {
	tests := []struct {
		name     string
		adminKey string
		key      string
	}{
		{name: "wrong key", adminKey: "s3cret", key: "guess"},
		{name: "missing key", adminKey: "s3cret", key: ""},
		{name: "no secret configured", adminKey: "", key: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &fakeLister{records: productRecords()}
			cache := &countingCache{MemoryCache: store.NewMemoryCache()}
			g := NewGateway(testLogger(), cache, lister, tt.adminKey, NewDeals())

			_, err := g.Serve(context.Background(), KeyDeals, true, tt.key)
			assert.ErrorIs(t, err, ErrUnauthorizedRefresh)
			assert.Zero(t, cache.matches)
			assert.Zero(t, cache.puts)
			assert.Zero(t, lister.calls)
		})
	}
}

func TestServeAuthorizedRefreshOverwrites(t *testing.T) {
	lister := &fakeLister{records: map[string][]airtable.Record{"Deals": {{ID: "d1", Fields: map[string]any{"Name": "A"}}}}}
	g, _ := newTestGateway(lister, store.NewMemoryCache())
	ctx := context.Background()

	_, err := g.Serve(ctx, KeyDeals, false, "")
	require.NoError(t, err)
	g.Wait()

	lister.records["Deals"] = append(lister.records["Deals"], airtable.Record{ID: "d2", Fields: map[string]any{"Name": "B"}})
	res, err := g.Serve(ctx, KeyDeals, true, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, CacheMiss, res.Status)
	g.Wait()

	hit, err := g.Serve(ctx, KeyDeals, false, "")
	require.NoError(t, err)
	assert.Equal(t, CacheHit, hit.Status)
	assert.Equal(t, 2, decode(t, hit.Body).TotalCount)
}

func TestDealsShapingAndQuery(t *testing.T) {
	lister := &fakeLister{records: map[string][]airtable.Record{
		"Deals": {{ID: "d1", Fields: map[string]any{"Name": "Ten off", "Min Amount": 50.0, "Discount Value": 10.0}}},
	}}
	g, _ := newTestGateway(lister, store.NewMemoryCache())

	res, err := g.Serve(context.Background(), KeyDeals, false, "")
	require.NoError(t, err)
	g.Wait()

	body := decode(t, res.Body)
	assert.Nil(t, body.SyncStats)
	var deals []models.Deal
	require.NoError(t, json.Unmarshal(body.Records, &deals))
	require.Len(t, deals, 1)
	assert.Equal(t, "Percentage", deals[0].DiscountType)
	assert.Equal(t, 50.0, deals[0].MinAmount)

	require.Len(t, lister.queries, 1)
	assert.Equal(t, "{Active}=1", lister.queries[0].Get("filterByFormula"))
	assert.Equal(t, "Min Amount", lister.queries[0].Get("sort[0][field]"))
}

func TestEventsShaping(t *testing.T) {
	lister := &fakeLister{records: map[string][]airtable.Record{
		"Events": {
			{ID: "ev1", Fields: map[string]any{
				"Event Name": "Spring Fair",
				"Image":      []any{"https://remote.example.com/path/poster.png", attachment("broken.jpg")},
			}},
			{ID: "ev2", Fields: map[string]any{"Name": "Market", "Status": "Past"}},
		},
	}}
	g, bucket := newTestGateway(lister, store.NewMemoryCache())

	res, err := g.Serve(context.Background(), KeyEvents, false, "")
	require.NoError(t, err)
	g.Wait()

	body := decode(t, res.Body)
	var events []models.Event
	require.NoError(t, json.Unmarshal(body.Records, &events))
	require.Len(t, events, 2)

	assert.Equal(t, "Spring Fair", events[0].Name)
	assert.Equal(t, "Upcoming", events[0].Status)
	assert.Equal(t, []string{
		"https://media.example.com/events/ev1/poster.png",
		"https://remote.example.com/broken.jpg",
	}, events[0].Images)
	assert.Equal(t, "Past", events[1].Status)
	assert.Empty(t, events[1].Images)

	_, _, ok := bucket.Object("events/ev1/poster.png")
	assert.True(t, ok)
	require.NotNil(t, body.SyncStats)
	assert.Len(t, body.SyncStats.Errors, 1)
}

func TestServeUnknownCollection(t *testing.T) {
	g, _ := newTestGateway(&fakeLister{}, store.NewMemoryCache())
	_, err := g.Serve(context.Background(), "widgets", false, "")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestRefreshWritesSynchronously(t *testing.T) {
	lister := &fakeLister{records: productRecords()}
	cache := store.NewMemoryCache()
	g, _ := newTestGateway(lister, cache)

	stats, err := g.Refresh(context.Background(), KeyProducts)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.TotalRecords)

	entry, err := cache.Match(context.Background(), KeyProducts)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 3, decode(t, entry.Body).TotalCount)
}
