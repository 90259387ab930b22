package mirror

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"storefront/internal/models"
)

const defaultContentType = "image/jpeg"

// ObjectBucket is the durable store mirrored assets are written to.
type ObjectBucket interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Fetcher downloads a remote asset.
type Fetcher interface {
	Fetch(ctx context.Context, remoteURL string) ([]byte, string, error)
}

type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{Client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, remoteURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("fetch returned HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// Stats aggregates the outcome of one SyncAll run.
type Stats struct {
	mu sync.Mutex

	TotalRecords      int      `json:"total_records"`
	RecordsWithAssets int      `json:"records_with_assets"`
	ImagesUploaded    int      `json:"images_uploaded"`
	ImagesDeleted     int      `json:"images_deleted"`
	ImagesSkipped     int      `json:"images_skipped"`
	OwnersSkipped     int      `json:"owners_skipped"`
	Errors            []string `json:"errors"`
}

func NewStats() *Stats {
	return &Stats{Errors: []string{}}
}

func (s *Stats) add(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ImagesUploaded += r.Uploaded
	s.ImagesDeleted += r.Deleted
	s.ImagesSkipped += r.Skipped
	if r.OwnerSkipped {
		s.OwnersSkipped++
	}
	s.Errors = append(s.Errors, r.Errors...)
}

// Result is the outcome for a single owner. URLs is parallel to the assets
// passed in; an empty slot means that asset could not be mirrored.
type Result struct {
	URLs         []string
	Uploaded     int
	Deleted      int
	Skipped      int
	OwnerSkipped bool
	Errors       []string
}

// Owner groups the assets of one catalog record. A record with an empty Key
// or no assets is counted but not mirrored.
type Owner struct {
	Key    string
	Assets []models.AssetRef
}

type Mirror struct {
	bucket        ObjectBucket
	fetcher       Fetcher
	publicBaseURL string
	logger        *log.Logger
}

func New(logger *log.Logger, bucket ObjectBucket, fetcher Fetcher, publicBaseURL string) *Mirror {
	return &Mirror{
		bucket:        bucket,
		fetcher:       fetcher,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}
}

func ObjectKey(prefix, ownerKey, filename string) string {
	return prefix + "/" + ownerKey + "/" + filename
}

// PublicURL returns the address a mirrored object is served from.
func (m *Mirror) PublicURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return m.publicBaseURL + "/" + strings.Join(parts, "/")
}

type upload struct {
	asset models.AssetRef
	url   string
	err   error
}

// Reconcile makes the objects under prefix/ownerKey/ match assets exactly:
// missing files are uploaded, then files no longer referenced are deleted.
// It never fails; problems are reported in the Result.
func (m *Mirror) Reconcile(ctx context.Context, prefix, ownerKey string, assets []models.AssetRef) Result {
	var res Result
	ownerPrefix := prefix + "/" + ownerKey + "/"

	existing, err := m.bucket.List(ctx, ownerPrefix)
	if err != nil {
		m.logger.Printf("Mirror: skipping %s, listing failed: %v", ownerPrefix, err)
		res.OwnerSkipped = true
		res.Errors = append(res.Errors, fmt.Sprintf("%s: list failed: %v", ownerPrefix, err))
		return res
	}
	present := make(map[string]bool, len(existing))
	for _, k := range existing {
		present[k] = true
	}

	wanted := make(map[string]bool, len(assets))
	uploads := make(map[string]*upload)
	for _, a := range assets {
		if a.Filename == "" {
			continue
		}
		key := ObjectKey(prefix, ownerKey, a.Filename)
		wanted[key] = true
		if present[key] {
			continue
		}
		if _, ok := uploads[key]; !ok {
			uploads[key] = &upload{asset: a}
		}
	}

	var wg sync.WaitGroup
	for key, u := range uploads {
		wg.Add(1)
		go func(key string, u *upload) {
			defer wg.Done()
			if err := m.put(ctx, key, u.asset.RemoteURL); err != nil {
				u.err = err
				return
			}
			u.url = m.PublicURL(key)
		}(key, u)
	}
	wg.Wait()

	for key, u := range uploads {
		if u.err != nil {
			m.logger.Printf("Mirror: upload of %s failed: %v", key, u.err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", key, u.err))
			continue
		}
		res.Uploaded++
	}

	res.URLs = make([]string, len(assets))
	counted := make(map[string]bool, len(assets))
	for i, a := range assets {
		if a.Filename == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: asset without filename", ownerPrefix))
			continue
		}
		key := ObjectKey(prefix, ownerKey, a.Filename)
		if present[key] {
			res.URLs[i] = m.PublicURL(key)
			if !counted[key] {
				res.Skipped++
				counted[key] = true
			}
			continue
		}
		res.URLs[i] = uploads[key].url
	}

	var orphans []string
	for _, k := range existing {
		if !wanted[k] {
			orphans = append(orphans, k)
		}
	}
	deleted := make([]error, len(orphans))
	for i, k := range orphans {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			deleted[i] = m.bucket.Delete(ctx, key)
		}(i, k)
	}
	wg.Wait()

	for i, err := range deleted {
		if err != nil {
			m.logger.Printf("Mirror: delete of %s failed: %v", orphans[i], err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: delete failed: %v", orphans[i], err))
			continue
		}
		res.Deleted++
	}

	return res
}

func (m *Mirror) put(ctx context.Context, key, remoteURL string) error {
	data, contentType, err := m.fetcher.Fetch(ctx, remoteURL)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = defaultContentType
	}
	return m.bucket.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
}

// SyncAll reconciles owners in groups of batchSize. The returned slice is
// parallel to owners; owners that were not mirrored get a nil entry. Owners
// sharing a key share one folder, so they are reconciled together.
func (m *Mirror) SyncAll(ctx context.Context, prefix string, owners []Owner, batchSize int) ([][]string, *Stats) {
	if batchSize <= 0 {
		batchSize = 1
	}
	stats := NewStats()
	stats.TotalRecords = len(owners)
	urls := make([][]string, len(owners))

	var keys []string
	members := make(map[string][]int)
	for i, o := range owners {
		if o.Key == "" || len(o.Assets) == 0 {
			continue
		}
		stats.RecordsWithAssets++
		if _, ok := members[o.Key]; !ok {
			keys = append(keys, o.Key)
		}
		members[o.Key] = append(members[o.Key], i)
	}

	for start := 0; start < len(keys); start += batchSize {
		end := min(start+batchSize, len(keys))

		var wg sync.WaitGroup
		for _, key := range keys[start:end] {
			idxs := members[key]
			if len(idxs) > 1 {
				m.logger.Printf("Mirror: %d records share %s/%s, merging their assets", len(idxs), prefix, key)
			}
			wg.Add(1)
			go func(key string, idxs []int) {
				defer wg.Done()
				var merged []models.AssetRef
				for _, idx := range idxs {
					merged = append(merged, owners[idx].Assets...)
				}
				res := m.Reconcile(ctx, prefix, key, merged)
				stats.add(res)
				if res.URLs == nil {
					return
				}
				offset := 0
				for _, idx := range idxs {
					n := len(owners[idx].Assets)
					urls[idx] = res.URLs[offset : offset+n : offset+n]
					offset += n
				}
			}(key, idxs)
		}
		wg.Wait()
	}

	m.logger.Printf("Mirror: %s synced, %d uploaded, %d deleted, %d skipped, %d errors",
		prefix, stats.ImagesUploaded, stats.ImagesDeleted, stats.ImagesSkipped, len(stats.Errors))
	return urls, stats
}
