package store

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCachePutAndMatch(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	cache := NewRedisCache(client)
	defer cache.Close()

	ctx := context.Background()

	got, err := cache.Match(ctx, "products")
	require.NoError(t, err)
	assert.Nil(t, got, "unwritten key should be absent")

	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, cache.Put(ctx, "products", models.CacheEntry{
		Key:       "products",
		Body:      []byte(`{"records":[]}`),
		CreatedAt: createdAt,
	}))

	got, err = cache.Match(ctx, "products")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, `{"records":[]}`, string(got.Body))
	assert.True(t, createdAt.Equal(got.CreatedAt))
	assert.Equal(t, time.Duration(0), mr.TTL("catalog_cache:products"), "entries must not expire")

	require.NoError(t, cache.Put(ctx, "products", models.CacheEntry{Key: "products", Body: []byte(`{"v":2}`)}))
	got, err = cache.Match(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got.Body))
}

func TestRedisCacheMatchReportsBackendErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	cache := NewRedisCache(client)
	defer cache.Close()

	mr.SetError("LOADING")
	_, err = cache.Match(context.Background(), "events")
	assert.Error(t, err)
}

func TestMemoryBucketListByPrefix(t *testing.T) {
	b := NewMemoryBucket()
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "images/SKU1/a.jpg", bytes.NewReader([]byte("a")), 1, "image/jpeg"))
	require.NoError(t, b.Put(ctx, "images/SKU10/b.jpg", bytes.NewReader([]byte("b")), 1, "image/jpeg"))
	require.NoError(t, b.Put(ctx, "events/rec1/c.jpg", bytes.NewReader([]byte("c")), 1, "image/png"))

	keys, err := b.List(ctx, "images/SKU1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"images/SKU1/a.jpg"}, keys)

	require.NoError(t, b.Delete(ctx, "images/SKU1/a.jpg"))
	keys, err = b.List(ctx, "images/SKU1/")
	require.NoError(t, err)
	assert.Empty(t, keys)

	data, contentType, ok := b.Object("events/rec1/c.jpg")
	require.True(t, ok)
	assert.Equal(t, "c", string(data))
	assert.Equal(t, "image/png", contentType)
}

func TestDeliveryLogRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO webhook_deliveries").
		WithArgs(sqlmock.AnyArg(), "evt_1", models.EventCheckoutSessionCompleted, "recOrder1", "paid", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	d := &models.WebhookDelivery{
		EventID:   "evt_1",
		EventType: models.EventCheckoutSessionCompleted,
		OrderID:   "recOrder1",
		Outcome:   "paid",
	}
	require.NoError(t, NewDeliveryLog(db).Record(context.Background(), d))
	assert.NotEmpty(t, d.ID)
	assert.False(t, d.ReceivedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryLogCountForOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM webhook_deliveries`).
		WithArgs("recOrder1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := NewDeliveryLog(db).CountForOrder(context.Background(), "recOrder1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrationsAppliesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002_second.sql"), []byte("CREATE TABLE second (id INT)"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_first.sql"), []byte("CREATE TABLE first (id INT)"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE first`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE second`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, RunMigrations(db, dir, log.New(io.Discard, "", 0)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
