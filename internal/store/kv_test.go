package store

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return mr, NewRedisKV(c)
}

func TestRedisKV_GetSet(t *testing.T) {
	mr, kv := setupTestRedis(t)
	ctx := context.Background()

	_, err := kv.Get(ctx, "qms:settings:backup-range")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "qms:settings:backup-range", `{"start":"2024-01-01"}`, 0))
	require.NoError(t, kv.Set(ctx, "qms:tmp", "1", time.Minute))

	v, err := kv.Get(ctx, "qms:settings:backup-range")
	require.NoError(t, err)
	assert.Equal(t, `{"start":"2024-01-01"}`, v)

	mr.FastForward(2 * time.Minute)
	_, err = kv.Get(ctx, "qms:tmp")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_Next(t *testing.T) {
	mr, kv := setupTestRedis(t)
	ctx := context.Background()

	n, err := kv.Next(ctx, "qms:seq:NCR:2024", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = kv.Next(ctx, "qms:seq:NCR:2024", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	n, err = kv.Next(ctx, "qms:seq:NCR:2024", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	v, err := mr.Get("qms:seq:NCR:2024")
	require.NoError(t, err)
	assert.Equal(t, "12", v)
}

func TestMemoryKV_TTL(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.Set(ctx, "a:1", "x", time.Second))
	require.NoError(t, kv.Set(ctx, "a:2", "y", 0))

	v, err := kv.Get(ctx, "a:1")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	now = now.Add(time.Second)
	_, err = kv.Get(ctx, "a:1")
	assert.ErrorIs(t, err, ErrMiss)
	v, err = kv.Get(ctx, "a:2")
	require.NoError(t, err)
	assert.Equal(t, "y", v)
}

func TestMemoryKV_NextConcurrent(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	var wg sync.WaitGroup
	seen := make(chan int64, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := kv.Next(ctx, "qms:seq:CC:2024", 0)
			assert.NoError(t, err)
			seen <- n
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int64]bool{}
	for n := range seen {
		unique[n] = true
	}
	assert.Len(t, unique, 50)

	n, err := kv.Next(ctx, "qms:seq:CC:2024", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(51), n)

	require.NoError(t, kv.Set(ctx, "bad", "x", 0))
	_, err = kv.Next(ctx, "bad", 0)
	assert.Error(t, err)
}

func TestPostgresKV(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	kv := NewPostgresKV(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT value FROM qms_settings WHERE key = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	_, err = kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	mock.ExpectExec(`INSERT INTO qms_settings`).
		WithArgs("k", "v").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, kv.Set(ctx, "k", "v", time.Hour))

	mock.ExpectQuery(`INSERT INTO qms_settings .* RETURNING value`).
		WithArgs("qms:seq:SI:2024", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("8"))
	n, err := kv.Next(ctx, "qms:seq:SI:2024", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}
