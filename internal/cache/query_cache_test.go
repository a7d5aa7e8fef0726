package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"cohort2sql-go/internal/config"
	"cohort2sql-go/internal/database"
)

type countingObserver struct {
	hits, misses atomic.Int32
}

func (o *countingObserver) ObserveCacheLookup(hit bool) {
	if hit {
		o.hits.Add(1)
	} else {
		o.misses.Add(1)
	}
}

func countingLoader(calls *atomic.Int32) Loader {
	return func(ctx context.Context) (*database.ResultSet, error) {
		calls.Add(1)
		return &database.ResultSet{
			Columns: []database.Column{{Name: "cnt", Type: database.ColumnNumeric}},
			Rows:    [][]any{{int64(1325)}},
		}, nil
	}
}

func TestQueryCache_ReturnsIdenticalObjectWithinTTL(t *testing.T) {
	observer := &countingObserver{}
	c := New(config.DefaultCacheConfig(), observer, zaptest.NewLogger(t))
	var calls atomic.Int32

	first, hit, err := c.GetOrLoad(context.Background(), "SELECT COUNT(*) FROM omop_cdm.person", countingLoader(&calls))
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := c.GetOrLoad(context.Background(), "SELECT COUNT(*) FROM omop_cdm.person", countingLoader(&calls))
	require.NoError(t, err)
	assert.True(t, hit)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(1), observer.hits.Load())
	assert.Equal(t, int32(1), observer.misses.Load())
}

func TestQueryCache_ReloadsAfterTTL(t *testing.T) {
	c := New(&config.CacheConfig{TTL: 50 * time.Millisecond}, nil, nil)
	var calls atomic.Int32
	query := "SELECT condint FROM omop_cdm.cibmtr_haploidentical_transplant"

	first, _, err := c.GetOrLoad(context.Background(), query, countingLoader(&calls))
	require.NoError(t, err)

	time.Sleep(80 * time.Millisecond)

	_, ok := c.Get(query)
	assert.False(t, ok, "expired entry must not be returned")

	second, hit, err := c.GetOrLoad(context.Background(), query, countingLoader(&calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), calls.Load())
}

func TestQueryCache_KeyIsLiteralText(t *testing.T) {
	c := New(config.DefaultCacheConfig(), nil, nil)
	var calls atomic.Int32

	_, _, err := c.GetOrLoad(context.Background(), "SELECT 1", countingLoader(&calls))
	require.NoError(t, err)
	_, hit, err := c.GetOrLoad(context.Background(), "select 1", countingLoader(&calls))
	require.NoError(t, err)

	assert.False(t, hit)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestQueryCache_FailuresAreNotCached(t *testing.T) {
	c := New(config.DefaultCacheConfig(), nil, nil)
	boom := errors.New("permission denied")
	var calls atomic.Int32

	failing := func(ctx context.Context) (*database.ResultSet, error) {
		calls.Add(1)
		return nil, boom
	}

	_, _, err := c.GetOrLoad(context.Background(), "SELECT 1", failing)
	assert.ErrorIs(t, err, boom)
	_, _, err = c.GetOrLoad(context.Background(), "SELECT 1", failing)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, c.Len())
}

func TestQueryCache_Clear(t *testing.T) {
	c := New(nil, nil, nil)
	var calls atomic.Int32

	_, _, err := c.GetOrLoad(context.Background(), "SELECT 1", countingLoader(&calls))
	require.NoError(t, err)
	assert.Equal(t, 600*time.Second, c.TTL())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
