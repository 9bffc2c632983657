package inventory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetOrRefillLoadsOnMiss(t *testing.T) {
	c := NewCache(time.Minute)
	var calls int32
	load := func(ctx context.Context) (*Inventory, error) {
		atomic.AddInt32(&calls, 1)
		return &Inventory{Metadata: []Metadatum{{Name: "web"}}}, nil
	}

	inv, err := c.GetOrRefill(context.Background(), load)
	require.NoError(t, err)
	require.Len(t, inv.Metadata, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	inv2, err := c.GetOrRefill(context.Background(), load)
	require.NoError(t, err)
	assert.Same(t, inv, inv2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call within TTL should not refill")
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	var calls int32
	load := func(ctx context.Context) (*Inventory, error) {
		atomic.AddInt32(&calls, 1)
		return &Inventory{}, nil
	}

	_, err := c.GetOrRefill(context.Background(), load)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = c.GetOrRefill(context.Background(), load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCacheRefillFailureLeavesPreviousSnapshot(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	good := func(ctx context.Context) (*Inventory, error) {
		return &Inventory{Metadata: []Metadatum{{Name: "web"}}}, nil
	}
	bad := func(ctx context.Context) (*Inventory, error) {
		return nil, errors.New("upstream unavailable")
	}

	_, err := c.GetOrRefill(context.Background(), good)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	_, err = c.GetOrRefill(context.Background(), bad)
	assert.Error(t, err)

	// The stale snapshot is still there, just expired; a caller using Get
	// directly (rather than GetOrRefill) sees the miss rather than a lie.
	_, ok := c.Get()
	assert.False(t, ok)
}

func TestCacheCollapsesConcurrentMisses(t *testing.T) {
	c := NewCache(time.Minute)
	var calls int32
	release := make(chan struct{})
	load := func(ctx context.Context) (*Inventory, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &Inventory{}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetOrRefill(context.Background(), load)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCacheSerialize(t *testing.T) {
	c := NewCache(time.Minute)
	_, err := c.GetOrRefill(context.Background(), func(ctx context.Context) (*Inventory, error) {
		return &Inventory{Metadata: []Metadatum{{Name: "web", Status: "Running", Code: 103}}}, nil
	})
	require.NoError(t, err)

	entries, err := c.Serialize()
	require.NoError(t, err)
	assert.Contains(t, entries, "containers_full")
	assert.Contains(t, entries, "instances")
	assert.Contains(t, entries, "web")
}

func TestCacheSerializeEmpty(t *testing.T) {
	c := NewCache(time.Minute)
	entries, err := c.Serialize()
	require.NoError(t, err)
	assert.Nil(t, entries)
}
