package catalog

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

type fakeSource struct {
	mu    sync.Mutex
	items []Item
	err   error
	calls atomic.Int32
	// started and release, when set, pause the first list call.
	started chan struct{}
	release chan struct{}
	lastCtx context.Context
}

func (f *fakeSource) ListCatalogItems(ctx context.Context) ([]Item, error) {
	n := f.calls.Add(1)
	f.mu.Lock()
	f.lastCtx = ctx
	items, err := append([]Item(nil), f.items...), f.err
	f.mu.Unlock()
	if n == 1 && f.release != nil {
		close(f.started)
		<-f.release
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (f *fakeSource) set(items []Item) {
	f.mu.Lock()
	f.items = items
	f.mu.Unlock()
}

func TestLoader_ZeroTTLReloadsEveryCall(t *testing.T) {
	src := &fakeSource{items: []Item{{ID: 1, Title: "A"}}}
	l := NewLoader(src, 0)

	for i := 0; i < 3; i++ {
		snap, err := l.Snapshot(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, snap.Len())
	}
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestLoader_TTLCachesUntilExpiry(t *testing.T) {
	src := &fakeSource{items: []Item{{ID: 1, Title: "A"}}}
	l := NewLoader(src, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	first, err := l.Snapshot(context.Background())
	require.NoError(t, err)

	src.set([]Item{{ID: 1, Title: "A"}, {ID: 2, Title: "B"}})
	second, err := l.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second, "served from cache within TTL")
	assert.Equal(t, int32(1), src.calls.Load())

	now = now.Add(time.Minute)
	third, err := l.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, third.Len())
	assert.NotEqual(t, first.Version, third.Version)
}

func TestLoader_Invalidate(t *testing.T) {
	src := &fakeSource{items: []Item{{ID: 1, Title: "A"}}}
	l := NewLoader(src, time.Hour)

	_, err := l.Snapshot(context.Background())
	require.NoError(t, err)

	src.set([]Item{{ID: 7, Title: "Z"}})
	l.Invalidate()

	snap, err := l.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, snap.Len())
	assert.Equal(t, int64(7), snap.Items[0].ID)
}

func TestLoader_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	l := NewLoader(&fakeSource{err: boom}, 0)

	_, err := l.Snapshot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestSnapshot_VersionTracksContent(t *testing.T) {
	a := NewSnapshot([]Item{{ID: 1, Title: "A", Descriptor: "x"}}, time.Now())
	b := NewSnapshot([]Item{{ID: 1, Title: "A", Descriptor: "x"}}, time.Now().Add(time.Hour))
	c := NewSnapshot([]Item{{ID: 1, Title: "A", Descriptor: "y"}}, time.Now())
	d := NewSnapshot([]Item{{ID: 1, Title: "A", Descriptor: "x", Rating: 7}}, time.Now())

	assert.Equal(t, a.Version, b.Version)
	assert.NotEqual(t, a.Version, c.Version)
	assert.NotEqual(t, a.Version, d.Version)

	var empty *Snapshot
	assert.Equal(t, 0, empty.Len())
}

func TestLoader_InvalidateDuringLoad(t *testing.T) {
	src := &fakeSource{
		items:   []Item{{ID: 1, Title: "Old"}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	l := NewLoader(src, time.Hour)

	done := make(chan *Snapshot)
	go func() {
		snap, err := l.Snapshot(context.Background())
		assert.NoError(t, err)
		done <- snap
	}()
	<-src.started
	src.set([]Item{{ID: 1, Title: "New"}})
	l.Invalidate()
	close(src.release)
	stale := <-done
	assert.Equal(t, "Old", stale.Items[0].Title)

	fresh, err := l.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "New", fresh.Items[0].Title)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestLoader_LoadOutlivesCallerCancel(t *testing.T) {
	src := &fakeSource{items: []Item{{ID: 1, Title: "A"}}}
	l := NewLoader(src, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := l.Snapshot(ctx)
	require.NoError(t, err)
	cancel()

	src.mu.Lock()
	defer src.mu.Unlock()
	require.NotNil(t, src.lastCtx)
	assert.NoError(t, src.lastCtx.Err())
}
