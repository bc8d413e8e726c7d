package catalog

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/jonathan/animelist/internal/logging"
	"github.com/jonathan/animelist/internal/metrics"
)

// Source returns every catalog item ordered by ascending id.
type Source interface {
	ListCatalogItems(ctx context.Context) ([]Item, error)
}

// Snapshot is an immutable view of the catalog.
type Snapshot struct {
	Items    []Item
	Version  uint64 // content fingerprint; equal versions mean equal items
	LoadedAt time.Time
}

// Len returns the number of items.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

// NewSnapshot builds a snapshot and fingerprints its content.
func NewSnapshot(items []Item, loadedAt time.Time) *Snapshot {
	return &Snapshot{Items: items, Version: fingerprint(items), LoadedAt: loadedAt}
}

func fingerprint(items []Item) uint64 {
	d := xxhash.New()
	var buf []byte
	for _, it := range items {
		buf = strconv.AppendInt(buf[:0], it.ID, 10)
		buf = append(buf, 0)
		_, _ = d.Write(buf)
		_, _ = d.WriteString(it.Title)
		_, _ = d.Write([]byte{0})
		for _, t := range it.ExtraTitles {
			_, _ = d.WriteString(t)
			_, _ = d.Write([]byte{1})
		}
		_, _ = d.WriteString(it.Descriptor)
		_, _ = d.Write([]byte{0})
		buf = strconv.AppendFloat(buf[:0], it.Rating, 'g', -1, 64)
		_, _ = d.Write(buf)
		_, _ = d.Write([]byte{2})
	}
	return d.Sum64()
}

// Loader serves catalog snapshots.
//
// With a zero TTL every call reads the store. With a positive TTL a snapshot
// is reused until it is older than the TTL or Invalidate is called, so
// readers may observe a catalog up to TTL old.
type Loader struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	current *Snapshot
	gen     uint64 // bumped by Invalidate
	group   singleflight.Group
}

// NewLoader creates a loader over source.
func NewLoader(source Source, ttl time.Duration) *Loader {
	return &Loader{source: source, ttl: ttl, now: time.Now}
}

// Snapshot returns a catalog snapshot according to the cache policy.
func (l *Loader) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := l.cached(); snap != nil {
		metrics.SnapshotLoads.WithLabelValues("cached").Inc()
		return snap, nil
	}

	// The flight is shared, so one caller giving up must not fail the others.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := l.group.Do("snapshot", func() (any, error) {
		l.mu.RLock()
		gen := l.gen
		l.mu.RUnlock()

		items, err := l.source.ListCatalogItems(loadCtx)
		if err != nil {
			return nil, err
		}
		snap := NewSnapshot(items, l.now())
		if l.ttl > 0 {
			l.mu.Lock()
			// A load that raced with Invalidate may predate the write.
			if l.gen == gen {
				l.current = snap
			}
			l.mu.Unlock()
		}
		return snap, nil
	})
	if err != nil {
		metrics.SnapshotLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to load catalog snapshot: %w", err)
	}

	snap := v.(*Snapshot)
	metrics.SnapshotLoads.WithLabelValues("loaded").Inc()
	metrics.CatalogItems.Set(float64(snap.Len()))
	logging.Ctx(ctx).Debug().
		Int("items", snap.Len()).
		Uint64("version", snap.Version).
		Msg("catalog snapshot loaded")
	return snap, nil
}

func (l *Loader) cached() *Snapshot {
	if l.ttl <= 0 {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.current == nil || l.now().Sub(l.current.LoadedAt) >= l.ttl {
		return nil
	}
	return l.current
}

// Invalidate drops the cached snapshot. Call it after any catalog write.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.current = nil
	l.gen++
	l.mu.Unlock()
	l.group.Forget("snapshot")
}
