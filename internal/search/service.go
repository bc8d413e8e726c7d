package search

import (
	"context"
	"time"

	"github.com/jonathan/animelist/internal/catalog"
	"github.com/jonathan/animelist/internal/logging"
	"github.com/jonathan/animelist/internal/metrics"
)

// SnapshotSource provides catalog snapshots.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
}

// Service runs title searches against the current snapshot.
type Service struct {
	snapshots SnapshotSource
}

// NewService creates a search service.
func NewService(snapshots SnapshotSource) *Service {
	return &Service{snapshots: snapshots}
}

// Titles runs a fuzzy title search.
func (s *Service) Titles(ctx context.Context, query string, limit, offset int) (Page, error) {
	start := time.Now()
	snap, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		return Page{}, err
	}
	page := Match(snap.Items, query, limit, offset)
	metrics.SearchDuration.WithLabelValues("title").Observe(time.Since(start).Seconds())
	logging.Ctx(ctx).Debug().
		Str("query", query).
		Int("limit", limit).
		Int("offset", offset).
		Int("total", page.Total).
		Msg("title search")
	return page, nil
}
