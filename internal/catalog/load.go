package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jonathan/animelist/internal/logging"
	"github.com/jonathan/animelist/internal/metrics"
	"github.com/jonathan/animelist/internal/schemas"
)

// RecordStore is the catalog table written by the bulk loader.
type RecordStore interface {
	CountAnime(ctx context.Context) (int, error)
	InsertAnime(ctx context.Context, records []Record) (int64, error)
	// ReplaceAnime atomically swaps the catalog for records.
	ReplaceAnime(ctx context.Context, records []Record) (int64, error)
}

// LoadOptions controls a bulk load.
type LoadOptions struct {
	// Replace swaps the existing catalog for the dump. Otherwise a non-empty
	// catalog is left untouched.
	Replace bool
	// Validate checks the dump against the offline-database schema.
	Validate bool
}

// LoadResult describes a bulk load.
type LoadResult struct {
	Inserted int64         `json:"inserted"`
	Skipped  bool          `json:"skipped"` // catalog already populated
	Duration time.Duration `json:"duration_ns"`
}

// Load reads an offline-database dump into store. When the catalog changes and
// loader is non-nil its cached snapshot is dropped.
func Load(ctx context.Context, store RecordStore, loader *Loader, r io.Reader, opts LoadOptions) (*LoadResult, error) {
	start := time.Now()
	log := logging.WithComponent("catalog")

	if !opts.Replace {
		n, err := store.CountAnime(ctx)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			log.Info().Int("existing", n).Msg("catalog already loaded, skipping")
			return &LoadResult{Skipped: true, Duration: time.Since(start)}, nil
		}
	}

	doc, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog dump: %w", err)
	}
	if opts.Validate {
		if err := schemas.ValidateOfflineDatabase(doc); err != nil {
			return nil, err
		}
	}
	dump, err := ParseOfflineDatabase(bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}
	records := dump.Records()

	insert := store.InsertAnime
	if opts.Replace {
		insert = store.ReplaceAnime
	}
	n, err := insert(ctx, records)
	if err != nil {
		return nil, err
	}
	if loader != nil {
		loader.Invalidate()
	}

	metrics.CatalogRecordsImported.Add(float64(n))
	res := &LoadResult{Inserted: n, Duration: time.Since(start)}
	log.Info().
		Int64("inserted", n).
		Int("entries", len(dump.Data)).
		Dur("duration", res.Duration).
		Msg("catalog loaded")
	return res, nil
}
