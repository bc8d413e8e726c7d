package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/jonathan/animelist/internal/catalog"
	"github.com/jonathan/animelist/internal/db"
	"github.com/jonathan/animelist/internal/fetch"
	"github.com/jonathan/animelist/internal/logging"
)

// openDB connects to the configured database, migrating it when enabled.
func openDB(ctx context.Context) (*db.DB, error) {
	database, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return database, nil
}

func newCatalogLoader(database *db.DB) *catalog.Loader {
	return catalog.NewLoader(database, cfg.Catalog.CacheTTL)
}

// openDump opens a local dump, or downloads it when only a URL is given.
func openDump(ctx context.Context, path, dumpURL string) (io.ReadCloser, error) {
	switch {
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open catalog dump: %w", err)
		}
		return f, nil
	case dumpURL != "":
		logging.Info().Str("url", dumpURL).Msg("downloading catalog dump")
		return fetch.Open(ctx, dumpURL, nil)
	}
	return nil, fmt.Errorf("no catalog dump configured: set catalog.data_path or catalog.data_url")
}

// loadCatalog bulk loads an offline-database dump.
func loadCatalog(ctx context.Context, database *db.DB, loader *catalog.Loader, path, dumpURL string, opts catalog.LoadOptions) (*catalog.LoadResult, error) {
	r, err := openDump(ctx, path, dumpURL)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return catalog.Load(ctx, database, loader, r, opts)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
