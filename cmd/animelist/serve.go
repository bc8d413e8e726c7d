package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/animelist/internal/catalog"
	"github.com/jonathan/animelist/internal/db"
	"github.com/jonathan/animelist/internal/logging"
	"github.com/jonathan/animelist/internal/recommend"
	"github.com/jonathan/animelist/internal/search"
	"github.com/jonathan/animelist/internal/server"
	"github.com/jonathan/animelist/internal/watchlist"
)

const tokenPurgeInterval = time.Hour

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start the HTTP server. On startup the catalog is loaded if configured and the admin account is created if missing.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	loader := newCatalogLoader(database)
	if cfg.Catalog.AutoLoad && (cfg.Catalog.DataPath != "" || cfg.Catalog.DataURL != "") {
		res, err := loadCatalog(ctx, database, loader, cfg.Catalog.DataPath, cfg.Catalog.DataURL, catalog.LoadOptions{Validate: cfg.Catalog.ValidateSchema})
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		if !res.Skipped {
			logging.Info().Int64("inserted", res.Inserted).Msg("catalog loaded")
		}
	}

	srv, err := server.New(cfg, server.Deps{
		Store:       database,
		Recommender: recommend.NewEngine(loader, database, cfg.Recommend.MinRating),
		Titles:      search.NewService(loader),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := bootstrapAdmin(ctx, srv.UserService(), database); err != nil {
		return err
	}

	go purgeRevokedTokens(ctx, database)

	return srv.Run(ctx)
}

// bootstrapAdmin creates the admin account. In production it is only created
// when a password is configured. Outside production the seed anime is added
// to a fresh admin watchlist.
func bootstrapAdmin(ctx context.Context, users *server.UserService, database *db.DB) error {
	b := cfg.Bootstrap
	if b.AdminUsername == "" {
		return nil
	}
	password := b.AdminPassword
	if password == "" {
		if cfg.App.IsProduction() {
			logging.Warn().Msg("bootstrap.admin_password is not set, skipping admin account")
			return nil
		}
		password = "admin"
	}

	admin, created, err := users.EnsureUser(ctx, b.AdminUsername, b.AdminEmail, password)
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin user: %w", err)
	}
	if !created {
		return nil
	}
	logging.Info().Str("username", admin.Username).Msg("admin user created")

	if cfg.App.IsProduction() || b.SeedAnimeID == 0 {
		return nil
	}
	w, err := database.GetOrCreateWatchlist(ctx, admin.ID)
	if err != nil {
		return fmt.Errorf("failed to create admin watchlist: %w", err)
	}
	err = database.SetEntryStatus(ctx, w.ID, []int64{b.SeedAnimeID}, string(watchlist.Watching))
	switch {
	case errors.Is(err, db.ErrUnknownAnime):
		logging.Warn().Int64("anime_id", b.SeedAnimeID).Msg("seed anime not in catalog")
	case err != nil:
		return fmt.Errorf("failed to seed admin watchlist: %w", err)
	}
	return nil
}

func purgeRevokedTokens(ctx context.Context, database *db.DB) {
	log := logging.WithComponent("tokens")
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		n, err := database.PurgeExpiredTokens(ctx)
		if err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("failed to purge revoked tokens")
		} else if n > 0 {
			log.Debug().Int64("purged", n).Msg("purged expired revoked tokens")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
