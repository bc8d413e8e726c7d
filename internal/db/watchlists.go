package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/animelist/internal/recommend"
)

// GetWatchlistByUser returns the user's watchlist, or nil if none exists.
func (db *DB) GetWatchlistByUser(ctx context.Context, userID int64) (*Watchlist, error) {
	var w Watchlist
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, created_at FROM watchlists WHERE user_id = $1`, userID,
	).Scan(&w.ID, &w.UserID, &w.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}
	return &w, nil
}

// GetOrCreateWatchlist returns the user's watchlist, creating it when missing.
func (db *DB) GetOrCreateWatchlist(ctx context.Context, userID int64) (*Watchlist, error) {
	var w Watchlist
	err := db.pool.QueryRow(ctx,
		`INSERT INTO watchlists (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO UPDATE SET user_id = watchlists.user_id
		 RETURNING id, user_id, created_at`,
		userID,
	).Scan(&w.ID, &w.UserID, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create watchlist: %w", err)
	}
	return &w, nil
}

// ListWatchlistAnime returns every anime on a watchlist with its entry
// status and rating, ordered by anime id.
func (db *DB) ListWatchlistAnime(ctx context.Context, watchlistID int64) ([]WatchlistAnime, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT a.id, a.title, a.image_url, a.rating, a.status, a.year, a.season, a.episode_count,
		        a.tags, a.sources, a.extra_titles, a.recommendation_string,
		        e.status, e.rating
		 FROM watchlist_entries e JOIN anime a ON a.id = e.anime_id
		 WHERE e.watchlist_id = $1
		 ORDER BY a.id`,
		watchlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	defer rows.Close()

	var out []WatchlistAnime
	for rows.Next() {
		var w WatchlistAnime
		a := &w.Anime
		if err := rows.Scan(&a.ID, &a.Title, &a.ImageURL, &a.Rating, &a.Status, &a.Year, &a.Season,
			&a.EpisodeCount, &a.Tags, &a.Sources, &a.ExtraTitles, &a.RecommendationString,
			&w.WatchlistStatus, &w.UserRating); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read watchlist: %w", err)
	}
	return out, nil
}

// GetWatchlistEntry returns one entry, or nil if the anime is not on the list.
func (db *DB) GetWatchlistEntry(ctx context.Context, watchlistID, animeID int64) (*WatchlistEntry, error) {
	var e WatchlistEntry
	err := db.pool.QueryRow(ctx,
		`SELECT watchlist_id, anime_id, status, rating, updated_at
		 FROM watchlist_entries WHERE watchlist_id = $1 AND anime_id = $2`,
		watchlistID, animeID,
	).Scan(&e.WatchlistID, &e.AnimeID, &e.Status, &e.Rating, &e.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get watchlist entry: %w", err)
	}
	return &e, nil
}

// GetUserEntry returns the user's entry for an anime, or nil.
func (db *DB) GetUserEntry(ctx context.Context, userID, animeID int64) (*WatchlistEntry, error) {
	var e WatchlistEntry
	err := db.pool.QueryRow(ctx,
		`SELECT e.watchlist_id, e.anime_id, e.status, e.rating, e.updated_at
		 FROM watchlist_entries e JOIN watchlists w ON w.id = e.watchlist_id
		 WHERE w.user_id = $1 AND e.anime_id = $2`,
		userID, animeID,
	).Scan(&e.WatchlistID, &e.AnimeID, &e.Status, &e.Rating, &e.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user entry: %w", err)
	}
	return &e, nil
}

// SetEntryStatus sets the status of each anime on the watchlist, adding
// missing entries. It runs in one transaction.
func (db *DB) SetEntryStatus(ctx context.Context, watchlistID int64, animeIDs []int64, status string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	for _, id := range animeIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO watchlist_entries (watchlist_id, anime_id, status)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (watchlist_id, anime_id) DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()`,
			watchlistID, id, status)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: %d", ErrUnknownAnime, id)
			}
			return fmt.Errorf("failed to set status for anime %d: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit watchlist update: %w", err)
	}
	return nil
}

// CreateWatchlistEntry adds an anime to the watchlist.
func (db *DB) CreateWatchlistEntry(ctx context.Context, watchlistID, animeID int64, status string, rating *int) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO watchlist_entries (watchlist_id, anime_id, status, rating)
		 VALUES ($1, $2, $3, $4)`,
		watchlistID, animeID, status, rating)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create watchlist entry: %w", err)
	}
	return nil
}

// UpdateEntryRating sets the rating of an existing entry. It reports false
// when the entry does not exist.
func (db *DB) UpdateEntryRating(ctx context.Context, watchlistID, animeID int64, rating *int) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE watchlist_entries SET rating = $3, updated_at = NOW()
		 WHERE watchlist_id = $1 AND anime_id = $2`,
		watchlistID, animeID, rating)
	if err != nil {
		return false, fmt.Errorf("failed to update rating: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteWatchlistEntry removes an anime from the watchlist. It reports false
// when there was nothing to delete.
func (db *DB) DeleteWatchlistEntry(ctx context.Context, watchlistID, animeID int64) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM watchlist_entries WHERE watchlist_id = $1 AND anime_id = $2`,
		watchlistID, animeID)
	if err != nil {
		return false, fmt.Errorf("failed to delete watchlist entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListRatingHistory returns every entry on the user's watchlist with its
// rating, ordered by anime id.
func (db *DB) ListRatingHistory(ctx context.Context, userID int64) ([]recommend.RatingEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT e.anime_id, e.rating
		 FROM watchlist_entries e JOIN watchlists w ON w.id = e.watchlist_id
		 WHERE w.user_id = $1
		 ORDER BY e.anime_id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rating history: %w", err)
	}
	defer rows.Close()

	var out []recommend.RatingEntry
	for rows.Next() {
		var r recommend.RatingEntry
		if err := rows.Scan(&r.AnimeID, &r.Rating); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListWatchedAnimeIDs returns the ids the user marked WATCHED, ordered by id.
func (db *DB) ListWatchedAnimeIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT e.anime_id
		 FROM watchlist_entries e JOIN watchlists w ON w.id = e.watchlist_id
		 WHERE w.user_id = $1 AND e.status = 'WATCHED'
		 ORDER BY e.anime_id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watched anime: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan watched anime: %w", err)
	}
	return ids, nil
}
