package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/animelist/internal/catalog"
)

const animeColumns = `id, title, image_url, rating, status, year, season, episode_count,
	tags, sources, extra_titles, recommendation_string`

func scanAnime(row pgx.Row) (*Anime, error) {
	var a Anime
	err := row.Scan(&a.ID, &a.Title, &a.ImageURL, &a.Rating, &a.Status, &a.Year, &a.Season,
		&a.EpisodeCount, &a.Tags, &a.Sources, &a.ExtraTitles, &a.RecommendationString)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAnime(rows pgx.Rows) ([]Anime, error) {
	defer rows.Close()
	var out []Anime
	for rows.Next() {
		a, err := scanAnime(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan anime: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read anime rows: %w", err)
	}
	return out, nil
}

var animeCopyColumns = []string{"title", "image_url", "rating", "status", "year", "season",
	"episode_count", "tags", "sources", "extra_titles", "recommendation_string"}

// copier is satisfied by both the pool and a transaction.
type copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

func copyAnime(ctx context.Context, c copier, records []catalog.Record) (int64, error) {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{
			r.Title, r.ImageURL, r.Rating, r.Status, r.Year, r.Season, r.EpisodeCount,
			nonNil(r.Tags), nonNil(r.Sources), nonNil(r.ExtraTitles), r.Descriptor,
		}
	}
	n, err := c.CopyFrom(ctx, pgx.Identifier{"anime"}, animeCopyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to copy anime: %w", err)
	}
	return n, nil
}

// InsertAnime bulk loads catalog records with COPY and returns the number of
// rows written.
func (db *DB) InsertAnime(ctx context.Context, records []catalog.Record) (int64, error) {
	return copyAnime(ctx, db.pool, records)
}

// ReplaceAnime swaps the whole catalog for records in one transaction.
// Watchlist entries referencing the old catalog are removed too. On error the
// old catalog is left as it was.
func (db *DB) ReplaceAnime(ctx context.Context, records []catalog.Record) (int64, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && rErr != pgx.ErrTxClosed {
			_ = rErr
		}
	}()

	if _, err := tx.Exec(ctx, `TRUNCATE anime RESTART IDENTITY CASCADE`); err != nil {
		return 0, fmt.Errorf("failed to truncate anime: %w", err)
	}
	n, err := copyAnime(ctx, tx, records)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return n, nil
}

// CountAnime returns the catalog size.
func (db *DB) CountAnime(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM anime`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count anime: %w", err)
	}
	return n, nil
}

// GetAnime retrieves an anime by id
func (db *DB) GetAnime(ctx context.Context, id int64) (*Anime, error) {
	a, err := scanAnime(db.pool.QueryRow(ctx,
		`SELECT `+animeColumns+` FROM anime WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get anime: %w", err)
	}
	return a, nil
}

// GetAnimeByTitle returns the lowest-id anime with exactly this title.
func (db *DB) GetAnimeByTitle(ctx context.Context, title string) (*Anime, error) {
	a, err := scanAnime(db.pool.QueryRow(ctx,
		`SELECT `+animeColumns+` FROM anime WHERE title = $1 ORDER BY id LIMIT 1`, title))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get anime by title: %w", err)
	}
	return a, nil
}

// ListAnimeByIDs returns the anime for ids in the same order. Unknown ids are
// skipped.
func (db *DB) ListAnimeByIDs(ctx context.Context, ids []int64) ([]Anime, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+animeColumns+` FROM anime WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list anime: %w", err)
	}
	found, err := collectAnime(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]Anime, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	out := make([]Anime, 0, len(found))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// ListCatalogItems returns the engine view of every anime ordered by id.
func (db *DB) ListCatalogItems(ctx context.Context) ([]catalog.Item, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, title, extra_titles, recommendation_string, COALESCE(rating, 0)
		 FROM anime ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog items: %w", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		var it catalog.Item
		if err := rows.Scan(&it.ID, &it.Title, &it.ExtraTitles, &it.Descriptor, &it.Rating); err != nil {
			return nil, fmt.Errorf("failed to scan catalog item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read catalog items: %w", err)
	}
	return items, nil
}

// SearchAnimeByTag returns aired anime with a tag containing query, best
// rated first, along with the total match count.
func (db *DB) SearchAnimeByTag(ctx context.Context, query string, limit, offset int) (*TagSearch, error) {
	pattern := "%" + escapeLike(query) + "%"
	const where = `array_to_string(tags, ',') ILIKE $1 AND status <> '` + catalog.Upcoming + `'`

	result := &TagSearch{}
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM anime WHERE `+where, pattern,
	).Scan(&result.TotalCount); err != nil {
		return nil, fmt.Errorf("failed to count tag matches: %w", err)
	}
	if limit <= 0 {
		return result, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+animeColumns+` FROM anime WHERE `+where+`
		 ORDER BY rating DESC NULLS LAST, id
		 OFFSET $2 LIMIT $3`,
		pattern, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search anime by tag: %w", err)
	}
	result.Anime, err = collectAnime(rows)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
