package watchlist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/animelist/internal/db"
)

func TestFromMAL(t *testing.T) {
	tests := map[string]Status{
		"Completed":     Watched,
		"Plan to Watch": Planning,
		"Dropped":       Dropped,
		"Watching":      Watching,
		"On-Hold":       Watching,
		"":              Watching,
	}
	for in, want := range tests {
		assert.Equal(t, want, FromMAL(in), in)
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("PLANNING")
	require.NoError(t, err)
	assert.Equal(t, Planning, st)

	_, err = ParseStatus("planning")
	assert.Error(t, err)
}

const sampleExport = `<?xml version="1.0" encoding="UTF-8" ?>
<myanimelist>
	<myinfo><user_name>someone</user_name></myinfo>
	<anime>
		<series_title><![CDATA[Cowboy Bebop]]></series_title>
		<my_status>Completed</my_status>
		<my_score>9</my_score>
	</anime>
	<anime>
		<series_title>Naruto</series_title>
		<my_status>Plan to Watch</my_status>
		<my_score>0</my_score>
	</anime>
	<anime>
		<series_title>Not In Catalog</series_title>
		<my_status>Dropped</my_status>
		<my_score>3</my_score>
	</anime>
</myanimelist>`

func TestParseMAL(t *testing.T) {
	entries, err := ParseMAL(strings.NewReader(sampleExport))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Cowboy Bebop", entries[0].Title)
	assert.Equal(t, 9, *entries[0].Rating())
	assert.Nil(t, entries[1].Rating())

	_, err = ParseMAL(strings.NewReader(`<myanimelist></myanimelist>`))
	assert.ErrorIs(t, err, ErrEmptyExport)

	_, err = ParseMAL(strings.NewReader(`<myanimelist><anime>`))
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

type fakeStore struct {
	anime   map[string]*db.Anime
	entries map[int64]*db.WatchlistEntry
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		anime: map[string]*db.Anime{
			"Cowboy Bebop": {ID: 1, Title: "Cowboy Bebop"},
			"Naruto":       {ID: 2, Title: "Naruto"},
		},
		entries: map[int64]*db.WatchlistEntry{},
	}
}

func (f *fakeStore) GetOrCreateWatchlist(_ context.Context, userID int64) (*db.Watchlist, error) {
	return &db.Watchlist{ID: 100 + userID, UserID: userID}, f.err
}

func (f *fakeStore) GetAnimeByTitle(_ context.Context, title string) (*db.Anime, error) {
	return f.anime[title], nil
}

func (f *fakeStore) GetWatchlistEntry(_ context.Context, _, animeID int64) (*db.WatchlistEntry, error) {
	return f.entries[animeID], nil
}

func (f *fakeStore) CreateWatchlistEntry(_ context.Context, watchlistID, animeID int64, status string, rating *int) error {
	if _, ok := f.entries[animeID]; ok {
		return db.ErrDuplicate
	}
	f.entries[animeID] = &db.WatchlistEntry{WatchlistID: watchlistID, AnimeID: animeID, Status: status, Rating: rating}
	return nil
}

func (f *fakeStore) UpdateEntryRating(_ context.Context, _, animeID int64, rating *int) (bool, error) {
	e, ok := f.entries[animeID]
	if !ok {
		return false, nil
	}
	e.Rating = rating
	return true, nil
}

func TestImporter_Import(t *testing.T) {
	store := newFakeStore()
	four := 4
	store.entries[2] = &db.WatchlistEntry{AnimeID: 2, Status: string(Watching), Rating: &four}

	res, err := NewImporter(store).Import(context.Background(), 1, strings.NewReader(sampleExport))
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Imported: 1, Updated: 1, Skipped: 1}, res)

	bebop := store.entries[1]
	require.NotNil(t, bebop)
	assert.Equal(t, string(Watched), bebop.Status)
	assert.Equal(t, 9, *bebop.Rating)

	// Existing entry keeps its status; the export's zero score clears the rating.
	naruto := store.entries[2]
	assert.Equal(t, string(Watching), naruto.Status)
	assert.Nil(t, naruto.Rating)
}

func TestImporter_PropagatesErrors(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("db down")

	_, err := NewImporter(store).Import(context.Background(), 1, strings.NewReader(sampleExport))
	assert.EqualError(t, err, "db down")

	_, err = NewImporter(newFakeStore()).Import(context.Background(), 1, strings.NewReader(`<myanimelist/>`))
	assert.ErrorIs(t, err, ErrEmptyExport)
}

func TestComputeStats(t *testing.T) {
	ep := func(n int) *int { return &n }
	stats := ComputeStats([]db.Anime{
		{EpisodeCount: ep(12), Tags: []string{"action", "mecha"}},
		{EpisodeCount: ep(24), Tags: []string{"romance", "action"}},
		{Tags: []string{"action", "romance"}},
	})

	assert.Equal(t, 3, stats.TotalAnime)
	assert.InDelta(t, 12.0, stats.AverageLength, 1e-9)
	assert.Equal(t, []TagCount{
		{Tag: "action", Count: 3},
		{Tag: "romance", Count: 2},
		{Tag: "mecha", Count: 1},
	}, stats.MostCommonGenres)

	empty := ComputeStats(nil)
	assert.Zero(t, empty.TotalAnime)
	assert.Zero(t, empty.AverageLength)
	assert.Empty(t, empty.MostCommonGenres)
}
