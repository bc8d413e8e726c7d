package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jonathan/animelist/internal/db"
	"github.com/jonathan/animelist/internal/recommend"
	"github.com/jonathan/animelist/internal/server/middleware"
	"github.com/jonathan/animelist/internal/types"
	"github.com/jonathan/animelist/internal/watchlist"
)

func intParam(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ErrValidation{Field: name, Message: "must be an integer"}
	}
	return n, nil
}

func requiredID(q url.Values, name string) (int64, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return 0, &ErrValidation{Field: name, Message: "required"}
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &ErrValidation{Field: name, Message: "must be an integer"}
	}
	return id, nil
}

func boolParam(q url.Values, name string) (bool, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &ErrValidation{Field: name, Message: "must be a boolean"}
	}
	return b, nil
}

// idsParam reads a repeatable id parameter. Each value may also be a comma
// separated list.
func idsParam(q url.Values, name string) ([]int64, error) {
	var ids []int64
	for _, v := range q[name] {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, &ErrValidation{Field: name, Message: "must be integers"}
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Server) clampLimit(limit int) int {
	return clamp(limit, s.cfg.Search.MaxLimit)
}

func clamp(limit, ceiling int) int {
	if ceiling > 0 && limit > ceiling {
		return ceiling
	}
	return limit
}

// handleSearchTitles runs fuzzy title search. With total_count=true the page
// is wrapped with the number of matches.
func (s *Server) handleSearchTitles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("query") {
		s.fail(w, r, &ErrValidation{Field: "query", Message: "required"})
		return
	}
	limit, err := intParam(q, "limit", s.cfg.Search.DefaultLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := intParam(q, "offset", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	withTotal, err := boolParam(q, "total_count")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	page, err := s.titles.Titles(r.Context(), q.Get("query"), s.clampLimit(limit), offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ids := make([]int64, 0, len(page.Hits))
	scores := make(map[int64]float64, len(page.Hits))
	for _, h := range page.Hits {
		ids = append(ids, h.Item.ID)
		scores[h.Item.ID] = h.Score
	}
	rows, err := s.store.ListAnimeByIDs(r.Context(), ids)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	animes := types.WithScores(rows, scores)

	if withTotal {
		s.jsonResponse(w, http.StatusOK, types.SearchResponse{Animes: animes, TotalCount: page.Total})
		return
	}
	s.jsonResponse(w, http.StatusOK, animes)
}

// handleSearchTags lists released anime whose tags contain the query, best
// rated first.
func (s *Server) handleSearchTags(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("query") {
		s.fail(w, r, &ErrValidation{Field: "query", Message: "required"})
		return
	}
	limit, err := intParam(q, "limit", s.cfg.Search.TagDefaultLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := intParam(q, "offset", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if limit < 0 || offset < 0 {
		s.fail(w, r, &ErrValidation{Message: "limit and offset must not be negative"})
		return
	}

	res, err := s.store.SearchAnimeByTag(r.Context(), q.Get("query"), s.clampLimit(limit), offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	animes := res.Anime
	if animes == nil {
		animes = []db.Anime{}
	}
	s.jsonResponse(w, http.StatusOK, types.TagSearchResponse{TotalCount: res.TotalCount, Animes: animes})
}

// handleRecommendations recommends anime similar to the given ids, or to the
// caller's watched anime when no ids are given.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids, err := idsParam(q, "ids")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := intParam(q, "limit", s.cfg.Recommend.DefaultLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	fromWatchlist, err := boolParam(q, "from_watchlist")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	userID, _ := middleware.GetUserID(r)

	res, err := s.recommender.Recommend(r.Context(), recommend.Request{
		UserID:        userID,
		AnimeIDs:      ids,
		Limit:         clamp(limit, s.cfg.Recommend.MaxLimit),
		FromWatchlist: fromWatchlist,
		MinRating:     s.cfg.Recommend.MinRating,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	recIDs := make([]int64, 0, len(res.Items))
	scores := make(map[int64]float64, len(res.Items))
	for _, it := range res.Items {
		recIDs = append(recIDs, it.Item.ID)
		scores[it.Item.ID] = it.Score
	}
	rows, err := s.store.ListAnimeByIDs(r.Context(), recIDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.RecommendationResponse{
		Animes:     types.WithScores(rows, scores),
		Unresolved: res.Unresolved,
	})
}

// handleGetWatchlist lists the caller's watchlist, creating it if needed.
func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	wl, err := s.store.GetOrCreateWatchlist(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entries, err := s.store.ListWatchlistAnime(r.Context(), wl.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []db.WatchlistAnime{}
	}
	s.jsonResponse(w, http.StatusOK, types.WatchlistResponse{Anime: entries, UserID: userID, WatchlistID: wl.ID})
}

// handleUpdateWatchlist sets the status of one or more anime, adding them to
// the watchlist when missing.
func (s *Server) handleUpdateWatchlist(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateWatchlistRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	userID, _ := middleware.GetUserID(r)
	wl, err := s.store.GetOrCreateWatchlist(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.SetEntryStatus(r.Context(), wl.ID, req.Anime, req.Status); err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.MessageResponse{Message: "Watchlist updated"})
}

// handleDeleteWatchlistEntry removes an anime from the caller's watchlist.
func (s *Server) handleDeleteWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	animeID, err := requiredID(r.URL.Query(), "anime_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	userID, _ := middleware.GetUserID(r)
	wl, err := s.store.GetWatchlistByUser(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	deleted := false
	if wl != nil {
		if deleted, err = s.store.DeleteWatchlistEntry(r.Context(), wl.ID, animeID); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if !deleted {
		s.fail(w, r, &ErrNotFound{Resource: "watchlist entry"})
		return
	}
	s.jsonResponse(w, http.StatusOK, types.MessageResponse{Message: "Watchlist entry deleted"})
}

// handleStats summarizes the caller's watchlist.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	wl, err := s.store.GetWatchlistByUser(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wl == nil {
		s.fail(w, r, &ErrNotFound{Resource: "watchlist"})
		return
	}
	entries, err := s.store.ListWatchlistAnime(r.Context(), wl.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	anime := make([]db.Anime, 0, len(entries))
	for _, e := range entries {
		anime = append(anime, e.Anime)
	}
	s.jsonResponse(w, http.StatusOK, watchlist.ComputeStats(anime))
}

// handleRate sets the caller's rating for an anime already on their
// watchlist.
func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	animeID, err := requiredID(q, "anime_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !q.Has("rating") {
		s.fail(w, r, &ErrValidation{Field: "rating", Message: "required"})
		return
	}
	rating, err := intParam(q, "rating", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rating < 1 || rating > 10 {
		s.fail(w, r, &ErrValidation{Field: "rating", Message: "must be between 1 and 10"})
		return
	}

	ctx := r.Context()
	anime, err := s.store.GetAnime(ctx, animeID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if anime == nil {
		s.fail(w, r, &ErrNotFound{Resource: "anime"})
		return
	}
	userID, _ := middleware.GetUserID(r)
	wl, err := s.store.GetWatchlistByUser(ctx, userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wl == nil {
		s.fail(w, r, &ErrNotFound{Resource: "watchlist"})
		return
	}
	updated, err := s.store.UpdateEntryRating(ctx, wl.ID, animeID, &rating)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !updated {
		s.fail(w, r, &ErrNotFound{Resource: "watchlist entry"})
		return
	}
	s.jsonResponse(w, http.StatusOK, types.MessageResponse{Message: "Anime rated"})
}

// handleGetAnime returns one anime. Authenticated callers also get their
// watchlist status and rating for it.
func (s *Server) handleGetAnime(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.fail(w, r, &ErrValidation{Field: "id", Message: "must be an integer"})
		return
	}
	anime, err := s.store.GetAnime(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if anime == nil {
		s.fail(w, r, &ErrNotFound{Resource: "anime"})
		return
	}

	detail := types.AnimeDetail{Anime: *anime}
	if userID, err := middleware.GetUserID(r); err == nil {
		entry, err := s.store.GetUserEntry(r.Context(), userID, id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if entry != nil {
			detail.WatchlistStatus = &entry.Status
			detail.UserRating = entry.Rating
		}
	}
	s.jsonResponse(w, http.StatusOK, detail)
}

// handleImportMAL merges an uploaded MyAnimeList XML export into the
// caller's watchlist.
func (s *Server) handleImportMAL(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.errorResponse(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.fail(w, r, &ErrValidation{Field: "file", Message: "multipart file is required"})
		return
	}
	defer file.Close()

	userID, _ := middleware.GetUserID(r)
	res, err := s.importer.Import(r.Context(), userID, file)
	if err != nil {
		var xmlErr *watchlist.ParseError
		if errors.As(err, &xmlErr) {
			s.fail(w, r, &ErrValidation{Field: "file", Message: err.Error()})
			return
		}
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"message":  "Watchlist imported",
		"imported": res.Imported,
		"updated":  res.Updated,
		"skipped":  res.Skipped,
	})
}
