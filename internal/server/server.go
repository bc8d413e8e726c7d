// Package server provides the HTTP REST API for anime search, watchlists and
// recommendations.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonathan/animelist/internal/config"
	"github.com/jonathan/animelist/internal/db"
	"github.com/jonathan/animelist/internal/logging"
	"github.com/jonathan/animelist/internal/metrics"
	"github.com/jonathan/animelist/internal/recommend"
	"github.com/jonathan/animelist/internal/search"
	"github.com/jonathan/animelist/internal/server/middleware"
	"github.com/jonathan/animelist/internal/server/ratelimit"
	"github.com/jonathan/animelist/internal/watchlist"
)

// Store is the persistence used by the HTTP handlers. *db.DB implements it.
type Store interface {
	UserStore
	watchlist.ImportStore

	Ping(ctx context.Context) error
	FindOrCreateUser(ctx context.Context, username, email string) (*db.User, bool, error)

	SetAPIKey(ctx context.Context, userID int64, key string) (*db.APIKey, error)
	GetAPIKey(ctx context.Context, userID int64) (*db.APIKey, error)
	GetUserByAPIKey(ctx context.Context, key string) (*db.User, error)
	DeleteAPIKey(ctx context.Context, userID int64) (bool, error)

	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)

	GetAnime(ctx context.Context, id int64) (*db.Anime, error)
	ListAnimeByIDs(ctx context.Context, ids []int64) ([]db.Anime, error)
	SearchAnimeByTag(ctx context.Context, query string, limit, offset int) (*db.TagSearch, error)

	GetWatchlistByUser(ctx context.Context, userID int64) (*db.Watchlist, error)
	ListWatchlistAnime(ctx context.Context, watchlistID int64) ([]db.WatchlistAnime, error)
	GetUserEntry(ctx context.Context, userID, animeID int64) (*db.WatchlistEntry, error)
	SetEntryStatus(ctx context.Context, watchlistID int64, animeIDs []int64, status string) error
	DeleteWatchlistEntry(ctx context.Context, watchlistID, animeID int64) (bool, error)
}

// Recommender produces content-based recommendations.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (*recommend.Result, error)
}

// TitleSearcher runs fuzzy title search.
type TitleSearcher interface {
	Titles(ctx context.Context, query string, limit, offset int) (search.Page, error)
}

// Deps are the collaborators of the server.
type Deps struct {
	Store       Store
	Recommender Recommender
	Titles      TitleSearcher
}

// Server represents the HTTP server
type Server struct {
	cfg         *config.Config
	httpServer  *http.Server
	store       Store
	recommender Recommender
	titles      TitleSearcher
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	userService *UserService
	importer    *watchlist.Importer
	validator   *validator.Validate
	router      chi.Router
}

// New creates a new server instance
func New(cfg *config.Config, deps Deps) (*Server, error) {
	passwordConfig, err := cfg.Auth.Passwords()
	if err != nil {
		return nil, fmt.Errorf("failed to create password config: %w", err)
	}
	jwtConfig, err := cfg.Auth.JWT()
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT config: %w", err)
	}

	s := &Server{
		cfg:         cfg,
		store:       deps.Store,
		recommender: deps.Recommender,
		titles:      deps.Titles,
		rateLimiter: ratelimit.NewLimiter(ratelimit.FromConfig(cfg.RateLimit)),
		jwtService:  NewJWTService(jwtConfig),
		userService: NewUserService(deps.Store, passwordConfig),
		importer:    watchlist.NewImporter(deps.Store),
		validator:   validator.New(),
	}
	s.router = s.routes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// UserService exposes account operations for startup bootstrapping.
func (s *Server) UserService() *UserService {
	return s.userService
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(s.withRequestID)
	r.Use(s.withLogging)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.withRateLimit)
	r.Use(middleware.Authenticate(s.authenticator()))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Post("/header-login", s.handleHeaderLogin)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/me", s.handleMe)
			r.Put("/password", s.handleUpdatePassword)
			r.Put("/api-key", s.handleCreateAPIKey)
			r.Get("/api-key", s.handleGetAPIKey)
			r.Delete("/api-key", s.handleDeleteAPIKey)
		})
	})

	r.Route("/anime", func(r chi.Router) {
		r.Get("/search", s.handleSearchTitles)
		r.Get("/search/tags", s.handleSearchTags)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/recommendations", s.handleRecommendations)
			r.Get("/watchlists", s.handleGetWatchlist)
			r.Put("/watchlists", s.handleUpdateWatchlist)
			r.Delete("/watchlists", s.handleDeleteWatchlistEntry)
			r.Get("/stats", s.handleStats)
			r.Get("/rate", s.handleRate)
		})
		r.Get("/{id}", s.handleGetAnime)
	})

	r.With(middleware.RequireAuth).Post("/integrations/mal", s.handleImportMAL)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.errorResponse(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	log := logging.WithComponent("server")
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.rateLimiter.Stop()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// withRequestID propagates or assigns X-Request-ID and attaches it to the
// logging context.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = logging.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

// withLogging logs each request and records its duration by route pattern.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequest(r.Method, route, status, duration)

		logging.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", duration).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractClientID returns the client IP. RemoteAddr has already been
// rewritten by RealIP when a proxy header is present.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	logging.Ctx(r.Context()).Warn().
		Str("client", s.extractClientID(r)).
		Str("path", r.URL.Path).
		Int("limit", info.Limit).
		Msg("rate limit exceeded")

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// handleHealth reports liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Err(err).Msg("failed to encode JSON response")
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// fail maps err to a status and writes it. Server errors are logged and
// their details hidden from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		s.errorResponse(w, status, "internal server error")
		return
	}
	s.errorResponse(w, status, err.Error())
}
