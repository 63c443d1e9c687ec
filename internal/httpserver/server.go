// Package httpserver exposes the post admission and feed assembly operations
// over HTTP for the presentation layer.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sjohnston82/twitter-t3-clone/internal/config"
	"github.com/sjohnston82/twitter-t3-clone/internal/domain"
	"github.com/sjohnston82/twitter-t3-clone/internal/metrics"
)

// TokenVerifier checks a caller's session token with the identity provider.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// Server is the HTTP server for the micro-post API.
type Server struct {
	cfg        *config.Config
	posts      *domain.PostService
	verifier   TokenVerifier
	hub        *Hub
	throttle   *throttleStore
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP server around the given post service.
func NewServer(cfg *config.Config, posts *domain.PostService, verifier TokenVerifier, hub *Hub, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		posts:    posts,
		verifier: verifier,
		hub:      hub,
		throttle: newThrottleStore(cfg.Throttle.RPS, cfg.Throttle.Burst),
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/feed", s.handleListFeed)
	mux.HandleFunc("GET /api/feed/live", s.handleLiveFeed)
	mux.HandleFunc("GET /api/users/{handle}", s.handleGetProfile)
	mux.HandleFunc("GET /api/users/{handle}/posts", s.handleListAuthorFeed)
	mux.Handle("POST /api/posts", s.requireAuth(http.HandlerFunc(s.handleCreatePost)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, withThrottle(s.throttle, mux)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// StartJanitor sweeps idle throttle buckets until ctx is cancelled.
func (s *Server) StartJanitor(ctx context.Context) {
	s.throttle.startJanitor(ctx, 2*time.Minute)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createPostRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "request body must be JSON with a content field")
		return
	}

	post, err := s.posts.CreatePost(r.Context(), userID(r), req.Content)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	metrics.PostsCreated.Inc()
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleListFeed(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	items, err := s.posts.ListFeed(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list feed", "limit", limit, "error", err)
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	handle := r.PathValue("handle")

	author, err := s.posts.GetProfile(r.Context(), handle)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, author)
}

func (s *Server) handleListAuthorFeed(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	handle := r.PathValue("handle")

	author, err := s.posts.GetProfile(r.Context(), handle)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	items, err := s.posts.ListFeedForAuthor(r.Context(), author.ID, limit)
	if err != nil {
		s.logger.Error("failed to list author feed", "handle", handle, "limit", limit, "error", err)
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses and
// the user-facing copy the clients display verbatim.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var (
		verr *domain.ValidationError
		rerr *domain.RateLimitError
		ierr *domain.IntegrityError
	)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		metrics.PostsRejected.WithLabelValues("unauthorized").Inc()
		writeError(w, http.StatusUnauthorized, "Unauthorized", "sign in to continue")

	case errors.As(err, &verr):
		metrics.PostsRejected.WithLabelValues(string(verr.Reason)).Inc()
		writeError(w, http.StatusBadRequest, "ValidationError", "You can only post emojis!")

	case errors.As(err, &rerr):
		metrics.PostsRejected.WithLabelValues("rate_limit").Inc()
		if rerr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(rerr.RetryAfter.Seconds()+1)))
		}
		writeError(w, http.StatusTooManyRequests, "TooManyRequests",
			fmt.Sprintf("You are only allowed %d posts per minute", rerr.Limit))

	case errors.As(err, &ierr):
		writeError(w, http.StatusInternalServerError, "IntegrityError", "Author does not exist.")

	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "NotFound", "User not found.")

	case errors.Is(err, domain.ErrUpstreamUnavailable):
		writeError(w, http.StatusBadGateway, "UpstreamUnavailable", "try again shortly")

	default:
		writeError(w, http.StatusInternalServerError, "InternalError", "something went wrong")
	}
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := domain.DefaultFeedLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > domain.DefaultFeedLimit {
			writeError(w, http.StatusBadRequest, "InvalidRequest",
				fmt.Sprintf("limit must be between 1 and %d", domain.DefaultFeedLimit))
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}
