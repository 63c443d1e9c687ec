package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sjohnston82/twitter-t3-clone/internal/domain"
	"github.com/sjohnston82/twitter-t3-clone/internal/metrics"
)

type contextKey string

const userIDKey contextKey = "userID"

// userID returns the authenticated caller's id from the request context, or
// the empty string on unauthenticated paths.
func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// requireAuth verifies the caller's bearer token with the identity provider
// and stores the resolved user id in the request context. Requests without a
// valid token never reach the wrapped handler.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "sign in to continue")
			return
		}

		id, err := s.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "sign in to continue")
				return
			}
			s.logger.Error("token verification failed", "error", err)
			writeError(w, http.StatusBadGateway, "UpstreamUnavailable", "try again shortly")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		elapsed := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(wrapped.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method).Observe(elapsed.Seconds())

		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", elapsed,
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// throttleStore hands out one token bucket per client IP, with idle entries
// swept by a janitor.
type throttleStore struct {
	mu      sync.Mutex
	entries map[string]*throttleEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
}

type throttleEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newThrottleStore(rps float64, burst int) *throttleStore {
	return &throttleStore{
		entries: make(map[string]*throttleEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
	}
}

func (s *throttleStore) get(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &throttleEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *throttleStore) cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

func (s *throttleStore) startJanitor(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.cleanup()
			}
		}
	}()
}

// withThrottle rejects clients that exceed the per-IP request budget. Health
// and metrics probes are exempt.
func withThrottle(store *throttleStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		if !store.get(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "TooManyRequests", "slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr)); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
