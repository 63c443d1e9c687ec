package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjohnston82/twitter-t3-clone/internal/config"
	"github.com/sjohnston82/twitter-t3-clone/internal/domain"
)

type fakeRepo struct {
	posts []domain.Post
}

func (f *fakeRepo) CreatePost(_ context.Context, post *domain.Post) error {
	f.posts = append(f.posts, *post)
	return nil
}

func (f *fakeRepo) ListRecent(_ context.Context, limit int) ([]domain.Post, error) {
	out := make([]domain.Post, len(f.posts))
	copy(out, f.posts)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) ListRecentByAuthor(ctx context.Context, authorID string, limit int) ([]domain.Post, error) {
	all, err := f.ListRecent(ctx, len(f.posts))
	if err != nil {
		return nil, err
	}
	var out []domain.Post
	for _, p := range all {
		if p.AuthorID == authorID {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeResolver struct {
	users map[string]domain.Author
}

func (f *fakeResolver) ResolveUsers(_ context.Context, ids []string) ([]domain.Author, error) {
	var out []domain.Author
	for _, id := range ids {
		if a, ok := f.users[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeResolver) ResolveUserByHandle(_ context.Context, handle string) (domain.Author, error) {
	for _, a := range f.users {
		if a.Handle == handle {
			return a, nil
		}
	}
	return domain.Author{}, domain.ErrUserNotFound
}

type fakeLimiter struct {
	limit int
	count map[string]int
}

func (f *fakeLimiter) Check(_ context.Context, key string) (domain.Decision, error) {
	f.count[key]++
	return domain.Decision{
		Allowed:    f.count[key] <= f.limit,
		Limit:      f.limit,
		RetryAfter: 30 * time.Second,
	}, nil
}

type fakeVerifier struct {
	tokens map[string]string
}

func (f *fakeVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	if id, ok := f.tokens[token]; ok {
		return id, nil
	}
	return "", domain.ErrUnauthorized
}

type testEnv struct {
	server   *Server
	repo     *fakeRepo
	resolver *fakeResolver
	hub      *Hub
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := &fakeRepo{}
	resolver := &fakeResolver{users: map[string]domain.Author{
		"user-1": {ID: "user-1", Handle: "casey", AvatarURL: "https://img.example/casey.png"},
	}}
	limiter := &fakeLimiter{limit: 5, count: make(map[string]int)}
	verifier := &fakeVerifier{tokens: map[string]string{"good-token": "user-1"}}

	hub := NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	posts := domain.NewPostService(repo, resolver, limiter, hub, logger)

	cfg := &config.Config{
		Port:      0,
		RateLimit: config.RateLimitConfig{MaxPosts: 5, Window: time.Minute},
		Throttle:  config.ThrottleConfig{RPS: 1000, Burst: 1000},
	}
	return &testEnv{
		server:   NewServer(cfg, posts, verifier, hub, logger),
		repo:     repo,
		resolver: resolver,
		hub:      hub,
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	env := newTestServer(t)
	w := doJSON(t, env.server.Handler(), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_CreatePost_RequiresAuth(t *testing.T) {
	env := newTestServer(t)

	w := doJSON(t, env.server.Handler(), http.MethodPost, "/api/posts", "", `{"content":"😀"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, env.server.Handler(), http.MethodPost, "/api/posts", "bad-token", `{"content":"😀"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Empty(t, env.repo.posts)
}

func TestServer_CreatePost(t *testing.T) {
	env := newTestServer(t)

	w := doJSON(t, env.server.Handler(), http.MethodPost, "/api/posts", "good-token", `{"content":"😀😀"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var post domain.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))
	assert.Equal(t, "user-1", post.AuthorID)
	assert.Equal(t, "😀😀", post.Content)
	require.Len(t, env.repo.posts, 1)
}

func TestServer_CreatePost_RejectsNonEmoji(t *testing.T) {
	env := newTestServer(t)

	w := doJSON(t, env.server.Handler(), http.MethodPost, "/api/posts", "good-token", `{"content":"hello"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ValidationError", resp["error"])
	assert.Equal(t, "You can only post emojis!", resp["message"])
	assert.Empty(t, env.repo.posts)
}

func TestServer_CreatePost_RateLimited(t *testing.T) {
	env := newTestServer(t)

	for i := 0; i < 5; i++ {
		w := doJSON(t, env.server.Handler(), http.MethodPost, "/api/posts", "good-token", `{"content":"😀"}`)
		require.Equal(t, http.StatusCreated, w.Code, "post %d", i+1)
	}

	w := doJSON(t, env.server.Handler(), http.MethodPost, "/api/posts", "good-token", `{"content":"😀"}`)

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "You are only allowed 5 posts per minute", resp["message"])
	assert.Len(t, env.repo.posts, 5)
}

func TestServer_ListFeed(t *testing.T) {
	env := newTestServer(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	env.repo.posts = []domain.Post{
		{ID: "p1", AuthorID: "user-1", Content: "😀", CreatedAt: base},
		{ID: "p2", AuthorID: "user-1", Content: "🎉", CreatedAt: base.Add(time.Minute)},
	}

	w := doJSON(t, env.server.Handler(), http.MethodGet, "/api/feed?limit=2", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	var items []domain.FeedItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "p2", items[0].Post.ID)
	assert.Equal(t, "casey", items[0].Author.Handle)
}

func TestServer_ListFeed_InvalidLimit(t *testing.T) {
	env := newTestServer(t)
	for _, q := range []string{"limit=0", "limit=101", "limit=abc"} {
		w := doJSON(t, env.server.Handler(), http.MethodGet, "/api/feed?"+q, "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "query %q", q)
	}
}

func TestServer_ListFeed_IntegrityFailure(t *testing.T) {
	env := newTestServer(t)
	env.repo.posts = []domain.Post{
		{ID: "p1", AuthorID: "user-ghost", Content: "😀", CreatedAt: time.Now().UTC()},
	}

	w := doJSON(t, env.server.Handler(), http.MethodGet, "/api/feed", "", "")

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "IntegrityError", resp["error"])
}

func TestServer_Profile(t *testing.T) {
	env := newTestServer(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	env.repo.posts = []domain.Post{
		{ID: "p1", AuthorID: "user-1", Content: "😀", CreatedAt: base},
	}

	w := doJSON(t, env.server.Handler(), http.MethodGet, "/api/users/casey", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var author domain.Author
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &author))
	assert.Equal(t, "user-1", author.ID)

	w = doJSON(t, env.server.Handler(), http.MethodGet, "/api/users/casey/posts", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var items []domain.FeedItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].Post.ID)

	w = doJSON(t, env.server.Handler(), http.MethodGet, "/api/users/nobody", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_ThrottleRejectsWhenExhausted(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &fakeRepo{}
	resolver := &fakeResolver{users: map[string]domain.Author{}}
	limiter := &fakeLimiter{limit: 5, count: make(map[string]int)}
	posts := domain.NewPostService(repo, resolver, limiter, nil, logger)

	cfg := &config.Config{
		RateLimit: config.RateLimitConfig{MaxPosts: 5, Window: time.Minute},
		Throttle:  config.ThrottleConfig{RPS: 0, Burst: 1},
	}
	srv := NewServer(cfg, posts, &fakeVerifier{}, NewHub(logger), logger)

	w := doJSON(t, srv.Handler(), http.MethodGet, "/api/feed", "", "")
	assert.Equal(t, http.StatusOK, w.Code, "burst admits the first request")

	w = doJSON(t, srv.Handler(), http.MethodGet, "/api/feed", "", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = doJSON(t, srv.Handler(), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code, "health is exempt from the throttle")
}

func TestServer_LiveFeedStreamsAdmittedPosts(t *testing.T) {
	env := newTestServer(t)

	ts := httptest.NewServer(env.server.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/feed/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Give the hub a moment to register the subscriber.
	time.Sleep(50 * time.Millisecond)

	w := doJSON(t, env.server.Handler(), http.MethodPost, "/api/posts", "good-token", `{"content":"🎉"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var item domain.FeedItem
	require.NoError(t, conn.ReadJSON(&item))
	assert.Equal(t, "🎉", item.Post.Content)
	assert.Equal(t, "casey", item.Author.Handle)
}
