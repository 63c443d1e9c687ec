package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultFeedLimit is the page size used when a caller asks for zero or more
// posts than we are willing to serve.
const DefaultFeedLimit = 100

// PostService is the core domain service. It owns the admission path for new
// posts (validate, authenticate, rate-limit, persist) and assembles feed
// pages by joining stored posts with authors resolved from the identity
// provider.
type PostService struct {
	repo      PostRepository
	resolver  IdentityResolver
	limiter   WriteLimiter
	publisher FeedPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewPostService creates a PostService. publisher may be nil when no live
// feed fan-out is wanted.
func NewPostService(
	repo PostRepository,
	resolver IdentityResolver,
	limiter WriteLimiter,
	publisher FeedPublisher,
	logger *slog.Logger,
) *PostService {
	return &PostService{
		repo:      repo,
		resolver:  resolver,
		limiter:   limiter,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreatePost admits a new post for the given authenticated author. Checks run
// fail-fast in a fixed order: authentication, content schema, rate limit,
// then the insert. A failed validation never consumes rate-limit quota; a
// failed insert after an accepted limiter check does not refund the quota.
func (s *PostService) CreatePost(ctx context.Context, authorID, content string) (*Post, error) {
	if authorID == "" {
		return nil, ErrUnauthorized
	}

	if verr := ValidateContent(content); verr != nil {
		return nil, verr
	}

	decision, err := s.limiter.Check(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("%w: rate limit check: %w", ErrUpstreamUnavailable, err)
	}
	if !decision.Allowed {
		s.logger.Info("post rejected by rate limit", "author_id", authorID, "retry_after", decision.RetryAfter)
		return nil, &RateLimitError{Limit: decision.Limit, RetryAfter: decision.RetryAfter}
	}

	post := &Post{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("%w: create post: %w", ErrUpstreamUnavailable, err)
	}

	s.logger.Info("post created", "post_id", post.ID, "author_id", authorID)

	if s.publisher != nil {
		s.announce(ctx, *post)
	}
	return post, nil
}

// announce pushes a freshly admitted post to live feed subscribers. The write
// already succeeded, so failures here are logged and dropped.
func (s *PostService) announce(ctx context.Context, post Post) {
	authors, err := s.resolver.ResolveUsers(ctx, []string{post.AuthorID})
	if err != nil || len(authors) == 0 {
		s.logger.Warn("live feed publish skipped, author not resolved",
			"author_id", post.AuthorID, "error", err)
		return
	}
	s.publisher.PublishPost(FeedItem{Post: post, Author: authors[0]})
}

// ListFeed returns the most recent posts across all authors, newest first,
// each joined with its resolved author.
func (s *PostService) ListFeed(ctx context.Context, limit int) ([]FeedItem, error) {
	posts, err := s.repo.ListRecent(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: list posts: %w", ErrUpstreamUnavailable, err)
	}
	return s.assemble(ctx, posts)
}

// ListFeedForAuthor returns the most recent posts by a single author, newest
// first, joined with the resolved author.
func (s *PostService) ListFeedForAuthor(ctx context.Context, authorID string, limit int) ([]FeedItem, error) {
	posts, err := s.repo.ListRecentByAuthor(ctx, authorID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: list posts for author %s: %w", ErrUpstreamUnavailable, authorID, err)
	}
	return s.assemble(ctx, posts)
}

// GetProfile resolves a single author by their public handle.
func (s *PostService) GetProfile(ctx context.Context, handle string) (Author, error) {
	author, err := s.resolver.ResolveUserByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Author{}, err
		}
		return Author{}, fmt.Errorf("%w: resolve handle %q: %w", ErrUpstreamUnavailable, handle, err)
	}
	return author, nil
}

// assemble joins posts with their authors. Each distinct author is resolved
// once per call, in a single batched upstream request. Any post whose author
// cannot be resolved, or resolves without a handle, fails the whole page.
func (s *PostService) assemble(ctx context.Context, posts []Post) ([]FeedItem, error) {
	items := make([]FeedItem, 0, len(posts))
	if len(posts) == 0 {
		return items, nil
	}

	seen := make(map[string]struct{}, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.AuthorID]; !ok {
			seen[p.AuthorID] = struct{}{}
			ids = append(ids, p.AuthorID)
		}
	}

	authors, err := s.resolver.ResolveUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve authors: %w", ErrUpstreamUnavailable, err)
	}

	byID := make(map[string]Author, len(authors))
	for _, a := range authors {
		byID[a.ID] = a
	}

	for _, p := range posts {
		author, ok := byID[p.AuthorID]
		if !ok || author.Handle == "" {
			s.logger.Error("feed references unresolvable author", "post_id", p.ID, "author_id", p.AuthorID)
			return nil, &IntegrityError{AuthorID: p.AuthorID}
		}
		items = append(items, FeedItem{Post: p, Author: author})
	}
	return items, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > DefaultFeedLimit {
		return DefaultFeedLimit
	}
	return limit
}
