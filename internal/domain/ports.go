package domain

import (
	"context"
	"time"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	// CreatePost inserts a new post into the store.
	CreatePost(ctx context.Context, post *Post) error

	// ListRecent retrieves up to limit posts ordered by createdAt descending,
	// ties broken by id descending so the order is total.
	ListRecent(ctx context.Context, limit int) ([]Post, error)

	// ListRecentByAuthor is ListRecent restricted to a single author.
	ListRecentByAuthor(ctx context.Context, authorID string, limit int) ([]Post, error)
}

// IdentityResolver fetches public author profiles from the external identity
// provider. Results are request-scoped; nothing is cached locally.
type IdentityResolver interface {
	// ResolveUsers looks up a batch of users by id in a single upstream call.
	// The result may contain fewer entries than requested; a missing entry
	// means the user could not be resolved.
	ResolveUsers(ctx context.Context, ids []string) ([]Author, error)

	// ResolveUserByHandle looks up a single user by their public handle.
	// Returns ErrUserNotFound if the handle is unknown.
	ResolveUserByHandle(ctx context.Context, handle string) (Author, error)
}

// Decision is a rate limiter's verdict for a single attempt.
type Decision struct {
	// Allowed reports whether the attempt fits in the current window.
	Allowed bool

	// Limit is the configured number of attempts per window.
	Limit int

	// Remaining is the quota left in the current window after this attempt.
	Remaining int

	// RetryAfter is how long until the window resets. Meaningful only when
	// the attempt was denied.
	RetryAfter time.Duration
}

// WriteLimiter decides whether a write attempt keyed by author is allowed
// right now. Implementations must make the accept/reject decision atomically
// per key so that concurrent attempts cannot both take the last slot.
type WriteLimiter interface {
	Check(ctx context.Context, key string) (Decision, error)
}

// FeedPublisher receives each successfully admitted post for fan-out to live
// feed subscribers. Implementations must not block the caller.
type FeedPublisher interface {
	PublishPost(item FeedItem)
}
