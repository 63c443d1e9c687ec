package domain

import "time"

// Post is a single emoji micro-post stored in our database. Posts are
// immutable once created; there is no update or delete operation.
type Post struct {
	// ID is the server-generated identifier of the post.
	ID string `json:"id" db:"id"`

	// AuthorID references the author's identity in the external identity
	// provider. It is never empty; anonymous posts are not admitted.
	AuthorID string `json:"authorId" db:"author_id"`

	// Content is the validated emoji-only body, stored exactly as posted.
	Content string `json:"content" db:"content"`

	// CreatedAt is assigned by the server at insert time, in UTC.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Author is the public view of a post's author as resolved from the identity
// provider. It is never persisted here; it is fetched per request and
// discarded.
type Author struct {
	// ID is the identity provider's identifier for the user.
	ID string `json:"id"`

	// Handle is the user's public username. An author record without a
	// handle counts as unresolved for feed assembly.
	Handle string `json:"handle"`

	// AvatarURL is the user's profile image.
	AvatarURL string `json:"avatarUrl"`
}

// FeedItem is a post joined with its resolved author, ready for display.
type FeedItem struct {
	Post   Post   `json:"post"`
	Author Author `json:"author"`
}
