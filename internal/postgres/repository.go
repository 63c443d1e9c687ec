// Package postgres implements the post store on a relational database. The
// canonical deployment target is PostgreSQL; the sqlite driver is supported
// for local development and tests.
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/sjohnston82/twitter-t3-clone/internal/domain"
)

// Repository implements domain.PostRepository.
type Repository struct {
	db *sqlx.DB
}

// NewRepository connects to the database with the given driver ("postgres"
// or "sqlite"), verifies the connection, and returns a new Repository. The
// caller should call Close when the repository is no longer needed.
func NewRepository(driver, dsn string) (*Repository, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// InitSchema creates the posts table if it does not exist. The column types
// are accepted by both postgres and sqlite.
func (r *Repository) InitSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS posts (
			id         TEXT PRIMARY KEY,
			author_id  TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create posts table: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS posts_author_created_idx
		ON posts (author_id, created_at DESC)`)
	if err != nil {
		return fmt.Errorf("create posts index: %w", err)
	}
	return nil
}

// CreatePost inserts a new post.
func (r *Repository) CreatePost(ctx context.Context, post *domain.Post) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (id, author_id, content, created_at)
		VALUES ($1, $2, $3, $4)`,
		post.ID,
		post.AuthorID,
		post.Content,
		post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert post %s: %w", post.ID, err)
	}
	return nil
}

// ListRecent retrieves up to limit posts ordered by created_at descending,
// ties broken by id descending.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]domain.Post, error) {
	var posts []domain.Post
	err := r.db.SelectContext(ctx, &posts, `
		SELECT id, author_id, content, created_at
		FROM posts
		ORDER BY created_at DESC, id DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query posts (limit=%d): %w", limit, err)
	}
	return posts, nil
}

// ListRecentByAuthor is ListRecent restricted to a single author.
func (r *Repository) ListRecentByAuthor(ctx context.Context, authorID string, limit int) ([]domain.Post, error) {
	var posts []domain.Post
	err := r.db.SelectContext(ctx, &posts, `
		SELECT id, author_id, content, created_at
		FROM posts
		WHERE author_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		authorID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query posts for author %s (limit=%d): %w", authorID, limit, err)
	}
	return posts, nil
}
