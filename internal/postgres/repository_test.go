package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjohnston82/twitter-t3-clone/internal/domain"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	repo, err := NewRepository("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.InitSchema(context.Background()))
	return repo
}

func insertPost(t *testing.T, repo *Repository, id, authorID, content string, createdAt time.Time) {
	t.Helper()
	err := repo.CreatePost(context.Background(), &domain.Post{
		ID:        id,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: createdAt,
	})
	require.NoError(t, err)
}

func TestRepository_ListRecent_NewestFirst(t *testing.T) {
	repo := newTestRepository(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	insertPost(t, repo, "p1", "user-1", "😀", base)
	insertPost(t, repo, "p2", "user-1", "🎉", base.Add(time.Minute))

	posts, err := repo.ListRecent(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "p2", posts[0].ID)
	assert.Equal(t, "p1", posts[1].ID)
	assert.Equal(t, "🎉", posts[0].Content)
	assert.True(t, posts[0].CreatedAt.Equal(base.Add(time.Minute)))
}

func TestRepository_ListRecent_TieBrokenByID(t *testing.T) {
	repo := newTestRepository(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	insertPost(t, repo, "a", "user-1", "😀", at)
	insertPost(t, repo, "b", "user-1", "🎉", at)

	posts, err := repo.ListRecent(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "b", posts[0].ID, "equal timestamps order by id descending")
	assert.Equal(t, "a", posts[1].ID)
}

func TestRepository_ListRecent_HonorsLimit(t *testing.T) {
	repo := newTestRepository(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		insertPost(t, repo, fmt.Sprintf("p%d", i), "user-1", "😀", base.Add(time.Duration(i)*time.Second))
	}

	posts, err := repo.ListRecent(context.Background(), 3)

	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "p4", posts[0].ID)
}

func TestRepository_ListRecentByAuthor(t *testing.T) {
	repo := newTestRepository(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	insertPost(t, repo, "p1", "user-1", "😀", base)
	insertPost(t, repo, "p2", "user-2", "🎉", base.Add(time.Minute))
	insertPost(t, repo, "p3", "user-1", "🔥", base.Add(2*time.Minute))

	posts, err := repo.ListRecentByAuthor(context.Background(), "user-1", 10)

	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "p3", posts[0].ID)
	assert.Equal(t, "p1", posts[1].ID)
	for _, p := range posts {
		assert.Equal(t, "user-1", p.AuthorID)
	}
}

func TestRepository_ListRecent_Empty(t *testing.T) {
	repo := newTestRepository(t)

	posts, err := repo.ListRecent(context.Background(), 10)

	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestRepository_CreatePost_DuplicateID(t *testing.T) {
	repo := newTestRepository(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	insertPost(t, repo, "p1", "user-1", "😀", at)
	err := repo.CreatePost(context.Background(), &domain.Post{
		ID: "p1", AuthorID: "user-1", Content: "🎉", CreatedAt: at,
	})

	require.Error(t, err, "post ids are unique")
}
