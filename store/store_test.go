package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "bugstomper.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustUser(t *testing.T, s *Store, email string) *User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), email, "hash")
	require.NoError(t, err)
	return u
}

func mustQuestion(t *testing.T, s *Store, userID, title string, published bool, tags ...int64) *Question {
	t.Helper()
	q, err := s.CreateQuestion(context.Background(), NewQuestion{
		UserID:    userID,
		Title:     title,
		Content:   "body of " + title,
		Raw:       "body of " + title,
		TagIDs:    tags,
		Published: published,
	})
	require.NoError(t, err)
	return q
}

func tagID(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	tag, err := s.TagByName(context.Background(), name)
	require.NoError(t, err)
	return tag.ID
}

func TestMigrateAndSeedAreIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx))
	n, err := s.SeedTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultTags), n)

	n, err = s.SeedTags(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := s.CountTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultTags), count)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"How do I use Go generics?": "how-do-i-use-go-generics",
		"  --Hello,   World!--  ":   "hello-world",
		"C++ vs C#":                 "c-vs-c",
		"!!!":                       "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestSearchTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SeedTags(ctx)
	require.NoError(t, err)

	tags, err := s.SearchTags(ctx, "SCRIPT", 10)
	require.NoError(t, err)
	var names []string
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	assert.Equal(t, []string{"javascript", "typescript"}, names)

	tags, err = s.SearchTags(ctx, "%", 10)
	require.NoError(t, err)
	assert.Empty(t, tags, "LIKE wildcards are matched literally")
}

func TestCreateQuestionWithTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SeedTags(ctx)
	require.NoError(t, err)
	u := mustUser(t, s, "Ada.Lovelace@example.com")

	q := mustQuestion(t, s, u.ID, "Why does my goroutine leak?", true, tagID(t, s, "go"), tagID(t, s, "testing"))
	assert.Equal(t, "why-does-my-goroutine-leak", q.Slug)
	assert.Equal(t, "adalovelace", q.Author.Username)
	require.Len(t, q.Tags, 2)
	assert.Equal(t, "go", q.Tags[0].Name)
	assert.Equal(t, "/questions/1_why-does-my-goroutine-leak", q.Path())

	tags, err := s.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, "go", tags[0].Name)
	assert.Equal(t, 1, tags[0].Questions)
}

func TestCreateQuestionRollsBackOnBadTag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "a@example.com")

	_, err := s.CreateQuestion(ctx, NewQuestion{
		UserID:  u.ID,
		Title:   "A question with a bad tag",
		Content: "content",
		TagIDs:  []int64{9999},
	})
	require.Error(t, err)

	page, err := s.AccountQuestions(ctx, u.ID, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.Pagination.TotalItems)
}

func TestSearchQuestions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SeedTags(ctx)
	require.NoError(t, err)
	u := mustUser(t, s, "a@example.com")

	mustQuestion(t, s, u.ID, "Go channels deadlock", true, tagID(t, s, "go"))
	mustQuestion(t, s, u.ID, "Rust borrow checker", true, tagID(t, s, "rust"))
	mustQuestion(t, s, u.ID, "Draft about go modules", false, tagID(t, s, "go"))
	for i := 0; i < 3; i++ {
		mustQuestion(t, s, u.ID, "Filler question", true)
	}

	page, err := s.SearchQuestions(ctx, QuestionFilter{Tag: "go"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Go channels deadlock", page.Items[0].Title)

	page, err = s.SearchQuestions(ctx, QuestionFilter{Search: "BORROW"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	page, err = s.SearchQuestions(ctx, QuestionFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, Pagination{
		CurrentPage: 2, TotalPages: 3, TotalItems: 5, ItemsPerPage: 2,
		HasNextPage: true, HasPrevPage: true,
	}, page.Pagination)
	assert.Len(t, page.Items, 2)

	latest, err := s.LatestQuestions(ctx, 6)
	require.NoError(t, err)
	assert.Len(t, latest, 5, "drafts are not listed")
	assert.Equal(t, "Filler question", latest[0].Title)

	n, err := s.CountQuestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(0, 0, 0)
	assert.Equal(t, Pagination{CurrentPage: 1, ItemsPerPage: DefaultPageSize}, p)
	assert.Equal(t, 0, p.Offset())

	p = NewPagination(3, 500, 120)
	assert.Equal(t, MaxPageSize, p.ItemsPerPage)
	assert.Equal(t, 3, p.TotalPages)
	assert.False(t, p.HasNextPage)
	assert.Equal(t, 100, p.Offset())

	p = NewPagination(math.MaxInt, 10, 25)
	assert.Equal(t, 3, p.CurrentPage)
	assert.Equal(t, 20, p.Offset())
	assert.True(t, p.HasPrevPage)
	assert.False(t, p.HasNextPage)

	p = NewPagination(1<<40, 10, 0)
	assert.Equal(t, 1, p.CurrentPage)
	assert.Equal(t, 0, p.Offset())
}
