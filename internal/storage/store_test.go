package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/codezen/internal/config"
	"github.com/sevigo/codezen/internal/core"
	"github.com/sevigo/codezen/internal/db"
	"github.com/sevigo/codezen/internal/storage"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	conn, cleanup, err := db.NewDatabase(&config.DBConfig{
		Driver: db.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "codezen.db"),
	})
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return storage.NewStore(conn.DB)
}

func createProject(t *testing.T, s storage.Store, owner int64, name string) *core.Project {
	t.Helper()
	p := &core.Project{Name: name, Language: "go", OwnerID: owner}
	require.NoError(t, s.CreateProject(context.Background(), p))
	require.NotZero(t, p.ID)
	return p
}

func TestProjects_OwnershipIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mine := createProject(t, s, 1, "mine")
	theirs := createProject(t, s, 2, "theirs")

	got, err := s.GetProject(ctx, mine.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "mine", got.Name)
	assert.Equal(t, "go", got.Language)

	_, err = s.GetProject(ctx, theirs.ID, 1)
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.GetProject(ctx, 9999, 1)
	require.ErrorIs(t, err, core.ErrNotFound)

	list, err := s.ListProjects(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	empty, err := s.ListProjects(ctx, 3)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	err = s.DeleteProject(ctx, theirs.ID, 1)
	require.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetProject(ctx, theirs.ID, 2)
	require.NoError(t, err)
}

func TestGuidelines_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := createProject(t, s, 1, "demo")

	rules := []string{"no bare except", "prefer f-strings", "type hints everywhere"}
	for _, r := range rules {
		require.NoError(t, s.AddGuideline(ctx, &core.Guideline{RuleText: r, ProjectID: p.ID}))
	}

	got, err := s.ListGuidelines(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, rules, core.RuleTexts(got))
}

func TestReviews_CompleteOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := createProject(t, s, 1, "demo")

	r := &core.Review{CodeSnapshot: "def f(): pass", ProjectID: p.ID, UserID: 1}
	require.NoError(t, s.CreateReview(ctx, r))
	require.NotZero(t, r.ID)
	assert.Equal(t, core.ReviewPending, r.Status)

	pending, err := s.ListPendingReviews(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Nil(t, pending[0].LLMResponse)

	effort := "Low"
	done := core.Now()
	require.NoError(t, s.CompleteReview(ctx, r.ID, "looks fine", &effort, done))

	got, err := s.GetReview(ctx, r.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ReviewCompleted, got.Status)
	require.NotNil(t, got.LLMResponse)
	assert.Equal(t, "looks fine", *got.LLMResponse)
	require.NotNil(t, got.EffortEstimation)
	assert.Equal(t, "Low", *got.EffortEstimation)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
	assert.Equal(t, "def f(): pass", got.CodeSnapshot)

	err = s.CompleteReview(ctx, r.ID, "second", nil, core.Now())
	require.ErrorIs(t, err, storage.ErrAlreadyCompleted)

	err = s.CompleteReview(ctx, 424242, "ghost", nil, core.Now())
	require.ErrorIs(t, err, core.ErrNotFound)

	pending, err = s.ListPendingReviews(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReviews_ScopedToProject(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := createProject(t, s, 1, "a")
	b := createProject(t, s, 1, "b")

	r := &core.Review{CodeSnapshot: "x = 1", ProjectID: a.ID, UserID: 1}
	require.NoError(t, s.CreateReview(ctx, r))

	_, err := s.GetReview(ctx, r.ID, b.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	list, err := s.ListReviews(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = s.ListReviews(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r.ID, list[0].ID)
}

func TestReviews_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := createProject(t, s, 1, "demo")

	base := core.Now()
	older := &core.Review{CodeSnapshot: "old", ProjectID: p.ID, UserID: 1, Timestamp: base.Add(-time.Hour)}
	newer := &core.Review{CodeSnapshot: "new", ProjectID: p.ID, UserID: 1, Timestamp: base}
	require.NoError(t, s.CreateReview(ctx, older))
	require.NoError(t, s.CreateReview(ctx, newer))

	list, err := s.ListReviews(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}

func TestComments_SequenceOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := createProject(t, s, 1, "demo")
	r := &core.Review{CodeSnapshot: "x", ProjectID: p.ID, UserID: 1}
	require.NoError(t, s.CreateReview(ctx, r))

	// Identical timestamps must not disturb the ordering.
	ts := core.Now()
	messages := []struct {
		text string
		role core.Role
	}{
		{"why?", core.RoleUser},
		{"because", core.RoleAI},
		{"and then?", core.RoleUser},
		{"that's all", core.RoleAI},
	}
	for i, m := range messages {
		c := &core.ReviewComment{Message: m.text, Role: m.role, ReviewID: r.ID, UserID: 1, Timestamp: ts}
		require.NoError(t, s.AppendComment(ctx, c))
		assert.Equal(t, int64(i+1), c.Seq)
	}

	got, err := s.ListComments(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, m := range messages {
		assert.Equal(t, m.text, got[i].Message)
		assert.Equal(t, m.role, got[i].Role)
	}
}

func TestDeleteProject_Cascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := createProject(t, s, 1, "doomed")
	keep := createProject(t, s, 1, "keep")

	require.NoError(t, s.AddGuideline(ctx, &core.Guideline{RuleText: "rule", ProjectID: p.ID}))
	r := &core.Review{CodeSnapshot: "x", ProjectID: p.ID, UserID: 1}
	require.NoError(t, s.CreateReview(ctx, r))
	require.NoError(t, s.AppendComment(ctx, &core.ReviewComment{Message: "q", Role: core.RoleUser, ReviewID: r.ID, UserID: 1}))

	kr := &core.Review{CodeSnapshot: "y", ProjectID: keep.ID, UserID: 1}
	require.NoError(t, s.CreateReview(ctx, kr))

	require.NoError(t, s.DeleteProject(ctx, p.ID, 1))

	_, err := s.GetProject(ctx, p.ID, 1)
	require.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetReviewByID(ctx, r.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	guidelines, err := s.ListGuidelines(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, guidelines)
	comments, err := s.ListComments(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	_, err = s.GetReview(ctx, kr.ID, keep.ID)
	require.NoError(t, err)
}
