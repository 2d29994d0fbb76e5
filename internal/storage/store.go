// Package storage provides ownership-scoped access to projects, guidelines,
// reviews and review comments.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sevigo/codezen/internal/core"
)

// Store defines the interface for all database operations. Lookups that take
// an owner or a parent id return core.ErrNotFound when the record exists but
// belongs to someone else.
type Store interface {
	CreateProject(ctx context.Context, p *core.Project) error
	ListProjects(ctx context.Context, ownerID int64) ([]*core.Project, error)
	GetProject(ctx context.Context, id, ownerID int64) (*core.Project, error)
	DeleteProject(ctx context.Context, id, ownerID int64) error

	AddGuideline(ctx context.Context, g *core.Guideline) error
	ListGuidelines(ctx context.Context, projectID int64) ([]*core.Guideline, error)

	CreateReview(ctx context.Context, r *core.Review) error
	CompleteReview(ctx context.Context, id int64, llmResponse string, effort *string, completedAt time.Time) error
	ListReviews(ctx context.Context, projectID int64) ([]*core.Review, error)
	GetReview(ctx context.Context, id, projectID int64) (*core.Review, error)
	// GetReviewByID is used by the background completion workers, which act
	// on behalf of the system rather than a user.
	GetReviewByID(ctx context.Context, id int64) (*core.Review, error)
	ListPendingReviews(ctx context.Context) ([]*core.Review, error)

	AppendComment(ctx context.Context, c *core.ReviewComment) error
	ListComments(ctx context.Context, reviewID int64) ([]*core.ReviewComment, error)
}

type sqlStore struct {
	db *sqlx.DB
}

// NewStore creates a Store over an open sqlx pool. Queries are written with
// '?' placeholders and rebound for the pool's driver.
func NewStore(db *sqlx.DB) Store {
	return &sqlStore{db: db}
}

const (
	projectColumns   = `id, name, language, created_at, owner_id`
	guidelineColumns = `id, rule_text, project_id, created_at`
	reviewColumns    = `id, created_at, code_snapshot, llm_response, effort_estimation, status, completed_at, project_id, user_id`
	commentColumns   = `id, message, role, created_at, seq, review_id, user_id`
)

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
}

// CreateProject inserts a project and fills in its id.
func (s *sqlStore) CreateProject(ctx context.Context, p *core.Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = core.Now()
	}
	query := s.db.Rebind(`INSERT INTO projects (name, language, created_at, owner_id) VALUES (?, ?, ?, ?) RETURNING id`)
	if err := s.db.QueryRowxContext(ctx, query, p.Name, p.Language, p.CreatedAt, p.OwnerID).Scan(&p.ID); err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// ListProjects returns the owner's projects, newest first.
func (s *sqlStore) ListProjects(ctx context.Context, ownerID int64) ([]*core.Project, error) {
	query := s.db.Rebind(`SELECT ` + projectColumns + ` FROM projects WHERE owner_id = ? ORDER BY created_at DESC, id DESC`)
	projects := []*core.Project{}
	if err := s.db.SelectContext(ctx, &projects, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// GetProject fetches a project only if it belongs to ownerID.
func (s *sqlStore) GetProject(ctx context.Context, id, ownerID int64) (*core.Project, error) {
	query := s.db.Rebind(`SELECT ` + projectColumns + ` FROM projects WHERE id = ? AND owner_id = ?`)
	var p core.Project
	if err := s.db.GetContext(ctx, &p, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("project", id)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// DeleteProject removes a project owned by ownerID together with its
// guidelines, reviews and comments in one transaction.
func (s *sqlStore) DeleteProject(ctx context.Context, id, ownerID int64) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var found int64
	err = tx.GetContext(ctx, &found, tx.Rebind(`SELECT id FROM projects WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("project", id)
		}
		return fmt.Errorf("failed to check project ownership: %w", err)
	}

	cascade := []string{
		`DELETE FROM review_comments WHERE review_id IN (SELECT id FROM reviews WHERE project_id = ?)`,
		`DELETE FROM reviews WHERE project_id = ?`,
		`DELETE FROM custom_guidelines WHERE project_id = ?`,
		`DELETE FROM projects WHERE id = ?`,
	}
	for _, q := range cascade {
		if _, err = tx.ExecContext(ctx, tx.Rebind(q), id); err != nil {
			return fmt.Errorf("failed to delete project %d: %w", id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project deletion: %w", err)
	}
	return nil
}

// AddGuideline appends a rule to a project. The caller has already resolved
// the project through its owner.
func (s *sqlStore) AddGuideline(ctx context.Context, g *core.Guideline) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = core.Now()
	}
	query := s.db.Rebind(`INSERT INTO custom_guidelines (rule_text, project_id, created_at) VALUES (?, ?, ?) RETURNING id`)
	if err := s.db.QueryRowxContext(ctx, query, g.RuleText, g.ProjectID, g.CreatedAt).Scan(&g.ID); err != nil {
		return fmt.Errorf("failed to insert guideline: %w", err)
	}
	return nil
}

// ListGuidelines returns a project's rules in insertion order.
func (s *sqlStore) ListGuidelines(ctx context.Context, projectID int64) ([]*core.Guideline, error) {
	query := s.db.Rebind(`SELECT ` + guidelineColumns + ` FROM custom_guidelines WHERE project_id = ? ORDER BY id ASC`)
	guidelines := []*core.Guideline{}
	if err := s.db.SelectContext(ctx, &guidelines, query, projectID); err != nil {
		return nil, fmt.Errorf("failed to list guidelines: %w", err)
	}
	return guidelines, nil
}

// CreateReview persists a review in the pending state.
func (s *sqlStore) CreateReview(ctx context.Context, r *core.Review) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = core.Now()
	}
	r.Status = core.ReviewPending
	r.LLMResponse = nil
	r.EffortEstimation = nil
	r.CompletedAt = nil

	query := s.db.Rebind(`INSERT INTO reviews (created_at, code_snapshot, status, project_id, user_id) VALUES (?, ?, ?, ?, ?) RETURNING id`)
	if err := s.db.QueryRowxContext(ctx, query, r.Timestamp, r.CodeSnapshot, r.Status, r.ProjectID, r.UserID).Scan(&r.ID); err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

// CompleteReview stores the inference reply. The update only matches a
// pending row, so concurrent completions of the same review cannot both win.
func (s *sqlStore) CompleteReview(ctx context.Context, id int64, llmResponse string, effort *string, completedAt time.Time) error {
	query := s.db.Rebind(`UPDATE reviews SET llm_response = ?, effort_estimation = ?, status = ?, completed_at = ? WHERE id = ? AND status = ?`)
	res, err := s.db.ExecContext(ctx, query, llmResponse, effort, core.ReviewCompleted, completedAt, id, core.ReviewPending)
	if err != nil {
		return fmt.Errorf("failed to complete review %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to complete review %d: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	if _, err := s.GetReviewByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("review %d: %w", id, ErrAlreadyCompleted)
}

// ListReviews returns a project's reviews, newest first.
func (s *sqlStore) ListReviews(ctx context.Context, projectID int64) ([]*core.Review, error) {
	query := s.db.Rebind(`SELECT ` + reviewColumns + ` FROM reviews WHERE project_id = ? ORDER BY created_at DESC, id DESC`)
	reviews := []*core.Review{}
	if err := s.db.SelectContext(ctx, &reviews, query, projectID); err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

// GetReview fetches a review only if it belongs to projectID.
func (s *sqlStore) GetReview(ctx context.Context, id, projectID int64) (*core.Review, error) {
	query := s.db.Rebind(`SELECT ` + reviewColumns + ` FROM reviews WHERE id = ? AND project_id = ?`)
	return s.getReview(ctx, query, id, id, projectID)
}

func (s *sqlStore) GetReviewByID(ctx context.Context, id int64) (*core.Review, error) {
	query := s.db.Rebind(`SELECT ` + reviewColumns + ` FROM reviews WHERE id = ?`)
	return s.getReview(ctx, query, id, id)
}

func (s *sqlStore) getReview(ctx context.Context, query string, id int64, args ...any) (*core.Review, error) {
	var r core.Review
	if err := s.db.GetContext(ctx, &r, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("review", id)
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return &r, nil
}

// ListPendingReviews returns every review still waiting for its reply,
// oldest first.
func (s *sqlStore) ListPendingReviews(ctx context.Context) ([]*core.Review, error) {
	query := s.db.Rebind(`SELECT ` + reviewColumns + ` FROM reviews WHERE status = ? ORDER BY id ASC`)
	reviews := []*core.Review{}
	if err := s.db.SelectContext(ctx, &reviews, query, core.ReviewPending); err != nil {
		return nil, fmt.Errorf("failed to list pending reviews: %w", err)
	}
	return reviews, nil
}

// AppendComment adds a comment to a review and assigns the next sequence
// number for that review.
func (s *sqlStore) AppendComment(ctx context.Context, c *core.ReviewComment) (err error) {
	if c.Timestamp.IsZero() {
		c.Timestamp = core.Now()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var seq int64
	err = tx.GetContext(ctx, &seq, tx.Rebind(`SELECT COALESCE(MAX(seq), 0) + 1 FROM review_comments WHERE review_id = ?`), c.ReviewID)
	if err != nil {
		return fmt.Errorf("failed to allocate comment sequence: %w", err)
	}

	query := tx.Rebind(`INSERT INTO review_comments (message, role, created_at, seq, review_id, user_id) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	if err = tx.QueryRowxContext(ctx, query, c.Message, c.Role, c.Timestamp, seq, c.ReviewID, c.UserID).Scan(&id); err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit comment: %w", err)
	}
	c.ID = id
	c.Seq = seq
	return nil
}

// ListComments returns a review's conversation in order.
func (s *sqlStore) ListComments(ctx context.Context, reviewID int64) ([]*core.ReviewComment, error) {
	query := s.db.Rebind(`SELECT ` + commentColumns + ` FROM review_comments WHERE review_id = ? ORDER BY seq ASC`)
	comments := []*core.ReviewComment{}
	if err := s.db.SelectContext(ctx, &comments, query, reviewID); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}
