package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/pkg/apperrors"
	"github.com/aits/backend/internal/pkg/dberrors"
	"github.com/aits/backend/internal/pkg/logger"
)

// CommentRepository handles comment database operations
type CommentRepository struct {
	db DBTX
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db DBTX) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a comment.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	sql, args, err := psql.Insert("comments").
		Columns("issue_id", "user_id", "text").
		Values(comment.IssueID, comment.UserID, comment.Text).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create comment SQL")
		return fmt.Errorf("failed to build create comment query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&comment.ID, &comment.CreatedAt); err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrIssueNotFound
		}
		logger.Error().Err(err).Int64("issueID", comment.IssueID).Msg("Error executing create comment query")
		return fmt.Errorf("error creating comment: %w", err)
	}
	return nil
}

// ListByIssue returns the thread oldest first, with each author joined in.
func (r *CommentRepository) ListByIssue(ctx context.Context, issueID int64) ([]*models.Comment, error) {
	sql, args, err := psql.Select(
		"c.id", "c.issue_id", "c.user_id", "c.text", "c.created_at",
		"u.username", "u.full_name", "u.first_name", "u.last_name", "u.role",
	).From("comments c").
		Join("users u ON u.id = c.user_id").
		Where(squirrel.Eq{"c.issue_id": issueID}).
		OrderBy("c.created_at ASC", "c.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list comments query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("issueID", issueID).Msg("Error executing list comments query")
		return nil, fmt.Errorf("error listing comments: %w", err)
	}
	defer rows.Close()

	comments := []*models.Comment{}
	for rows.Next() {
		c := &models.Comment{Author: &models.User{}}
		if err := rows.Scan(&c.ID, &c.IssueID, &c.UserID, &c.Text, &c.CreatedAt,
			&c.Author.Username, &c.Author.FullName, &c.Author.FirstName, &c.Author.LastName, &c.Author.Role); err != nil {
			return nil, fmt.Errorf("error scanning comment: %w", err)
		}
		c.Author.ID = c.UserID
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
