package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/pkg/apperrors"
	"github.com/aits/backend/internal/pkg/dberrors"
	"github.com/aits/backend/internal/pkg/logger"
	"github.com/jackc/pgx/v5"
)

var attachmentColumns = []string{
	"id", "issue_id", "file_name", "file_path", "file_url", "file_size", "mime_type", "uploaded_by", "created_at",
}

// AttachmentRepository handles attachment metadata. File bytes live in filestorage.
type AttachmentRepository struct {
	db DBTX
}

// NewAttachmentRepository creates a new AttachmentRepository
func NewAttachmentRepository(db DBTX) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func scanAttachment(row pgx.Row) (*models.Attachment, error) {
	a := &models.Attachment{}
	if err := row.Scan(&a.ID, &a.IssueID, &a.FileName, &a.FilePath, &a.FileURL, &a.FileSize,
		&a.MimeType, &a.UploadedBy, &a.CreatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AttachmentRepository) Create(ctx context.Context, a *models.Attachment) error {
	sql, args, err := psql.Insert("attachments").
		Columns("issue_id", "file_name", "file_path", "file_url", "file_size", "mime_type", "uploaded_by").
		Values(a.IssueID, a.FileName, a.FilePath, a.FileURL, a.FileSize, a.MimeType, a.UploadedBy).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create attachment SQL")
		return fmt.Errorf("failed to build create attachment query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&a.ID, &a.CreatedAt); err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrIssueNotFound
		}
		logger.Error().Err(err).Int64("issueID", a.IssueID).Msg("Error executing create attachment query")
		return fmt.Errorf("error creating attachment: %w", err)
	}
	return nil
}

func (r *AttachmentRepository) GetByID(ctx context.Context, id int64) (*models.Attachment, error) {
	sql, args, err := psql.Select(attachmentColumns...).From("attachments").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get attachment query: %w", err)
	}

	a, err := scanAttachment(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("error retrieving attachment: %w", err)
	}
	return a, nil
}

func (r *AttachmentRepository) ListByIssue(ctx context.Context, issueID int64) ([]*models.Attachment, error) {
	sql, args, err := psql.Select(attachmentColumns...).From("attachments").
		Where(squirrel.Eq{"issue_id": issueID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list attachments query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("issueID", issueID).Msg("Error executing list attachments query")
		return nil, fmt.Errorf("error listing attachments: %w", err)
	}
	defer rows.Close()

	list := []*models.Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning attachment: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (r *AttachmentRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting attachment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrAttachmentNotFound
	}
	return nil
}
