package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/pkg/helpers"
	"github.com/aits/backend/internal/pkg/logger"
)

// AuditLogRepository handles the audit trail. It never updates or deletes rows.
type AuditLogRepository struct {
	db DBTX
}

// NewAuditLogRepository creates a new AuditLogRepository
func NewAuditLogRepository(db DBTX) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Create appends an entry.
func (r *AuditLogRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	sql, args, err := psql.Insert("audit_logs").
		Columns("user_id", "issue_id", "action").
		Values(entry.UserID, entry.IssueID, entry.Action).
		Suffix(`RETURNING id, "timestamp"`).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create audit log SQL")
		return fmt.Errorf("failed to build create audit log query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&entry.ID, &entry.Timestamp); err != nil {
		logger.Error().Err(err).Int64("userID", entry.UserID).Msg("Error executing create audit log query")
		return fmt.Errorf("error creating audit log: %w", err)
	}
	return nil
}

func applyAuditFilters(q squirrel.SelectBuilder, p AuditLogListParams) squirrel.SelectBuilder {
	if p.UserID != nil {
		q = q.Where(squirrel.Eq{"a.user_id": *p.UserID})
	}
	if p.IssueID != nil {
		q = q.Where(squirrel.Eq{"a.issue_id": *p.IssueID})
	}
	if p.College != nil {
		q = q.Join("users u ON u.id = a.user_id").Where(squirrel.Eq{"u.college": *p.College})
	}
	return q
}

// List returns audit entries newest first.
func (r *AuditLogRepository) List(ctx context.Context, params AuditLogListParams) ([]*models.AuditLog, int64, error) {
	countSQL, countArgs, err := applyAuditFilters(psql.Select("count(*)").From("audit_logs a"), params).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count audit logs query: %w", err)
	}
	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		logger.Error().Err(err).Msg("Error executing count audit logs query")
		return nil, 0, fmt.Errorf("error counting audit logs: %w", err)
	}
	if total == 0 {
		return []*models.AuditLog{}, 0, nil
	}

	offset, limit := helpers.CalculateOffsetLimit(params.Page, params.Size)
	sql, args, err := applyAuditFilters(
		psql.Select("a.id", "a.user_id", "a.issue_id", "a.action", `a."timestamp"`).From("audit_logs a"), params).
		OrderBy(`a."timestamp" DESC`, "a.id DESC").
		Limit(uint64(limit)).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list audit logs query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list audit logs query")
		return nil, 0, fmt.Errorf("error listing audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.AuditLog, 0, limit)
	for rows.Next() {
		a := &models.AuditLog{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.IssueID, &a.Action, &a.Timestamp); err != nil {
			return nil, 0, fmt.Errorf("error scanning audit log: %w", err)
		}
		logs = append(logs, a)
	}
	return logs, total, rows.Err()
}
