package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/pkg/apperrors"
	"github.com/aits/backend/internal/pkg/dberrors"
	"github.com/aits/backend/internal/pkg/helpers"
	"github.com/aits/backend/internal/pkg/logger"
	"github.com/jackc/pgx/v5"
)

var issueColumns = []string{
	"id", "title", "description", "category", "priority", "status", "student_id", "student_name",
	"assigned_to_id", "college", "department", "course_code", "semester", "academic_year",
	"resolution_note", "resolved_by_id", "resolved_at", "version", "created_at", "updated_at",
}

// issueSortColumns whitelists the ?sort= values.
var issueSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"priority":  "CASE priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 ELSE 4 END",
	"status":    "status",
	"title":     "title",
}

// IssueSortFields lists the accepted sort keys.
func IssueSortFields() []string {
	keys := make([]string, 0, len(issueSortColumns))
	for k := range issueSortColumns {
		keys = append(keys, k)
	}
	return keys
}

// IssueRepository handles issue database operations
type IssueRepository struct {
	db DBTX
}

// NewIssueRepository creates a new IssueRepository
func NewIssueRepository(db DBTX) *IssueRepository {
	return &IssueRepository{db: db}
}

func scanIssue(row pgx.Row) (*models.Issue, error) {
	i := &models.Issue{}
	err := row.Scan(
		&i.ID, &i.Title, &i.Description, &i.Category, &i.Priority, &i.Status, &i.StudentID, &i.StudentName,
		&i.AssignedToID, &i.College, &i.Department, &i.CourseCode, &i.Semester, &i.AcademicYear,
		&i.ResolutionNote, &i.ResolvedByID, &i.ResolvedAt, &i.Version, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return i, nil
}

// Create inserts an issue with version 1.
func (r *IssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	sql, args, err := psql.Insert("issues").
		Columns("title", "description", "category", "priority", "status", "student_id", "student_name",
			"assigned_to_id", "college", "department", "course_code", "semester", "academic_year", "version").
		Values(issue.Title, issue.Description, issue.Category, issue.Priority, issue.Status, issue.StudentID, issue.StudentName,
			issue.AssignedToID, issue.College, issue.Department, issue.CourseCode, issue.Semester, issue.AcademicYear, 1).
		Suffix("RETURNING id, version, created_at, updated_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create issue SQL")
		return fmt.Errorf("failed to build create issue query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&issue.ID, &issue.Version, &issue.CreatedAt, &issue.UpdatedAt); err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.NewFieldError("assignedToId", "Assignee does not exist")
		}
		logger.Error().Err(err).Int64("studentID", issue.StudentID).Msg("Error executing create issue query")
		return fmt.Errorf("error creating issue: %w", err)
	}
	return nil
}

func (r *IssueRepository) get(ctx context.Context, id int64, forUpdate bool) (*models.Issue, error) {
	q := psql.Select(issueColumns...).From("issues").Where(squirrel.Eq{"id": id})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get issue query: %w", err)
	}

	issue, err := scanIssue(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.ErrIssueNotFound
		}
		logger.Error().Err(err).Int64("issueID", id).Msg("Error scanning issue row")
		return nil, fmt.Errorf("error retrieving issue: %w", err)
	}
	return issue, nil
}

// GetByID retrieves an issue by ID
func (r *IssueRepository) GetByID(ctx context.Context, id int64) (*models.Issue, error) {
	return r.get(ctx, id, false)
}

// GetByIDForUpdate retrieves and row-locks an issue. Only meaningful inside a transaction.
func (r *IssueRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Issue, error) {
	return r.get(ctx, id, true)
}

func applyScope(q squirrel.SelectBuilder, scope models.IssueScope) squirrel.SelectBuilder {
	switch {
	case scope.All:
		return q
	case scope.StudentID != nil:
		return q.Where(squirrel.Eq{"student_id": *scope.StudentID})
	case scope.AssigneeID != nil:
		return q.Where(squirrel.Eq{"assigned_to_id": *scope.AssigneeID})
	case scope.College != nil || scope.Department != nil:
		if scope.College != nil {
			q = q.Where(squirrel.Eq{"college": *scope.College})
		}
		if scope.Department != nil {
			q = q.Where(squirrel.Eq{"department": *scope.Department})
		}
		return q
	}
	return q.Where("FALSE")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern using the default
// backslash escape.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func applyIssueFilters(q squirrel.SelectBuilder, p IssueListParams) squirrel.SelectBuilder {
	q = applyScope(q, p.Scope)
	if p.Status != nil {
		q = q.Where(squirrel.Eq{"status": *p.Status})
	}
	if p.Category != nil {
		q = q.Where(squirrel.Eq{"category": *p.Category})
	}
	if p.Priority != nil {
		q = q.Where(squirrel.Eq{"priority": *p.Priority})
	}
	if p.AssignedToID != nil {
		q = q.Where(squirrel.Eq{"assigned_to_id": *p.AssignedToID})
	}
	if p.Search != "" {
		pattern := "%" + escapeLike(p.Search) + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"title": pattern},
			squirrel.ILike{"description": pattern},
		})
	}
	return q
}

// List returns one page of issues inside the scope plus the total match count.
func (r *IssueRepository) List(ctx context.Context, params IssueListParams) ([]*models.Issue, int64, error) {
	if params.Scope.Empty() {
		return []*models.Issue{}, 0, nil
	}

	countSQL, countArgs, err := applyIssueFilters(psql.Select("count(*)").From("issues"), params).ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building count issues SQL")
		return nil, 0, fmt.Errorf("failed to build count issues query: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		logger.Error().Err(err).Msg("Error executing count issues query")
		return nil, 0, fmt.Errorf("error counting issues: %w", err)
	}
	if total == 0 {
		return []*models.Issue{}, 0, nil
	}

	sortBy := "created_at"
	if col, ok := issueSortColumns[params.SortBy]; ok {
		sortBy = col
	}
	order := "ASC"
	if params.SortDesc {
		order = "DESC"
	}
	offset, limit := helpers.CalculateOffsetLimit(params.Page, params.Size)

	sql, args, err := applyIssueFilters(psql.Select(issueColumns...).From("issues"), params).
		OrderBy(fmt.Sprintf("%s %s", sortBy, order), "id "+order).
		Limit(uint64(limit)).
		Offset(offset).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list issues SQL")
		return nil, 0, fmt.Errorf("failed to build list issues query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list issues query")
		return nil, 0, fmt.Errorf("error listing issues: %w", err)
	}
	defer rows.Close()

	issues := make([]*models.Issue, 0, limit)
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning issue: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating issues: %w", err)
	}
	return issues, total, nil
}

// Update performs an optimistic write guarded by the version column.
func (r *IssueRepository) Update(ctx context.Context, issue *models.Issue) error {
	sql, args, err := psql.Update("issues").
		Set("title", issue.Title).
		Set("description", issue.Description).
		Set("category", issue.Category).
		Set("priority", issue.Priority).
		Set("status", issue.Status).
		Set("assigned_to_id", issue.AssignedToID).
		Set("department", issue.Department).
		Set("course_code", issue.CourseCode).
		Set("semester", issue.Semester).
		Set("academic_year", issue.AcademicYear).
		Set("resolution_note", issue.ResolutionNote).
		Set("resolved_by_id", issue.ResolvedByID).
		Set("resolved_at", issue.ResolvedAt).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": issue.ID, "version": issue.Version}).
		Suffix("RETURNING version, updated_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building update issue SQL")
		return fmt.Errorf("failed to build update issue query: %w", err)
	}

	err = r.db.QueryRow(ctx, sql, args...).Scan(&issue.Version, &issue.UpdatedAt)
	if err == nil {
		return nil
	}
	if !dberrors.IsNoRows(err) {
		logger.Error().Err(err).Int64("issueID", issue.ID).Msg("Error executing update issue query")
		return fmt.Errorf("error updating issue: %w", err)
	}

	// Either the row is gone or someone else bumped the version first.
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM issues WHERE id = $1)`, issue.ID).Scan(&exists); err != nil {
		return fmt.Errorf("error checking issue: %w", err)
	}
	if !exists {
		return apperrors.ErrIssueNotFound
	}
	return apperrors.ErrIssueModified
}

// Delete removes an issue; comments, attachments and notifications cascade.
func (r *IssueRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM issues WHERE id = $1`, id)
	if err != nil {
		logger.Error().Err(err).Int64("issueID", id).Msg("Error executing delete issue query")
		return fmt.Errorf("error deleting issue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrIssueNotFound
	}
	return nil
}

// CountByStatus groups the issues in scope by status.
func (r *IssueRepository) CountByStatus(ctx context.Context, scope models.IssueScope) (map[models.IssueStatus]int64, error) {
	counts := map[models.IssueStatus]int64{}
	if scope.Empty() {
		return counts, nil
	}

	sql, args, err := applyScope(psql.Select("status", "count(*)").From("issues"), scope).GroupBy("status").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build count by status query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error counting issues by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status models.IssueStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("error scanning status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
