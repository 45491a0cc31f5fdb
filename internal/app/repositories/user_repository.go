package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/pkg/apperrors"
	"github.com/aits/backend/internal/pkg/dberrors"
	"github.com/aits/backend/internal/pkg/logger"
	"github.com/jackc/pgx/v5"
)

var userColumns = []string{
	"id", "username", "email", "password", "first_name", "last_name", "full_name", "role",
	"student_reg_number", "year_of_study", "college", "department", "courses_taught",
	"is_active", "last_login_at", "created_at", "updated_at",
}

// UserRepository handles user database operations
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.Password, &u.FirstName, &u.LastName, &u.FullName, &u.Role,
		&u.StudentRegNumber, &u.YearOfStudy, &u.College, &u.Department, &u.CoursesTaught,
		&u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts a user and fills in the generated id and timestamps.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	courses := user.CoursesTaught
	if courses == nil {
		courses = []string{}
	}

	sql, args, err := psql.Insert("users").
		Columns("username", "email", "password", "first_name", "last_name", "full_name", "role",
			"student_reg_number", "year_of_study", "college", "department", "courses_taught", "is_active").
		Values(user.Username, user.Email, user.Password, user.FirstName, user.LastName, user.FullName, user.Role,
			user.StudentRegNumber, user.YearOfStudy, user.College, user.Department, courses, user.IsActive).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create user SQL")
		return fmt.Errorf("failed to build create user query: %w", err)
	}

	err = r.db.QueryRow(ctx, sql, args...).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		switch {
		case dberrors.IsDuplicateConstraintError(err, "users_email_key"):
			return apperrors.NewFieldError("email", "A user with this email already exists")
		case dberrors.IsDuplicateConstraintError(err, "users_username_key"):
			return apperrors.NewFieldError("username", "A user with this username already exists")
		case dberrors.IsDuplicateConstraintError(err, "users_student_reg_number_key"):
			return apperrors.NewFieldError("studentRegNumber", "This registration number is already registered")
		}
		logger.Error().Err(err).Str("username", user.Username).Msg("Error executing create user query")
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (*models.User, error) {
	sql, args, err := psql.Select(userColumns...).From("users").Where(where).Limit(1).ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get user SQL")
		return nil, fmt.Errorf("failed to build get user query: %w", err)
	}

	u, err := scanUser(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.ErrUserNotFound
		}
		logger.Error().Err(err).Msg("Error scanning user row")
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByUsername retrieves a user by login name
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, squirrel.Eq{"username": username})
}

func (r *UserRepository) exists(ctx context.Context, column, value string) (bool, error) {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM users WHERE %s = $1)`, column)
	if err := r.db.QueryRow(ctx, query, value).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking %s: %w", column, err)
	}
	return exists, nil
}

// EmailExists checks if an email already exists
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}

func (r *UserRepository) RegNumberExists(ctx context.Context, regNumber string) (bool, error) {
	return r.exists(ctx, "student_reg_number", regNumber)
}

// FirstByRoleAndCollege returns the lowest-id active user with the role in the college.
func (r *UserRepository) FirstByRoleAndCollege(ctx context.Context, role models.Role, college string) (*models.User, error) {
	sql, args, err := psql.Select(userColumns...).From("users").
		Where(squirrel.Eq{"role": role, "college": college, "is_active": true}).
		OrderBy("id ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build first user by role query: %w", err)
	}

	u, err := scanUser(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.ErrUserNotFound
		}
		logger.Error().Err(err).Str("role", string(role)).Str("college", college).Msg("Error finding user by role")
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}
	return u, nil
}

// ListByRoleAndCollege returns active users with the role in the college, ordered by name.
func (r *UserRepository) ListByRoleAndCollege(ctx context.Context, role models.Role, college string) ([]*models.User, error) {
	sql, args, err := psql.Select(userColumns...).From("users").
		Where(squirrel.Eq{"role": role, "college": college, "is_active": true}).
		OrderBy("full_name ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list users query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list users query")
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateProfile writes the editable profile columns.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	courses := user.CoursesTaught
	if courses == nil {
		courses = []string{}
	}

	sql, args, err := psql.Update("users").
		Set("first_name", user.FirstName).
		Set("last_name", user.LastName).
		Set("full_name", user.FullName).
		Set("year_of_study", user.YearOfStudy).
		Set("college", user.College).
		Set("department", user.Department).
		Set("courses_taught", courses).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": user.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update profile query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&user.UpdatedAt); err != nil {
		if dberrors.IsNoRows(err) {
			return apperrors.ErrUserNotFound
		}
		logger.Error().Err(err).Int64("userID", user.ID).Msg("Error updating user profile")
		return fmt.Errorf("error updating profile: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last login time
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at, userID)
	if err != nil {
		return fmt.Errorf("failed to update last login time: %w", err)
	}
	return nil
}
