package inmem

import (
	"context"
	"sort"
	"time"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/pkg/apperrors"
)

type userRepository struct {
	s *Store
}

func copyUser(u *models.User) *models.User {
	cp := *u
	if u.CoursesTaught != nil {
		cp.CoursesTaught = append([]string(nil), u.CoursesTaught...)
	}
	return &cp
}

func (r *userRepository) Create(_ context.Context, user *models.User) error {
	if err := r.s.fail("users.create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.db.users {
		switch {
		case u.Email == user.Email:
			return apperrors.NewFieldError("email", "A user with this email already exists")
		case u.Username == user.Username:
			return apperrors.NewFieldError("username", "A user with this username already exists")
		case u.StudentRegNumber != nil && user.StudentRegNumber != nil && *u.StudentRegNumber == *user.StudentRegNumber:
			return apperrors.NewFieldError("studentRegNumber", "This registration number is already registered")
		}
	}

	now := r.s.now()
	user.ID = r.s.db.nextID()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.db.users[user.ID] = copyUser(user)
	return nil
}

func (r *userRepository) find(match func(*models.User) bool) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.db.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *userRepository) GetByID(_ context.Context, id int64) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *userRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username })
}

func (r *userRepository) exists(match func(*models.User) bool) bool {
	_, err := r.find(match)
	return err == nil
}

func (r *userRepository) EmailExists(_ context.Context, email string) (bool, error) {
	return r.exists(func(u *models.User) bool { return u.Email == email }), nil
}

func (r *userRepository) UsernameExists(_ context.Context, username string) (bool, error) {
	return r.exists(func(u *models.User) bool { return u.Username == username }), nil
}

func (r *userRepository) RegNumberExists(_ context.Context, regNumber string) (bool, error) {
	return r.exists(func(u *models.User) bool {
		return u.StudentRegNumber != nil && *u.StudentRegNumber == regNumber
	}), nil
}

func (r *userRepository) byRoleAndCollege(role models.Role, college string) []*models.User {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.User
	for _, u := range r.s.db.users {
		if u.Role == role && u.College == college && u.IsActive {
			out = append(out, copyUser(u))
		}
	}
	return out
}

func (r *userRepository) FirstByRoleAndCollege(_ context.Context, role models.Role, college string) (*models.User, error) {
	users := r.byRoleAndCollege(role, college)
	if len(users) == 0 {
		return nil, apperrors.ErrUserNotFound
	}
	sortByID(users, func(u *models.User) int64 { return u.ID })
	return users[0], nil
}

func (r *userRepository) ListByRoleAndCollege(_ context.Context, role models.Role, college string) ([]*models.User, error) {
	users := r.byRoleAndCollege(role, college)
	sort.Slice(users, func(i, j int) bool {
		if users[i].FullName != users[j].FullName {
			return users[i].FullName < users[j].FullName
		}
		return users[i].ID < users[j].ID
	})
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

func (r *userRepository) UpdateProfile(_ context.Context, user *models.User) error {
	if err := r.s.fail("users.update"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.db.users[user.ID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	updated := copyUser(stored)
	updated.FirstName = user.FirstName
	updated.LastName = user.LastName
	updated.FullName = user.FullName
	updated.YearOfStudy = user.YearOfStudy
	updated.College = user.College
	updated.Department = user.Department
	updated.CoursesTaught = append([]string(nil), user.CoursesTaught...)
	updated.UpdatedAt = r.s.now()
	r.s.db.users[user.ID] = updated
	user.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *userRepository) UpdateLastLogin(_ context.Context, userID int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.db.users[userID]; ok {
		cp := copyUser(u)
		cp.LastLoginAt = &at
		r.s.db.users[userID] = cp
	}
	return nil
}
