package models

import (
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleStudent   Role = "student"
	RoleLecturer  Role = "lecturer"
	RoleHOD       Role = "hod"
	RoleRegistrar Role = "registrar"
	RoleAdmin     Role = "admin"
)

// AllRoles lists every role in display order.
var AllRoles = []Role{RoleStudent, RoleLecturer, RoleHOD, RoleRegistrar, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleLecturer, RoleHOD, RoleRegistrar, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalises user input ("HOD", " Lecturer ") into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// User defines the user model based on the 'users' table
type User struct {
	ID               int64      `json:"id" db:"id" example:"1"`
	Username         string     `json:"username" db:"username" example:"2100712345"`
	Email            string     `json:"email" db:"email" example:"student@students.mak.ac.ug"`
	Password         string     `json:"-" db:"password"`
	FirstName        string     `json:"firstName" db:"first_name" example:"Jane"`
	LastName         string     `json:"lastName" db:"last_name" example:"Doe"`
	FullName         string     `json:"fullName" db:"full_name" example:"Jane Doe"`
	Role             Role       `json:"role" db:"role" example:"student"`
	StudentRegNumber *string    `json:"studentRegNumber,omitempty" db:"student_reg_number" example:"21/U/12345"`
	YearOfStudy      *string    `json:"yearOfStudy,omitempty" db:"year_of_study" example:"2"`
	College          string     `json:"college" db:"college" example:"COCIS"`
	Department       string     `json:"department" db:"department" example:"Computer Science"`
	CoursesTaught    []string   `json:"coursesTaught,omitempty" db:"courses_taught"`
	IsActive         bool       `json:"isActive" db:"is_active" example:"true"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}

// DisplayName returns the best human-readable name for the user.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Username
}

// YearsOfStudy are the accepted values for a student's year.
var YearsOfStudy = []string{"1", "2", "3", "4", "5", "6"}

// ValidYearOfStudy reports whether y is an accepted year value.
func ValidYearOfStudy(y string) bool {
	for _, v := range YearsOfStudy {
		if v == y {
			return true
		}
	}
	return false
}
