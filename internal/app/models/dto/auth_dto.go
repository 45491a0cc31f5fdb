package dto

import "github.com/aits/backend/internal/app/models"

// LoginRequest represents login credentials. Username is the registration
// number for students and the email address for everyone else.
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"21/U/12345"`
	Password string `json:"password" binding:"required" example:"secret123"`
}

// TokenResponse is returned by every login and refresh endpoint.
type TokenResponse struct {
	Access           string      `json:"access"`
	Refresh          string      `json:"refresh"`
	Role             models.Role `json:"role" example:"student"`
	TokenType        string      `json:"tokenType" example:"Bearer"`
	ExpiresIn        int         `json:"expiresIn" example:"3600"`
	RefreshExpiresIn int         `json:"refreshExpiresIn" example:"604800"`
}

// RefreshTokenRequest represents refresh token request
type RefreshTokenRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// RegisterRequest is shared by the student, lecturer and registrar sign-up
// endpoints. Which fields are mandatory depends on the role.
type RegisterRequest struct {
	Email            string   `json:"email" binding:"required,email" example:"jane@students.mak.ac.ug"`
	Password         string   `json:"password" binding:"required,min=8" example:"secret123"`
	FullName         string   `json:"fullName" example:"Jane Doe"`
	FirstName        string   `json:"firstName" example:"Jane"`
	LastName         string   `json:"lastName" example:"Doe"`
	StudentRegNumber string   `json:"studentRegNumber" example:"21/U/12345"`
	YearOfStudy      string   `json:"yearOfStudy" binding:"omitempty,year_of_study" example:"2"`
	College          string   `json:"college" binding:"required" example:"COCIS"`
	Department       string   `json:"department" example:"Computer Science"`
	CoursesTaught    []string `json:"coursesTaught"`
}

// AuthResponse is returned after a successful registration.
type AuthResponse struct {
	Token TokenResponse `json:"token"`
	User  UserResponse  `json:"user"`
}

// LogoutRequest optionally names the refresh token to revoke. Without it
// every session of the user is ended.
type LogoutRequest struct {
	Refresh string `json:"refresh"`
}
