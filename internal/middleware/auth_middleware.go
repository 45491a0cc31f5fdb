package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/pkg/apperrors"
	"github.com/aits/backend/internal/pkg/auth"
	"github.com/gin-gonic/gin"
)

// Context keys set by JWTAuth.
const (
	ContextUserID = "userID"
	ContextRole   = "role"
	ContextUser   = "currentUser"
)

// TokenValidator checks an access token.
type TokenValidator interface {
	ValidateAndExtractClaims(token string) (*auth.Claims, error)
}

// UserLoader fetches the account behind a token.
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// AuthMiddleware for authentication and authorization
type AuthMiddleware struct {
	tokens TokenValidator
	users  UserLoader
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(tokens TokenValidator, users UserLoader) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		users:  users,
	}
}

func unauthorized(c *gin.Context, code dto.ErrorCode, message, details string) {
	detail := dto.NewErrorDetail(code, message)
	if details != "" {
		detail.WithDetails(details)
	}
	abort(c, http.StatusUnauthorized, detail)
}

// bearerToken reads the Authorization header. Swagger UI sometimes sends the
// raw token or wraps it in quotes.
func bearerToken(c *gin.Context) string {
	header := strings.Trim(c.GetHeader("Authorization"), "\"' ")
	if header == "" {
		return ""
	}
	token, err := auth.ExtractBearerToken(header)
	if err != nil {
		return ""
	}
	return token
}

// JWTAuth validates the access token and loads the current user. Tokens of
// deactivated or deleted accounts are rejected even before they expire.
func (m *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			unauthorized(c, dto.ErrorCodeUnauthorized, "Authentication required", "Authorization header missing")
			return
		}

		claims, err := m.tokens.ValidateAndExtractClaims(tokenString)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				unauthorized(c, dto.ErrorCodeExpiredToken, "Authentication failed", "Token has expired")
				return
			}
			unauthorized(c, dto.ErrorCodeInvalidToken, "Authentication failed", "Invalid token")
			return
		}

		user, err := m.users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrUserNotFound) {
				unauthorized(c, dto.ErrorCodeInvalidToken, "Authentication failed", "User no longer exists")
				return
			}
			HandleAPIError(c, err)
			return
		}
		if !user.IsActive {
			unauthorized(c, dto.ErrorCodeAccountDisabled, "Account is disabled", "")
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextRole, user.Role)
		c.Set(ContextUser, user)

		c.Next()
	}
}

// RoleRequired lets the request through only for the given roles. It must run
// after JWTAuth.
func (m *AuthMiddleware) RoleRequired(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			unauthorized(c, dto.ErrorCodeUnauthorized, "Authentication required", "User information not found")
			return
		}

		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}

		abort(c, http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeForbidden, "You do not have permission to perform this action"))
	}
}

// CurrentUser returns the user loaded by JWTAuth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}
