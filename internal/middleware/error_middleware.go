package middleware

import (
	"errors"
	"net/http"
	"unicode"
	"unicode/utf8"

	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/pkg/apperrors"
	"github.com/aits/backend/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

// sentence upper-cases the first letter of an error message.
func sentence(err error) string {
	msg := err.Error()
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}

func abort(c *gin.Context, status int, detail *dto.ErrorDetail) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(detail))
}

// HandleAPIError maps service errors onto HTTP responses. It is the only
// place that knows the status code of an error.
func HandleAPIError(c *gin.Context, err error) {
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		detail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, verr.Message)
		if detail.Message == "" {
			detail.Message = "Validation failed"
		}
		if len(verr.Fields) > 0 {
			detail.WithDetails(verr.Fields)
		}
		if len(verr.Fields) == 1 {
			for field, msg := range verr.Fields {
				detail.WithField(field)
				detail.Message = msg
			}
		}
		abort(c, http.StatusBadRequest, detail)
		return
	}

	switch {
	case apperrors.Is(err, apperrors.ErrValidationFailed, apperrors.ErrBadRequest):
		abort(c, http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeValidationFailed, sentence(err)))

	case errors.Is(err, apperrors.ErrInvalidCredentials):
		abort(c, http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeInvalidCredentials, "No active account found with the given credentials"))
	case errors.Is(err, apperrors.ErrAccountDisabled):
		abort(c, http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeAccountDisabled, "Account is disabled"))
	case errors.Is(err, apperrors.ErrTokenExpired):
		abort(c, http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeExpiredToken, "Token expired"))
	case errors.Is(err, apperrors.ErrTokenNotFound):
		abort(c, http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeTokenNotFound, "Token not found"))
	case errors.Is(err, apperrors.ErrTokenRevoked):
		abort(c, http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeInvalidToken, "Token revoked"))
	case errors.Is(err, apperrors.ErrTokenInvalid):
		abort(c, http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeInvalidToken, "Invalid token"))
	case errors.Is(err, apperrors.ErrUnauthenticated):
		abort(c, http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required"))

	case errors.Is(err, apperrors.ErrPermissionDenied):
		abort(c, http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeForbidden, sentence(err)))

	case apperrors.Is(err, apperrors.ErrResourceNotFound,
		apperrors.ErrUserNotFound,
		apperrors.ErrIssueNotFound,
		apperrors.ErrLecturerNotFound,
		apperrors.ErrAttachmentNotFound,
		apperrors.ErrNotificationNotFound):
		abort(c, http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, sentence(err)))

	case apperrors.Is(err, apperrors.ErrIssueModified, apperrors.ErrConflict):
		abort(c, http.StatusConflict, dto.NewErrorDetail(dto.ErrorCodeConflict, sentence(err)))
	case apperrors.Is(err, apperrors.ErrResourceAlreadyExists, apperrors.ErrEmailAlreadyExists):
		abort(c, http.StatusConflict, dto.NewErrorDetail(dto.ErrorCodeResourceAlreadyExists, sentence(err)))

	default:
		logger.Error().Err(err).Str("path", c.FullPath()).Str("method", c.Request.Method).Msg("Unhandled error")
		abort(c, http.StatusInternalServerError, dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error"))
	}
}
