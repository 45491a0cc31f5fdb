// Package controllers handles HTTP request handling
package controllers

import (
	"net/http"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/middleware"
	"github.com/aits/backend/internal/pkg/helpers"
	"github.com/gin-gonic/gin"
)

// requireUser returns the authenticated user or writes a 401.
func requireUser(ctx *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")))
		return nil, false
	}
	return user, true
}

// idParam parses a positive path id or writes a 400.
func idParam(ctx *gin.Context, name string) (int64, bool) {
	id, ok := helpers.ParseIDParam(ctx, name)
	if !ok {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid "+name).WithField(name)))
		return 0, false
	}
	return id, true
}

// int64Query parses an optional positive query parameter or writes a 400.
func int64Query(ctx *gin.Context, name string) (*int64, bool) {
	v, ok := helpers.ParseInt64Query(ctx, name)
	if !ok {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeValidationFailed, name+" must be a positive integer").WithField(name)))
		return nil, false
	}
	return v, true
}
