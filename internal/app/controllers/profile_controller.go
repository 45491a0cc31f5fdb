package controllers

import (
	"net/http"

	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/services"
	"github.com/aits/backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// ProfileController serves the per-role profile pages
type ProfileController struct {
	profiles *services.ProfileService
}

// NewProfileController creates a new ProfileController
func NewProfileController(profiles *services.ProfileService) *ProfileController {
	return &ProfileController{profiles: profiles}
}

// respond writes data or maps err.
func respond(ctx *gin.Context, data interface{}, err error) {
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// GetProfile returns the caller's account
// @Summary Get own profile
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse} "Profile"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /profile [get]
func (c *ProfileController) GetProfile(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	profile, err := c.profiles.GetProfile(ctx.Request.Context(), user.ID)
	respond(ctx, profile, err)
}

// UpdateProfile edits the caller's account
// @Summary Update own profile
// @Tags profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateProfileRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse} "Updated profile"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /profile [patch]
func (c *ProfileController) UpdateProfile(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req dto.UpdateProfileRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	profile, err := c.profiles.UpdateProfile(ctx.Request.Context(), user, &req)
	respond(ctx, profile, err)
}

// StudentProfile returns a student's profile and issues
// @Summary Student profile
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.StudentProfileResponse} "Profile with issues"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not a student"
// @Router /student-profile [get]
func (c *ProfileController) StudentProfile(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	profile, err := c.profiles.StudentProfile(ctx.Request.Context(), user)
	respond(ctx, profile, err)
}

// LecturerDetails returns a lecturer's profile and assigned issues
// @Summary Lecturer details
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.LecturerDetailsResponse} "Profile with assigned issues"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not a lecturer"
// @Router /lecturer/details [get]
func (c *ProfileController) LecturerDetails(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	details, err := c.profiles.LecturerDetails(ctx.Request.Context(), user)
	respond(ctx, details, err)
}

// RegistrarProfile returns a registrar's profile and college summary
// @Summary Registrar profile
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.RegistrarProfileResponse} "Profile with college summary"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not a registrar"
// @Router /registrar-profile [get]
func (c *ProfileController) RegistrarProfile(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	profile, err := c.profiles.RegistrarProfile(ctx.Request.Context(), user)
	respond(ctx, profile, err)
}

// ListLecturers lists the lecturers of the registrar's college
// @Summary List lecturers
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.UserResponse} "Active lecturers of the college"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not a registrar"
// @Router /lecturers [get]
func (c *ProfileController) ListLecturers(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	lecturers, err := c.profiles.ListLecturers(ctx.Request.Context(), user)
	respond(ctx, lecturers, err)
}
