package controllers

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/app/services"
	"github.com/aits/backend/internal/middleware"
	"github.com/aits/backend/internal/pkg/helpers"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// attachmentField is the multipart key for uploaded files.
const attachmentField = "attachments"

// IssueController handles issue CRUD
type IssueController struct {
	issueService *services.IssueService
	logger       zerolog.Logger
}

// NewIssueController creates a new IssueController
func NewIssueController(issueService *services.IssueService, logger zerolog.Logger) *IssueController {
	return &IssueController{
		issueService: issueService,
		logger:       logger,
	}
}

// uploadedFiles returns the files of a multipart request, nil for JSON.
func uploadedFiles(ctx *gin.Context) []*multipart.FileHeader {
	if !strings.HasPrefix(ctx.ContentType(), "multipart/") {
		return nil
	}
	form, err := ctx.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	files := form.File[attachmentField]
	if len(files) == 0 {
		files = form.File["file"]
	}
	return files
}

// CreateIssue handles issue submission
// @Summary Submit an issue
// @Description Students submit a new issue. The issue is routed to the registrar of the student's college (status pending) or left open when the college has none. Accepts JSON or a multipart form with files under "attachments".
// @Tags issues
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateIssueRequest true "Issue"
// @Success 201 {object} dto.APIResponse{data=dto.IssueResponse} "Issue created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Only students can submit issues"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /issues [post]
func (c *IssueController) CreateIssue(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}

	var req dto.CreateIssueRequest
	if !middleware.Bind(ctx, &req) {
		return
	}

	issue, err := c.issueService.Create(ctx.Request.Context(), user, &req, uploadedFiles(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(issue))
}

// ListIssues handles issue listing
// @Summary List issues
// @Description Lists the issues visible to the caller: own issues for students, assigned issues for lecturers, the department for HoDs, the college for registrars and everything for admins.
// @Tags issues
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param category query string false "Category filter"
// @Param priority query string false "Priority filter"
// @Param assigned_to query int false "Assignee id"
// @Param search query string false "Matches title or description"
// @Param sort query string false "createdAt, updatedAt, priority, status or title; prefix with - for descending"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.IssueListResponse} "Issues"
// @Failure 400 {object} dto.ErrorResponse "Invalid filter"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /issues [get]
func (c *IssueController) ListIssues(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}

	var q services.IssueQuery
	if !middleware.BindQuery(ctx, &q.Filter) {
		return
	}
	q.Page, q.Size = helpers.ParsePaginationParams(ctx)
	q.SortBy, q.SortDesc = helpers.ParseSortParam(ctx, repositories.IssueSortFields()...)

	list, err := c.issueService.List(ctx.Request.Context(), user, q)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(list))
}

// GetIssue handles issue retrieval
// @Summary Get an issue
// @Tags issues
// @Produce json
// @Security BearerAuth
// @Param id path int true "Issue ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse{data=dto.IssueResponse} "Issue with attachments"
// @Failure 400 {object} dto.ErrorResponse "Invalid issue ID"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Issue not found or not visible"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /issues/{id} [get]
func (c *IssueController) GetIssue(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	issue, err := c.issueService.Get(ctx.Request.Context(), user, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(issue))
}

// UpdateIssue handles issue edits
// @Summary Update an issue
// @Description Patches descriptive fields. Status changes go through the workflow endpoints. Send version to guard against concurrent edits.
// @Tags issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Issue ID" Format(int64) minimum(1)
// @Param request body dto.UpdateIssueRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.IssueResponse} "Issue updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data or issue is resolved"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not allowed to update this issue"
// @Failure 404 {object} dto.ErrorResponse "Issue not found"
// @Failure 409 {object} dto.ErrorResponse "Version mismatch"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /issues/{id} [patch]
func (c *IssueController) UpdateIssue(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var req dto.UpdateIssueRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	issue, err := c.issueService.Update(ctx.Request.Context(), user, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(issue))
}

// DeleteIssue handles issue removal
// @Summary Delete an issue
// @Description Registrars of the college and admins may delete an issue. Comments, attachments and notifications go with it.
// @Tags issues
// @Produce json
// @Security BearerAuth
// @Param id path int true "Issue ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse "Issue deleted"
// @Failure 400 {object} dto.ErrorResponse "Invalid issue ID"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not allowed to delete this issue"
// @Failure 404 {object} dto.ErrorResponse "Issue not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /issues/{id} [delete]
func (c *IssueController) DeleteIssue(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	if err := c.issueService.Delete(ctx.Request.Context(), user, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().Int64("issueID", id).Int64("userID", user.ID).Msg("Issue deleted")
	ctx.JSON(http.StatusOK, dto.NewMessageResponse("Issue deleted"))
}
