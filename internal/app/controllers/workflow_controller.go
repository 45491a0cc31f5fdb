package controllers

import (
	"net/http"

	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/services"
	"github.com/aits/backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// WorkflowController exposes the issue status transitions.
type WorkflowController struct {
	workflow *services.WorkflowService
}

// NewWorkflowController creates a new WorkflowController
func NewWorkflowController(workflow *services.WorkflowService) *WorkflowController {
	return &WorkflowController{workflow: workflow}
}

// AssignIssue assigns an issue to a lecturer
// @Summary Assign an issue
// @Description Registrars assign an issue of their college to an active lecturer of the same college. The student and the lecturer are notified.
// @Tags workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Issue ID" Format(int64) minimum(1)
// @Param request body dto.AssignIssueRequest true "Lecturer to assign"
// @Success 200 {object} dto.APIResponse{data=dto.IssueResponse} "Issue assigned"
// @Failure 400 {object} dto.ErrorResponse "Missing lecturer or invalid transition"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Only registrars can assign issues"
// @Failure 404 {object} dto.ErrorResponse "Issue or lecturer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /issues/{id}/assign [patch]
func (c *WorkflowController) AssignIssue(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var req dto.AssignIssueRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	issue, err := c.workflow.Assign(ctx.Request.Context(), user, id, req.AssignedToID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(issue))
}

// ResolveIssue resolves an issue
// @Summary Resolve an issue
// @Description The assigned lecturer or a registrar of the college resolves the issue with a mandatory note.
// @Tags workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Issue ID" Format(int64) minimum(1)
// @Param request body dto.ResolveIssueRequest true "Resolution note"
// @Success 200 {object} dto.APIResponse{data=dto.IssueResponse} "Issue resolved"
// @Failure 400 {object} dto.ErrorResponse "Missing note or issue already resolved"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not allowed to resolve this issue"
// @Failure 404 {object} dto.ErrorResponse "Issue not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /issues/{id}/resolve [patch]
func (c *WorkflowController) ResolveIssue(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var req dto.ResolveIssueRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	issue, err := c.workflow.Resolve(ctx.Request.Context(), user, id, req.ResolutionNote)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(issue))
}

// StartProgress marks an assigned issue as being worked on
// @Summary Start work on an issue
// @Tags workflow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Issue ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse{data=dto.IssueResponse} "Issue in progress"
// @Failure 400 {object} dto.ErrorResponse "Issue is not assigned"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not the assigned lecturer"
// @Failure 404 {object} dto.ErrorResponse "Issue not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /issues/{id}/start [patch]
func (c *WorkflowController) StartProgress(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	issue, err := c.workflow.StartProgress(ctx.Request.Context(), user, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(issue))
}

// CloseIssue closes a resolved issue
// @Summary Close an issue
// @Tags workflow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Issue ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse{data=dto.IssueResponse} "Issue closed"
// @Failure 400 {object} dto.ErrorResponse "Issue is not resolved"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not allowed to close this issue"
// @Failure 404 {object} dto.ErrorResponse "Issue not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /issues/{id}/close [patch]
func (c *WorkflowController) CloseIssue(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	issue, err := c.workflow.Close(ctx.Request.Context(), user, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(issue))
}
