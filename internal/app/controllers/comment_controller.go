package controllers

import (
	"net/http"

	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/services"
	"github.com/aits/backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// CommentController handles issue comments
type CommentController struct {
	commentService *services.CommentService
}

// NewCommentController creates a new CommentController
func NewCommentController(commentService *services.CommentService) *CommentController {
	return &CommentController{commentService: commentService}
}

func (c *CommentController) list(ctx *gin.Context, issueID int64) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}

	comments, err := c.commentService.List(ctx.Request.Context(), user, issueID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(comments))
}

func (c *CommentController) create(ctx *gin.Context, issueID int64, text string) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}

	comment, err := c.commentService.Create(ctx.Request.Context(), user, issueID, text)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(comment))
}

// ListIssueComments lists the comments of an issue
// @Summary List comments of an issue
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Issue ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse{data=[]dto.CommentResponse} "Comments, oldest first"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Issue not found"
// @Router /issues/{id}/comments [get]
func (c *CommentController) ListIssueComments(ctx *gin.Context) {
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	c.list(ctx, id)
}

// CreateIssueComment adds a comment to an issue
// @Summary Comment on an issue
// @Description Anyone who can see the issue may comment. The student and the assignee are notified unless they wrote it.
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Issue ID" Format(int64) minimum(1)
// @Param request body dto.CreateCommentRequest true "Comment"
// @Success 201 {object} dto.APIResponse{data=dto.CommentResponse} "Comment created"
// @Failure 400 {object} dto.ErrorResponse "Text is required"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not allowed to comment"
// @Failure 404 {object} dto.ErrorResponse "Issue not found"
// @Router /issues/{id}/comments [post]
func (c *CommentController) CreateIssueComment(ctx *gin.Context) {
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	var req dto.CreateCommentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	c.create(ctx, id, req.Text)
}

// ListComments lists comments with the issue given as a query parameter
// @Summary List comments
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param issue query int true "Issue ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.CommentResponse} "Comments, oldest first"
// @Failure 400 {object} dto.ErrorResponse "issue is required"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Issue not found"
// @Router /comments [get]
func (c *CommentController) ListComments(ctx *gin.Context) {
	issueID, ok := int64Query(ctx, "issue")
	if !ok {
		return
	}
	if issueID == nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "issue is required").WithField("issue")))
		return
	}
	c.list(ctx, *issueID)
}

// CreateComment adds a comment with the issue named in the body
// @Summary Create a comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateIssueCommentRequest true "Comment"
// @Success 201 {object} dto.APIResponse{data=dto.CommentResponse} "Comment created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not allowed to comment"
// @Failure 404 {object} dto.ErrorResponse "Issue not found"
// @Router /comments [post]
func (c *CommentController) CreateComment(ctx *gin.Context) {
	var req dto.CreateIssueCommentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	c.create(ctx, req.Issue, req.Text)
}
