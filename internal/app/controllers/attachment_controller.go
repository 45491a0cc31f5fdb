package controllers

import (
	"net/http"

	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/services"
	"github.com/aits/backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AttachmentController handles files attached to issues
type AttachmentController struct {
	attachmentService *services.AttachmentService
	logger            zerolog.Logger
}

// NewAttachmentController creates a new AttachmentController
func NewAttachmentController(attachmentService *services.AttachmentService, logger zerolog.Logger) *AttachmentController {
	return &AttachmentController{
		attachmentService: attachmentService,
		logger:            logger,
	}
}

// ListAttachments lists the files of an issue
// @Summary List attachments of an issue
// @Tags attachments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Issue ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse{data=[]dto.AttachmentResponse} "Attachments"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Issue not found"
// @Router /issues/{id}/attachments [get]
func (c *AttachmentController) ListAttachments(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	list, err := c.attachmentService.List(ctx.Request.Context(), user, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(list))
}

// UploadAttachments stores files against an issue
// @Summary Upload attachments
// @Description Multipart upload with one or more files under "attachments". Size and MIME type are checked.
// @Tags attachments
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "Issue ID" Format(int64) minimum(1)
// @Param attachments formData file true "Files"
// @Success 201 {object} dto.APIResponse{data=[]dto.AttachmentResponse} "Stored attachments"
// @Failure 400 {object} dto.ErrorResponse "No file, file too large or type not allowed"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not allowed to attach files"
// @Failure 404 {object} dto.ErrorResponse "Issue not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /issues/{id}/attachments [post]
func (c *AttachmentController) UploadAttachments(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	stored, err := c.attachmentService.Upload(ctx.Request.Context(), user, id, uploadedFiles(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().Int64("issueID", id).Int("count", len(stored)).Msg("Attachments uploaded")
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(stored))
}

// GetAttachment returns attachment metadata
// @Summary Get an attachment
// @Tags attachments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Attachment ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse{data=dto.AttachmentResponse} "Attachment"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Attachment not found"
// @Router /attachments/{id} [get]
func (c *AttachmentController) GetAttachment(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	a, err := c.attachmentService.Get(ctx.Request.Context(), user, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewAttachmentResponse(a)))
}

// DownloadAttachment streams the stored file
// @Summary Download an attachment
// @Tags attachments
// @Produce octet-stream
// @Security BearerAuth
// @Param id path int true "Attachment ID" Format(int64) minimum(1)
// @Success 200 {file} file "File content"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Attachment not found"
// @Router /attachments/{id}/download [get]
func (c *AttachmentController) DownloadAttachment(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	a, path, err := c.attachmentService.Open(ctx.Request.Context(), user, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.Header("Content-Type", a.MimeType)
	ctx.FileAttachment(path, a.FileName)
}

// DeleteAttachment removes a file from an issue
// @Summary Delete an attachment
// @Tags attachments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Attachment ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse "Attachment deleted"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not allowed to delete attachments"
// @Failure 404 {object} dto.ErrorResponse "Attachment not found"
// @Router /attachments/{id} [delete]
func (c *AttachmentController) DeleteAttachment(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	if err := c.attachmentService.Delete(ctx.Request.Context(), user, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewMessageResponse("Attachment deleted"))
}
