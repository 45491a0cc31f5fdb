package controllers

import (
	"net/http"

	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/services"
	"github.com/aits/backend/internal/middleware"
	"github.com/aits/backend/internal/pkg/helpers"
	"github.com/gin-gonic/gin"
)

// NotificationController serves in-app notifications and the audit trail.
type NotificationController struct {
	notifications *services.NotificationService
}

// NewNotificationController creates a new NotificationController
func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{notifications: notifications}
}

// ListNotifications lists the caller's notifications
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Only unread notifications"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.NotificationListResponse} "Notifications, newest first"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /notifications [get]
func (c *NotificationController) ListNotifications(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}

	page, size := helpers.ParsePaginationParams(ctx)
	unread := ctx.Query("unread") == "true" || ctx.Query("unread") == "1"

	list, err := c.notifications.List(ctx.Request.Context(), user, unread, page, size)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(list))
}

// MarkRead marks one notification as read
// @Summary Mark a notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse "Marked as read"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Notification not found"
// @Router /notifications/{id}/read [patch]
func (c *NotificationController) MarkRead(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	if err := c.notifications.MarkRead(ctx.Request.Context(), user, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewMessageResponse("Notification marked as read"))
}

// MarkAllRead marks every notification of the caller as read
// @Summary Mark all notifications read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.MarkAllReadResponse} "Number of notifications changed"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /notifications/read-all [post]
func (c *NotificationController) MarkAllRead(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}

	n, err := c.notifications.MarkAllRead(ctx.Request.Context(), user)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.MarkAllReadResponse{Updated: n}))
}

// ListAuditLogs lists audit entries
// @Summary List audit logs
// @Description Available to HoDs, registrars and admins. HoDs and registrars only see entries of issues in their college.
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param user_id query int false "Actor id"
// @Param issue_id query int false "Issue id"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.AuditLogListResponse} "Audit entries, newest first"
// @Failure 400 {object} dto.ErrorResponse "Invalid filter"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Role may not view audit logs"
// @Router /audit-logs [get]
func (c *NotificationController) ListAuditLogs(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}

	var filter services.AuditLogFilter
	if filter.UserID, ok = int64Query(ctx, "user_id"); !ok {
		return
	}
	if filter.IssueID, ok = int64Query(ctx, "issue_id"); !ok {
		return
	}
	filter.Page, filter.Size = helpers.ParsePaginationParams(ctx)

	logs, err := c.notifications.ListAuditLogs(ctx.Request.Context(), user, filter)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(logs))
}
