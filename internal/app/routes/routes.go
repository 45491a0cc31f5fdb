package routes

import (
	"github.com/aits/backend/internal/app/controllers"
	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Controllers groups the handlers mounted by SetupRouter.
type Controllers struct {
	Auth          *controllers.AuthController
	Issues        *controllers.IssueController
	Workflow      *controllers.WorkflowController
	Comments      *controllers.CommentController
	Attachments   *controllers.AttachmentController
	Notifications *controllers.NotificationController
	Profiles      *controllers.ProfileController
}

// SetupRouter configures all application routes
func SetupRouter(router *gin.Engine, c Controllers, authMiddleware *middleware.AuthMiddleware) {
	v1 := router.Group(dto.APIPrefix)

	// --- Public auth routes ---
	v1.POST("/register", c.Auth.RegisterStudent)
	v1.POST("/lecturer/register", c.Auth.RegisterLecturer)
	v1.POST("/registrar/signup", c.Auth.SignupRegistrar)
	v1.POST("/token", c.Auth.Login)
	v1.POST("/login", c.Auth.Login)
	v1.POST("/lecturer/login", c.Auth.LecturerLogin)
	v1.POST("/token/refresh", c.Auth.RefreshToken)

	// --- Authenticated routes ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())

	authenticated.POST("/logout", c.Auth.Logout)

	issues := authenticated.Group("/issues")
	{
		issues.GET("", c.Issues.ListIssues)
		issues.POST("", c.Issues.CreateIssue)
		issues.GET("/:id", c.Issues.GetIssue)
		issues.PATCH("/:id", c.Issues.UpdateIssue)
		issues.DELETE("/:id", c.Issues.DeleteIssue)

		issues.PATCH("/:id/assign", c.Workflow.AssignIssue)
		issues.PATCH("/:id/resolve", c.Workflow.ResolveIssue)
		issues.PATCH("/:id/start", c.Workflow.StartProgress)
		issues.PATCH("/:id/close", c.Workflow.CloseIssue)

		issues.GET("/:id/comments", c.Comments.ListIssueComments)
		issues.POST("/:id/comments", c.Comments.CreateIssueComment)

		issues.GET("/:id/attachments", c.Attachments.ListAttachments)
		issues.POST("/:id/attachments", c.Attachments.UploadAttachments)
	}

	comments := authenticated.Group("/comments")
	{
		comments.GET("", c.Comments.ListComments)
		comments.POST("", c.Comments.CreateComment)
	}

	attachments := authenticated.Group("/attachments")
	{
		attachments.GET("/:id", c.Attachments.GetAttachment)
		attachments.GET("/:id/download", c.Attachments.DownloadAttachment)
		attachments.DELETE("/:id", c.Attachments.DeleteAttachment)
	}

	notifications := authenticated.Group("/notifications")
	{
		notifications.GET("", c.Notifications.ListNotifications)
		notifications.PATCH("/:id/read", c.Notifications.MarkRead)
		notifications.POST("/read-all", c.Notifications.MarkAllRead)
	}

	auditors := authenticated.Group("")
	auditors.Use(authMiddleware.RoleRequired(models.RoleHOD, models.RoleRegistrar, models.RoleAdmin))
	{
		auditors.GET("/audit-logs", c.Notifications.ListAuditLogs)
	}

	authenticated.GET("/profile", c.Profiles.GetProfile)
	authenticated.PATCH("/profile", c.Profiles.UpdateProfile)
	authenticated.GET("/student-profile", c.Profiles.StudentProfile)
	authenticated.GET("/lecturer/details", c.Profiles.LecturerDetails)
	authenticated.GET("/registrar-profile", c.Profiles.RegistrarProfile)

	registrars := authenticated.Group("")
	registrars.Use(authMiddleware.RoleRequired(models.RoleRegistrar))
	{
		registrars.GET("/lecturers", c.Profiles.ListLecturers)
	}
}
