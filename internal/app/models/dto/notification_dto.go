package dto

import "github.com/aits/backend/internal/app/models"

// NotificationListResponse is a page of notifications plus the unread total.
type NotificationListResponse struct {
	Notifications []*models.Notification `json:"notifications"`
	UnreadCount   int64                  `json:"unreadCount"`
	Pagination    PaginationInfo         `json:"pagination"`
}

// MarkAllReadResponse reports how many notifications changed.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// AuditLogListResponse is a page of audit entries.
type AuditLogListResponse struct {
	Logs       []*models.AuditLog `json:"logs"`
	Pagination PaginationInfo     `json:"pagination"`
}
