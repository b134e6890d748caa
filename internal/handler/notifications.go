package handler

import (
    "context"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-booking/internal/model"
)

const (
    defaultNotificationLimit = 50
    maxNotificationLimit     = 200
)

// NotificationLister reads a user's inbox.
type NotificationLister interface {
    FindNotificationsByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error)
}

// NotificationHandler serves the caller's booking notifications.
type NotificationHandler struct {
    Notifications NotificationLister
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(store NotificationLister) *NotificationHandler {
    return &NotificationHandler{Notifications: store}
}

// ListMine handles GET /api/notifications?limit=N, newest first.
func (h *NotificationHandler) ListMine(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    limit := defaultNotificationLimit
    if v := c.QueryParam("limit"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n <= 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be a positive integer"})
        }
        limit = min(n, maxNotificationLimit)
    }
    list, err := h.Notifications.FindNotificationsByUser(c.Request().Context(), uid, limit)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"notifications": list})
}
