package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type NotificationsController struct {
	circulation CirculationService
}

func NewNotificationsController(circulation CirculationService) *NotificationsController {
	return &NotificationsController{circulation: circulation}
}

// ListNotifications returns the caller's notifications, newest first
// GET /notifications?unread=true
func (nc *NotificationsController) ListNotifications(c *gin.Context) {
	unreadOnly, ok := parseBoolQuery(c, "unread")
	if !ok {
		return
	}

	list, err := nc.circulation.Notifications(c.Request.Context(), actorFrom(c), unreadOnly)
	if err != nil {
		respondAppError(c, err, "list notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "count": len(list)})
}

// MarkRead flags one of the caller's notifications as read
// POST /notifications/:id/read
func (nc *NotificationsController) MarkRead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := nc.circulation.MarkNotificationRead(c.Request.Context(), actorFrom(c), id); err != nil {
		respondAppError(c, err, "mark notification read")
		return
	}
	respondSuccess(c, "notification marked as read")
}
