package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Status is the operational surface: current room count, subscriber count
// and queue depth.
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"rooms":       h.Registry.RoomCount(),
		"connections": h.Relay.SubscriberCount(),
		"queue_depth": h.Matcher.QueueDepth(),
	})
}
