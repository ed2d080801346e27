package handler

import (
	"errors"
	"net/http"

	"voicematch/backend/internal/models"
	"voicematch/backend/internal/voicehub"

	"github.com/gin-gonic/gin"
)

// JoinQueue handles a join-queue request: the caller either gets parked in
// the queue or comes back with a room and a partner. Never a partial result.
func (h *Handler) JoinQueue(c *gin.Context) {
	anonID, ok := anonIDFromRequest(c)
	if !ok {
		return
	}

	var criteria models.MatchCriteria
	if err := c.ShouldBindJSON(&criteria); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match criteria"})
		return
	}

	result, err := h.Matcher.JoinQueue(anonID, criteria)
	if err != nil {
		if errors.Is(err, voicehub.ErrAlreadyQueued) {
			c.JSON(http.StatusConflict, gin.H{"error": "already in queue"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join queue"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// LeaveQueue cancels the caller's waiting entry. Idempotent.
func (h *Handler) LeaveQueue(c *gin.Context) {
	anonID, ok := anonIDFromRequest(c)
	if !ok {
		return
	}

	h.Matcher.LeaveQueue(anonID)
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}
