package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dag-trigger-gateway/internal/models"
	"dag-trigger-gateway/internal/trigger"
)

// HandlePush processes one Pub/Sub push delivery. Response contract:
// 200 for processed and already-processed deliveries, 500 for malformed
// bodies and for infrastructure or downstream failures, 418 when the
// gateway is disabled by configuration.
func (h *Handlers) HandlePush(c *gin.Context) {
	h.metrics.PushCount.Inc()

	// The kill switch runs before anything touches the dedup store.
	if !h.cfg.Trigger.Enabled {
		c.String(http.StatusTeapot, "DAG trigger gateway is disabled, because it's a tea pot.")
		return
	}

	var req models.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == nil || req.Message.MessageID == "" {
		c.String(http.StatusInternalServerError, "Error - Malformed Event Notification")
		return
	}

	messageID := req.Message.MessageID
	logrus.Infof("Received message with messageId %s", messageID)

	outcome, err := h.trigger.Process(c.Request.Context(), messageID, req.Message.Attributes)
	if err != nil {
		logrus.Errorf("Failed to process message %s: %v", messageID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "trigger_failed",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
		return
	}

	switch outcome {
	case trigger.OutcomeAlreadyProcessed:
		c.String(http.StatusOK, "The message for messageId %s has already been processed.", messageID)
	case trigger.OutcomeFiltered:
		c.String(http.StatusOK, "The message for messageId %s did not match the trigger filter.", messageID)
	default:
		c.String(http.StatusOK, "Triggered DAG run for messageId %s.", messageID)
	}
}
