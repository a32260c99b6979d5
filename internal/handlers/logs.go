package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dag-trigger-gateway/internal/models"
)

// GetLogs returns all trigger logs
func (h *Handlers) GetLogs(c *gin.Context) {
	logs, err := h.repo.GetTriggerLogs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch logs",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, logs)
}

// GetLog returns a single trigger log by ID
func (h *Handlers) GetLog(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_id", Message: "Invalid log ID", Code: http.StatusBadRequest})
		return
	}
	log, err := h.repo.GetTriggerLog(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not_found", Message: "Log not found", Code: http.StatusNotFound})
		return
	}
	c.JSON(http.StatusOK, log)
}
