package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pocketbook/internal/services"
)

// MaintenanceHandler serves internal endpoints guarded by the service API key.
type MaintenanceHandler struct {
	maintenanceService services.MaintenanceServicer
	auditService       services.AuditServicer
}

// NewMaintenanceHandler creates a new MaintenanceHandler.
func NewMaintenanceHandler(maintenanceService services.MaintenanceServicer, auditService services.AuditServicer) *MaintenanceHandler {
	return &MaintenanceHandler{maintenanceService: maintenanceService, auditService: auditService}
}

// RebuildIndex rebuilds the owning sets of a user from the stored records.
// @Summary     Rebuild owning sets
// @Description Recompute every owning set of a user from the records' own references
// @Tags        internal
// @Produce     json
// @Security    ServiceKey
// @Param       id path string true "User ID"
// @Success     200 {object} map[string]interface{} "Number of set entries written"
// @Failure     400 {object} ErrorResponse "Invalid user ID"
// @Failure     401 {object} ErrorResponse "Missing or invalid API key"
// @Failure     404 {object} ErrorResponse "User not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /internal/users/{id}/reindex [post]
func (h *MaintenanceHandler) RebuildIndex(c *gin.Context) {
	userID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	written, err := h.maintenanceService.RebuildIndex(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REBUILD_INDEX", "user", userID, c.ClientIP(),
		map[string]interface{}{"entries": written})

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "entries": written})
}
