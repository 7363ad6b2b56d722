// README: Maintenance log handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleetops/internal/http/middleware"
	"fleetops/internal/modules/maintenance"
	"fleetops/internal/types"
)

type MaintenanceHandler struct {
	maintenance *maintenance.Service
}

func NewMaintenanceHandler(svc *maintenance.Service) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: svc}
}

type openMaintenanceReq struct {
	VehicleID string  `json:"vehicleId"`
	Kind      string  `json:"kind"`
	Provider  string  `json:"provider"`
	Cost      float64 `json:"cost"`
	LoggedAt  string  `json:"loggedAt"`
}

func (h *MaintenanceHandler) Open(c *gin.Context) {
	var req openMaintenanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	var loggedAt time.Time
	if req.LoggedAt != "" {
		var err error
		loggedAt, err = time.Parse(time.RFC3339, req.LoggedAt)
		if err != nil {
			writeError(c, http.StatusBadRequest, "loggedAt must be RFC3339")
			return
		}
	}
	l, err := h.maintenance.Open(c.Request.Context(), maintenance.OpenCommand{
		VehicleID: types.ID(req.VehicleID),
		Kind:      maintenance.Kind(req.Kind),
		Provider:  req.Provider,
		Cost:      req.Cost,
		LoggedAt:  loggedAt,
		ActorID:   middleware.Actor(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h *MaintenanceHandler) Resolve(c *gin.Context) {
	l, err := h.maintenance.Resolve(c.Request.Context(), types.ID(c.Param("id")), middleware.Actor(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *MaintenanceHandler) List(c *gin.Context) {
	ls, err := h.maintenance.List(c.Request.Context(), types.ID(c.Query("vehicleId")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if ls == nil {
		ls = []*maintenance.Log{}
	}
	c.JSON(http.StatusOK, gin.H{"maintenance": ls})
}
