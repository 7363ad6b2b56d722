// README: Vehicle and driver registry handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleetops/internal/http/middleware"
	"fleetops/internal/modules/fleet"
	"fleetops/internal/types"
)

type FleetHandler struct {
	fleet *fleet.Service
}

func NewFleetHandler(svc *fleet.Service) *FleetHandler {
	return &FleetHandler{fleet: svc}
}

type createVehicleReq struct {
	Name            string  `json:"name"`
	Model           string  `json:"model"`
	Type            string  `json:"type"`
	LicensePlate    string  `json:"licensePlate"`
	MaxLoadKg       float64 `json:"maxLoadKg"`
	OdometerKm      float64 `json:"odometerKm"`
	AcquisitionCost float64 `json:"acquisitionCost"`
}

func (h *FleetHandler) CreateVehicle(c *gin.Context) {
	var req createVehicleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	v, err := h.fleet.CreateVehicle(c.Request.Context(), fleet.CreateVehicleCommand{
		Name:            req.Name,
		Model:           req.Model,
		Type:            fleet.VehicleType(req.Type),
		LicensePlate:    req.LicensePlate,
		MaxLoadKg:       req.MaxLoadKg,
		OdometerKm:      req.OdometerKm,
		AcquisitionCost: req.AcquisitionCost,
		ActorID:         middleware.Actor(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

type updateVehicleReq struct {
	Name            string  `json:"name"`
	Model           string  `json:"model"`
	AcquisitionCost float64 `json:"acquisitionCost"`
}

func (h *FleetHandler) UpdateVehicle(c *gin.Context) {
	var req updateVehicleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	v, err := h.fleet.UpdateVehicle(c.Request.Context(), fleet.UpdateVehicleCommand{
		VehicleID:       types.ID(c.Param("id")),
		Name:            req.Name,
		Model:           req.Model,
		AcquisitionCost: req.AcquisitionCost,
		ActorID:         middleware.Actor(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type correctOdometerReq struct {
	OdometerKm float64 `json:"odometerKm"`
}

func (h *FleetHandler) CorrectOdometer(c *gin.Context) {
	var req correctOdometerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	v, err := h.fleet.CorrectOdometer(c.Request.Context(), types.ID(c.Param("id")), req.OdometerKm, middleware.Actor(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type setStatusReq struct {
	Status string `json:"status"`
}

func (h *FleetHandler) SetVehicleStatus(c *gin.Context) {
	var req setStatusReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		writeError(c, http.StatusBadRequest, "status is required")
		return
	}
	v, err := h.fleet.SetVehicleStatus(c.Request.Context(), types.ID(c.Param("id")),
		fleet.VehicleStatus(req.Status), middleware.Actor(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *FleetHandler) SetDriverStatus(c *gin.Context) {
	var req setStatusReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		writeError(c, http.StatusBadRequest, "status is required")
		return
	}
	d, err := h.fleet.SetDriverStatus(c.Request.Context(), types.ID(c.Param("id")),
		fleet.DriverStatus(req.Status), middleware.Actor(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *FleetHandler) GetVehicle(c *gin.Context) {
	v, err := h.fleet.GetVehicle(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *FleetHandler) ListVehicles(c *gin.Context) {
	vs, err := h.fleet.ListVehicles(c.Request.Context(), fleet.VehicleStatus(c.Query("status")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if vs == nil {
		vs = []*fleet.Vehicle{}
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": vs})
}

type createDriverReq struct {
	Name          string   `json:"name"`
	LicenseNumber string   `json:"licenseNumber"`
	LicenseExpiry string   `json:"licenseExpiry"`
	Categories    []string `json:"categories"`
}

func (h *FleetHandler) CreateDriver(c *gin.Context) {
	var req createDriverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	expiry, err := time.Parse("2006-01-02", req.LicenseExpiry)
	if err != nil {
		writeError(c, http.StatusBadRequest, "licenseExpiry must be YYYY-MM-DD")
		return
	}
	categories := make([]fleet.VehicleType, 0, len(req.Categories))
	for _, cat := range req.Categories {
		categories = append(categories, fleet.VehicleType(cat))
	}
	d, err := h.fleet.CreateDriver(c.Request.Context(), fleet.CreateDriverCommand{
		Name:          req.Name,
		LicenseNumber: req.LicenseNumber,
		LicenseExpiry: expiry,
		Categories:    categories,
		ActorID:       middleware.Actor(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *FleetHandler) GetDriver(c *gin.Context) {
	d, err := h.fleet.GetDriver(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *FleetHandler) ListDrivers(c *gin.Context) {
	ds, err := h.fleet.ListDrivers(c.Request.Context(), fleet.DriverStatus(c.Query("status")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if ds == nil {
		ds = []*fleet.Driver{}
	}
	c.JSON(http.StatusOK, gin.H{"drivers": ds})
}
