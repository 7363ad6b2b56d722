// README: Trip lifecycle handlers; create, dispatch, complete, cancel, queries.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fleetops/internal/http/middleware"
	"fleetops/internal/modules/trip"
	"fleetops/internal/types"
)

type TripHandler struct {
	trips *trip.Service
}

func NewTripHandler(svc *trip.Service) *TripHandler {
	return &TripHandler{trips: svc}
}

type createTripReq struct {
	Origin        types.Place `json:"origin"`
	Destination   types.Place `json:"destination"`
	CargoWeightKg float64     `json:"cargoWeightKg"`
	VehicleID     string      `json:"vehicleId"`
	DriverID      string      `json:"driverId"`
	Notes         string      `json:"notes"`
}

func (h *TripHandler) Create(c *gin.Context) {
	var req createTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	t, err := h.trips.Create(c.Request.Context(), trip.CreateCommand{
		Origin:        req.Origin,
		Destination:   req.Destination,
		CargoWeightKg: req.CargoWeightKg,
		VehicleID:     types.ID(req.VehicleID),
		DriverID:      types.ID(req.DriverID),
		Notes:         req.Notes,
		ActorID:       middleware.Actor(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *TripHandler) Dispatch(c *gin.Context) {
	t, err := h.trips.Dispatch(c.Request.Context(), types.ID(c.Param("id")), middleware.Actor(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type completeTripReq struct {
	EndOdometer float64  `json:"endOdometer"`
	Revenue     float64  `json:"revenue"`
	Notes       string   `json:"notes"`
	FuelLiters  *float64 `json:"fuelLiters"`
	FuelCost    *float64 `json:"fuelCost"`
}

func (h *TripHandler) Complete(c *gin.Context) {
	var req completeTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	t, err := h.trips.Complete(c.Request.Context(), trip.CompleteCommand{
		TripID:      types.ID(c.Param("id")),
		EndOdometer: req.EndOdometer,
		Revenue:     req.Revenue,
		Notes:       req.Notes,
		FuelLiters:  req.FuelLiters,
		FuelCost:    req.FuelCost,
		ActorID:     middleware.Actor(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type cancelTripReq struct {
	Reason string `json:"reason"`
}

func (h *TripHandler) Cancel(c *gin.Context) {
	var req cancelTripReq
	_ = c.ShouldBindJSON(&req)
	t, err := h.trips.Cancel(c.Request.Context(), types.ID(c.Param("id")), req.Reason, middleware.Actor(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Get accepts either the trip id or its human-readable ref code.
func (h *TripHandler) Get(c *gin.Context) {
	key := c.Param("id")
	var t *trip.Trip
	var err error
	if strings.HasPrefix(key, "TRP-") {
		t, err = h.trips.GetByRefCode(c.Request.Context(), key)
	} else {
		t, err = h.trips.Get(c.Request.Context(), types.ID(key))
	}
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type listTripsResp struct {
	Trips []*trip.Trip `json:"trips"`
	Total int          `json:"total"`
}

func (h *TripHandler) List(c *gin.Context) {
	var q struct {
		Status    string `form:"status"`
		VehicleID string `form:"vehicleId"`
		DriverID  string `form:"driverId"`
		Limit     int    `form:"limit"`
		Offset    int    `form:"offset"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "invalid query")
		return
	}
	trips, total, err := h.trips.List(c.Request.Context(), trip.Filter{
		Status:    trip.Status(q.Status),
		VehicleID: types.ID(q.VehicleID),
		DriverID:  types.ID(q.DriverID),
		Limit:     q.Limit,
		Offset:    q.Offset,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if trips == nil {
		trips = []*trip.Trip{}
	}
	c.JSON(http.StatusOK, listTripsResp{Trips: trips, Total: total})
}
