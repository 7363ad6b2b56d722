// README: Fuel expense handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleetops/internal/http/middleware"
	"fleetops/internal/modules/expense"
	"fleetops/internal/types"
)

type ExpenseHandler struct {
	expenses *expense.Service
}

func NewExpenseHandler(svc *expense.Service) *ExpenseHandler {
	return &ExpenseHandler{expenses: svc}
}

type createExpenseReq struct {
	VehicleID string  `json:"vehicleId"`
	Liters    float64 `json:"liters"`
	Cost      float64 `json:"cost"`
	SpentAt   string  `json:"spentAt"`
}

func (h *ExpenseHandler) Create(c *gin.Context) {
	var req createExpenseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	var spentAt time.Time
	if req.SpentAt != "" {
		var err error
		spentAt, err = time.Parse(time.RFC3339, req.SpentAt)
		if err != nil {
			writeError(c, http.StatusBadRequest, "spentAt must be RFC3339")
			return
		}
	}
	e, err := h.expenses.Create(c.Request.Context(), expense.CreateCommand{
		VehicleID: types.ID(req.VehicleID),
		Liters:    req.Liters,
		Cost:      req.Cost,
		SpentAt:   spentAt,
		ActorID:   middleware.Actor(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *ExpenseHandler) List(c *gin.Context) {
	es, err := h.expenses.List(c.Request.Context(), expense.Filter{
		VehicleID: types.ID(c.Query("vehicleId")),
		TripID:    types.ID(c.Query("tripId")),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if es == nil {
		es = []*expense.FuelExpense{}
	}
	c.JSON(http.StatusOK, gin.H{"expenses": es})
}
