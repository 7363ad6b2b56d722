// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"fleetops/internal/events"
	"fleetops/internal/http/handlers"
	"fleetops/internal/http/middleware"
	"fleetops/internal/modules/audit"
	"fleetops/internal/modules/expense"
	"fleetops/internal/modules/fleet"
	"fleetops/internal/modules/maintenance"
	"fleetops/internal/modules/trip"
)

type RouterDeps struct {
	Fleet       *fleet.Service
	Trips       *trip.Service
	Expenses    *expense.Service
	Maintenance *maintenance.Service
	Audit       *audit.Store
	Hub         *events.Hub
	JWTSecret   string
	Log         zerolog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "subscribers": deps.Hub.Subscribers()})
	})

	ws := handlers.NewWSHandler(deps.Hub, deps.Log)
	r.GET("/ws", ws.Subscribe)

	api := r.Group("/api", middleware.Auth(deps.JWTSecret))

	fh := handlers.NewFleetHandler(deps.Fleet)
	api.POST("/vehicles", fh.CreateVehicle)
	api.GET("/vehicles", fh.ListVehicles)
	api.GET("/vehicles/:id", fh.GetVehicle)
	api.PATCH("/vehicles/:id", fh.UpdateVehicle)
	api.PATCH("/vehicles/:id/status", fh.SetVehicleStatus)
	api.POST("/vehicles/:id/odometer", fh.CorrectOdometer)

	api.POST("/drivers", fh.CreateDriver)
	api.GET("/drivers", fh.ListDrivers)
	api.GET("/drivers/:id", fh.GetDriver)
	api.PATCH("/drivers/:id/status", fh.SetDriverStatus)

	th := handlers.NewTripHandler(deps.Trips)
	api.POST("/trips", th.Create)
	api.GET("/trips", th.List)
	api.GET("/trips/:id", th.Get)
	api.PATCH("/trips/:id/dispatch", th.Dispatch)
	api.PATCH("/trips/:id/complete", th.Complete)
	api.PATCH("/trips/:id/cancel", th.Cancel)

	eh := handlers.NewExpenseHandler(deps.Expenses)
	api.POST("/expenses", eh.Create)
	api.GET("/expenses", eh.List)

	mh := handlers.NewMaintenanceHandler(deps.Maintenance)
	api.POST("/maintenance", mh.Open)
	api.GET("/maintenance", mh.List)
	api.PATCH("/maintenance/:id/resolve", mh.Resolve)

	ah := handlers.NewAuditHandler(deps.Audit)
	api.GET("/audit", ah.List)

	return r
}
