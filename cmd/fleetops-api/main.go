// README: Entry point; loads config, wires module services, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetops/internal/config"
	"fleetops/internal/events"
	httptransport "fleetops/internal/http"
	"fleetops/internal/infra"
	"fleetops/internal/logging"
	"fleetops/internal/modules/audit"
	"fleetops/internal/modules/expense"
	"fleetops/internal/modules/fleet"
	"fleetops/internal/modules/maintenance"
	"fleetops/internal/modules/trip"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database init")
	}
	defer pool.Close()

	rdb := infra.NewRedis(cfg.Redis.Addr)
	uow := infra.NewUnitOfWork(pool)

	hub := events.NewHub(log)

	auditStore := audit.NewStore(pool)
	recorder := audit.NewRecorder(auditStore, log)

	fleetStore := fleet.NewStore(pool)
	fleetSvc := fleet.NewService(fleetStore, recorder, hub, log)

	expenseStore := expense.NewStore(pool)
	expenseSvc := expense.NewService(expenseStore, fleetStore, recorder)

	tripStore := trip.NewStore(pool)
	refs := trip.NewRefCodeSource(rdb, log)
	tripSvc := trip.NewService(tripStore, fleetStore, expenseStore, uow, refs, recorder, hub, log)

	maintStore := maintenance.NewStore(pool)
	maintSvc := maintenance.NewService(maintStore, fleetStore, uow, recorder, hub, log)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Fleet:       fleetSvc,
		Trips:       tripSvc,
		Expenses:    expenseSvc,
		Maintenance: maintSvc,
		Audit:       auditStore,
		Hub:         hub,
		JWTSecret:   cfg.Auth.JWTSecret,
		Log:         log,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().Str("addr", cfg.HTTP.Addr).Msg("listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server")
	}
	log.Info().Msg("stopped")
}
