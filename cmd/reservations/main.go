package main

import (
	"context"
	_ "time/tzdata"

	bookinghandler "slotkeeper/internal/bookings/handler"
	"slotkeeper/internal/bookings/repository"
	bookingservice "slotkeeper/internal/bookings/service"
	"slotkeeper/internal/reservations/handler"
	"slotkeeper/internal/reservations/service"
	"slotkeeper/internal/reservations/validator"
	"slotkeeper/pkg/app"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/events"
	"slotkeeper/pkg/model"
	"slotkeeper/pkg/obs"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStore()
	cfg.SetRedis()

	cfg.Log.Info("Starting Reservations service")
	shutdownTracer, err := obs.InitTracer(cfg, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize tracing", "error", err)
	}
	publisher, err := events.New(cfg, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize event publisher", "error", err)
	}

	bookingRepo, err := repository.New(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to create booking repository", "error", err)
	}
	engine := service.NewEngine(
		bookingRepo,
		validator.NewReservationValidator(cfg.Log),
		publisher,
		model.HolderOrStaff,
		cfg,
	)
	bookingService := bookingservice.NewBookingService(bookingRepo, model.HolderOrStaff, cfg)
	cfg.Log.Info("Reservation engine initialized", "store", cfg.StoreDriver, "events", cfg.EventsDriver)

	serverApp := app.NewApplication(cfg)
	serverApp.AddCloser("tracer", shutdownTracer)
	serverApp.AddCloser("events", func(context.Context) error { return publisher.Close() })
	serverApp.SetApp(
		handler.NewReservationHandler(engine, cfg.Log),
		bookinghandler.NewBookingHandler(bookingService, cfg.Log),
	)
	serverApp.Run()
}
