package main

import (
	"context"
	_ "time/tzdata"

	resourcerepo "slotkeeper/internal/resources/repository"
	"slotkeeper/internal/slots/handler"
	"slotkeeper/internal/slots/intake"
	"slotkeeper/internal/slots/repository"
	"slotkeeper/internal/slots/service"
	"slotkeeper/internal/slots/validator"
	"slotkeeper/pkg/app"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/events"
	"slotkeeper/pkg/obs"
)

const ServiceName = "slots"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStore()
	cfg.SetRedis()

	cfg.Log.Info("Starting Slots service")
	shutdownTracer, err := obs.InitTracer(cfg, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize tracing", "error", err)
	}
	publisher, err := events.New(cfg, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize event publisher", "error", err)
	}

	slotService := initServices(cfg, publisher)
	serverApp := app.NewApplication(cfg)
	serverApp.AddCloser("tracer", shutdownTracer)
	serverApp.AddCloser("events", func(context.Context) error { return publisher.Close() })

	if cfg.Kafka.SlotBatchTopic != "" {
		consumer, err := intake.NewConsumer(cfg, slotService)
		if err != nil {
			cfg.Log.Fatal("Failed to create slot batch consumer", "error", err)
		}
		serverApp.AddWorker("slot-batch-intake", consumer.Start)
		serverApp.AddCloser("slot-batch-intake", func(context.Context) error { return consumer.Close() })
	}

	serverApp.SetApp(handler.NewSlotHandler(slotService, cfg.Log, cfg.Location, cfg.ImportSigningSecret))
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) service.SlotService {
	slotRepo, err := repository.New(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to create slot repository", "error", err)
	}
	resourceRepo, err := resourcerepo.New(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to create resource repository", "error", err)
	}
	slotService := service.NewSlotService(
		slotRepo,
		resourceRepo,
		validator.NewSlotValidator(cfg.Log),
		publisher,
		cfg,
	)

	cfg.Log.Info("Slot service initialized", "store", cfg.StoreDriver, "time_zone", cfg.CalendarTimeZone)
	return slotService
}
