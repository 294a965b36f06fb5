package main

import (
	_ "time/tzdata"

	"slotkeeper/internal/resources/handler"
	"slotkeeper/internal/resources/repository"
	"slotkeeper/internal/resources/service"
	"slotkeeper/internal/resources/validator"
	"slotkeeper/pkg/app"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/obs"
)

const ServiceName = "resources"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStore()
	cfg.SetRedis()

	cfg.Log.Info("Starting Resources service")
	shutdownTracer, err := obs.InitTracer(cfg, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize tracing", "error", err)
	}

	resourceService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.AddCloser("tracer", shutdownTracer)
	serverApp.SetApp(handler.NewResourceHandler(resourceService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.ResourceService {
	resourceRepo, err := repository.New(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to create resource repository", "error", err)
	}
	resourceService := service.NewResourceService(
		resourceRepo,
		validator.NewResourceValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Resource service initialized", "store", cfg.StoreDriver)
	return resourceService
}
