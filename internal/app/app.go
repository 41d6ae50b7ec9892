package app

import (
	"context"

	"accountwatch/config"
	"accountwatch/internal/jobs"
	"accountwatch/internal/logger"
	"accountwatch/internal/services"
	"accountwatch/internal/websockets"
)

type App struct {
	Websocket *websockets.Manager
	Config    config.Config

	// Services
	ProcessorService   *services.ProcessorService
	FileCleanupService *services.FileCleanupService
	SchedulerService   *services.SchedulerService
}

func New() (*App, error) {
	log := logger.New("app").Function("New")

	config, err := config.New()
	if err != nil {
		return &App{}, log.Err("failed to initialize config", err)
	}

	websocket := websockets.New()

	processorService := services.NewProcessorService(config, websocket)
	fileCleanupService := services.NewFileCleanupService(config)
	schedulerService := services.NewSchedulerService()

	if config.SchedulerEnabled {
		fileCleanupJob := jobs.NewFileCleanupJob(fileCleanupService, services.Hourly)
		if err := schedulerService.AddJob(fileCleanupJob); err != nil {
			return &App{}, log.Err("failed to register file cleanup job", err)
		}
		log.Info("Registered file cleanup job with scheduler")
	}

	app := &App{
		Websocket:          websocket,
		Config:             config,
		ProcessorService:   processorService,
		FileCleanupService: fileCleanupService,
		SchedulerService:   schedulerService,
	}

	if err := app.validate(); err != nil {
		return &App{}, log.Err("failed to validate app", err)
	}

	return app, nil
}

func (a *App) validate() error {
	log := logger.New("app").Function("validate")

	if a.Config == (config.Config{}) {
		return log.ErrMsg("config is nil")
	}

	nilChecks := []any{
		a.Websocket,
		a.ProcessorService,
		a.FileCleanupService,
		a.SchedulerService,
	}

	for _, check := range nilChecks {
		if check == nil {
			return log.ErrMsg("nil check failed")
		}
	}

	return nil
}

func (a *App) Close() (err error) {
	if a.SchedulerService != nil {
		if closeErr := a.SchedulerService.Stop(context.Background()); closeErr != nil {
			err = closeErr
		}
	}

	return err
}
