package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jonesmeistro/keyword-planner-volumes/internal/config"
	"github.com/jonesmeistro/keyword-planner-volumes/internal/handler"
	"github.com/jonesmeistro/keyword-planner-volumes/internal/service"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/logger"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/stats"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/storage"
)

type Application struct {
	configPath string
	debug      bool
}

func main() {
	app := &Application{}

	flag.StringVar(&app.configPath, "config", "config/config.yaml", "Configuration file path")
	flag.BoolVar(&app.debug, "debug", false, "Enable debug mode")
	flag.Parse()

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func (app *Application) Run() error {
	cfg, err := config.NewManager().Load(app.configPath)
	if err != nil {
		return err
	}
	if app.debug {
		cfg.Logger.Level = "debug"
	}
	logger.SetLogger(logger.New(cfg.Logger))
	log := logger.GetLogger().WithField("component", "server")

	creds, err := config.LoadSecrets(cfg.Secrets.File)
	if err != nil {
		return err
	}
	geo, err := config.LoadGeoTargets(cfg.Reference.GeoTargetsFile)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := stats.NewRecorder(registry)

	fetcher, err := service.NewFetcher(cfg, creds, recorder)
	if err != nil {
		return err
	}
	svc := service.New(cfg, geo, fetcher, storage.NewMissingLog(cfg.Output.MissingLog), recorder)

	// Cancelled on shutdown so a running fetch stops before the server does.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := handler.NewApp(cfg.Server, handler.NewController(svc, registry).WithContext(ctx))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Shutdown signal received")
		cancel()
	}()

	errChan := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{
			"addr":      cfg.Server.Addr,
			"countries": len(geo.Countries()),
		}).Info("Server started")
		errChan <- server.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down gracefully")
	if err := server.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("Server stopped")
	return nil
}
