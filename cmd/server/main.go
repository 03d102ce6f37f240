package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/partsdesk/importer/internal/config"
	"github.com/partsdesk/importer/internal/db"
	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/importer"
	"github.com/partsdesk/importer/internal/logging"
	"github.com/partsdesk/importer/internal/middleware"
	"github.com/partsdesk/importer/internal/remote"
	"github.com/partsdesk/importer/internal/repository"
	"github.com/partsdesk/importer/internal/search"
	"github.com/partsdesk/importer/internal/tracker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.Database, "./migrations", log); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories, pool-bound; the engine rebinds them per transaction.
	productRepo := repository.NewProductRepository(conn.Pool)
	dealerRepo := repository.NewDealerRepository(conn.Pool)
	mappingRepo := repository.NewMappingRepository(conn.Pool)
	backorderRepo := repository.NewBackorderRepository(conn.Pool)
	orderRepo := repository.NewOrderRepository(conn.Pool)
	runRepo := repository.NewImportRunRepository(conn.Pool)
	scanRepo := repository.NewScanRunRepository(conn.Pool)
	fileStateRepo := repository.NewRemoteFileStateRepository(conn.Pool)

	registry := importer.NewRegistry()
	registry.Register(domain.EntityTypeProducts, func() importer.Strategy {
		return importer.NewProductStrategy(productRepo)
	})
	registry.Register(domain.EntityTypeDealers, func() importer.Strategy {
		return importer.NewDealerStrategy(dealerRepo)
	})
	registry.Register(domain.EntityTypeSupersededMapping, func() importer.Strategy {
		return importer.NewSupersededStrategy(mappingRepo)
	})
	registry.Register(domain.EntityTypeBackorder, func() importer.Strategy {
		return importer.NewBackorderStrategy(productRepo, backorderRepo)
	})
	registry.Register(domain.EntityTypeOrderStatus, func() importer.Strategy {
		return importer.NewOrderStatusStrategy(orderRepo)
	})

	var syncer importer.SearchSyncer
	if cfg.Search.Enabled {
		engine := search.NewHTTPEngine(cfg.Search.BaseURL, cfg.Search.APIKey, cfg.Search.Timeout)
		syncer = search.NewSynchronizer(engine, productRepo, cfg.Search.Alias, log)
	}

	progress := tracker.New(cfg.Import.ProgressRetention)
	engine := importer.NewEngine(conn, cfg.Import.ChunkSize, log)
	service := importer.NewService(engine, registry, runRepo, progress, syncer, log)
	importHandler := importer.NewHandler(service, runRepo, progress)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /imports", importHandler.Upload)
	mux.HandleFunc("GET /imports", importHandler.ListRuns)
	mux.HandleFunc("GET /imports/{id}/status", importHandler.Status)
	mux.HandleFunc("GET /imports/{id}/errors", importHandler.RowErrors)

	var scheduler *remote.Scheduler
	if cfg.Remote.Enabled {
		store := remote.NewHTTPFileStore(cfg.Remote.BaseURL, cfg.Remote.Token, cfg.Remote.Timeout)
		orchestrator := remote.NewOrchestrator(store, service, scanRepo, fileStateRepo, cfg.Remote.FolderConfigs(), log)
		scanHandler := remote.NewHandler(orchestrator, scanRepo)

		mux.HandleFunc("POST /remote-scans", scanHandler.Trigger)
		mux.HandleFunc("GET /remote-scans", scanHandler.List)
		mux.HandleFunc("GET /remote-scans/{id}", scanHandler.Status)

		scheduler = remote.NewScheduler(orchestrator, cfg.Remote.Schedule, log)
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Failed to start scan scheduler: %v", err)
		}
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      corsHandler.Handler(middleware.Logging(log)(mux)),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Import server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
