package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"

	"anisync/api"
	"anisync/config"
	"anisync/handlers"
	"anisync/models"
	"anisync/services/anilist"
	"anisync/services/provider"
	"anisync/services/scheduler"
	"anisync/services/store"
	syncsvc "anisync/services/sync"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	crawlType := flag.String("crawl", "", "run a one-shot crawl for the given media type (anime|manga) and exit")
	flag.Parse()

	// Determine config path (env or default)
	configPath := os.Getenv("ANISYNC_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	if dir := filepath.Dir(settings.Database.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("failed to create database directory %s: %v", dir, err)
		}
	}

	catalog, err := store.Open(settings.Database.Path, settings.Export.Directory)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer catalog.Close()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	metadataClient := anilist.NewClient(httpClient)
	registry := provider.NewRegistry(
		provider.NewEnimeAdapter(httpClient),
		provider.NewComickAdapter(httpClient),
	)
	syncService := syncsvc.NewService(cfgManager, metadataClient, catalog, registry)
	schedulerService := scheduler.NewService(cfgManager, syncService)

	// One-shot crawl mode
	if *crawlType != "" {
		mediaType := models.MediaType(*crawlType)
		switch *crawlType {
		case "anime":
			mediaType = models.TypeAnime
		case "manga":
			mediaType = models.TypeManga
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		if err := syncService.Crawl(ctx, mediaType); err != nil {
			log.Fatalf("crawl failed: %v", err)
		}
		return
	}

	r := mux.NewRouter()
	api.Register(r,
		handlers.NewCatalogHandler(syncService),
		handlers.NewSettingsHandler(cfgManager),
	)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	if err := schedulerService.Start(context.Background()); err != nil {
		log.Printf("failed to start scheduler: %v", err)
	}

	go func() {
		log.Printf("anisync listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := schedulerService.Stop(shutdownCtx); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}
