// Package main is the entry point for the explorer server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thehyve/single-cell-explorer/internal/api"
	"github.com/thehyve/single-cell-explorer/internal/cache"
	"github.com/thehyve/single-cell-explorer/internal/config"
	"github.com/thehyve/single-cell-explorer/internal/data/store"
	"github.com/thehyve/single-cell-explorer/internal/selection"
	"github.com/thehyve/single-cell-explorer/internal/selstore"
	"github.com/thehyve/single-cell-explorer/pkg/colormap"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting explorer server on port %d", cfg.Server.Port)

	ctx := context.Background()

	// Initialize cache manager (shared across all datasets)
	cacheManager, err := cache.NewManager(cache.Config{
		FrameCacheSizeMB: cfg.Cache.FrameSizeMB,
		FrameTTL:         cfg.Cache.FrameTTL(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	// Selection history (SQLite persistence)
	selections, err := selstore.NewStore(cfg.Selection.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize selection store: %v", err)
	}
	defer selections.Close()

	janitor := selstore.NewJanitor(selections, selstore.JanitorConfig{
		RetentionDays: cfg.Selection.RetentionDays,
		CleanupPeriod: 1 * time.Hour,
	})
	janitor.Start()
	defer janitor.Stop()
	log.Printf("Selection store: retention_days=%d, sqlite=%s", cfg.Selection.RetentionDays, cfg.Selection.DBPath)

	scale, ok := colormap.Lookup(cfg.Render.DefaultColormap)
	if !ok {
		log.Fatalf("Unknown colormap %q", cfg.Render.DefaultColormap)
	}
	tool, _ := selection.ParseTool(cfg.Selection.DefaultTool)

	// Initialize dataset registry
	datasetIDs := cfg.Data.DatasetIDs()
	registry := api.NewDatasetRegistry(cfg.Data.DefaultDataset, datasetIDs, cfg.Server.Title)
	defer registry.Close()

	log.Printf("Initializing %d dataset(s), default: %s", len(datasetIDs), cfg.Data.DefaultDataset)

	for _, datasetID := range datasetIDs {
		ds := cfg.Data.Datasets[datasetID]

		dataset, err := store.OpenDataset(ds.Path, ds.DemoCells)
		if err != nil {
			log.Fatalf("Failed to open dataset %q: %v", datasetID, err)
		}
		if ds.Path != "" {
			log.Printf("  [%s] Loaded from: %s", datasetID, ds.Path)
		} else {
			log.Printf("  [%s] Synthetic dataset", datasetID)
		}
		log.Printf("    Cells: %d, Layouts: %v", dataset.NumCells(), dataset.Layouts())

		session, err := api.NewSession(api.SessionConfig{
			DatasetID:    datasetID,
			Dataset:      dataset,
			Cache:        cacheManager,
			Selections:   selections,
			Width:        cfg.Render.Width,
			Height:       cfg.Render.Height,
			PointScale:   cfg.Render.PointScale,
			Colormap:     scale,
			Tool:         tool,
			ColorBy:      cfg.Viewer.ColorBy,
			MinLassoArea: cfg.Selection.MinLassoArea,
			MinRunLength: cfg.Selection.MinRunLength,
			MemoEntries:  cfg.Cache.MemoEntries,
		})
		if err != nil {
			log.Fatalf("Failed to initialize session for dataset %q: %v", datasetID, err)
		}
		registry.Register(datasetID, session)
	}

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Registry:    registry,
		Cache:       cacheManager,
		Selections:  selections,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
