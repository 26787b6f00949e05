// Package main is the terminal scatter plot viewer.
package main

import (
	"flag"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/thehyve/single-cell-explorer/internal/config"
	"github.com/thehyve/single-cell-explorer/internal/data/store"
	"github.com/thehyve/single-cell-explorer/internal/selection"
	"github.com/thehyve/single-cell-explorer/internal/selstore"
	"github.com/thehyve/single-cell-explorer/internal/tui"
	"github.com/thehyve/single-cell-explorer/pkg/colormap"
)

func main() {
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	datasetID := flag.String("dataset", "", "Dataset to show (defaults to viewer.dataset, then data.default_dataset)")
	demo := flag.Int("demo", 0, "Show a synthetic dataset of this many cells instead")
	record := flag.Bool("record", false, "Record committed selections in the selection store")
	logPath := flag.String("log", "", "Write logs to this file")
	flag.Parse()

	// The viewer owns the terminal; logs go to a file or nowhere.
	log.SetOutput(io.Discard)
	if *logPath != "" {
		f, err := tea.LogToFile(*logPath, "scatterview")
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("Failed to load configuration: %v", err)
	}

	id := *datasetID
	if id == "" {
		id = cfg.Viewer.Dataset
	}
	if id == "" {
		id = cfg.Data.DefaultDataset
	}
	ds, ok := cfg.Data.Datasets[id]
	if *demo > 0 {
		ds, ok = config.DatasetConfig{DemoCells: *demo}, true
		id = "demo"
	}
	if !ok {
		log.SetOutput(os.Stderr)
		log.Fatalf("Unknown dataset %q", id)
	}

	dataset, err := store.OpenDataset(ds.Path, ds.DemoCells)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("Failed to open dataset %q: %v", id, err)
	}

	scale, _ := colormap.Lookup(cfg.Render.DefaultColormap)
	tool, _ := selection.ParseTool(cfg.Selection.DefaultTool)
	mcfg := tui.Config{
		Name:          id,
		Dataset:       dataset,
		ColorBy:       cfg.Viewer.ColorBy,
		Tool:          tool,
		MinLassoArea:  cfg.Selection.MinLassoArea,
		MemoEntries:   cfg.Cache.MemoEntries,
		Colormap:      scale,
		FrameInterval: cfg.Render.FrameInterval(),
		Async:         true,
		DatasetID:     id,
		MinRunLength:  cfg.Selection.MinRunLength,
	}
	if *record {
		selections, err := selstore.NewStore(cfg.Selection.DBPath)
		if err != nil {
			log.SetOutput(os.Stderr)
			log.Fatalf("Failed to initialize selection store: %v", err)
		}
		defer selections.Close()
		mcfg.Selections = selections
	}

	m, err := tui.NewModel(mcfg)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("Failed to start viewer: %v", err)
	}
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion()).Run(); err != nil {
		log.SetOutput(os.Stderr)
		log.Fatal(err)
	}
}
