package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_LegacyFormat(t *testing.T) {
	content := `
server:
  port: 9000
  title: "PBMC explorer"
data:
  path: "/data/legacy/pbmc3k"
cache:
  frame_size_mb: 128
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.Title != "PBMC explorer" {
		t.Errorf("unexpected title %q", cfg.Server.Title)
	}
	if cfg.Data.DefaultDataset != "default" {
		t.Errorf("expected default dataset 'default', got %q", cfg.Data.DefaultDataset)
	}
	ds, ok := cfg.Data.Datasets["default"]
	if !ok {
		t.Fatal("expected 'default' dataset")
	}
	if ds.Path != "/data/legacy/pbmc3k" {
		t.Errorf("unexpected path: %s", ds.Path)
	}
	if ds.DemoCells != 0 {
		t.Errorf("expected no demo cells for a real dataset, got %d", ds.DemoCells)
	}
	if cfg.Cache.FrameSizeMB != 128 {
		t.Errorf("expected frame cache 128, got %d", cfg.Cache.FrameSizeMB)
	}
}

func TestLoad_MultiDatasetFormat(t *testing.T) {
	content := `
server:
  port: 8080
data:
  pbmc:
    path: "/data/pbmc"
  liver:
    path: "/data/liver"
`
	cfg := loadFromString(t, content)

	if len(cfg.Data.Datasets) != 2 {
		t.Fatalf("expected 2 datasets, got %d", len(cfg.Data.Datasets))
	}

	// First dataset in YAML order should be default
	if cfg.Data.DefaultDataset != "pbmc" {
		t.Errorf("expected default dataset 'pbmc', got %q", cfg.Data.DefaultDataset)
	}
	if cfg.Data.Datasets["liver"].Path != "/data/liver" {
		t.Errorf("unexpected liver path: %s", cfg.Data.Datasets["liver"].Path)
	}

	ids := cfg.Data.DatasetIDs()
	if len(ids) != 2 || ids[0] != "pbmc" || ids[1] != "liver" {
		t.Errorf("unexpected dataset order: %v", ids)
	}
}

func TestLoad_ExplicitDefaultDataset(t *testing.T) {
	content := `
data:
  default_dataset: demo
  pbmc:
    path: "/data/pbmc"
  demo:
    demo_cells: 5000
`
	cfg := loadFromString(t, content)

	if cfg.Data.DefaultDataset != "demo" {
		t.Errorf("expected default dataset 'demo', got %q", cfg.Data.DefaultDataset)
	}
	if got := cfg.Data.Datasets["demo"].DemoCells; got != 5000 {
		t.Errorf("expected 5000 demo cells, got %d", got)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	content := `
server:
  port: 0
data:
  test:
    path: "/test/dataset"
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Cache.FrameSizeMB != 256 {
		t.Errorf("expected default cache size 256, got %d", cfg.Cache.FrameSizeMB)
	}
	if cfg.Render.Width != 800 || cfg.Render.Height != 600 {
		t.Errorf("expected default frame 800x600, got %dx%d", cfg.Render.Width, cfg.Render.Height)
	}
	if cfg.Selection.MinLassoArea != 10 || cfg.Selection.MinRunLength != 3 || cfg.Selection.RetentionDays != 30 {
		t.Errorf("unexpected selection defaults: %+v", cfg.Selection)
	}
	if cfg.Cache.FrameTTL() != 10*time.Minute {
		t.Errorf("unexpected frame TTL %v", cfg.Cache.FrameTTL())
	}
	if cfg.Render.FrameInterval() != time.Second/60 {
		t.Errorf("unexpected frame interval %v", cfg.Render.FrameInterval())
	}
}

func TestLoad_NoDataSection(t *testing.T) {
	content := `
server:
  port: 8080
`
	cfg := loadFromString(t, content)

	if cfg.Data.DefaultDataset != "default" {
		t.Errorf("expected default dataset, got %q", cfg.Data.DefaultDataset)
	}
	if len(cfg.Data.Datasets) != 1 {
		t.Errorf("expected 1 default dataset, got %d", len(cfg.Data.Datasets))
	}
	if cfg.Data.Datasets["default"].DemoCells == 0 {
		t.Error("expected the default dataset to be synthetic")
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknownTool": `
selection:
  default_tool: wand
`,
		"unknownDefaultDataset": `
data:
  default_dataset: missing
  pbmc:
    path: /data/pbmc
`,
		"unknownViewerDataset": `
viewer:
  dataset: missing
`,
		"dataNotMapping": `
data: [1, 2]
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write temp config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected defaults, got port %d", cfg.Server.Port)
	}
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}
