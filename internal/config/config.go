// Package config handles configuration loading for the explorer server
// and the terminal viewer.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Cache     CacheConfig     `yaml:"cache"`
	Render    RenderConfig    `yaml:"render"`
	Selection SelectionConfig `yaml:"selection"`
	Viewer    ViewerConfig    `yaml:"viewer"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	Title       string   `yaml:"title"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DataConfig contains the datasets to serve, in declaration order.
type DataConfig struct {
	Datasets       map[string]DatasetConfig
	DefaultDataset string
	order          []string
}

// DatasetConfig points at one dataset directory. An empty path serves a
// synthetic dataset of DemoCells cells.
type DatasetConfig struct {
	Path      string `yaml:"path"`
	DemoCells int    `yaml:"demo_cells"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	FrameSizeMB     int `yaml:"frame_size_mb"`
	FrameTTLMinutes int `yaml:"frame_ttl_minutes"`
	MemoEntries     int `yaml:"memo_entries"`
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	DefaultColormap string  `yaml:"default_colormap"`
	PointScale      float64 `yaml:"point_scale"`
	FrameRate       int     `yaml:"frame_rate"`
}

// SelectionConfig contains selection tool and persistence settings.
// RetentionDays is how long recorded selections are kept.
type SelectionConfig struct {
	DBPath        string  `yaml:"db_path"`
	DefaultTool   string  `yaml:"default_tool"`
	MinLassoArea  float64 `yaml:"min_lasso_area"`
	MinRunLength  int     `yaml:"min_run_length"`
	RetentionDays int     `yaml:"retention_days"`
}

// ViewerConfig contains terminal viewer settings.
type ViewerConfig struct {
	Dataset string `yaml:"dataset"`
	ColorBy string `yaml:"color_by"`
}

// DatasetIDs returns dataset IDs in declaration order.
func (d DataConfig) DatasetIDs() []string {
	return append([]string(nil), d.order...)
}

// UnmarshalYAML accepts either a map of dataset IDs to dataset settings
// or the legacy single-dataset form with path at the top level.
func (d *DataConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("data: expected a mapping, got %v", node.Tag)
	}
	d.Datasets = make(map[string]DatasetConfig)
	d.order = nil

	if isLegacyData(node) {
		var ds DatasetConfig
		if err := node.Decode(&ds); err != nil {
			return fmt.Errorf("data: %w", err)
		}
		d.add("default", ds)
		d.DefaultDataset = "default"
		return nil
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := node.Content[i+1]
		if key == "default_dataset" {
			d.DefaultDataset = value.Value
			continue
		}
		var ds DatasetConfig
		if err := value.Decode(&ds); err != nil {
			return fmt.Errorf("data.%s: %w", key, err)
		}
		d.add(key, ds)
	}
	return nil
}

func isLegacyData(node *yaml.Node) bool {
	for i := 0; i < len(node.Content); i += 2 {
		switch node.Content[i].Value {
		case "path", "demo_cells":
			return true
		}
	}
	return false
}

func (d *DataConfig) add(id string, ds DatasetConfig) {
	if _, exists := d.Datasets[id]; !exists {
		d.order = append(d.order, id)
	}
	d.Datasets[id] = ds
}

// FrameTTL returns the frame cache lifetime.
func (c CacheConfig) FrameTTL() time.Duration {
	return time.Duration(c.FrameTTLMinutes) * time.Minute
}

// FrameInterval returns the redraw frame budget.
func (r RenderConfig) FrameInterval() time.Duration {
	if r.FrameRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(r.FrameRate)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Data: DataConfig{
			Datasets:       map[string]DatasetConfig{"default": {DemoCells: 20000}},
			DefaultDataset: "default",
			order:          []string{"default"},
		},
		Cache: CacheConfig{
			FrameSizeMB:     256,
			FrameTTLMinutes: 10,
			MemoEntries:     16,
		},
		Render: RenderConfig{
			Width:           800,
			Height:          600,
			DefaultColormap: "viridis",
			PointScale:      1,
			FrameRate:       60,
		},
		Selection: SelectionConfig{
			DBPath:        "./data/selections.db",
			DefaultTool:   "brush",
			MinLassoArea:  10,
			MinRunLength:  3,
			RetentionDays: 30,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if len(cfg.Data.Datasets) == 0 {
		cfg.Data = defaults.Data
	}
	if cfg.Data.DefaultDataset == "" {
		cfg.Data.DefaultDataset = cfg.Data.order[0]
	}
	for id, ds := range cfg.Data.Datasets {
		if ds.Path == "" && ds.DemoCells == 0 {
			ds.DemoCells = defaults.Data.Datasets["default"].DemoCells
			cfg.Data.Datasets[id] = ds
		}
	}
	if cfg.Cache.FrameSizeMB == 0 {
		cfg.Cache.FrameSizeMB = defaults.Cache.FrameSizeMB
	}
	if cfg.Cache.FrameTTLMinutes == 0 {
		cfg.Cache.FrameTTLMinutes = defaults.Cache.FrameTTLMinutes
	}
	if cfg.Cache.MemoEntries == 0 {
		cfg.Cache.MemoEntries = defaults.Cache.MemoEntries
	}
	if cfg.Render.Width == 0 {
		cfg.Render.Width = defaults.Render.Width
	}
	if cfg.Render.Height == 0 {
		cfg.Render.Height = defaults.Render.Height
	}
	if cfg.Render.DefaultColormap == "" {
		cfg.Render.DefaultColormap = defaults.Render.DefaultColormap
	}
	if cfg.Render.PointScale == 0 {
		cfg.Render.PointScale = defaults.Render.PointScale
	}
	if cfg.Render.FrameRate == 0 {
		cfg.Render.FrameRate = defaults.Render.FrameRate
	}
	if cfg.Selection.DBPath == "" {
		cfg.Selection.DBPath = defaults.Selection.DBPath
	}
	if cfg.Selection.DefaultTool == "" {
		cfg.Selection.DefaultTool = defaults.Selection.DefaultTool
	}
	if cfg.Selection.MinLassoArea == 0 {
		cfg.Selection.MinLassoArea = defaults.Selection.MinLassoArea
	}
	if cfg.Selection.MinRunLength == 0 {
		cfg.Selection.MinRunLength = defaults.Selection.MinRunLength
	}
	if cfg.Selection.RetentionDays == 0 {
		cfg.Selection.RetentionDays = defaults.Selection.RetentionDays
	}
}

func (c *Config) validate() error {
	if _, ok := c.Data.Datasets[c.Data.DefaultDataset]; !ok {
		return fmt.Errorf("default dataset %q is not configured", c.Data.DefaultDataset)
	}
	if c.Viewer.Dataset != "" {
		if _, ok := c.Data.Datasets[c.Viewer.Dataset]; !ok {
			return fmt.Errorf("viewer dataset %q is not configured", c.Viewer.Dataset)
		}
	}
	switch c.Selection.DefaultTool {
	case "brush", "lasso":
	default:
		return fmt.Errorf("unknown selection tool %q", c.Selection.DefaultTool)
	}
	if c.Selection.MinRunLength < 1 {
		return fmt.Errorf("selection.min_run_length must be at least 1, got %d", c.Selection.MinRunLength)
	}
	return nil
}
