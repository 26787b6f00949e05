package api

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/thehyve/single-cell-explorer/internal/cache"
	"github.com/thehyve/single-cell-explorer/internal/crossfilter"
	"github.com/thehyve/single-cell-explorer/internal/data/store"
	"github.com/thehyve/single-cell-explorer/internal/graph"
	"github.com/thehyve/single-cell-explorer/internal/render"
	"github.com/thehyve/single-cell-explorer/internal/selection"
	"github.com/thehyve/single-cell-explorer/internal/selstore"
	"github.com/thehyve/single-cell-explorer/pkg/colormap"
	"github.com/thehyve/single-cell-explorer/pkg/rangeenc"
)

// SessionConfig contains configuration for a viewer session.
type SessionConfig struct {
	DatasetID    string
	Dataset      store.Dataset
	Cache        *cache.Manager
	Selections   *selstore.Store // optional
	Width        int
	Height       int
	PointScale   float64
	Colormap     colormap.Colormap
	Tool         selection.Tool
	ColorBy      string
	MinLassoArea float64
	MinRunLength int
	MemoEntries  int
}

// Session is the server-side scatter plot of one dataset. HTTP clients
// drive it with pointer events and read back PNG frames.
type Session struct {
	id      string
	dataset store.Dataset
	cache   *cache.Manager
	surface *render.RasterSurface
	sched   *render.ManualScheduler
	graph   *graph.Graph
	minRun  int
	drawn   bool

	// mu serializes frame rendering.
	mu sync.Mutex
}

// NewSession creates a session showing the dataset's default layout.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Dataset == nil {
		return nil, fmt.Errorf("session %s: dataset is required", cfg.DatasetID)
	}
	if cfg.MinRunLength <= 0 {
		cfg.MinRunLength = rangeenc.DefaultMinRunLength
	}
	layout := cfg.Dataset.DefaultLayout()
	if layout == "" {
		return nil, fmt.Errorf("session %s: dataset has no layouts", cfg.DatasetID)
	}

	cf := crossfilter.New(cfg.Dataset.NumCells())
	sel := selection.NewStore(cf)
	if cfg.Selections != nil {
		sel.Listen(cfg.Selections.Recorder(cfg.DatasetID, cf, cfg.MinRunLength))
	}

	s := &Session{
		id:      cfg.DatasetID,
		dataset: cfg.Dataset,
		cache:   cfg.Cache,
		surface: render.NewRasterSurface(cfg.Width, cfg.Height, cfg.PointScale),
		sched:   &render.ManualScheduler{},
		minRun:  cfg.MinRunLength,
	}
	g, err := graph.New(cfg.Dataset, s.surface, sel, s.sched, graph.Options{
		Layout:       layout,
		Color:        cfg.ColorBy,
		Tool:         cfg.Tool,
		Mode:         selection.ModeSelect,
		MinLassoArea: cfg.MinLassoArea,
		MemoEntries:  cfg.MemoEntries,
		Colormap:     cfg.Colormap,
	})
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", cfg.DatasetID, err)
	}
	g.Resize(cfg.Width, cfg.Height)
	s.graph = g

	log.Printf("[Session] %s: %d cells, layout %s", cfg.DatasetID, cfg.Dataset.NumCells(), layout)
	return s, nil
}

// ID returns the dataset ID.
func (s *Session) ID() string { return s.id }

// Dataset returns the session's dataset.
func (s *Session) Dataset() store.Dataset { return s.dataset }

// Graph returns the session's scatter plot.
func (s *Session) Graph() *graph.Graph { return s.graph }

// Frame renders the current view as a PNG. A non-zero size resizes the
// viewport first. Frames are cached by everything that affects them.
//
// When loading the view fails after an earlier success, the last good
// points are rendered anyway and returned together with the load error.
func (s *Session) Frame(ctx context.Context, width, height int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if width > 0 && height > 0 {
		s.graph.Resize(width, height)
	}
	loadErr := s.graph.Refresh(ctx)
	if loadErr != nil && !s.drawn {
		return nil, loadErr
	}

	vp := s.graph.Viewport()
	key := cache.FrameKey(s.id, vp.Width, vp.Height, s.graph.FrameParts())
	if s.cache != nil && loadErr == nil {
		if data, ok := s.cache.GetFrame(key); ok {
			return data, nil
		}
	}

	s.sched.Flush()
	data, err := s.surface.PNG()
	if err != nil {
		return nil, err
	}
	s.drawn = true
	if s.cache != nil && loadErr == nil {
		if err := s.cache.SetFrame(key, data); err != nil {
			log.Printf("[Session] %s: failed to cache frame: %v", s.id, err)
		}
	}
	return data, loadErr
}

// SelectionSummary is the current selection in wire form.
type SelectionSummary struct {
	Shape   selection.Shape  `json:"-"`
	Kind    string           `json:"kind"`
	Count   int              `json:"count"`
	Total   int              `json:"total"`
	Indices []rangeenc.Entry `json:"indices"`
}

// Selection returns the current selection with range-encoded indices.
func (s *Session) Selection() SelectionSummary {
	shape, indices := s.graph.Selection()
	return SelectionSummary{
		Shape:   shape,
		Kind:    shape.Kind(),
		Count:   len(indices),
		Total:   s.dataset.NumCells(),
		Indices: rangeenc.Encode(indices, s.minRun, true),
	}
}

// Close releases the dataset.
func (s *Session) Close() {
	if c, ok := s.dataset.(interface{ Close() }); ok {
		c.Close()
	}
}
