// Package graph is one mounted scatter plot: it binds a camera, the
// selection tools, the fetch orchestrator and the buffer sync controller
// to a drawing surface. Presentation adapters feed it pointer events and
// viewport sizes and read back frames.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/thehyve/single-cell-explorer/internal/cache"
	"github.com/thehyve/single-cell-explorer/internal/crossfilter"
	"github.com/thehyve/single-cell-explorer/internal/data/frame"
	"github.com/thehyve/single-cell-explorer/internal/fetch"
	"github.com/thehyve/single-cell-explorer/internal/flags"
	"github.com/thehyve/single-cell-explorer/internal/render"
	"github.com/thehyve/single-cell-explorer/internal/selection"
	"github.com/thehyve/single-cell-explorer/internal/transform"
	"github.com/thehyve/single-cell-explorer/pkg/colormap"
)

// OverlayDrawer is implemented by surfaces that can draw the selection
// tool decoration on top of the points.
type OverlayDrawer interface {
	DrawOverlay(o selection.Overlay)
}

// Resizer is implemented by surfaces whose backing store follows the
// viewport size.
type Resizer interface {
	Resize(width, height int)
}

// Options configures a Graph.
type Options struct {
	Layout         string
	Color          string
	Highlight      string
	HighlightLabel string
	Tool           selection.Tool
	Mode           selection.Mode
	MinLassoArea   float64
	MemoEntries    int
	Colormap       colormap.Colormap
	// Async fetches in the background on Refresh instead of blocking.
	Async bool
	// OnFrame runs after every redraw.
	OnFrame func()
}

// Status summarizes the graph for display.
type Status struct {
	Layout   string     `json:"layout"`
	Color    string     `json:"color,omitempty"`
	State    string     `json:"state"`
	Error    string     `json:"error,omitempty"`
	Detail   string     `json:"detail,omitempty"`
	Selected int        `json:"selected"`
	Total    int        `json:"total"`
	Mode     string     `json:"mode"`
	Tool     string     `json:"tool"`
	Zoom     float64    `json:"zoom"`
	Pan      [2]float64 `json:"pan"`
}

type colorKey struct {
	col    *frame.Column
	points int
}

// Graph is a scatter plot instance. It is safe for concurrent use; the
// crossfilter is only read or written with mu held.
type Graph struct {
	mu sync.Mutex

	opts     Options
	cf       *crossfilter.Crossfilter
	store    *selection.Store
	orch     *fetch.Orchestrator
	surface  render.Surface
	sync     *render.SyncController
	throttle *render.Throttle

	camera   *transform.Camera
	viewport transform.Viewport
	pipeline *transform.Pipeline
	selector *selection.Selector
	mode     selection.Mode

	layout         string
	color          string
	highlight      string
	highlightLabel string

	positions *cache.Memo[*frame.Frame, []float32]
	colors    *cache.Memo[colorKey, []float32]
	flags     *flags.Encoder
	applied   bool
}

// New returns a graph drawing on surface with redraws scheduled on sched.
func New(source fetch.Source, surface render.Surface, store *selection.Store, sched render.FrameScheduler, opts Options) (*Graph, error) {
	if opts.Layout == "" {
		return nil, errors.New("graph: layout is required")
	}
	if opts.MemoEntries <= 0 {
		opts.MemoEntries = 8
	}
	if opts.Colormap == nil {
		opts.Colormap = colormap.Viridis
	}
	positions, err := cache.NewMemo[*frame.Frame, []float32](opts.MemoEntries)
	if err != nil {
		return nil, err
	}
	colors, err := cache.NewMemo[colorKey, []float32](opts.MemoEntries)
	if err != nil {
		return nil, err
	}
	enc, err := flags.NewEncoder(opts.MemoEntries)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		opts:           opts,
		cf:             store.Crossfilter(),
		store:          store,
		orch:           fetch.New(source),
		surface:        surface,
		sync:           render.NewSyncController(surface),
		camera:         transform.NewCamera(),
		mode:           opts.Mode,
		layout:         opts.Layout,
		color:          opts.Color,
		highlight:      opts.Highlight,
		highlightLabel: opts.HighlightLabel,
		positions:      positions,
		colors:         colors,
		flags:          enc,
	}
	g.selector = selection.NewSelector(opts.Tool, opts.Layout, selection.DispatchFunc(store.Dispatch), opts.MinLassoArea)
	g.throttle = render.NewThrottle(sched, g.redraw)
	return g, nil
}

// Resize sets the viewport. A zero size leaves the graph not ready.
func (g *Graph) Resize(width, height int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	vp := transform.Viewport{Width: width, Height: height}
	if vp == g.viewport {
		return
	}
	g.viewport = vp
	if r, ok := g.surface.(Resizer); ok {
		r.Resize(width, height)
	}
	p, err := transform.NewPipeline(vp)
	if err != nil {
		g.pipeline = nil
		log.Printf("[Graph] Viewport %dx%d not usable: %v", width, height, err)
		return
	}
	g.pipeline = p
	g.selector.Sync(g.store.Shape(), g.mapperLocked())
}

// Viewport returns the current viewport.
func (g *Graph) Viewport() transform.Viewport {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.viewport
}

func (g *Graph) mapperLocked() selection.Mapper {
	return selection.ViewMapper{Pipeline: g.pipeline, Camera: g.camera}
}

func (g *Graph) watchLocked() fetch.WatchSet {
	return fetch.WatchSet{
		Layout:         g.layout,
		Color:          g.color,
		Highlight:      g.highlight,
		HighlightLabel: g.highlightLabel,
		Generation:     g.cf.Generation(),
		Viewport:       g.viewport,
	}
}

// Refresh starts a fetch cycle if any watched input changed. In async
// mode it returns immediately; otherwise it waits for the cycle and
// returns its error.
func (g *Graph) Refresh(ctx context.Context) error {
	g.mu.Lock()
	ws := g.watchLocked()
	g.mu.Unlock()

	if g.opts.Async {
		g.orch.Start(ctx, ws, g.commit)
		return nil
	}
	t, began := g.orch.Begin(ws)
	if !began {
		_, err := g.orch.State()
		return err
	}
	r := g.orch.Fetch(ctx, t)
	err := g.orch.Commit(r)
	if errors.Is(err, fetch.ErrStale) {
		return nil
	}
	g.commit(r, err)
	return err
}

func (g *Graph) commit(r fetch.Result, err error) {
	if err != nil {
		log.Printf("[Graph] %v", err)
		g.throttle.Request()
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if r.Cycle != g.orch.Cycle() {
		return
	}
	g.applyLocked(r)
}

func (g *Graph) applyLocked(r fetch.Result) {
	layout := r.Layout
	x := layout.ICol(0).Numbers
	y := layout.ICol(1).Numbers
	n := len(x)
	if n != g.cf.Size() {
		log.Printf("[Graph] Layout %s has %d points, crossfilter has %d", r.Watch.Layout, n, g.cf.Size())
	}

	if g.selector.Layout() != r.Watch.Layout {
		g.selector.SetLayout(r.Watch.Layout)
		log.Printf("[Graph] Showing layout %s", r.Watch.Layout)
	}
	g.store.SetPositions(r.Watch.Layout, x, y)

	positions := g.positions.Get(layout, func() []float32 {
		return modelPositions(x, y)
	})
	colors := g.colors.Get(colorKey{r.Color, n}, func() []float32 {
		return render.ColorTable(n, r.Color, g.opts.Colormap)
	})
	pointFlags := g.flags.Flags(g.cf, flags.Input{
		Points:     n,
		Generation: g.cf.Generation(),
		Color:      r.Color,
		Highlight:  r.Highlight,
		Label:      r.Watch.HighlightLabel,
	})

	g.applied = true
	g.selector.Sync(g.store.Shape(), g.mapperLocked())
	if g.sync.Apply(render.Snapshot{
		Positions: positions,
		Colors:    colors,
		Flags:     pointFlags,
		Width:     r.Watch.Viewport.Width,
		Height:    r.Watch.Viewport.Height,
	}) {
		g.throttle.Request()
	}
}

// modelPositions applies the model transform to data-space coordinates.
func modelPositions(x, y []float32) []float32 {
	model := transform.Model()
	out := make([]float32, 2*len(x))
	for i := range x {
		p := model.Apply(transform.Vec2{float64(x[i]), float64(y[i])})
		out[2*i] = float32(p[0])
		out[2*i+1] = float32(p[1])
	}
	return out
}

func (g *Graph) redraw() {
	g.mu.Lock()
	if g.pipeline == nil {
		g.mu.Unlock()
		return
	}
	err := g.sync.Draw(g.pipeline.ProjView(g.camera), g.camera.Distance())
	if err == nil && g.applied {
		if od, ok := g.surface.(OverlayDrawer); ok {
			od.DrawOverlay(g.selector.Overlay())
		}
	}
	onFrame := g.opts.OnFrame
	g.mu.Unlock()

	if err != nil {
		log.Printf("[Graph] Draw failed: %v", err)
	}
	if onFrame != nil {
		onFrame()
	}
}

// RequestRedraw schedules a redraw at the next frame.
func (g *Graph) RequestRedraw() { g.throttle.Request() }

// HandlePointer routes a pointer event to the camera in zoom mode or to
// the active selection tool in select mode.
func (g *Graph) HandlePointer(ev transform.PointerEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pipeline == nil {
		return
	}

	if g.mode == selection.ModeZoom {
		if g.camera.HandleEvent(ev, g.pipeline.Projection(), g.viewport) {
			g.selector.Sync(g.store.Shape(), g.mapperLocked())
			g.throttle.Request()
		}
		return
	}

	var phase selection.Phase
	switch ev.Kind {
	case transform.PointerDown:
		phase = selection.GestureStart
	case transform.PointerMove:
		if !g.selector.Busy() {
			return
		}
		phase = selection.GestureMove
	case transform.PointerUp:
		phase = selection.GestureEnd
	case transform.PointerCancel:
		phase = selection.GestureCancel
	default:
		return
	}
	g.selector.Handle(selection.Gesture{Phase: phase, Pos: ev.Pos(), Synthetic: ev.Synthetic}, g.mapperLocked())
	g.throttle.Request()
}

// ResetCamera restores the identity view.
func (g *Graph) ResetCamera() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.camera.Zoom() == 1 && g.camera.Pan() == (transform.Vec2{}) {
		return
	}
	g.camera.Reset()
	g.selector.Sync(g.store.Shape(), g.mapperLocked())
	g.throttle.Request()
}

// CancelGesture discards a selection gesture in progress.
func (g *Graph) CancelGesture() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selector.Cancel()
	g.throttle.Request()
}

// SetMode switches between select and zoom interaction. Switching
// recreates the tools and aligns them with the current selection.
func (g *Graph) SetMode(m selection.Mode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m == g.mode {
		return
	}
	g.mode = m
	g.selector.SetLayout(g.selector.Layout())
	g.selector.Sync(g.store.Shape(), g.mapperLocked())
	g.throttle.Request()
}

// Mode returns the interaction mode.
func (g *Graph) Mode() selection.Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// SetTool switches the selection tool.
func (g *Graph) SetTool(t selection.Tool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.selector.SetTool(t) {
		g.selector.Sync(g.store.Shape(), g.mapperLocked())
		g.throttle.Request()
	}
}

// SetLayout selects the layout to show. Call Refresh to load it.
func (g *Graph) SetLayout(layout string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.layout = layout
}

// SetColor selects the obs column points are colored by; empty clears it.
func (g *Graph) SetColor(column string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.color = column
}

// SetHighlight highlights points whose column value equals label.
func (g *Graph) SetHighlight(column, label string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.highlight = column
	g.highlightLabel = label
}

// SetSelection replaces the selection, as an external reset would, and
// moves the tool to match it.
func (g *Graph) SetSelection(shape selection.Shape) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.store.Set(shape)
	g.selector.Sync(g.store.Shape(), g.mapperLocked())
	g.throttle.Request()
}

// Deselect clears the selection through the active tool.
func (g *Graph) Deselect() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selector.Deselect()
	g.throttle.Request()
}

// Selection returns the current shape and selected cells.
func (g *Graph) Selection() (selection.Shape, []int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.Shape(), g.cf.SelectedIndices()
}

// Overlay returns the selection tool decoration.
func (g *Graph) Overlay() selection.Overlay {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.selector.Overlay()
}

// Camera returns a copy of the camera pan and zoom.
func (g *Graph) Camera() (pan transform.Vec2, zoom float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.camera.Pan(), g.camera.Zoom()
}

// FrameParts returns every input that affects a drawn frame, for use as a
// cache key.
func (g *Graph) FrameParts() map[string]interface{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	o := g.selector.Overlay()
	var extent string
	if o.Extent != nil {
		extent = fmt.Sprint(*o.Extent)
	}
	return map[string]interface{}{
		"layout":     g.layout,
		"color":      g.color,
		"highlight":  g.highlight + "=" + g.highlightLabel,
		"generation": g.cf.Generation(),
		"pan":        g.camera.Pan(),
		"zoom":       g.camera.Zoom(),
		"tool":       o.Tool.String(),
		"extent":     extent,
		"polygon":    fmt.Sprint(o.Polygon),
		"path":       fmt.Sprint(o.Path),
	}
}

// SyncStats returns buffer upload counters.
func (g *Graph) SyncStats() render.SyncStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sync.Stats()
}

// Status summarizes the graph.
func (g *Graph) Status() Status {
	state, err := g.orch.State()
	g.mu.Lock()
	defer g.mu.Unlock()
	s := Status{
		Layout:   g.layout,
		Color:    g.color,
		State:    state.String(),
		Selected: g.cf.CountSelected(),
		Total:    g.cf.Size(),
		Mode:     g.mode.String(),
		Tool:     g.selector.Tool().String(),
		Zoom:     g.camera.Zoom(),
		Pan:      g.camera.Pan(),
	}
	if err != nil {
		s.Error = fmt.Sprintf("Failure loading %s", g.orch.Watch().Layout)
		s.Detail = err.Error()
	}
	return s
}
