// Package tui is a terminal scatter plot viewer. Points are drawn with
// braille characters and the mouse drives the selection tools or the
// camera.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/thehyve/single-cell-explorer/internal/crossfilter"
	"github.com/thehyve/single-cell-explorer/internal/data/store"
	"github.com/thehyve/single-cell-explorer/internal/graph"
	"github.com/thehyve/single-cell-explorer/internal/render"
	"github.com/thehyve/single-cell-explorer/internal/selection"
	"github.com/thehyve/single-cell-explorer/internal/selstore"
	"github.com/thehyve/single-cell-explorer/internal/transform"
	"github.com/thehyve/single-cell-explorer/pkg/colormap"
	"github.com/thehyve/single-cell-explorer/pkg/rangeenc"
)

const (
	headerHeight = 1
	footerHeight = 2
	wheelDelta   = 100
)

// Config configures the viewer.
type Config struct {
	Name          string
	Dataset       store.Dataset
	ColorBy       string
	Tool          selection.Tool
	MinLassoArea  float64
	MemoEntries   int
	Colormap      colormap.Colormap
	FrameInterval time.Duration
	// Async loads data in the background; tests run synchronously.
	Async bool
	// Selections, if set, records committed selections under DatasetID.
	Selections   *selstore.Store
	DatasetID    string
	MinRunLength int
}

type tickMsg time.Time

// Model is the bubbletea model of the viewer.
type Model struct {
	name     string
	dataset  store.Dataset
	graph    *graph.Graph
	surface  *BrailleSurface
	sched    *render.ManualScheduler
	interval time.Duration

	layouts      []string
	layoutIdx    int
	colors       []string // "" means uncolored
	colorIdx     int
	highlightIdx int // 0 means none

	keys     keyMap
	help     help.Model
	width    int
	height   int
	quitting bool
}

// NewModel returns a viewer of cfg.Dataset showing its default layout.
func NewModel(cfg Config) (Model, error) {
	if cfg.Dataset == nil {
		return Model{}, errors.New("tui: dataset is required")
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = time.Second / 30
	}
	if cfg.Name == "" {
		cfg.Name = "scatter"
	}
	if cfg.MinRunLength <= 0 {
		cfg.MinRunLength = rangeenc.DefaultMinRunLength
	}

	m := Model{
		name:     cfg.Name,
		dataset:  cfg.Dataset,
		surface:  NewBrailleSurface(0, 0),
		sched:    &render.ManualScheduler{},
		interval: cfg.FrameInterval,
		layouts:  cfg.Dataset.Layouts(),
		colors:   []string{""},
		keys:     newKeyMap(),
		help:     help.New(),
	}
	for i, l := range m.layouts {
		if l == cfg.Dataset.DefaultLayout() {
			m.layoutIdx = i
		}
	}
	if len(m.layouts) == 0 {
		return Model{}, errors.New("tui: dataset has no layouts")
	}
	for _, o := range cfg.Dataset.Obs() {
		m.colors = append(m.colors, o.Name)
		if o.Name == cfg.ColorBy {
			m.colorIdx = len(m.colors) - 1
		}
	}

	cf := crossfilter.New(cfg.Dataset.NumCells())
	sel := selection.NewStore(cf)
	if cfg.Selections != nil {
		sel.Listen(cfg.Selections.Recorder(cfg.DatasetID, cf, cfg.MinRunLength))
	}
	g, err := graph.New(cfg.Dataset, m.surface, sel, m.sched, graph.Options{
		Layout:       m.layouts[m.layoutIdx],
		Color:        m.colors[m.colorIdx],
		Tool:         cfg.Tool,
		Mode:         selection.ModeSelect,
		MinLassoArea: cfg.MinLassoArea,
		MemoEntries:  cfg.MemoEntries,
		Colormap:     cfg.Colormap,
		Async:        cfg.Async,
	})
	if err != nil {
		return Model{}, fmt.Errorf("tui: %w", err)
	}
	m.graph = g
	return m, nil
}

// Graph returns the plot behind the viewer.
func (m Model) Graph() *graph.Graph { return m.graph }

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick(m.interval)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		cols, rows := m.canvasSize()
		m.graph.Resize(cols*dotsX, rows*dotsY)
		m.refresh()
		return m, nil

	case tickMsg:
		m.refresh()
		m.sched.Flush()
		return m, tick(m.interval)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if ev, ok := m.pointerEvent(msg); ok {
			m.graph.HandlePointer(ev)
			m.refresh()
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Mode):
		if m.graph.Mode() == selection.ModeZoom {
			m.graph.SetMode(selection.ModeSelect)
		} else {
			m.graph.SetMode(selection.ModeZoom)
		}
	case key.Matches(msg, m.keys.Tool):
		if m.graph.Status().Tool == selection.ToolLasso.String() {
			m.graph.SetTool(selection.ToolBrush)
		} else {
			m.graph.SetTool(selection.ToolLasso)
		}
	case key.Matches(msg, m.keys.Layout):
		m.layoutIdx = (m.layoutIdx + 1) % len(m.layouts)
		m.graph.SetLayout(m.layouts[m.layoutIdx])
		m.refresh()
	case key.Matches(msg, m.keys.Color):
		m.colorIdx = (m.colorIdx + 1) % len(m.colors)
		m.highlightIdx = 0
		m.graph.SetColor(m.colors[m.colorIdx])
		m.graph.SetHighlight("", "")
		m.refresh()
	case key.Matches(msg, m.keys.Highlight):
		labels := m.categoryLabels()
		if len(labels) == 0 {
			break
		}
		m.highlightIdx = (m.highlightIdx + 1) % (len(labels) + 1)
		if m.highlightIdx == 0 {
			m.graph.SetHighlight("", "")
		} else {
			m.graph.SetHighlight(m.colors[m.colorIdx], labels[m.highlightIdx-1])
		}
		m.refresh()
	case key.Matches(msg, m.keys.Deselect):
		m.graph.Deselect()
		m.refresh()
	case key.Matches(msg, m.keys.Cancel):
		m.graph.CancelGesture()
	case key.Matches(msg, m.keys.Reset):
		m.graph.ResetCamera()
	}
	return m, nil
}

// refresh starts a fetch cycle if a watched input changed. Failures show
// up in the status line.
func (m Model) refresh() {
	_ = m.graph.Refresh(context.Background())
}

// categoryLabels returns the labels of the color column when it is
// categorical.
func (m Model) categoryLabels() []string {
	name := m.colors[m.colorIdx]
	for _, o := range m.dataset.Obs() {
		if o.Name == name && o.Type == "category" {
			return o.Values
		}
	}
	return nil
}

func (m Model) canvasSize() (cols, rows int) {
	cols = m.width
	rows = m.height - headerHeight - footerHeight
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	return cols, rows
}

// pointerEvent maps a terminal mouse event to the center dot of the cell
// under the cursor.
func (m Model) pointerEvent(msg tea.MouseMsg) (transform.PointerEvent, bool) {
	cols, rows := m.canvasSize()
	cy := msg.Y - headerHeight
	ev := transform.PointerEvent{
		X: float64(msg.X*dotsX + dotsX/2),
		Y: float64(cy*dotsY + dotsY/2),
	}
	inside := msg.X >= 0 && msg.X < cols && cy >= 0 && cy < rows

	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		ev.Kind, ev.DeltaY = transform.PointerWheel, -wheelDelta
	case msg.Button == tea.MouseButtonWheelDown:
		ev.Kind, ev.DeltaY = transform.PointerWheel, wheelDelta
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		ev.Kind = transform.PointerDown
	case msg.Action == tea.MouseActionMotion:
		ev.Kind = transform.PointerMove
	case msg.Action == tea.MouseActionRelease:
		ev.Kind = transform.PointerUp
	default:
		return ev, false
	}
	// Gestures start on the canvas but may end anywhere.
	if !inside && (ev.Kind == transform.PointerDown || ev.Kind == transform.PointerWheel) {
		return ev, false
	}
	return ev, true
}

func (m Model) View() string {
	if m.quitting || m.width == 0 || m.height == 0 {
		return ""
	}
	st := m.graph.Status()

	header := titleStyle.Render(" "+m.name+" ") + dimStyle.Render(" "+st.Layout)
	header = lipgloss.NewStyle().Width(m.width).MaxHeight(headerHeight).Render(header)

	_, rows := m.canvasSize()
	lines := m.surface.Lines()
	for len(lines) < rows {
		lines = append(lines, "")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		strings.Join(lines[:rows], "\n"),
		m.statusLine(st),
		m.help.View(m.keys),
	)
}

func (m Model) statusLine(st graph.Status) string {
	parts := []string{
		modeStyle.Render(st.Mode),
		st.Tool,
		fmt.Sprintf("%d/%d selected", st.Selected, st.Total),
		fmt.Sprintf("zoom %.1fx", st.Zoom),
	}
	if st.Color != "" {
		parts = append(parts, "color "+st.Color)
	}
	if labels := m.categoryLabels(); m.highlightIdx > 0 && m.highlightIdx <= len(labels) {
		parts = append(parts, "highlight "+labels[m.highlightIdx-1])
	}
	line := dimStyle.Render(strings.Join(parts, " · "))
	switch {
	case st.Error != "":
		line += "  " + errorStyle.Render(st.Error)
	case st.State == "pending":
		line += "  " + dimStyle.Render("loading…")
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(line)
}
