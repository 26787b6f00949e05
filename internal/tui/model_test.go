package tui

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/thehyve/single-cell-explorer/internal/data/frame"
	"github.com/thehyve/single-cell-explorer/internal/data/store"
	"github.com/thehyve/single-cell-explorer/internal/fetch"
	"github.com/thehyve/single-cell-explorer/internal/selection"
	"github.com/thehyve/single-cell-explorer/internal/selstore"
	"github.com/thehyve/single-cell-explorer/internal/transform"
)

const (
	testWidth  = 100
	testHeight = 13
)

func testSource(t *testing.T) *store.MemorySource {
	t.Helper()
	src, err := store.NewMemorySource(&store.Bundle{
		Name: "test",
		Layouts: []store.Layout{
			{Key: "grid", X: []float32{0, 1, 0, 1, 0.5}, Y: []float32{0, 0, 1, 1, 0.5}},
			{Key: "flipped", X: []float32{1, 0, 1, 0, 0.5}, Y: []float32{0, 0, 1, 1, 0.5}},
		},
		Obs: []*frame.Column{
			frame.NewCategorical("kind", []int32{0, 0, 1, 1, 2}, []string{"low", "high", "center"}),
		},
	})
	if err != nil {
		t.Fatalf("NewMemorySource: %v", err)
	}
	return src
}

// failingSource rejects one layout.
type failingSource struct {
	*store.MemorySource
	layout string
}

func (s failingSource) Fetch(ctx context.Context, domain fetch.Domain, key string) (*frame.Frame, error) {
	if domain == fetch.DomainEmbedding && key == s.layout {
		return nil, errors.New("disk on fire")
	}
	return s.MemorySource.Fetch(ctx, domain, key)
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm
}

func press(t *testing.T, m Model, k string) Model {
	t.Helper()
	if k == "esc" {
		return update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	}
	return update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
}

func newTestModel(t *testing.T, ds store.Dataset) Model {
	t.Helper()
	return newTestModelWith(t, Config{Dataset: ds})
}

func newTestModelWith(t *testing.T, cfg Config) Model {
	t.Helper()
	cfg.Name = "test"
	cfg.MinLassoArea = selection.MinLassoArea
	cfg.FrameInterval = time.Millisecond
	m, err := NewModel(cfg)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	m = update(t, m, tea.WindowSizeMsg{Width: testWidth, Height: testHeight})
	return update(t, m, tickMsg(time.Now()))
}

// cellOf returns the terminal cell showing data point (x, y).
func cellOf(t *testing.T, m Model, x, y float64) (col, row int) {
	t.Helper()
	p, err := transform.NewPipeline(m.graph.Viewport())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	pan, zoom := m.graph.Camera()
	cam := transform.NewCamera()
	cam.SetView(pan, zoom)
	s, err := p.DataToScreen(transform.Vec2{x, y}, cam)
	if err != nil {
		t.Fatalf("DataToScreen: %v", err)
	}
	return int(math.Floor(s[0] / dotsX)), int(math.Floor(s[1]/dotsY)) + headerHeight
}

func mouse(x, y int, action tea.MouseAction, button tea.MouseButton) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: action, Button: button}
}

func TestNewModel_RequiresDataset(t *testing.T) {
	if _, err := NewModel(Config{}); err == nil {
		t.Fatal("expected error without dataset")
	}
}

func TestModel_RendersAfterResize(t *testing.T) {
	m := newTestModel(t, testSource(t))

	vp := m.graph.Viewport()
	if vp.Width != testWidth*dotsX || vp.Height != (testHeight-headerHeight-footerHeight)*dotsY {
		t.Fatalf("viewport = %+v", vp)
	}
	if m.surface.Dots() == 0 {
		t.Fatal("expected points drawn")
	}
	view := m.View()
	if !strings.Contains(view, "test") || !strings.Contains(view, "5/5 selected") {
		t.Fatalf("unexpected view:\n%s", view)
	}
}

func brushCenter(t *testing.T, m Model) Model {
	t.Helper()
	cx, cy := cellOf(t, m, 0.5, 0.5)
	m = update(t, m, mouse(cx-3, cy-2, tea.MouseActionPress, tea.MouseButtonLeft))
	m = update(t, m, mouse(cx, cy, tea.MouseActionMotion, tea.MouseButtonLeft))
	m = update(t, m, mouse(cx+3, cy+2, tea.MouseActionMotion, tea.MouseButtonLeft))
	m = update(t, m, mouse(cx+3, cy+2, tea.MouseActionRelease, tea.MouseButtonLeft))
	return update(t, m, tickMsg(time.Now()))
}

func TestModel_BrushSelectsCenter(t *testing.T) {
	m := brushCenter(t, newTestModel(t, testSource(t)))

	if _, idx := m.graph.Selection(); len(idx) != 1 || idx[0] != 4 {
		t.Fatalf("selected = %v, want [4]", idx)
	}
	if !strings.Contains(m.View(), "1/5 selected") {
		t.Fatalf("status not updated:\n%s", m.View())
	}

	m = press(t, m, "x")
	if _, idx := m.graph.Selection(); len(idx) != 5 {
		t.Fatalf("expected deselect to select all, got %v", idx)
	}
}

func TestModel_RecordsSelections(t *testing.T) {
	ss, err := selstore.NewStore(filepath.Join(t.TempDir(), "selections.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	m := newTestModelWith(t, Config{Dataset: testSource(t), Selections: ss, DatasetID: "demo"})
	brushCenter(t, m)

	list, err := ss.ListByDataset("demo", 0)
	if err != nil {
		t.Fatalf("ListByDataset: %v", err)
	}
	if len(list) != 1 || list[0].Kind != "commit" || list[0].Count != 1 {
		t.Fatalf("unexpected records %+v", list)
	}
}

func TestModel_MouseOutsideCanvasIgnored(t *testing.T) {
	m := newTestModel(t, testSource(t))
	if _, ok := m.pointerEvent(mouse(10, 0, tea.MouseActionPress, tea.MouseButtonLeft)); ok {
		t.Fatal("press on the header should be ignored")
	}
	if _, ok := m.pointerEvent(mouse(10, testHeight-1, tea.MouseActionRelease, tea.MouseButtonLeft)); !ok {
		t.Fatal("release off the canvas should still end a gesture")
	}
	if ev, ok := m.pointerEvent(mouse(10, 3, tea.MouseActionPress, tea.MouseButtonWheelDown)); !ok || ev.DeltaY != wheelDelta {
		t.Fatalf("wheel down = %+v, %v", ev, ok)
	}
}

func TestModel_Keys(t *testing.T) {
	m := newTestModel(t, testSource(t))

	t.Run("mode", func(t *testing.T) {
		m = press(t, m, "z")
		if m.graph.Mode() != selection.ModeZoom {
			t.Fatalf("mode = %v", m.graph.Mode())
		}
		m = press(t, m, "z")
		if m.graph.Mode() != selection.ModeSelect {
			t.Fatalf("mode = %v", m.graph.Mode())
		}
	})

	t.Run("tool", func(t *testing.T) {
		m = press(t, m, "t")
		if got := m.graph.Status().Tool; got != "lasso" {
			t.Fatalf("tool = %s", got)
		}
	})

	t.Run("layout", func(t *testing.T) {
		m = press(t, m, "n")
		if got := m.graph.Status().Layout; got != "flipped" {
			t.Fatalf("layout = %s", got)
		}
	})

	t.Run("color and highlight", func(t *testing.T) {
		m = press(t, m, "c")
		if got := m.graph.Status().Color; got != "kind" {
			t.Fatalf("color = %s", got)
		}
		m = press(t, m, "h")
		if !strings.Contains(m.View(), "highlight low") {
			t.Fatalf("expected highlight in status:\n%s", m.View())
		}
		m = press(t, m, "c")
		if m.highlightIdx != 0 || m.graph.Status().Color != "" {
			t.Fatal("cycling color should clear the highlight")
		}
	})

	t.Run("help", func(t *testing.T) {
		m = press(t, m, "?")
		if !m.help.ShowAll {
			t.Fatal("expected full help")
		}
	})

	t.Run("quit", func(t *testing.T) {
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatal("expected tea.QuitMsg")
		}
	})
}

func TestModel_ZoomAndReset(t *testing.T) {
	m := newTestModel(t, testSource(t))
	cx, cy := cellOf(t, m, 0.5, 0.5)

	m = press(t, m, "z")
	m = update(t, m, mouse(cx, cy, tea.MouseActionPress, tea.MouseButtonWheelUp))
	if _, zoom := m.graph.Camera(); zoom <= 1 {
		t.Fatalf("zoom = %v, want > 1", zoom)
	}
	m = press(t, m, "r")
	if _, zoom := m.graph.Camera(); zoom != 1 {
		t.Fatalf("zoom after reset = %v", zoom)
	}
}

func TestModel_FailureIndicator(t *testing.T) {
	m := newTestModel(t, failingSource{MemorySource: testSource(t), layout: "flipped"})
	drawn := m.surface.Dots()

	m = press(t, m, "n")
	m = update(t, m, tickMsg(time.Now()))
	if !strings.Contains(m.View(), "Failure loading flipped") {
		t.Fatalf("expected failure indicator:\n%s", m.View())
	}
	if m.surface.Dots() != drawn {
		t.Fatalf("last frame not retained: %d dots, had %d", m.surface.Dots(), drawn)
	}

	m = press(t, m, "n")
	m = update(t, m, tickMsg(time.Now()))
	if strings.Contains(m.View(), "Failure loading") {
		t.Fatalf("indicator should clear after a good load:\n%s", m.View())
	}
}
