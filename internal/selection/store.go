package selection

import (
	"log"
	"sync"

	"github.com/thehyve/single-cell-explorer/internal/crossfilter"
)

// Store holds the current selection shape and applies tool events to a
// crossfilter. It is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	cf        *crossfilter.Crossfilter
	shape     Shape
	layout    string
	x, y      []float32
	listeners []func(Event, Shape)
}

// NewStore returns a store with nothing selected out.
func NewStore(cf *crossfilter.Crossfilter) *Store {
	return &Store{cf: cf, shape: None{}}
}

// Shape returns the current selection shape.
func (s *Store) Shape() Shape {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shape
}

// Layout returns the layout positions were last set for.
func (s *Store) Layout() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout
}

// Crossfilter returns the crossfilter the store updates.
func (s *Store) Crossfilter() *crossfilter.Crossfilter { return s.cf }

// Listen registers fn to run after every event that changes the shape.
func (s *Store) Listen(fn func(Event, Shape)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SetPositions supplies the data-space coordinates selections are tested
// against. Switching to another layout resets the selection.
func (s *Store) SetPositions(layout string, x, y []float32) {
	s.mu.Lock()
	changed := s.layout != "" && s.layout != layout
	s.layout = layout
	s.x, s.y = x, y
	if changed {
		s.shape = None{}
		s.cf.SelectAll()
	}
	s.mu.Unlock()
	if changed {
		log.Printf("[Selection] Layout changed to %s, selection reset", layout)
	}
}

// Dispatch applies a tool event.
func (s *Store) Dispatch(ev Event) {
	shape, ok := ev.Shape()
	if !ok {
		return
	}
	s.mu.Lock()
	if ev.Layout != "" && s.layout != "" && ev.Layout != s.layout {
		s.mu.Unlock()
		log.Printf("[Selection] Ignoring %s event for layout %s (current %s)", ev.Kind, ev.Layout, s.layout)
		return
	}
	s.apply(shape)
	listeners := append([]func(Event, Shape){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(ev, shape)
	}
}

// Set replaces the selection with shape, as an external reset would.
func (s *Store) Set(shape Shape) {
	if shape == nil {
		shape = None{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(shape)
}

func (s *Store) apply(shape Shape) {
	s.shape = shape
	if _, ok := shape.(None); ok {
		s.cf.SelectAll()
		return
	}
	s.cf.SelectWithin(shape, s.x, s.y)
}
