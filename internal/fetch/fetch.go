// Package fetch coordinates loading the columns a render pass needs.
//
// A fetch cycle starts only when the watch set changes by value. Each
// cycle carries a number, and a result is applied only if its cycle is
// still the current one, so a slow stale cycle can never overwrite a
// newer one.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/thehyve/single-cell-explorer/internal/data/frame"
	"github.com/thehyve/single-cell-explorer/internal/transform"
)

// ErrStale is returned when committing a result from a superseded cycle.
var ErrStale = errors.New("stale fetch cycle")

// Domain is a namespace of columns in a data source.
type Domain int

const (
	// DomainEmbedding holds 2D layouts, one frame of x and y per layout.
	DomainEmbedding Domain = iota
	// DomainObs holds per-cell metadata columns.
	DomainObs
)

func (d Domain) String() string {
	if d == DomainObs {
		return "obs"
	}
	return "emb"
}

// Source loads columns by domain and key.
type Source interface {
	Fetch(ctx context.Context, domain Domain, key string) (*frame.Frame, error)
}

// WatchSet is the set of inputs whose change triggers a new cycle.
type WatchSet struct {
	Layout         string
	Color          string
	Highlight      string
	HighlightLabel string
	Generation     uint64
	Viewport       transform.Viewport
}

// Equal reports whether two watch sets hold the same values.
func (w WatchSet) Equal(o WatchSet) bool { return w == o }

// State is the status of the current cycle.
type State int

const (
	StateIdle State = iota
	StatePending
	StateFulfilled
	StateRejected
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFulfilled:
		return "fulfilled"
	case StateRejected:
		return "rejected"
	}
	return "idle"
}

// Ticket identifies a started cycle.
type Ticket struct {
	Cycle uint64
	Watch WatchSet
}

// Result holds the columns loaded by one cycle. Color and Highlight are
// nil when not requested.
type Result struct {
	Cycle     uint64
	Watch     WatchSet
	Layout    *frame.Frame
	Color     *frame.Column
	Highlight *frame.Column
	Err       error
}

// Orchestrator runs fetch cycles against a Source.
type Orchestrator struct {
	source Source

	mu      sync.Mutex
	cycle   uint64
	watch   WatchSet
	started bool
	state   State
	err     error
	result  Result
	applied bool
	cancel  context.CancelFunc
}

// New returns an orchestrator reading from source.
func New(source Source) *Orchestrator {
	return &Orchestrator{source: source}
}

// Begin starts a new cycle if ws differs from the current watch set. It
// returns the current ticket and whether a new cycle began.
func (o *Orchestrator) Begin(ws WatchSet) (Ticket, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.beginLocked(ws)
}

func (o *Orchestrator) beginLocked(ws WatchSet) (Ticket, bool) {
	if o.started && o.watch.Equal(ws) {
		return Ticket{Cycle: o.cycle, Watch: o.watch}, false
	}
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.started = true
	o.cycle++
	o.watch = ws
	o.state = StatePending
	o.err = nil
	return Ticket{Cycle: o.cycle, Watch: ws}, true
}

// Fetch loads the layout, color and highlight columns of a ticket
// concurrently. Absent color or highlight choices resolve to nil without
// a request.
func (o *Orchestrator) Fetch(ctx context.Context, t Ticket) Result {
	res := Result{Cycle: t.Cycle, Watch: t.Watch}
	ws := t.Watch

	var (
		layout    *frame.Frame
		color     *frame.Column
		highlight *frame.Column
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := o.source.Fetch(gctx, DomainEmbedding, ws.Layout)
		if err != nil {
			return err
		}
		if f.NumCols() < 2 {
			return fmt.Errorf("layout %s has %d dimensions, need 2", ws.Layout, f.NumCols())
		}
		layout = f
		return nil
	})
	g.Go(func() error {
		var err error
		color, err = o.obsColumn(gctx, ws.Color)
		return err
	})
	g.Go(func() error {
		var err error
		highlight, err = o.obsColumn(gctx, ws.Highlight)
		return err
	})

	if err := g.Wait(); err != nil {
		res.Err = fmt.Errorf("failure loading %s: %w", ws.Layout, err)
		return res
	}
	res.Layout = layout
	res.Color = color
	res.Highlight = highlight
	return res
}

func (o *Orchestrator) obsColumn(ctx context.Context, key string) (*frame.Column, error) {
	if key == "" {
		return nil, nil
	}
	f, err := o.source.Fetch(ctx, DomainObs, key)
	if err != nil {
		return nil, err
	}
	col := f.Col(key)
	if col == nil {
		col = f.ICol(0)
	}
	if col == nil {
		return nil, fmt.Errorf("obs column %s is empty", key)
	}
	return col, nil
}

// Commit applies r if its cycle is current. Stale results return
// ErrStale and change nothing. A failed result moves the orchestrator to
// StateRejected and returns the failure; the last good result is kept.
func (o *Orchestrator) Commit(r Result) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r.Cycle != o.cycle {
		return ErrStale
	}
	o.cancel = nil
	if r.Err != nil {
		o.state = StateRejected
		o.err = r.Err
		log.Printf("[Orchestrator] Cycle %d rejected: %v", r.Cycle, r.Err)
		return r.Err
	}
	o.state = StateFulfilled
	o.err = nil
	o.result = r
	o.applied = true
	return nil
}

// Start begins a cycle for ws and, if one began, fetches and commits it
// in the background. done runs after a current cycle commits, with the
// commit error; it does not run for stale cycles. Starting a newer cycle
// cancels the context of an older one.
func (o *Orchestrator) Start(ctx context.Context, ws WatchSet, done func(Result, error)) bool {
	o.mu.Lock()
	t, ok := o.beginLocked(ws)
	if !ok {
		o.mu.Unlock()
		return false
	}
	cctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.mu.Unlock()

	go func() {
		defer cancel()
		r := o.Fetch(cctx, t)
		err := o.Commit(r)
		if errors.Is(err, ErrStale) {
			return
		}
		if done != nil {
			done(r, err)
		}
	}()
	return true
}

// State returns the state of the current cycle and its error.
func (o *Orchestrator) State() (State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.err
}

// Result returns the last applied result.
func (o *Orchestrator) Result() (Result, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result, o.applied
}

// Watch returns the current watch set.
func (o *Orchestrator) Watch() WatchSet {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.watch
}

// Cycle returns the current cycle number.
func (o *Orchestrator) Cycle() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cycle
}
