package render

import (
	"sync"
	"time"
)

// FrameScheduler runs callbacks at the next frame boundary.
type FrameScheduler interface {
	Schedule(fn func())
}

// Throttle coalesces redraw requests so fn runs at most once per frame.
type Throttle struct {
	mu      sync.Mutex
	pending bool
	sched   FrameScheduler
	fn      func()
}

// NewThrottle returns a throttle that runs fn on sched.
func NewThrottle(sched FrameScheduler, fn func()) *Throttle {
	return &Throttle{sched: sched, fn: fn}
}

// Request asks for fn to run at the next frame. Requests made before
// that frame are merged into one.
func (t *Throttle) Request() {
	t.mu.Lock()
	if t.pending {
		t.mu.Unlock()
		return
	}
	t.pending = true
	t.mu.Unlock()
	t.sched.Schedule(t.fire)
}

// Pending reports whether a frame is scheduled.
func (t *Throttle) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

func (t *Throttle) fire() {
	t.mu.Lock()
	t.pending = false
	t.mu.Unlock()
	t.fn()
}

// ManualScheduler queues callbacks until Flush. Event-loop adapters flush
// it on their own frame tick.
type ManualScheduler struct {
	mu    sync.Mutex
	queue []func()
}

// Schedule queues fn.
func (s *ManualScheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, fn)
}

// Flush runs the queued callbacks and returns how many ran.
func (s *ManualScheduler) Flush() int {
	s.mu.Lock()
	queue := s.queue
	s.queue = nil
	s.mu.Unlock()
	for _, fn := range queue {
		fn()
	}
	return len(queue)
}

// Len returns the number of queued callbacks.
func (s *ManualScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// TickerScheduler runs queued callbacks on a fixed frame interval.
type TickerScheduler struct {
	ManualScheduler
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// NewTickerScheduler starts a scheduler ticking every interval.
func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = time.Second / 60
	}
	s := &TickerScheduler{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *TickerScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.Flush()
		case <-s.done:
			return
		}
	}
}

// Stop stops the ticker. Queued callbacks are dropped.
func (s *TickerScheduler) Stop() {
	s.once.Do(func() {
		s.ticker.Stop()
		close(s.done)
	})
}
