package selstore

import (
	"log"
	"sync"
	"time"
)

// JanitorConfig contains configuration for the janitor.
type JanitorConfig struct {
	RetentionDays int           // Days to keep recorded selections (default 30)
	CleanupPeriod time.Duration // How often to sweep (default 1h)
}

// Janitor periodically deletes expired selections.
type Janitor struct {
	cfg      JanitorConfig
	store    *Store
	mu       sync.Mutex
	started  bool
	stopped  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewJanitor creates a janitor for store.
func NewJanitor(store *Store, cfg JanitorConfig) *Janitor {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = 1 * time.Hour
	}
	return &Janitor{
		cfg:    cfg,
		store:  store,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start sweeps once and then on every cleanup period. Starting twice, or
// after Stop, does nothing.
func (j *Janitor) Start() {
	j.mu.Lock()
	if j.started || j.stopped {
		j.mu.Unlock()
		return
	}
	j.started = true
	j.mu.Unlock()

	j.cleanup()
	go j.cleaner()
}

// Stop stops the janitor and waits for it to exit. It is safe to call
// before Start and more than once.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		j.mu.Lock()
		j.stopped = true
		started := j.started
		j.mu.Unlock()

		close(j.stopCh)
		if started {
			<-j.done
		}
	})
}

func (j *Janitor) cleaner() {
	defer close(j.done)
	ticker := time.NewTicker(j.cfg.CleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-j.stopCh:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *Janitor) cleanup() {
	deleted, err := j.store.DeleteExpired(j.cfg.RetentionDays)
	if err != nil {
		log.Printf("[Janitor] cleanup error: %v", err)
	} else if deleted > 0 {
		log.Printf("[Janitor] cleaned up %d expired selections", deleted)
	}
}
