// Package retention runs a background sweeper that periodically removes
// segments older than a configured threshold.
package retention

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Remover is the subset of *queue.Queue the sweeper needs, so tests can
// substitute a fake.
type Remover interface {
	Remove(thresholdMs int64) error
}

// Sweeper ticks on an interval and removes segments whose newest record is
// older than the configured age, relative to the time of each tick.
type Sweeper struct {
	q        Remover
	interval time.Duration
	maxAge   time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewSweeper creates a sweeper that runs q.Remove every interval, deleting
// segments whose newest timestamp is older than maxAge.
func NewSweeper(q Remover, interval, maxAge time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{q: q, interval: interval, maxAge: maxAge, log: log}
}

// Start begins the ticking loop in a background goroutine. Calling Start on
// an already-running Sweeper is a no-op.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run()
	return nil
}

func (s *Sweeper) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			threshold := now.Add(-s.maxAge).UnixMilli()
			if err := s.q.Remove(threshold); err != nil {
				s.log.Error().Err(err).Int64("threshold_ms", threshold).Msg("retention sweep failed")
				continue
			}
			s.log.Debug().Int64("threshold_ms", threshold).Msg("retention sweep completed")
		}
	}
}

// Stop halts the ticking loop and waits for the current sweep, if any, to
// finish. Stopping a Sweeper that was never started is a no-op.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	return nil
}
