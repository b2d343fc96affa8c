package queue

import (
	"sync"
	"sync/atomic"
	"time"
)

// coordinator is the single mutex-protected condition variable per queue
// instance described in spec.md §4.6: it binds writer commits to reader
// wakeups and carries the close signal. File I/O itself happens outside
// this lock — only the small metadata snapshot does not.
//
// Grounded on the Broadcast-after-mutation pattern used for WAL group
// commit in the progressdb-ProgressDB durable ingest queue example
// (flushCond.Broadcast() after updating file size under the writer mutex).
type coordinator struct {
	mu         sync.Mutex
	cond       *sync.Cond
	segmentID  uint64
	durable    uint64
	lastTS     int64
	closed     bool
	generation uint64
}

func newCoordinator() *coordinator {
	c := &coordinator{lastTS: -1}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// commit publishes a new durable watermark for the active segment and wakes
// every waiting reader. Callers must have already flushed the bytes being
// published before calling commit (spec.md §5's visibility rule).
func (c *coordinator) commit(segmentID, durable uint64, lastTS int64) {
	c.mu.Lock()
	c.segmentID = segmentID
	c.durable = durable
	c.lastTS = lastTS
	c.generation++
	c.mu.Unlock()
	c.cond.Broadcast()
}

// closeAndNotify marks the queue closed and wakes every waiter so they
// return CANCELED.
func (c *coordinator) closeAndNotify() {
	c.mu.Lock()
	c.closed = true
	c.generation++
	c.mu.Unlock()
	c.cond.Broadcast()
}

// snapshot returns a consistent view of the coordinator's state plus the
// generation a caller should pass to waitForCommit if it decides to block.
func (c *coordinator) snapshot() (segmentID, durable uint64, lastTS int64, closed bool, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.segmentID, c.durable, c.lastTS, c.closed, c.generation
}

// waitForCommit blocks until a commit or close advances the generation
// counter past startGen, or timeout elapses.
//
//   - timeout == 0 returns Infeasible immediately without blocking (poll).
//   - timeout < 0 waits forever for a commit or close.
//   - timeout > 0 waits up to that long, returning Infeasible on expiry.
func (c *coordinator) waitForCommit(startGen uint64, timeout time.Duration) error {
	if timeout == 0 {
		return Infeasible
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Canceled
	}
	if c.generation != startGen {
		return nil
	}

	var timedOut int32
	if timeout > 0 {
		timer := time.AfterFunc(timeout, func() {
			atomic.StoreInt32(&timedOut, 1)
			c.cond.Broadcast()
		})
		defer timer.Stop()
	}

	for c.generation == startGen && !c.closed && atomic.LoadInt32(&timedOut) == 0 {
		c.cond.Wait()
	}

	switch {
	case c.closed:
		return Canceled
	case c.generation != startGen:
		return nil
	default:
		return Infeasible
	}
}
