// Package batch provides a helper for grouping queue appends to amortize
// fsync cost without changing the durability contract of any individual
// write.
package batch

import "github.com/dsjohal14/segqueue/internal/queue"

type entry struct {
	timestampMs int64
	payload     []byte
}

// Writer accumulates (timestamp, payload) pairs and flushes them as
// consecutive Queue.Write calls followed by a single Synchronize, trading
// latency for fewer fsyncs. Every individual write still goes through the
// same monotonicity and durable-size rules as a direct Queue.Write.
type Writer struct {
	q    *queue.Queue
	size int
	hard bool
	buf  []entry
}

// NewWriter creates a batching writer over q. size is the number of pending
// entries that triggers an automatic Flush; size <= 0 defaults to 100.
// hard controls whether Flush performs a hard Synchronize.
func NewWriter(q *queue.Queue, size int, hard bool) *Writer {
	if size <= 0 {
		size = 100
	}
	return &Writer{q: q, size: size, hard: hard}
}

// Size returns the configured batch size.
func (w *Writer) Size() int {
	return w.size
}

// Add appends one entry to the pending batch, flushing automatically once
// the batch reaches its configured size.
func (w *Writer) Add(timestampMs int64, payload []byte) error {
	w.buf = append(w.buf, entry{timestampMs: timestampMs, payload: payload})
	if len(w.buf) >= w.size {
		return w.Flush()
	}
	return nil
}

// Flush writes every pending entry in order and synchronizes once. An
// empty batch is a no-op that returns nil.
func (w *Writer) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	for _, e := range w.buf {
		if _, err := w.q.Write(e.timestampMs, e.payload); err != nil {
			return err
		}
	}
	w.buf = w.buf[:0]
	return w.q.Synchronize(w.hard)
}

// Pending returns the number of entries currently buffered.
func (w *Writer) Pending() int {
	return len(w.buf)
}
