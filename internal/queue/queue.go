package queue

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Queue is the top-level handle described in spec.md §4.3/§4.4: a single
// writer over a prefix of segment files, plus the coordinator new readers
// attach to for tailing. One process must hold the write handle; any number
// of Readers, in this process or others, may read concurrently.
//
// Grounded on the teacher's wal/manager.go WALManager, which plays the same
// role of owning the active segment and handing out read-only iterators.
type Queue struct {
	mu       sync.Mutex
	prefix   string
	writer   *segmentWriter
	coord    *coordinator
	clock    Clock
	observer SegmentObserver
	log      zerolog.Logger
	readOnly bool
	closed   bool
}

// Option configures optional Queue collaborators.
type Option func(*Queue)

// WithClock overrides the Clock used to fill in timestamps for Write calls
// made with a negative timestampMs. Defaults to SystemClock.
func WithClock(c Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// WithObserver registers a SegmentObserver to receive lifecycle events for
// segments this Queue creates, seals, or removes.
func WithObserver(o SegmentObserver) Option {
	return func(q *Queue) { q.observer = o }
}

// WithLogger attaches a structured logger for segment lifecycle events.
// Defaults to zerolog.Nop(), so the core package carries no hard logging
// dependency on any particular sink.
func WithLogger(l zerolog.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// Open implements spec.md §4.3's Open operation.
func Open(prefix string, maxFileSize int64, opts OpenOptions, options ...Option) (*Queue, error) {
	q := &Queue{
		prefix:   prefix,
		clock:    SystemClock,
		observer: noopObserver{},
		log:      zerolog.Nop(),
		readOnly: opts.has(OpenReadOnly),
	}
	for _, o := range options {
		o(q)
	}

	w, err := openWriter(prefix, maxFileSize, opts)
	if err != nil {
		return nil, err
	}
	q.writer = w
	q.coord = newCoordinator()
	q.coord.commit(w.id, uint64(w.offset), w.lastTS)
	if !q.readOnly && w.offset == int64(HeaderSize) {
		q.observer.SegmentCreated(w.id)
	}
	q.log.Info().Str("prefix", prefix).Uint64("segment_id", w.id).Uint64("durable_size", uint64(w.offset)).Msg("queue opened")
	return q, nil
}

// Write implements spec.md §4.3's Write. A negative timestampMs asks the
// queue to stamp the record with the current time from its Clock. The
// timestamp actually recorded (after monotonic clamping) is returned.
func (q *Queue) Write(timestampMs int64, payload []byte) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, Precondition
	}
	if q.readOnly {
		return 0, Precondition
	}

	effectiveTS, segID, sealed, err := q.writer.append(timestampMs, payload, q.clock)
	if err != nil {
		return 0, err
	}

	if sealed != nil {
		q.log.Debug().Uint64("segment_id", sealed.SealedID).Uint64("durable_size", sealed.SealedDurable).Msg("segment sealed")
		q.observer.SegmentSealed(sealed.SealedID, sealed.SealedDurable, sealed.SealedTimestamp)
		q.log.Debug().Uint64("segment_id", segID).Msg("segment created")
		q.observer.SegmentCreated(segID)
	}

	q.coord.commit(segID, uint64(q.writer.offset), effectiveTS)
	return effectiveTS, nil
}

// Synchronize implements spec.md §4.3's Synchronize.
func (q *Queue) Synchronize(hard bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return Precondition
	}
	return q.writer.synchronize(hard)
}

// GetTimestamp returns the newest effective timestamp written so far, or -1
// if the queue is empty, per spec.md §4.4.
func (q *Queue) GetTimestamp() int64 {
	_, _, lastTS, _, _ := q.coord.snapshot()
	return lastTS
}

// Close implements spec.md §4.3's Close. It is safe to call once; further
// Writes return PRECONDITION_ERROR and blocked Readers return CANCELED.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	var err error
	if !q.readOnly {
		err = q.writer.close()
	} else {
		err = q.writer.file.Close()
	}
	q.coord.closeAndNotify()
	q.log.Info().Str("prefix", q.prefix).Msg("queue closed")
	return err
}

// MakeReader implements spec.md §4.4's MakeReader: it returns a Reader
// positioned to serve the first record with timestamp >= minTimestamp, or
// at the current tail if minTimestamp exceeds every existing record.
func (q *Queue) MakeReader(minTimestamp int64) (*Reader, error) {
	q.mu.Lock()
	prefix, coord := q.prefix, q.coord
	q.mu.Unlock()

	r := &Reader{
		prefix:     prefix,
		coord:      coord,
		lastReadTS: -1,
	}
	if err := r.seek(minTimestamp); err != nil {
		return nil, err
	}
	return r, nil
}

// Remove implements spec.md §4.4's RemoveOldFiles, notifying the observer
// for every segment actually deleted.
func (q *Queue) Remove(thresholdMs int64) error {
	q.mu.Lock()
	prefix, observer := q.prefix, q.observer
	q.mu.Unlock()

	paths, err := FindFiles(prefix)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	if len(paths) == 0 {
		return nil
	}
	sealed := paths[:len(paths)-1]
	for _, p := range sealed {
		meta, err := ReadFileMetadata(p)
		if err != nil {
			return err
		}
		if meta.NewestTimestamp >= thresholdMs {
			continue
		}
		id := meta.FileID
		if err := removeFile(p); err != nil {
			return err
		}
		q.log.Debug().Uint64("segment_id", id).Msg("segment removed")
		observer.SegmentRemoved(id)
	}
	return nil
}

func removeFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return wrapSystem(err, "removing segment %s", path)
	}
	return nil
}
