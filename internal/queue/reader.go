package queue

import (
	"os"
	"sort"
	"sync"
	"time"
)

// Reader implements spec.md §4.5: a forward-only cursor over a queue's
// segments, positioned by timestamp rather than by offset. A Reader never
// shares a file cursor with anyone else — every read goes through
// io.ReaderAt — so many Readers can tail the same queue independently.
//
// A Reader made through Queue.MakeReader is "attached": it shares the
// writer's coordinator and wakes instantly on commit. A Reader made
// through OpenReader is "detached" — typically a different OS process — and
// falls back to polling segment headers on disk.
//
// Grounded on the teacher's wal/reader.go SegmentIterator, generalized from
// single-segment iteration to cross-segment tailing with blocking reads.
type Reader struct {
	mu     sync.Mutex
	prefix string
	coord  *coordinator // nil when detached

	minTimestamp int64
	lastReadTS   int64

	id     uint64
	file   *os.File
	offset int64

	closed bool
}

const detachedPollInterval = 50 * time.Millisecond

// OpenReader opens a reader over prefix outside of any Queue in this
// process, for a consumer that only ever reads (a separate process, or a
// read-only tool). It never blocks the writer and never mutates a segment.
func OpenReader(prefix string, minTimestamp int64) (*Reader, error) {
	r := &Reader{prefix: prefix, lastReadTS: -1}
	if err := r.seek(minTimestamp); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) seek(minTimestamp int64) error {
	r.minTimestamp = minTimestamp

	paths, err := FindFiles(r.prefix)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return NotFound
	}

	metas := make([]SegmentMetadata, len(paths))
	for i, p := range paths {
		m, err := ReadFileMetadata(p)
		if err != nil {
			return err
		}
		metas[i] = m
	}

	// Segment IDs are chronological and each segment's newest_timestamp is
	// non-decreasing across the set, since every effective timestamp is
	// clamped against the previous one queue-wide. A coarse binary search
	// over that watermark finds the segment that may hold the first
	// qualifying record.
	idx := sort.Search(len(metas), func(i int) bool { return metas[i].NewestTimestamp >= minTimestamp })
	if idx == len(metas) {
		tail := metas[len(metas)-1]
		if err := r.openSegment(tail.FileID); err != nil {
			return err
		}
		r.offset = int64(tail.DurableSize)
		return nil
	}
	return r.openSegment(metas[idx].FileID)
}

func (r *Reader) openSegment(id uint64) error {
	if r.file != nil {
		r.file.Close()
	}
	f, err := openForRead(segmentPath(r.prefix, id))
	if err != nil {
		return err
	}
	r.file = f
	r.id = id
	r.offset = int64(HeaderSize)
	return nil
}

// Read implements spec.md §4.5's Read: it returns the next record with
// timestamp >= minTimestamp, blocking according to the same three-way
// timeout convention as Queue's coordinator (negative waits forever, zero
// never blocks, positive bounds the wait). This is the idiomatic Go
// analogue of the original's floating-point seconds timeout (see
// SPEC_FULL.md's supplemented features): a time.Duration carries the same
// three cases without a magic-float convention. It returns CANCELED once
// the owning Queue is closed, and NOT_FOUND is never returned here — a read
// that would see NOT_FOUND instead blocks or times out as INFEASIBLE.
func (r *Reader) Read(timeout time.Duration) (int64, []byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, nil, Canceled
	}

	for {
		segID, durable, closed, gen := r.state()

		localDurable := durable
		if r.id != segID {
			// r.id names a sealed segment behind the active one; its
			// durable_size was frozen at seal time and is safe to read
			// directly rather than trusting the active segment's watermark.
			meta, err := ReadFileMetadata(segmentPath(r.prefix, r.id))
			if err != nil {
				return 0, nil, err
			}
			localDurable = meta.DurableSize
		}

		res, err := readNext(r.file, r.offset, int64(localDurable), r.minTimestamp)
		if err == nil {
			r.offset = res.nextOffset
			if res.filled {
				r.lastReadTS = res.timestamp
				return res.timestamp, res.payload, nil
			}
			continue
		}

		st, ok := err.(*Status)
		if !ok || st.Kind != KindNotFound {
			return 0, nil, err
		}

		if r.id != segID {
			if err := r.advanceSegment(); err != nil {
				return 0, nil, err
			}
			continue
		}

		if closed {
			return 0, nil, Canceled
		}
		if err := r.wait(gen, timeout); err != nil {
			return 0, nil, err
		}
	}
}

func (r *Reader) advanceSegment() error {
	next := r.id + 1
	if err := r.openSegment(next); err != nil {
		if isNotFound(err) {
			return newStatus(KindBrokenData, "segment %d is missing while a newer segment already exists", next)
		}
		return err
	}
	return nil
}

// state reports the segment ID and durable size a reader should race
// against, plus (for attached readers) the generation to wait on.
func (r *Reader) state() (segID uint64, durable uint64, closed bool, gen uint64) {
	if r.coord != nil {
		segID, durable, _, closed, gen = r.coord.snapshot()
		return
	}
	meta, err := ReadFileMetadata(segmentPath(r.prefix, r.id))
	if err != nil {
		return r.id, uint64(r.offset), false, 0
	}
	if _, err := os.Stat(segmentPath(r.prefix, r.id+1)); err == nil {
		// A newer segment exists, so r.id is sealed and Read may advance.
		return r.id + 1, meta.DurableSize, false, 0
	}
	return meta.FileID, meta.DurableSize, false, 0
}

func (r *Reader) wait(gen uint64, timeout time.Duration) error {
	if r.coord != nil {
		return r.coord.waitForCommit(gen, timeout)
	}
	return r.pollDetached(timeout)
}

// pollDetached is the fallback wait strategy for a Reader with no
// coordinator to Broadcast on: it polls the current and next segment's
// headers on disk until new bytes appear or timeout elapses.
func (r *Reader) pollDetached(timeout time.Duration) error {
	if timeout == 0 {
		return Infeasible
	}
	var deadline time.Time
	bounded := timeout > 0
	if bounded {
		deadline = time.Now().Add(timeout)
	}
	for {
		time.Sleep(detachedPollInterval)
		if meta, err := ReadFileMetadata(segmentPath(r.prefix, r.id)); err == nil && meta.DurableSize > uint64(r.offset) {
			return nil
		}
		if _, err := os.Stat(segmentPath(r.prefix, r.id+1)); err == nil {
			return nil
		}
		if bounded && !time.Now().Before(deadline) {
			return Infeasible
		}
	}
}

// GetTimestamp returns the timestamp of the last record this Reader
// returned, or -1 if it has not yet returned one.
func (r *Reader) GetTimestamp() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastReadTS
}

// Close releases the Reader's open segment handle. It does not affect the
// underlying Queue.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
