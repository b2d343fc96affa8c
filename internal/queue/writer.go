package queue

import (
	"io"
	"os"
)

// segmentWriter owns the single active (tail) segment file and implements
// spec.md §4.3's Segment Writer: append, rollover, and the durable-size
// bookkeeping that the on-disk header lags behind between Synchronize
// calls. It has no notion of waiters; Queue wires it to the coordinator.
//
// Grounded on the teacher's wal/writer.go WALWriter (openSegment/rotateLocked
// shape), generalized from a fixed-LSN header to the varint record format
// and from a Postgres-backed rotation trigger to the in-file header.
type segmentWriter struct {
	prefix      string
	maxFileSize int64
	syncHard    bool
	readOnly    bool

	file   *os.File
	id     uint64
	offset int64 // in-memory durable size: bytes written to the fd so far
	lastTS int64
}

func isNotFound(err error) bool {
	st, ok := err.(*Status)
	return ok && st.Kind == KindNotFound
}

// openWriter implements spec.md §4.3's Open.
func openWriter(prefix string, maxFileSize int64, opts OpenOptions) (*segmentWriter, error) {
	if maxFileSize <= int64(HeaderSize) {
		return nil, newStatus(KindApplication, "max_file_size must exceed the segment header size")
	}
	readOnly := opts.has(OpenReadOnly)
	w := &segmentWriter{prefix: prefix, maxFileSize: maxFileSize, syncHard: opts.has(OpenSyncHard), readOnly: readOnly}

	if opts.has(OpenTruncate) {
		if readOnly {
			return nil, newStatus(KindPrecondition, "OPEN_TRUNCATE is incompatible with OPEN_READ_ONLY")
		}
		existing, err := FindFiles(prefix)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		for _, p := range existing {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return nil, wrapSystem(err, "removing segment %s", p)
			}
		}
		return w.createFresh(0)
	}

	paths, err := FindFiles(prefix)
	if err != nil {
		if isNotFound(err) && !readOnly {
			return w.createFresh(0)
		}
		return nil, err
	}
	if len(paths) == 0 {
		if readOnly {
			return nil, NotFound
		}
		return w.createFresh(0)
	}

	tailPath := paths[len(paths)-1]
	id, err := GetFileID(tailPath)
	if err != nil {
		return nil, err
	}

	if readOnly {
		f, err := openForRead(tailPath)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, HeaderSize)
		if _, err := io.ReadFull(f, buf); err != nil {
			f.Close()
			return nil, newStatus(KindBrokenData, "segment %s has a truncated header", tailPath)
		}
		h, err := decodeHeader(buf)
		if err != nil {
			f.Close()
			return nil, err
		}
		w.file, w.id, w.offset, w.lastTS = f, id, int64(h.durableSize), h.newestTimestamp
		return w, nil
	}

	f, h, physicalSize, err := openTailForWrite(tailPath)
	if err != nil {
		return nil, err
	}
	w.file, w.id, w.offset, w.lastTS = f, id, physicalSize, h.newestTimestamp
	return w, nil
}

func (w *segmentWriter) createFresh(id uint64) (*segmentWriter, error) {
	f, h, err := createSegment(w.prefix, id)
	if err != nil {
		return nil, err
	}
	w.file, w.id, w.offset, w.lastTS = f, id, int64(HeaderSize), h.newestTimestamp
	return w, nil
}

// rolloverEvent describes the segment that append just sealed, so the caller
// can tell its SegmentObserver about both the seal and the new tail.
type rolloverEvent struct {
	SealedID        uint64
	SealedDurable   uint64
	SealedTimestamp int64
}

// append implements spec.md §4.3's Write: clamp the timestamp, roll over if
// the frame would overflow maxFileSize, append, and — only under
// OPEN_SYNC_HARD — fsync and persist the header inline. The caller (Queue)
// is responsible for notifying waiters once this returns, since that is
// true regardless of sync policy (spec.md §5's visibility rule).
func (w *segmentWriter) append(timestampMs int64, payload []byte, clock Clock) (effectiveTS int64, segmentID uint64, sealed *rolloverEvent, err error) {
	if w.readOnly {
		return 0, 0, nil, Precondition
	}
	if timestampMs < 0 {
		timestampMs = clock.NowMillis()
	}
	effectiveTS = timestampMs
	if effectiveTS < w.lastTS {
		effectiveTS = w.lastTS
	}

	size := int64(frameSize(effectiveTS, payload))
	if w.offset+size > w.maxFileSize && w.offset > int64(HeaderSize) {
		ev := rolloverEvent{SealedID: w.id, SealedDurable: uint64(w.offset), SealedTimestamp: w.lastTS}
		if err := w.rollover(); err != nil {
			return 0, 0, nil, err
		}
		sealed = &ev
	}

	frame := encodeRecord(effectiveTS, payload)
	if _, err := w.file.Write(frame); err != nil {
		return 0, 0, nil, wrapSystem(err, "appending record to segment %d", w.id)
	}
	w.offset += int64(len(frame))
	w.lastTS = effectiveTS

	if w.syncHard {
		if err := w.file.Sync(); err != nil {
			return 0, 0, nil, wrapSystem(err, "fsync after append to segment %d", w.id)
		}
		if err := w.persistHeader(); err != nil {
			return 0, 0, nil, err
		}
		if err := w.file.Sync(); err != nil {
			return 0, 0, nil, wrapSystem(err, "fsync after header update on segment %d", w.id)
		}
	}

	return effectiveTS, w.id, sealed, nil
}

func (w *segmentWriter) persistHeader() error {
	h := header{version: formatVersion, flags: flagChecksummed, fileID: w.id, durableSize: uint64(w.offset), newestTimestamp: w.lastTS}
	return writeHeaderAt(w.file, h)
}

// rollover seals the current tail at a record boundary and opens id+1. The
// sealed segment's header is frozen here and never rewritten again
// (spec.md §4.3's rollover invariant).
func (w *segmentWriter) rollover() error {
	if err := w.persistHeader(); err != nil {
		return err
	}
	if w.syncHard {
		if err := w.file.Sync(); err != nil {
			return wrapSystem(err, "hard sync before rollover of segment %d", w.id)
		}
	}
	if err := w.file.Close(); err != nil {
		return wrapSystem(err, "closing sealed segment %d", w.id)
	}
	_, err := w.createFresh(w.id + 1)
	return err
}

// synchronize implements spec.md §4.3's Synchronize: persist the header and,
// if hard, force it to stable storage.
func (w *segmentWriter) synchronize(hard bool) error {
	if w.readOnly {
		return Precondition
	}
	if err := w.persistHeader(); err != nil {
		return err
	}
	if hard {
		if err := w.file.Sync(); err != nil {
			return wrapSystem(err, "hard sync on segment %d", w.id)
		}
	}
	return nil
}

// close implements spec.md §4.3's Close: synchronize hard, then release the
// file handle.
func (w *segmentWriter) close() error {
	if w.readOnly {
		return w.file.Close()
	}
	if err := w.synchronize(true); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
