package queue

import (
	"io"
	"os"
)

// createSegment creates a brand new segment file with a fresh header and
// returns it open for read-write, positioned right after the header.
func createSegment(prefix string, id uint64) (*os.File, header, error) {
	path := segmentPath(prefix, id)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, header{}, wrapSystem(err, "creating segment %s", path)
	}
	h := newHeader(id)
	if _, err := f.WriteAt(h.encode(), 0); err != nil {
		f.Close()
		return nil, header{}, wrapSystem(err, "writing header for segment %s", path)
	}
	if _, err := f.Seek(HeaderSize, io.SeekStart); err != nil {
		f.Close()
		return nil, header{}, wrapSystem(err, "seeking past header in segment %s", path)
	}
	return f, h, nil
}

// openTailForWrite opens an existing segment for appending, recovering from
// a torn tail: any bytes physically present beyond the header's durable_size
// are truncated away, since they were never guaranteed flushed (spec.md
// §4.3 Open / §7 partial-failure semantics).
func openTailForWrite(path string) (f *os.File, h header, physicalSize int64, err error) {
	f, err = os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, header{}, 0, wrapSystem(err, "opening segment %s", path)
	}

	buf := make([]byte, HeaderSize)
	if _, err = io.ReadFull(f, buf); err != nil {
		f.Close()
		return nil, header{}, 0, newStatus(KindBrokenData, "segment %s has a truncated header", path)
	}
	h, err = decodeHeader(buf)
	if err != nil {
		f.Close()
		return nil, header{}, 0, err
	}

	stat, statErr := f.Stat()
	if statErr != nil {
		f.Close()
		return nil, header{}, 0, wrapSystem(statErr, "statting segment %s", path)
	}
	physicalSize = stat.Size()

	if h.durableSize > uint64(physicalSize) {
		f.Close()
		return nil, header{}, 0, newStatus(KindBrokenData, "segment %s durable_size %d exceeds physical size %d", path, h.durableSize, physicalSize)
	}
	if physicalSize > int64(h.durableSize) {
		if err = f.Truncate(int64(h.durableSize)); err != nil {
			f.Close()
			return nil, header{}, 0, wrapSystem(err, "truncating torn tail of segment %s", path)
		}
		physicalSize = int64(h.durableSize)
	}
	if _, err = f.Seek(physicalSize, io.SeekStart); err != nil {
		f.Close()
		return nil, header{}, 0, wrapSystem(err, "seeking to tail of segment %s", path)
	}
	return f, h, physicalSize, nil
}

// openForRead opens a segment read-only without mutating it. Readers never
// hold an exclusive handle and never truncate.
func openForRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NotFound
		}
		return nil, wrapSystem(err, "opening segment %s", path)
	}
	return f, nil
}

// writeHeaderAt persists h to the start of f. Callers must have already
// flushed the record bytes durable_size now covers (spec.md §4.1: "The
// writer always writes the header update AFTER the record bytes are
// flushed").
func writeHeaderAt(f *os.File, h header) error {
	if _, err := f.WriteAt(h.encode(), 0); err != nil {
		return wrapSystem(err, "updating segment header")
	}
	return nil
}
