package queue

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// idWidth is the fixed decimal width of a segment file's numeric suffix.
const idWidth = 10

// segmentPath builds the path for segment id under the given prefix.
// prefix may include a directory component, e.g. "/var/lib/q" + id 3
// becomes "/var/lib/q.0000000003".
func segmentPath(prefix string, id uint64) string {
	return fmt.Sprintf("%s.%0*d", prefix, idWidth, id)
}

// FindFiles enumerates segment files for prefix, sorted ascending by
// numeric ID. A missing directory is reported as NOT_FOUND; an empty (but
// existing) directory returns an empty, non-error result, matching the
// original tkrzw contract (see SPEC_FULL.md).
func FindFiles(prefix string) ([]string, error) {
	dir := filepath.Dir(prefix)
	base := filepath.Base(prefix)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NotFound
		}
		return nil, wrapSystem(err, "reading directory %s", dir)
	}

	type match struct {
		id   uint64
		path string
	}
	var matches []match
	want := base + "."
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, want) {
			continue
		}
		suffix := name[len(want):]
		id, ok := parseSegmentSuffix(suffix)
		if !ok {
			continue
		}
		matches = append(matches, match{id: id, path: filepath.Join(dir, name)})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].id < matches[j].id })

	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = m.path
	}
	return paths, nil
}

func parseSegmentSuffix(suffix string) (uint64, bool) {
	if len(suffix) != idWidth {
		return 0, false
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseUint(suffix, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// GetFileID parses the fixed-width numeric suffix of a segment path.
func GetFileID(path string) (uint64, error) {
	base := filepath.Base(path)
	idx := strings.LastIndex(base, ".")
	if idx < 0 {
		return 0, newStatus(KindApplication, "path %s has no segment suffix", path)
	}
	id, ok := parseSegmentSuffix(base[idx+1:])
	if !ok {
		return 0, newStatus(KindApplication, "path %s has an invalid segment suffix", path)
	}
	return id, nil
}

// SegmentMetadata is the result of ReadFileMetadata.
type SegmentMetadata struct {
	FileID          uint64
	NewestTimestamp int64
	DurableSize     uint64
}

// ReadFileMetadata opens path read-only and parses its header, without
// touching the record region.
func ReadFileMetadata(path string) (SegmentMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return SegmentMetadata{}, NotFound
		}
		return SegmentMetadata{}, wrapSystem(err, "opening segment %s", path)
	}
	defer f.Close()

	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return SegmentMetadata{}, newStatus(KindBrokenData, "segment %s has a truncated header", path)
	}
	h, err := decodeHeader(buf)
	if err != nil {
		return SegmentMetadata{}, err
	}
	return SegmentMetadata{FileID: h.fileID, NewestTimestamp: h.newestTimestamp, DurableSize: h.durableSize}, nil
}

// RemoveOldFiles deletes every sealed (non-tail) segment under prefix whose
// newest timestamp is older than thresholdMs. The tail segment is always
// kept, regardless of its age.
func RemoveOldFiles(prefix string, thresholdMs int64) error {
	paths, err := FindFiles(prefix)
	if err != nil {
		if st, ok := err.(*Status); ok && st.Kind == KindNotFound {
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
		if meta.NewestTimestamp < thresholdMs {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return wrapSystem(err, "removing segment %s", p)
			}
		}
	}
	return nil
}
