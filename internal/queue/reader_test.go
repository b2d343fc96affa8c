package queue

import (
	"path/filepath"
	"testing"
	"time"
)

func TestMakeReaderSeeksAcrossSealedSegments(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "q")

	payload := make([]byte, 64)
	maxSize := int64(HeaderSize) + int64(frameSize(1, payload))

	q, err := Open(prefix, maxSize, OpenDefault)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	// Three records, each forced into its own segment by the tiny max size.
	for i, ts := range []int64{10, 20, 30} {
		if _, err := q.Write(ts, payload); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	r, err := q.MakeReader(20)
	if err != nil {
		t.Fatalf("MakeReader: %v", err)
	}
	defer r.Close()

	gotTS, _, err := r.Read(0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if gotTS != 20 {
		t.Errorf("first record returned = %d, want 20 (minTimestamp filter)", gotTS)
	}

	gotTS, _, err = r.Read(0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if gotTS != 30 {
		t.Errorf("second record returned = %d, want 30", gotTS)
	}

	if _, _, err := r.Read(0); err == nil {
		t.Fatal("expected INFEASIBLE at the tail")
	} else if k, _ := KindOf(err); k != KindInfeasible {
		t.Errorf("expected INFEASIBLE, got %v", err)
	}
}

func TestMakeReaderBeyondEverythingParksAtTail(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "q")

	q, err := Open(prefix, 1<<20, OpenDefault)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	if _, err := q.Write(5, []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := q.MakeReader(1000)
	if err != nil {
		t.Fatalf("MakeReader: %v", err)
	}
	defer r.Close()

	if _, _, err := r.Read(0); err == nil {
		t.Fatal("expected INFEASIBLE: minTimestamp is beyond every existing record")
	} else if k, _ := KindOf(err); k != KindInfeasible {
		t.Errorf("expected INFEASIBLE, got %v", err)
	}
}

func TestOpenReaderWithoutAnySegmentsIsNotFound(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "q")

	if _, err := OpenReader(prefix, 0); err == nil {
		t.Fatal("expected NOT_FOUND opening a reader with no segments at all")
	} else if k, _ := KindOf(err); k != KindNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestDetachedReaderPollsForNewData(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "q")

	q, err := Open(prefix, 1<<20, OpenDefault)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	if _, err := q.Write(1, []byte("first")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := q.Synchronize(true); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}

	r, err := OpenReader(prefix, 0)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	if ts, _, err := r.Read(0); err != nil || ts != 1 {
		t.Fatalf("Read first record: ts=%d err=%v", ts, err)
	}

	type result struct {
		ts  int64
		err error
	}
	done := make(chan result, 1)
	go func() {
		ts, _, err := r.Read(-1)
		done <- result{ts, err}
	}()

	time.Sleep(2 * detachedPollInterval)
	if _, err := q.Write(2, []byte("second")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := q.Synchronize(true); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("detached Read: %v", res.err)
		}
		if res.ts != 2 {
			t.Errorf("detached Read returned %d, want 2", res.ts)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("detached reader never observed the new record")
	}
}

func TestReaderGetTimestampTracksLastRead(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "q")

	q, err := Open(prefix, 1<<20, OpenDefault)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	if _, err := q.Write(7, []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := q.MakeReader(0)
	if err != nil {
		t.Fatalf("MakeReader: %v", err)
	}
	defer r.Close()

	if got := r.GetTimestamp(); got != -1 {
		t.Errorf("GetTimestamp before any Read = %d, want -1", got)
	}
	if _, _, err := r.Read(0); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := r.GetTimestamp(); got != 7 {
		t.Errorf("GetTimestamp after Read = %d, want 7", got)
	}
}

func TestReaderGetTimestampIsNegativeOneRegardlessOfMinTimestamp(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "q")

	q, err := Open(prefix, 1<<20, OpenDefault)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	if _, err := q.Write(100, []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := q.Synchronize(true); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}

	attached, err := q.MakeReader(50)
	if err != nil {
		t.Fatalf("MakeReader: %v", err)
	}
	defer attached.Close()
	if got := attached.GetTimestamp(); got != -1 {
		t.Errorf("attached reader GetTimestamp before any Read = %d, want -1", got)
	}

	detached, err := OpenReader(prefix, 50)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer detached.Close()
	if got := detached.GetTimestamp(); got != -1 {
		t.Errorf("detached reader GetTimestamp before any Read = %d, want -1", got)
	}
}
