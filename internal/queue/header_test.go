package queue

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	h := newHeader(7)
	h.durableSize = 12345
	h.newestTimestamp = 999

	decoded, err := decodeHeader(h.encode())
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if decoded.fileID != 7 || decoded.durableSize != 12345 || decoded.newestTimestamp != 999 {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
	if decoded.version != formatVersion || decoded.flags != flagChecksummed {
		t.Errorf("unexpected version/flags: %+v", decoded)
	}
}

func TestNewHeaderDefaults(t *testing.T) {
	h := newHeader(0)
	if h.durableSize != uint64(HeaderSize) {
		t.Errorf("fresh header durable_size = %d, want %d", h.durableSize, HeaderSize)
	}
	if h.newestTimestamp != -1 {
		t.Errorf("fresh header newest_timestamp = %d, want -1", h.newestTimestamp)
	}
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	buf := newHeader(0).encode()
	buf[0] = 'X'
	if _, err := decodeHeader(buf); err == nil {
		t.Fatal("expected error for corrupted magic")
	} else if k, _ := KindOf(err); k != KindBrokenData {
		t.Errorf("expected BROKEN_DATA, got %v", k)
	}
}

func TestDecodeHeaderRejectsShortBuffer(t *testing.T) {
	if _, err := decodeHeader(make([]byte, HeaderSize-1)); err == nil {
		t.Fatal("expected error for truncated header")
	}
}

func TestDecodeHeaderRejectsBadVersion(t *testing.T) {
	h := newHeader(0)
	buf := h.encode()
	buf[8] = formatVersion + 1
	if _, err := decodeHeader(buf); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}
