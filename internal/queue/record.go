package queue

import (
	"encoding/binary"
	"io"
)

// recordMagic distinguishes a valid record start from the zero-fill that
// occupies unwritten tail bytes. It must never be zero.
const recordMagic byte = 0xA5

// maxRecordHeaderPeek bounds the bytes needed to decode a record's magic
// byte plus its two varints (timestamp and payload length) before the
// payload length is known.
const maxRecordHeaderPeek = 1 + maxVarintLen64*2

// checksumSize is the width of the trailing CRC32C field.
const checksumSize = 4

// encodeRecord serializes one frame: magic, varint timestamp, varint
// payload length, payload, then a checksum over everything before it.
func encodeRecord(timestampMs int64, payload []byte) []byte {
	var tsBuf, lenBuf [maxVarintLen64]byte
	n1 := putUvarint(tsBuf[:], uint64(timestampMs))
	n2 := putUvarint(lenBuf[:], uint64(len(payload)))

	total := 1 + n1 + n2 + len(payload) + checksumSize
	buf := make([]byte, total)
	buf[0] = recordMagic
	copy(buf[1:1+n1], tsBuf[:n1])
	copy(buf[1+n1:1+n1+n2], lenBuf[:n2])
	copy(buf[1+n1+n2:total-checksumSize], payload)

	crc := checksum(buf[:total-checksumSize])
	binary.LittleEndian.PutUint32(buf[total-checksumSize:], crc)
	return buf
}

// frameSize returns the on-disk size of a record carrying timestampMs and
// payload, without encoding it — used to decide whether a write would
// overflow the segment's max size before committing to write it.
func frameSize(timestampMs int64, payload []byte) int {
	return 1 + uvarintSize(uint64(timestampMs)) + uvarintSize(uint64(len(payload))) + len(payload) + checksumSize
}

// readResult is the outcome of successfully decoding one frame.
type readResult struct {
	timestamp  int64
	payload    []byte // nil if the caller's min_timestamp filter skipped it
	filled     bool
	nextOffset int64
}

// readNext implements §4.2's ReadNext: parse the frame at offset, verify its
// checksum, and report whether its payload should be handed to the caller
// given minTimestamp. It never reads past durableSize.
//
// Returns (result, nil) on success, or a *Status with Kind one of
// NOT_FOUND (offset at or past durableSize), CANCELED (zero-fill found),
// or BROKEN_DATA (bad magic, malformed varint, truncated frame, or
// checksum mismatch).
func readNext(r io.ReaderAt, offset, durableSize, minTimestamp int64) (readResult, error) {
	if offset >= durableSize {
		return readResult{}, NotFound
	}

	avail := durableSize - offset
	peekLen := int64(maxRecordHeaderPeek)
	if peekLen > avail {
		peekLen = avail
	}
	peek := make([]byte, peekLen)
	if _, err := r.ReadAt(peek, offset); err != nil {
		return readResult{}, wrapSystem(err, "reading record header at offset %d", offset)
	}

	if peek[0] == 0 {
		return readResult{}, Canceled
	}
	if peek[0] != recordMagic {
		return readResult{}, newStatus(KindBrokenData, "bad record magic at offset %d", offset)
	}

	ts, n1 := getUvarint(peek[1:])
	if n1 == 0 {
		return readResult{}, newStatus(KindBrokenData, "malformed timestamp varint at offset %d", offset)
	}
	payloadLen, n2 := getUvarint(peek[1+n1:])
	if n2 == 0 {
		return readResult{}, newStatus(KindBrokenData, "malformed length varint at offset %d", offset)
	}

	headerLen := int64(1 + n1 + n2)
	frameLen := headerLen + int64(payloadLen) + checksumSize
	if offset+frameLen > durableSize {
		// A frame header parsed but its body would cross durable_size. By
		// construction this should not happen; per spec.md §9 we surface
		// BROKEN_DATA rather than treating it as end-of-segment.
		return readResult{}, newStatus(KindBrokenData, "frame at offset %d extends past durable size", offset)
	}

	frame := make([]byte, frameLen)
	copy(frame, peek[:headerLen])
	if frameLen > peekLen {
		if _, err := r.ReadAt(frame[headerLen:], offset+headerLen); err != nil {
			return readResult{}, wrapSystem(err, "reading record body at offset %d", offset)
		}
	} else {
		copy(frame[headerLen:], peek[headerLen:frameLen])
	}

	bodyEnd := headerLen + int64(payloadLen)
	storedCRC := binary.LittleEndian.Uint32(frame[bodyEnd:])
	if checksum(frame[:bodyEnd]) != storedCRC {
		return readResult{}, newStatus(KindBrokenData, "checksum mismatch at offset %d", offset)
	}

	result := readResult{
		timestamp:  int64(ts),
		nextOffset: offset + frameLen,
		filled:     int64(ts) >= minTimestamp,
	}
	if result.filled && payloadLen > 0 {
		result.payload = append([]byte(nil), frame[headerLen:bodyEnd]...)
	} else if result.filled {
		result.payload = []byte{}
	}
	return result, nil
}
