package queue

import "encoding/binary"

// HeaderSize is the fixed size, in bytes, of a segment header. The first
// record of a segment always begins at this offset. 64 bytes leaves ample
// room for the fields below plus reserved padding for future flags without
// shifting the record region.
const HeaderSize = 64

// magic identifies a valid segment file. It is written once at segment
// creation and never changes.
var magic = [8]byte{'S', 'E', 'G', 'Q', 'M', 'S', 'G', '1'}

const formatVersion = 1

// flagChecksummed marks that every record in this segment carries a CRC32C
// trailer. It is always set by this implementation; the bit exists so a
// future format revision could introduce unchecksummed fast paths without
// breaking readers of old segments.
const flagChecksummed byte = 1 << 0

// header is the decoded form of a segment's fixed-size header.
type header struct {
	version         byte
	flags           byte
	fileID          uint64
	durableSize     uint64
	newestTimestamp int64
}

func newHeader(fileID uint64) header {
	return header{
		version:         formatVersion,
		flags:           flagChecksummed,
		fileID:          fileID,
		durableSize:     uint64(HeaderSize),
		newestTimestamp: -1,
	}
}

// encode serializes h into a HeaderSize-byte buffer, zero-padded.
func (h header) encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], magic[:])
	buf[8] = h.version
	buf[9] = h.flags
	// bytes [10:16] are reserved and left zero.
	binary.LittleEndian.PutUint64(buf[16:24], h.fileID)
	binary.LittleEndian.PutUint64(buf[24:32], h.durableSize)
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.newestTimestamp))
	// bytes [40:64] are reserved and left zero.
	return buf
}

// decodeHeader parses a HeaderSize-byte buffer. It returns BrokenData if the
// magic or version do not match.
func decodeHeader(buf []byte) (header, error) {
	if len(buf) < HeaderSize {
		return header{}, newStatus(KindBrokenData, "segment header truncated: %d bytes", len(buf))
	}
	if string(buf[0:8]) != string(magic[:]) {
		return header{}, newStatus(KindBrokenData, "bad segment magic")
	}
	h := header{
		version:         buf[8],
		flags:           buf[9],
		fileID:          binary.LittleEndian.Uint64(buf[16:24]),
		durableSize:     binary.LittleEndian.Uint64(buf[24:32]),
		newestTimestamp: int64(binary.LittleEndian.Uint64(buf[32:40])),
	}
	if h.version != formatVersion {
		return header{}, newStatus(KindBrokenData, "unsupported segment version %d", h.version)
	}
	return h, nil
}
