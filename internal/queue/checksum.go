package queue

import "hash/crc32"

// castagnoliTable backs the record checksum. CRC32C (Castagnoli) has
// dedicated instructions on modern CPUs and is the polynomial spec.md §4.1
// calls out as an example non-cryptographic checksum.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

func checksum(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliTable)
}
