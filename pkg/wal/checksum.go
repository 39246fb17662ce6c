package wal

import "hash/crc32"

// castagnoliTable is the CRC32C polynomial table; Castagnoli has hardware
// support on most modern CPUs via SSE4.2/ARMv8.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

func checksum(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliTable)
}

func verifyChecksum(data []byte, expected uint32) bool {
	return checksum(data) == expected
}
