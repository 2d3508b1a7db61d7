package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// HeightRecordSize is the size of a persisted height record: the big-endian
// height followed by the big-endian CRC32 (IEEE) of those eight bytes.
const HeightRecordSize = 12

var (
	// ErrMalformedHeightRecord is returned when the stored record has the
	// wrong length or fails its checksum. It is never treated as height zero.
	ErrMalformedHeightRecord = errors.New("malformed height record")
	// ErrHeightRecordMissing is returned when a read or an increment finds no
	// record. The record is created at startup, so a missing one is corruption.
	ErrHeightRecordMissing = errors.New("height record missing")
)

// HeightStore persists the number of committed blocks.
// Only the consensus lane calls IncrementAndPersist.
type HeightStore interface {
	// ReadOrInitialize returns the last durable height, writing a zero
	// record first if none exists.
	ReadOrInitialize() (uint64, error)

	// Read returns the last durable height. It never creates a record.
	Read() (uint64, error)

	// IncrementAndPersist adds one to the stored height, durably records it
	// and returns the new value.
	IncrementAndPersist() (uint64, error)
}

func encodeHeight(height uint64) []byte {
	bz := make([]byte, HeightRecordSize)
	binary.BigEndian.PutUint64(bz[:8], height)
	binary.BigEndian.PutUint32(bz[8:], crc32.ChecksumIEEE(bz[:8]))
	return bz
}

func decodeHeight(bz []byte) (uint64, error) {
	if len(bz) != HeightRecordSize {
		return 0, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedHeightRecord, HeightRecordSize, len(bz))
	}
	sum := binary.BigEndian.Uint32(bz[8:])
	if crc32.ChecksumIEEE(bz[:8]) != sum {
		return 0, fmt.Errorf("%w: checksum mismatch", ErrMalformedHeightRecord)
	}
	return binary.BigEndian.Uint64(bz[:8]), nil
}
