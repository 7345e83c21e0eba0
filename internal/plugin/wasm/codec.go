package wasm

import (
	"encoding/binary"
	"fmt"
)

// Integer arguments and results cross the boundary as 8-byte little-endian
// memory blocks.

func encodeInt64(v int64) []byte {
	return encodeUint64(uint64(v))
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

func decodeInt64(b []byte) (int64, error) {
	v, err := decodeUint64(b)
	return int64(v), err
}

func decodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("integer block has %d bytes, want 8", len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}
