// Package output writes final aggregates as raw arrays of little-endian
// u32 counters, optionally compressed.
package output

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"evbin/internal/errs"

	"github.com/cespare/xxhash/v2"
)

func putUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func getUint32(b []byte) uint32    { return binary.LittleEndian.Uint32(b) }

// Marshal serializes counts in file order.
func Marshal(counts []uint32) []byte {
	b := make([]byte, 0, len(counts)*4)
	for _, c := range counts {
		b = binary.LittleEndian.AppendUint32(b, c)
	}
	return b
}

// Unmarshal is the inverse of Marshal; a trailing partial counter is ignored.
func Unmarshal(b []byte) []uint32 {
	counts := make([]uint32, len(b)/4)
	for i := range counts {
		counts[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return counts
}

// Digest returns the xxhash64 of the serialized counters. Two runs over the
// same input agree on it regardless of how many workers they used.
func Digest(counts []uint32) uint64 {
	return xxhash.Sum64(Marshal(counts))
}

// WriteCounters writes counts to path (plus the codec extension), creating
// parent directories. It returns the path actually written.
func WriteCounters(path string, counts []uint32, codec Codec) (string, error) {
	if codec == nil {
		codec = NoOp{}
	}
	path += codec.Ext()

	data, err := codec.Compress(Marshal(counts))
	if err != nil {
		return "", fmt.Errorf("%w: %s compress: %w", errs.ErrIO, codec.Name(), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("%w: create output dir: %w", errs.ErrIO, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: write output: %w", errs.ErrIO, err)
	}
	return path, nil
}

// ReadCounters reads a file written by WriteCounters. path must include the
// codec extension.
func ReadCounters(path string, codec Codec) ([]uint32, error) {
	if codec == nil {
		codec = NoOp{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %w", errs.ErrIO, err)
	}
	raw, err := codec.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s decompress: %w", errs.ErrIO, codec.Name(), err)
	}
	return Unmarshal(raw), nil
}

// CodecForPath guesses the codec from the file extension.
func CodecForPath(path string) Codec {
	switch filepath.Ext(path) {
	case ".s2":
		return S2{}
	case ".zst":
		return Zstd{}
	case ".lz4":
		return LZ4{}
	default:
		return NoOp{}
	}
}
