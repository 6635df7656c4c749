package output

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"evbin/internal/errs"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec compresses serialized counter arrays. The "none" codec keeps the
// raw little-endian layout other tools expect.
type Codec interface {
	Name() string
	// Ext is appended to output file names, empty for none.
	Ext() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// CreateCodec returns the codec registered under name.
func CreateCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return NoOp{}, nil
	case "s2":
		return S2{}, nil
	case "zstd", "zst":
		return Zstd{}, nil
	case "lz4":
		return LZ4{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %q", errs.ErrInvalidArgument, name)
	}
}

type NoOp struct{}

func (NoOp) Name() string                           { return "none" }
func (NoOp) Ext() string                            { return "" }
func (NoOp) Compress(data []byte) ([]byte, error)   { return data, nil }
func (NoOp) Decompress(data []byte) ([]byte, error) { return data, nil }

type S2 struct{}

func (S2) Name() string { return "s2" }
func (S2) Ext() string  { return ".s2" }

func (S2) Compress(data []byte) ([]byte, error) {
	return s2.Encode(nil, data), nil
}

func (S2) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return s2.Decode(nil, data)
}

// Encoders and decoders are reused; EncodeAll/DecodeAll are stateless.
var zstdEncoderPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(fmt.Sprintf("zstd.NewWriter: %v", err))
		}
		return enc
	},
}

var zstdDecoderPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("zstd.NewReader: %v", err))
		}
		return dec
	},
}

type Zstd struct{}

func (Zstd) Name() string { return "zstd" }
func (Zstd) Ext() string  { return ".zst" }

func (Zstd) Compress(data []byte) ([]byte, error) {
	enc := zstdEncoderPool.Get().(*zstd.Encoder)
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(data, nil), nil
}

func (Zstd) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dec := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(dec)
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}

// LZ4 writes the uncompressed length as a 4 byte prefix so Decompress can
// size its buffer exactly.
type LZ4 struct{}

func (LZ4) Name() string { return "lz4" }
func (LZ4) Ext() string  { return ".lz4" }

func (LZ4) Compress(data []byte) ([]byte, error) {
	dst := make([]byte, 4+lz4.CompressBlockBound(len(data)))
	putUint32(dst, uint32(len(data)))
	var c lz4.Compressor
	n, err := c.CompressBlock(data, dst[4:])
	if err != nil {
		return nil, err
	}
	return dst[:4+n], nil
}

func (LZ4) Decompress(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("lz4: missing length prefix")
	}
	size := getUint32(data)
	out := make([]byte, size)
	if size == 0 {
		return out, nil
	}
	n, err := lz4.UncompressBlock(data[4:], out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
