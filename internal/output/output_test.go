package output

import (
	"os"
	"path/filepath"
	"testing"

	"evbin/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCountersRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "histograms", "occ_x.bin")
	written, err := WriteCounters(path, []uint32{2, 0, 1, 0x01020304}, NoOp{})
	require.NoError(t, err)
	assert.Equal(t, path, written)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 4, 3, 2, 1}, b)
}

func TestCodecs(t *testing.T) {
	counts := make([]uint32, 640*480)
	for i := range counts {
		if i%97 == 0 {
			counts[i] = uint32(i)
		}
	}

	for _, name := range []string{"none", "s2", "zstd", "lz4"} {
		t.Run(name, func(t *testing.T) {
			codec, err := CreateCodec(name)
			require.NoError(t, err)

			path, err := WriteCounters(filepath.Join(t.TempDir(), "map_x.bin"), counts, codec)
			require.NoError(t, err)
			assert.Equal(t, codec.Name(), CodecForPath(path).Name())

			got, err := ReadCounters(path, CodecForPath(path))
			require.NoError(t, err)
			assert.Equal(t, counts, got)
		})
	}
}

func TestCodecsEmpty(t *testing.T) {
	for _, c := range []Codec{NoOp{}, S2{}, Zstd{}, LZ4{}} {
		data, err := c.Compress(nil)
		require.NoError(t, err, c.Name())
		raw, err := c.Decompress(data)
		require.NoError(t, err, c.Name())
		assert.Empty(t, raw, c.Name())
	}
}

func TestCreateCodecUnknown(t *testing.T) {
	_, err := CreateCodec("patate")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestDigest(t *testing.T) {
	a := Digest([]uint32{1, 2, 3})
	assert.Equal(t, a, Digest([]uint32{1, 2, 3}))
	assert.NotEqual(t, a, Digest([]uint32{1, 2, 4}))
	assert.Equal(t, []uint32{1, 2, 3}, Unmarshal(Marshal([]uint32{1, 2, 3})))
}
