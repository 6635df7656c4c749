package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"evbin/internal/binning"
	"evbin/internal/config"
	"evbin/internal/errs"
	"evbin/internal/event"
	"evbin/internal/output"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStream(t testing.TB, dir, name string, declared uint32, evs []event.Event) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, event.WriteStreamDeclared(f, declared, evs))
	require.NoError(t, f.Close())
	return path
}

func syntheticEvents(n int) []event.Event {
	evs := make([]event.Event, n)
	for i := range evs {
		evs[i] = event.Event{
			Timestamp: 1_000_000 + uint64(i)*37,
			X:         uint16(i * 7 % 700),
			Y:         uint16(i * 13 % 500),
		}
	}
	return evs
}

func testConfig(t testing.TB, workers int) config.Config {
	cfg := config.Default()
	cfg.Mode = binning.ModeBoth
	cfg.Workers = workers
	cfg.OutputDir = t.TempDir()
	return cfg
}

func readOutput(t testing.TB, out Output) []uint32 {
	t.Helper()
	counts, err := output.ReadCounters(out.Path, output.CodecForPath(out.Path))
	require.NoError(t, err)
	return counts
}

func TestProcessFileScenario(t *testing.T) {
	input := writeStream(t, t.TempDir(), "scenario.bin", 3, []event.Event{
		{Timestamp: 1000, X: 10, Y: 20},
		{Timestamp: 1500, X: 10, Y: 20},
		{Timestamp: 3000, X: 5, Y: 5},
	})
	cfg := testConfig(t, 2)
	cfg.Buckets = 10

	e, err := New(cfg)
	require.NoError(t, err)
	res, err := e.ProcessFile(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.Events)
	assert.Equal(t, 2, res.Workers)
	assert.False(t, res.Degraded)
	require.Len(t, res.Outputs, 2)

	hg := res.Outputs[0]
	assert.Equal(t, "histogram", hg.Binner)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "histograms", "occ_scenario.bin"), hg.Path)
	assert.Equal(t, []uint32{2, 0, 1, 0, 0, 0, 0, 0, 0, 0}, readOutput(t, hg))
	assert.Equal(t, int64(3), hg.Counted)
	assert.Zero(t, hg.Dropped)

	hm := res.Outputs[1]
	assert.Equal(t, "heatmap", hm.Binner)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "heatmaps", "map_scenario.bin"), hm.Path)
	counts := readOutput(t, hm)
	require.Len(t, counts, binning.Cells)
	assert.Equal(t, uint32(2), counts[binning.HeatIndex(10, 20)])
	assert.Equal(t, uint32(1), counts[binning.HeatIndex(5, 5)])
	var total uint32
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, uint32(3), total)

	fi, err := os.Stat(hm.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(binning.Cells*4), fi.Size())
}

func TestProcessFileWorkerIndependence(t *testing.T) {
	input := writeStream(t, t.TempDir(), "synthetic.bin", 10007, syntheticEvents(10007))

	var ref []uint64
	for _, workers := range []int{1, 2, 3, 7, 16} {
		for _, io := range []binning.SourceKind{binning.SourcePread, binning.SourceMmap} {
			for _, accelerate := range []bool{false, true} {
				name := fmt.Sprintf("workers=%d/io=%s/accelerate=%t", workers, io, accelerate)
				t.Run(name, func(t *testing.T) {
					cfg := testConfig(t, workers)
					cfg.Buckets = 200
					cfg.IO = io
					cfg.Accelerate = accelerate
					cfg.ChunkSize = 1200

					e, err := New(cfg)
					require.NoError(t, err)
					res, err := e.ProcessFile(context.Background(), input)
					require.NoError(t, err)
					assert.Equal(t, int64(10007), res.Events)

					digests := make([]uint64, len(res.Outputs))
					for i, out := range res.Outputs {
						digests[i] = out.Digest
						assert.Equal(t, int64(10007), out.Counted+out.Dropped, out.Binner)
					}
					if ref == nil {
						ref = digests
						return
					}
					assert.Equal(t, ref, digests)
				})
			}
		}
	}
}

func TestProcessFileTruncated(t *testing.T) {
	evs := syntheticEvents(60)
	input := writeStream(t, t.TempDir(), "short.bin", 100, evs)
	cfg := testConfig(t, 4)

	e, err := New(cfg)
	require.NoError(t, err)
	res, err := e.ProcessFile(context.Background(), input)
	require.ErrorIs(t, err, errs.ErrTruncatedStream)
	assert.True(t, res.Degraded)
	assert.Equal(t, int64(60), res.Events)

	require.Len(t, res.Outputs, 2)
	for _, out := range res.Outputs {
		_, serr := os.Stat(out.Path)
		require.NoError(t, serr, out.Binner)
	}
	var total uint32
	for _, c := range readOutput(t, res.Outputs[0]) {
		total += c
	}
	assert.Equal(t, uint32(60), total)
}

func TestProcessFileEmptyStream(t *testing.T) {
	input := writeStream(t, t.TempDir(), "empty.bin", 0, nil)
	e, err := New(testConfig(t, 3))
	require.NoError(t, err)

	res, err := e.ProcessFile(context.Background(), input)
	require.NoError(t, err)
	assert.Zero(t, res.Events)
	for _, out := range res.Outputs {
		for _, c := range readOutput(t, out) {
			require.Zero(t, c)
		}
	}
}

func TestProcessFileErrors(t *testing.T) {
	e, err := New(testConfig(t, 2))
	require.NoError(t, err)

	_, err = e.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.bin"))
	assert.ErrorIs(t, err, errs.ErrIO)

	headerless := filepath.Join(t.TempDir(), "headerless.bin")
	require.NoError(t, os.WriteFile(headerless, []byte{1, 0}, 0o644))
	_, err = e.ProcessFile(context.Background(), headerless)
	assert.ErrorIs(t, err, errs.ErrTruncatedStream)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	input := writeStream(t, t.TempDir(), "canceled.bin", 100, syntheticEvents(100))
	res, err := e.ProcessFile(ctx, input)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Outputs)
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := testConfig(t, -1)
	_, err := New(cfg)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestRunContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	a := writeStream(t, dir, "a.bin", 50, syntheticEvents(50))
	b := writeStream(t, dir, "b.bin", 20, syntheticEvents(20))
	cfg := testConfig(t, 2)
	cfg.Compression = "zstd"

	e, err := New(cfg)
	require.NoError(t, err)
	results, err := e.Run(context.Background(), []string{a, filepath.Join(dir, "missing.bin"), b})
	require.ErrorIs(t, err, errs.ErrIO)
	require.Len(t, results, 3)

	assert.Equal(t, int64(50), results[0].Events)
	assert.Empty(t, results[1].Outputs)
	assert.Equal(t, int64(20), results[2].Events)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "histograms", "occ_b.bin.zst"), results[2].Outputs[0].Path)
}

func BenchmarkProcessFile(b *testing.B) {
	input := writeStream(b, b.TempDir(), "bench.bin", 200_000, syntheticEvents(200_000))
	e, err := New(testConfig(b, 0))
	require.NoError(b, err)

	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		if _, err := e.ProcessFile(context.Background(), input); err != nil {
			b.Fatal(err)
		}
	}
}
