package reduce

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"testing"

	"evbin/internal/binning"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomArena(t testing.TB, workers, cells int) *binning.Arena {
	t.Helper()
	a, err := binning.NewArena(workers, cells)
	require.NoError(t, err)
	r := rand.New(rand.NewPCG(uint64(workers), uint64(cells)))
	for i := range a.Data() {
		a.Data()[i] = r.Uint32N(1000)
	}
	return a
}

func naiveSum(a *binning.Arena) []uint32 {
	out := make([]uint32, a.Cells())
	for c := range a.Cells() {
		for w := range a.Workers() {
			out[c] += a.At(w, c)
		}
	}
	return out
}

func TestReducersAgree(t *testing.T) {
	workerCounts := []int{1, 2, 3, runtime.NumCPU()}
	for _, workers := range workerCounts {
		for _, cells := range []int{1, 7, 1000, binning.Cells} {
			a := randomArena(t, workers, cells)
			want := naiveSum(a)
			reducers := map[string]Reducer{
				"serial":  Serial{},
				"lanes0":  Lanes{},
				"lanes1":  Lanes{N: 1},
				"lanes3":  Lanes{N: 3},
				"lanes64": Lanes{N: 64},
				"lanes2x": Lanes{N: 2 * cells},
			}
			for name, r := range reducers {
				t.Run(fmt.Sprintf("%s-w%d-c%d", name, workers, cells), func(t *testing.T) {
					got, err := r.Reduce(context.Background(), a)
					require.NoError(t, err)
					assert.Equal(t, want, got)
				})
			}
		}
	}
}

func TestNew(t *testing.T) {
	assert.False(t, Accelerated(New(false, 4)))
	r := New(true, 4)
	assert.True(t, Accelerated(r))
	assert.Equal(t, Lanes{N: 4}, r)
}

func TestReduceCanceled(t *testing.T) {
	a := randomArena(t, 2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Serial{}.Reduce(ctx, a)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = Lanes{N: 2}.Reduce(ctx, a)
	assert.ErrorIs(t, err, context.Canceled)
}

func benchmarkReduce(b *testing.B, r Reducer, workers int) {
	b.ReportAllocs()
	a := randomArena(b, workers, binning.Cells)
	for i := 0; i < b.N; i++ {
		if _, err := r.Reduce(context.Background(), a); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReduceSerial(b *testing.B) { benchmarkReduce(b, Serial{}, runtime.NumCPU()) }
func BenchmarkReduceLanes(b *testing.B)  { benchmarkReduce(b, Lanes{}, runtime.NumCPU()) }
