package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"

	"evbin/internal/binning"
	"evbin/internal/event"
)

// gen writes a synthetic event stream. Timestamps start at -start and grow
// by a random step of at most -step microseconds; coordinates are uniform
// over a grid slightly larger than the sensor so some events fall outside.
func main() {
	outFile := flag.String("o", "data/events.bin", "output file")
	count := flag.Uint("n", 1_000_000, "number of events")
	start := flag.Uint64("start", 1_000_000, "first timestamp (µs)")
	step := flag.Uint64("step", 20, "maximum timestamp increment (µs)")
	missing := flag.Uint("truncate", 0, "declare n events but only write n-truncate")
	seed := flag.Uint64("seed", 1, "random seed")
	var loglevel slog.Level
	flag.TextVar(&loglevel, "loglevel", slog.LevelInfo, "loglevel")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: loglevel,
	})))

	if *missing > *count {
		log.Fatalf("-truncate %d exceeds -n %d", *missing, *count)
	}

	f, err := os.Create(*outFile)
	if err != nil {
		log.Fatal(err)
	}
	w := bufio.NewWriterSize(f, 1<<20)

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	if _, err := w.Write(binary.LittleEndian.AppendUint32(nil, uint32(*count))); err != nil {
		log.Fatal(err)
	}

	ts := *start
	rec := make([]byte, event.Size)
	for range *count - *missing {
		event.Encode(rec, event.Event{
			Timestamp: ts,
			X:         uint16(rng.IntN(binning.Width + binning.Width/16)),
			Y:         uint16(rng.IntN(binning.Height + binning.Height/16)),
		})
		if _, err := w.Write(rec); err != nil {
			log.Fatal(err)
		}
		ts += rng.Uint64N(*step + 1)
	}

	if err := w.Flush(); err != nil {
		log.Fatal(err)
	}
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}
	slog.Info("stream written", "file", *outFile, "declared", *count, "written", *count-*missing)
}
