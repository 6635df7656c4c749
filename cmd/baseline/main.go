package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"evbin/internal/binning"
	"evbin/internal/event"
	"evbin/internal/output"
	"evbin/internal/scan"
)

// baseline bins a stream on one goroutine with plain buffered reads. Its
// digests are the reference the parallel engine is compared against.
func main() {
	inputFile := flag.String("i", "data/events.bin", "input event stream")
	mode := binning.ModeBoth
	flag.TextVar(&mode, "mode", binning.ModeBoth, "histogram, heatmap or both")
	buckets := flag.Int("buckets", 1000, "histogram bucket count")
	outDir := flag.String("out", "", "write outputs under this directory")
	flag.Parse()

	binners, err := binning.Binners(mode, *buckets)
	if err != nil {
		log.Fatal(err)
	}

	f, err := os.Open(*inputFile)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	declared, err := event.ReadHeader(f)
	if err != nil {
		log.Fatal(err)
	}
	br := bufio.NewReaderSize(f, 64*1024)
	if _, err := br.Discard(event.HeaderSize); err != nil {
		log.Fatal(err)
	}

	counts := make([][]uint32, len(binners))
	for i, b := range binners {
		counts[i] = make([]uint32, b.Cells())
	}

	var base uint64
	var n uint32
	var rec [event.Size]byte
	for n < declared {
		if _, err := io.ReadFull(br, rec[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				fmt.Fprintf(os.Stderr, "truncated stream: %d of %d events\n", n, declared)
				break
			}
			log.Fatal(err)
		}
		ev, err := event.Decode(rec[:])
		if err != nil {
			log.Fatal(err)
		}
		if n == 0 {
			base = ev.Timestamp
		}
		for i, b := range binners {
			b.Observe(ev, base, counts[i])
		}
		n++
	}

	for i, b := range binners {
		fmt.Printf("%s events=%d digest=%016x\n", b.Name(), n, output.Digest(counts[i]))
		if *outDir == "" {
			continue
		}
		path := scan.OutputPath(filepath.Join(*outDir, b.Name()+"s"), b.Prefix(), *inputFile)
		if _, err := output.WriteCounters(path, counts[i], output.NoOp{}); err != nil {
			log.Fatal(err)
		}
	}
}
