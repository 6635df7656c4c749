package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"evbin/internal/output"

	"github.com/avamsi/ergo/assert"
)

// printer dumps the first N counters of an output file:
//
//	printer -f histograms/occ_rec.bin 20
func main() {
	inputFile := flag.String("f", "occurrences.bin", "output file to read, codec picked from its extension")
	nonzero := flag.Bool("nonzero", false, "only print non-zero counters")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <N>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	n := assert.Ok(strconv.Atoi(flag.Arg(0)))
	if n <= 0 {
		log.Fatalf("N must be a positive integer, got %d", n)
	}

	counts := assert.Ok(output.ReadCounters(*inputFile, output.CodecForPath(*inputFile)))
	if len(counts) < n {
		fmt.Printf("Warning: only %d counters in %s\n", len(counts), *inputFile)
		n = len(counts)
	}
	for i, c := range counts[:n] {
		if *nonzero && c == 0 {
			continue
		}
		fmt.Printf("counts[%d] = %d\n", i, c)
	}
}
