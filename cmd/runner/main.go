package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime/pprof"

	"evbin/internal/config"
	"evbin/internal/coord"
	"evbin/internal/engine"
	"evbin/internal/metrics"
	"evbin/internal/scan"

	"github.com/prometheus/client_golang/prometheus"
)

// runner is one rank of a multi-process run. Start -size of them with the
// same -run id and -redis address; rank 0 scans -d and writes the summary.
func main() {
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file")
	configFile := flag.String("config", "", "YAML config file, overridden by flags")
	folder := flag.String("d", "", "folder of event streams")
	redisAddr := flag.String("redis", "127.0.0.1:6379", "redis address used to coordinate ranks")
	runID := flag.String("run", "", "run id shared by every rank")
	rank := flag.Int("rank", 0, "rank of this process")
	size := flag.Int("size", 1, "number of ranks")
	var loglevel slog.Level
	flag.TextVar(&loglevel, "loglevel", slog.LevelInfo, "loglevel")
	flagged := config.Default()
	config.RegisterFlags(flag.CommandLine, &flagged)

	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: loglevel,
	})).With("rank", *rank))

	cfg, err := config.Resolve(flag.CommandLine, flagged, *configFile)
	if err != nil {
		log.Fatal(err)
	}
	if *folder == "" {
		log.Fatal("-d is required")
	}
	if *runID == "" {
		log.Fatalf("-run is required, e.g. -run %s", coord.NewRunID())
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var opts []engine.Option
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, engine.WithMetrics(metrics.New(reg)))
		srv := metrics.Serve(cfg.MetricsAddr, reg)
		defer srv.Close()
	}

	e, err := engine.New(cfg, opts...)
	if err != nil {
		log.Fatal(err)
	}

	comm, err := coord.DialRedis(ctx, *redisAddr, *runID, *rank, *size)
	if err != nil {
		log.Fatal(err)
	}
	defer comm.Close()
	slog.Info("rank ready", "run", *runID, "size", *size, "workers", e.Workers())

	co := &coord.Coordinator{
		Comm:   comm,
		Engine: e,
		Scan:   scan.Options{Pattern: cfg.Pattern, MaxFiles: cfg.MaxFiles},
	}
	sum, err := co.Run(ctx, *folder)
	if sum != nil && *rank == 0 {
		fmt.Printf("processes=%d threads=%d accelerator=%t max_elapsed=%.6f\n", sum.Processes, sum.Threads, sum.Accelerator, sum.MaxElapsed)
	}
	if err != nil {
		log.Fatal(err)
	}
}
