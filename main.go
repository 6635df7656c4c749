package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime/pprof"
	"sync"
	"time"

	"evbin/internal/config"
	"evbin/internal/coord"
	"evbin/internal/engine"
	"evbin/internal/metrics"
	"evbin/internal/scan"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file")
	configFile := flag.String("config", "", "YAML config file, overridden by flags")
	inputFile := flag.String("f", "", "input event stream")
	folder := flag.String("d", "", "folder of event streams, split across -procs ranks")
	procs := flag.Int("procs", 1, "in-process ranks for folder runs")
	var loglevel slog.Level
	flag.TextVar(&loglevel, "loglevel", slog.LevelInfo, "loglevel")
	flagged := config.Default()
	config.RegisterFlags(flag.CommandLine, &flagged)

	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: loglevel,
	})))

	cfg, err := config.Resolve(flag.CommandLine, flagged, *configFile)
	if err != nil {
		log.Fatal(err)
	}
	if (*inputFile == "") == (*folder == "") {
		log.Fatal("exactly one of -f or -d is required")
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
	slog.Info("starting", "mode", cfg.Mode, "workers", e.Workers(), "io", cfg.IO, "accelerate", e.Accelerated())

	if *inputFile != "" {
		res, err := runFile(ctx, e, *inputFile)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s: %d events, %d workers, %.6fs\n", res.Input, res.Events, res.Workers, res.Elapsed.Seconds())
		return
	}

	sum, err := runFolder(ctx, e, *folder, *procs)
	if sum != nil {
		fmt.Printf("processes=%d threads=%d accelerator=%t max_elapsed=%.6f\n", sum.Processes, sum.Threads, sum.Accelerator, sum.MaxElapsed)
	}
	if err != nil {
		stop()
		pprof.StopCPUProfile()
		slog.Error("run finished with errors", "err", err)
		os.Exit(1)
	}
}

func runFile(ctx context.Context, e *engine.Engine, path string) (engine.Result, error) {
	start := time.Now()
	res, err := e.ProcessFile(ctx, path)
	slog.Debug("file done", "file", path, "elapsed", time.Since(start))
	return res, err
}

// runFolder runs procs ranks in this process and returns rank 0's summary.
func runFolder(ctx context.Context, e *engine.Engine, folder string, procs int) (*coord.Summary, error) {
	comms, err := coord.NewLocalGroup(procs)
	if err != nil {
		return nil, err
	}
	cfg := e.Config()

	sums := make([]*coord.Summary, procs)
	errs := make([]error, procs)
	wg := sync.WaitGroup{}
	wg.Add(procs)
	for r := range procs {
		go func() {
			defer wg.Done()
			co := &coord.Coordinator{
				Comm:   comms[r],
				Engine: e,
				Scan:   scan.Options{Pattern: cfg.Pattern, MaxFiles: cfg.MaxFiles},
			}
			sums[r], errs[r] = co.Run(ctx, folder)
			slog.Debug("rank done", "rank", r)
		}()
	}
	wg.Wait()

	return sums[0], errors.Join(errs...)
}
