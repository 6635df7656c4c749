// Package config holds the settings of a binning run. Values come from
// Default, overlaid by an optional YAML file, overlaid by command line flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"evbin/internal/binning"
	"evbin/internal/errs"
	"evbin/internal/output"
	"evbin/internal/summary"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode    binning.Mode `yaml:"mode"`
	Buckets int          `yaml:"buckets"`
	// Workers per file; 0 means runtime.NumCPU().
	Workers    int                `yaml:"workers"`
	IO         binning.SourceKind `yaml:"io"`
	Accelerate bool               `yaml:"accelerate"`
	// Lanes of the accelerated reduction; 0 means runtime.NumCPU().
	Lanes       int    `yaml:"lanes"`
	OutputDir   string `yaml:"output_dir"`
	Compression string `yaml:"compression"`
	// SummaryFile overrides the per binner summary_<binner>s.csv in OutputDir.
	SummaryFile string `yaml:"summary_file"`
	MaxFiles    int    `yaml:"max_files"`
	Pattern     string `yaml:"pattern"`
	MetricsAddr string `yaml:"metrics_addr"`
	ChunkSize   int    `yaml:"chunk_size"`
}

func Default() Config {
	return Config{
		Mode:        binning.ModeHistogram,
		Buckets:     1000,
		IO:          binning.SourcePread,
		OutputDir:   ".",
		Compression: "none",
		MaxFiles:    1000,
		Pattern:     "*",
		ChunkSize:   binning.DefaultChunkSize,
	}
}

// Load reads a YAML file over Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: config: %w", errs.ErrIO, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: config %s: %w", errs.ErrInvalidArgument, path, err)
	}
	return cfg, nil
}

// RegisterFlags binds every field of c to a flag of fs, using the current
// values as defaults.
func RegisterFlags(fs *flag.FlagSet, c *Config) {
	fs.TextVar(&c.Mode, "mode", c.Mode, "aggregate to compute: histogram, heatmap or both")
	fs.IntVar(&c.Buckets, "buckets", c.Buckets, "histogram bucket count (1ms each)")
	fs.IntVar(&c.Workers, "workers", c.Workers, "workers per file, 0 for one per CPU")
	fs.StringVar((*string)(&c.IO), "io", string(c.IO), "read strategy: pread or mmap")
	fs.BoolVar(&c.Accelerate, "accelerate", c.Accelerate, "reduce partial buffers with parallel lanes")
	fs.IntVar(&c.Lanes, "lanes", c.Lanes, "reduction lanes, 0 for one per CPU")
	fs.StringVar(&c.OutputDir, "out", c.OutputDir, "output directory")
	fs.StringVar(&c.Compression, "compression", c.Compression, "output compression: none, s2, zstd or lz4")
	fs.StringVar(&c.SummaryFile, "summary", c.SummaryFile, "summary CSV path (default <out>/summary_<binner>s.csv)")
	fs.IntVar(&c.MaxFiles, "maxfiles", c.MaxFiles, "maximum number of files taken from a folder")
	fs.StringVar(&c.Pattern, "pattern", c.Pattern, "file pattern inside the folder")
	fs.StringVar(&c.MetricsAddr, "metrics", c.MetricsAddr, "serve Prometheus metrics on this address")
	fs.IntVar(&c.ChunkSize, "chunksize", c.ChunkSize, "read chunk size in bytes")
}

// Resolve returns the effective configuration after fs was parsed into
// flagged. When path is set the file is loaded and only flags given
// explicitly on the command line override it.
func Resolve(fs *flag.FlagSet, flagged Config, path string) (Config, error) {
	if path == "" {
		return flagged, flagged.Validate()
	}
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}

	scratch := flag.NewFlagSet("config", flag.ContinueOnError)
	RegisterFlags(scratch, &cfg)
	fs.Visit(func(f *flag.Flag) {
		if err != nil || scratch.Lookup(f.Name) == nil {
			return
		}
		if serr := scratch.Set(f.Name, f.Value.String()); serr != nil {
			err = fmt.Errorf("%w: flag -%s: %w", errs.ErrInvalidArgument, f.Name, serr)
		}
	})
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Mode == 0 || c.Mode&^binning.ModeBoth != 0 {
		return fmt.Errorf("%w: mode %s", errs.ErrInvalidArgument, c.Mode)
	}
	if c.Mode.Has(binning.ModeHistogram) && c.Buckets <= 0 {
		return fmt.Errorf("%w: buckets must be positive, got %d", errs.ErrInvalidArgument, c.Buckets)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", errs.ErrInvalidArgument, c.Workers)
	}
	if _, err := binning.ParseSourceKind(string(c.IO)); err != nil {
		return err
	}
	if c.Lanes < 0 {
		return fmt.Errorf("%w: lanes must not be negative, got %d", errs.ErrInvalidArgument, c.Lanes)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output directory not specified", errs.ErrInvalidArgument)
	}
	if _, err := output.CreateCodec(c.Compression); err != nil {
		return err
	}
	if c.MaxFiles < 0 {
		return fmt.Errorf("%w: maxfiles must not be negative, got %d", errs.ErrInvalidArgument, c.MaxFiles)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("%w: chunksize must not be negative, got %d", errs.ErrInvalidArgument, c.ChunkSize)
	}
	return nil
}

// EffectiveWorkers resolves Workers == 0 to the CPU count.
func (c Config) EffectiveWorkers() int {
	if c.Workers == 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// SummaryPath is the CSV a run appends its timing row to for binner.
func (c Config) SummaryPath(binner string) string {
	if c.SummaryFile != "" {
		return c.SummaryFile
	}
	return filepath.Join(c.OutputDir, summary.FileName(binner))
}

// BinnerDir is the output subdirectory of binner, e.g. <out>/histograms.
func (c Config) BinnerDir(binner string) string {
	return filepath.Join(c.OutputDir, binner+"s")
}
