// Package scan builds the file catalog a distributed run works on and
// derives output file names from input paths.
package scan

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"evbin/internal/errs"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultMaxFiles is the catalog size above which files are dropped.
const DefaultMaxFiles = 1000

// Options controls directory scanning.
type Options struct {
	Pattern  string // doublestar pattern relative to the folder, "*" when empty
	MaxFiles int    // DefaultMaxFiles when <= 0
}

// Catalog is the ordered list of input files of one run.
type Catalog struct {
	Folder string   `msgpack:"folder"`
	Files  []string `msgpack:"files"`

	// Warning is set when the scan dropped files; it is never sent to other ranks.
	Warning error `msgpack:"-"`
}

// Paths returns the full path of every file in the catalog.
func (c *Catalog) Paths() []string {
	paths := make([]string, len(c.Files))
	for i, f := range c.Files {
		paths[i] = filepath.Join(c.Folder, f)
	}
	return paths
}

// catalogWire drops the Catalog methods so msgpack encodes the fields
// instead of calling MarshalBinary again.
type catalogWire Catalog

func (c *Catalog) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal((*catalogWire)(c))
}

func (c *Catalog) UnmarshalBinary(b []byte) error {
	return msgpack.Unmarshal(b, (*catalogWire)(c))
}

// Scan lists the regular files of folder matching opts.Pattern, sorted by
// name. When more than opts.MaxFiles match, the catalog keeps the first
// MaxFiles and Catalog.Warning wraps errs.ErrCapacityExceeded.
func Scan(folder string, opts Options) (*Catalog, error) {
	if folder == "" {
		return nil, fmt.Errorf("%w: folder path not specified", errs.ErrInvalidArgument)
	}
	if opts.Pattern == "" {
		opts.Pattern = "*"
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	if !doublestar.ValidatePattern(opts.Pattern) {
		return nil, fmt.Errorf("%w: bad pattern %q", errs.ErrInvalidArgument, opts.Pattern)
	}

	fi, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrIO, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", errs.ErrInvalidArgument, folder)
	}

	fsys := os.DirFS(folder)
	matches, err := doublestar.Glob(fsys, opts.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: pattern matching failed: %w", errs.ErrIO, err)
	}
	sort.Strings(matches)

	files := make([]string, 0, min(len(matches), opts.MaxFiles))
	for _, m := range matches {
		info, err := os.Stat(filepath.Join(folder, m))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, m)
	}

	cat := &Catalog{Folder: folder, Files: files}
	if len(files) > opts.MaxFiles {
		cat.Warning = fmt.Errorf("%w: %d files found, keeping the first %d", errs.ErrCapacityExceeded, len(files), opts.MaxFiles)
		cat.Files = files[:opts.MaxFiles]
		slog.Warn("maximum number of files exceeded", "folder", folder, "found", len(files), "max", opts.MaxFiles)
	}
	return cat, nil
}

// BaseName strips the directory and the last extension of path.
func BaseName(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

// OutputPath returns <dir>/<prefix>_<basename>.bin for input.
func OutputPath(dir, prefix, input string) string {
	return filepath.Join(dir, prefix+"_"+BaseName(input)+".bin")
}
