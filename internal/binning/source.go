package binning

import (
	"fmt"
	"io"
	"os"
	"strings"

	"evbin/internal/errs"

	"golang.org/x/exp/mmap"
)

// Source hands each worker an independent reader over its byte range.
// Readers never share a cursor.
type Source interface {
	Section(start, end int64) (io.ReadCloser, error)
	Close() error
}

// SourceKind selects how workers read the input file.
type SourceKind string

const (
	// SourcePread gives every worker its own file handle.
	SourcePread SourceKind = "pread"
	// SourceMmap maps the file once read only and gives every worker a
	// section reader over the mapping.
	SourceMmap SourceKind = "mmap"
)

func ParseSourceKind(s string) (SourceKind, error) {
	switch k := SourceKind(strings.ToLower(s)); k {
	case SourcePread, SourceMmap:
		return k, nil
	case "":
		return SourcePread, nil
	default:
		return "", fmt.Errorf("%w: unknown io mode %q", errs.ErrInvalidArgument, s)
	}
}

// OpenSource opens inputFile for sectioned reads.
func OpenSource(kind SourceKind, inputFile string) (Source, error) {
	switch kind {
	case SourceMmap:
		return NewMmapSource(inputFile)
	case SourcePread, "":
		return &FileSource{Path: inputFile}, nil
	default:
		return nil, fmt.Errorf("%w: unknown io mode %q", errs.ErrInvalidArgument, kind)
	}
}

// FileSource opens a fresh handle per section.
type FileSource struct {
	Path string
}

type fileSection struct {
	*io.SectionReader
	f *os.File
}

func (s fileSection) Close() error {
	return s.f.Close()
}

func (fs *FileSource) Section(start, end int64) (io.ReadCloser, error) {
	f, err := os.Open(fs.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", errs.ErrIO, err)
	}
	adviseSequential(f, start, end-start)
	return fileSection{SectionReader: io.NewSectionReader(f, start, end-start), f: f}, nil
}

func (fs *FileSource) Close() error {
	return nil
}

// MmapSource shares one read only mapping between section readers.
type MmapSource struct {
	mm *mmap.ReaderAt
}

func NewMmapSource(inputFile string) (*MmapSource, error) {
	mm, err := mmap.Open(inputFile)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap.Open: %w", errs.ErrIO, err)
	}
	return &MmapSource{mm: mm}, nil
}

func (ms *MmapSource) Len() int {
	return ms.mm.Len()
}

func (ms *MmapSource) Section(start, end int64) (io.ReadCloser, error) {
	return io.NopCloser(io.NewSectionReader(ms.mm, start, end-start)), nil
}

func (ms *MmapSource) Close() error {
	return ms.mm.Close()
}
