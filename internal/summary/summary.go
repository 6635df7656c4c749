// Package summary appends one timing row per run to a CSV file.
package summary

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"evbin/internal/errs"
)

// Row is one run: processes,threads,accelerator(0|1),max_elapsed.
type Row struct {
	Processes   int
	Threads     int
	Accelerator bool
	MaxElapsed  float64 // seconds
}

func (r Row) record() []string {
	acc := "0"
	if r.Accelerator {
		acc = "1"
	}
	return []string{
		strconv.Itoa(r.Processes),
		strconv.Itoa(r.Threads),
		acc,
		strconv.FormatFloat(r.MaxElapsed, 'f', 6, 64),
	}
}

// FileName is the default summary file of a binner, e.g. summary_histograms.csv.
func FileName(binner string) string {
	return "summary_" + binner + "s.csv"
}

// Append adds row to the CSV at path, creating the file and its directory
// when missing.
func Append(path string, row Row) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: summary dir: %w", errs.ErrIO, err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open summary: %w", errs.ErrIO, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(row.record()); err != nil {
		f.Close()
		return fmt.Errorf("%w: write summary: %w", errs.ErrIO, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("%w: write summary: %w", errs.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close summary: %w", errs.ErrIO, err)
	}
	return nil
}

// Read parses every row of the CSV at path.
func Read(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open summary: %w", errs.ErrIO, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 4
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse summary: %w", errs.ErrIO, err)
	}

	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		var row Row
		var perr error
		if row.Processes, perr = strconv.Atoi(rec[0]); perr != nil {
			return nil, fmt.Errorf("%w: summary line %d: %w", errs.ErrIO, i+1, perr)
		}
		if row.Threads, perr = strconv.Atoi(rec[1]); perr != nil {
			return nil, fmt.Errorf("%w: summary line %d: %w", errs.ErrIO, i+1, perr)
		}
		row.Accelerator = rec[2] == "1"
		if row.MaxElapsed, perr = strconv.ParseFloat(rec[3], 64); perr != nil {
			return nil, fmt.Errorf("%w: summary line %d: %w", errs.ErrIO, i+1, perr)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
