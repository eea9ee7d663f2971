// Package tabular writes, reads and merges the CSV exports.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/xarxa-labs/xarxa/internal/atomicfile"
)

// ErrNoFiles is returned by Merge when there is nothing to merge.
var ErrNoFiles = errors.New("tabular: no input files")

// WriteCSV replaces path with a header row followed by rows.
func WriteCSV(path string, header []string, rows [][]string) error {
	err := atomicfile.WriteFunc(path, func(w io.Writer) error {
		return Write(w, header, rows)
	})
	if err != nil {
		return fmt.Errorf("tabular: %w", err)
	}
	log.Info().Str("path", path).Int("rows", len(rows)).Msg("tabular: csv written")
	return nil
}

// Write encodes header and rows to w. Every row must have len(header) fields.
func Write(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return fmt.Errorf("row %d has %d fields, header has %d", i, len(row), len(header))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV returns the header and data rows of path.
func ReadCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("tabular: open: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("tabular: read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("tabular: %s has no header", path)
	}
	return records[0], records[1:], nil
}

// Glob returns the files matching pattern in sorted order, skipping exclude.
func Glob(pattern, exclude string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("tabular: glob %q: %w", pattern, err)
	}
	out := matches[:0]
	for _, m := range matches {
		if exclude != "" && filepath.Clean(m) == filepath.Clean(exclude) {
			continue
		}
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// FileCount is the number of data rows read from one input.
type FileCount struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// MergeStats describes a Merge run.
type MergeStats struct {
	Files      []FileCount `json:"files"`
	Read       int         `json:"read"`
	Kept       int         `json:"kept"`
	Duplicates int         `json:"duplicates"`
}

// Merge concatenates files that share a header, in the given order, and
// drops rows whose key columns repeat an earlier row. The first occurrence
// wins. An empty keyColumns compares whole rows. Files whose header differs
// from the first file's are rejected with an error; columns are never unioned.
func Merge(paths []string, keyColumns []string) ([]string, [][]string, MergeStats, error) {
	var stats MergeStats
	if len(paths) == 0 {
		return nil, nil, stats, ErrNoFiles
	}

	var (
		header []string
		keyIdx []int
		rows   [][]string
		seen   = make(map[string]struct{})
	)
	for _, p := range paths {
		h, data, err := ReadCSV(p)
		if err != nil {
			return nil, nil, stats, err
		}
		if header == nil {
			header = h
			keyIdx, err = columnIndexes(header, keyColumns)
			if err != nil {
				return nil, nil, stats, err
			}
		} else if !equalHeader(header, h) {
			return nil, nil, stats, fmt.Errorf("tabular: %s header %v differs from %v", p, h, header)
		}

		stats.Files = append(stats.Files, FileCount{Path: p, Rows: len(data)})
		stats.Read += len(data)
		log.Info().Str("path", p).Int("rows", len(data)).Msg("tabular: file loaded")

		for _, row := range data {
			k := rowKey(row, keyIdx)
			if _, dup := seen[k]; dup {
				stats.Duplicates++
				continue
			}
			seen[k] = struct{}{}
			rows = append(rows, row)
		}
	}
	stats.Kept = len(rows)
	return header, rows, stats, nil
}

func columnIndexes(header, columns []string) ([]int, error) {
	if len(columns) == 0 {
		idx := make([]int, len(header))
		for i := range header {
			idx[i] = i
		}
		return idx, nil
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	idx := make([]int, 0, len(columns))
	for _, c := range columns {
		i, ok := pos[c]
		if !ok {
			return nil, fmt.Errorf("tabular: key column %q not in header", c)
		}
		idx = append(idx, i)
	}
	return idx, nil
}

func equalHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// rowKey joins the key fields with a unit separator, which CSV exports
// never contain.
func rowKey(row []string, idx []int) string {
	parts := make([]string, len(idx))
	for i, j := range idx {
		parts[i] = row[j]
	}
	return strings.Join(parts, "\x1f")
}
