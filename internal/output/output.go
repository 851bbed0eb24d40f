// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package output writes finalized records to the run's output directory:
// metadata.csv, an optional metadata.xlsx workbook, and optional per-record
// text files under text/.
package output

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pdiddy/judgment-engine/internal/sink"
	"github.com/pdiddy/judgment-engine/pkg/types"
)

// File names inside the output directory.
const (
	CSVFile  = "metadata.csv"
	XLSXFile = "metadata.xlsx"
	TextDir  = "text"
)

// xlsxCellLimit is the maximum number of characters a spreadsheet cell holds.
const xlsxCellLimit = 32767

const sheet = "Judgments"

// Writer persists records according to an OutputConfig.
type Writer struct {
	Config types.OutputConfig
	Logger *slog.Logger
}

// New creates a Writer.
func New(cfg types.OutputConfig, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{Config: cfg, Logger: logger}
}

// Write writes every configured output and returns the paths written.
// Each file is written through a temporary file and renamed into place.
func (w *Writer) Write(records []types.ResultRecord) ([]string, error) {
	start := time.Now()
	if err := os.MkdirAll(w.Config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", w.Config.Dir, err)
	}
	cols := sink.Columns(records)

	var written []string
	data, err := CSV(records, cols)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(w.Config.Dir, CSVFile)
	if err := writeAtomic(path, data); err != nil {
		return nil, err
	}
	written = append(written, path)

	if w.Config.XLSX {
		data, err := XLSX(records, cols)
		if err != nil {
			return written, err
		}
		path := filepath.Join(w.Config.Dir, XLSXFile)
		if err := writeAtomic(path, data); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if w.Config.WriteText {
		paths, err := w.writeTexts(records)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}

	w.Logger.Info("outputs written", "dir", w.Config.Dir, "rows", len(records), "files", len(written),
		"elapsed_ms", time.Since(start).Milliseconds())
	return written, nil
}

func (w *Writer) writeTexts(records []types.ResultRecord) ([]string, error) {
	dir := filepath.Join(w.Config.Dir, TextDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating text directory: %w", err)
	}
	var paths []string
	for _, r := range records {
		if r.Text == "" {
			continue
		}
		path := filepath.Join(dir, TextName(r.Index))
		if err := writeAtomic(path, []byte(r.Text)); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// TextName returns the text file name for a row index.
func TextName(index int) string {
	return fmt.Sprintf("%04d.txt", index)
}

// CSV renders records as CSV with a header row.
func CSV(records []types.ResultRecord, cols []string) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(cols); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(sink.Row(r, cols)); err != nil {
			return nil, fmt.Errorf("writing csv row %d: %w", r.Index, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// XLSX renders records as a single-sheet workbook. Cells longer than the
// spreadsheet limit are truncated.
func XLSX(records []types.ResultRecord, cols []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	header := make([]any, len(cols))
	for i, h := range cols {
		header[i] = h
	}
	if err := setRow(f, 1, header); err != nil {
		return nil, fmt.Errorf("xlsx header: %w", err)
	}
	for n, r := range records {
		vals := sink.Row(r, cols)
		row := make([]any, len(vals))
		for i, v := range vals {
			row[i] = truncate(xlsxSafe(v), xlsxCellLimit)
		}
		if err := setRow(f, n+2, row); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", r.Index, err)
		}
	}
	if len(cols) > 0 {
		last, err := excelize.ColumnNumberToName(len(cols))
		if err != nil {
			return nil, fmt.Errorf("xlsx columns: %w", err)
		}
		if err := f.SetColWidth(sheet, "A", last, 24); err != nil {
			return nil, fmt.Errorf("xlsx column width: %w", err)
		}
		if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return nil, fmt.Errorf("xlsx panes: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// setRow writes vals into the 1-based row starting at column A.
func setRow(f *excelize.File, row int, vals []any) error {
	if len(vals) > excelize.MaxColumns {
		return fmt.Errorf("%d columns exceed %d", len(vals), excelize.MaxColumns)
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &vals)
}

// xlsxSafe replaces control characters that XML cannot carry. Page
// separators become newlines.
func xlsxSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\f':
			return '\n'
		case r < 0x20 && r != '\t' && r != '\n' && r != '\r':
			return -1
		}
		return r
	}, s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, errors.Join(writeErr, closeErr))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}
