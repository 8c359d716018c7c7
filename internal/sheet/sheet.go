// Package sheet reads the first worksheet of an uploaded spreadsheet into rows
// of typed cells. Numeric cells stay numbers so callers can recover values the
// spreadsheet coerced to floating point.
package sheet

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Rows is a worksheet as read from disk: one slice per row, one value per
// cell. Cell values are string, float64 or bool; empty cells are "".
type Rows [][]any

// ReadFile reads the first worksheet of the file at path. The format is chosen
// by extension.
func ReadFile(ctx context.Context, path string) (Rows, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sheet: read %s", path)
	}
	return Read(ctx, filepath.Base(path), data)
}

// Read parses an in-memory spreadsheet. name is only used to pick the format.
func Read(ctx context.Context, name string, data []byte) (Rows, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx", ".xlsm":
		return ReadXLSX(data)
	case ".csv", ".txt":
		return ReadCSV(ctx, bytes.NewReader(data), CSVOptions{TrimSpace: true})
	case ".xls":
		return nil, eris.Errorf("sheet: legacy .xls files are not supported, save %q as .xlsx", name)
	default:
		return nil, eris.Errorf("sheet: unsupported file type %q", ext)
	}
}
