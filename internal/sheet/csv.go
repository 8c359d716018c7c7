package sheet

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter rune // default: sniffed from the first line, ',' or ';'
	TrimSpace bool
}

// sniffWindow bounds how much of the input is buffered to find the first line.
const sniffWindow = 64 << 10

var utf8BOM = []byte("\ufeff")

// ReadCSV reads r record by record. All cells are strings. The context is
// checked between records.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) (Rows, error) {
	br := bufio.NewReaderSize(r, sniffWindow)
	if head, _ := br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, eris.Wrap(err, "csv: skip byte order mark")
		}
	}

	reader := csv.NewReader(br)
	reader.Comma = opts.Delimiter
	if reader.Comma == 0 {
		reader.Comma = sniffDelimiter(br)
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	var rows Rows
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "csv: context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "csv: read row %d", len(rows)+1)
		}

		row := make([]any, len(record))
		for i, field := range record {
			if opts.TrimSpace {
				field = strings.TrimSpace(field)
			}
			row[i] = field
		}
		rows = append(rows, row)
	}
}

// sniffDelimiter picks ';' when the first line has more semicolons than
// commas, which is how Brazilian-locale spreadsheet exports are written. It
// only peeks, so nothing is consumed from br.
func sniffDelimiter(br *bufio.Reader) rune {
	head, _ := br.Peek(sniffWindow)
	first, _, _ := bytes.Cut(head, []byte("\n"))
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}
	return ','
}
