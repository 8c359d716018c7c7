package sheet

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX reads the first worksheet of an XLSX workbook.
func ReadXLSX(data []byte) (Rows, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	rows := make(Rows, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		rows = append(rows, rowToValues(row))
	}

	return rows, nil
}

func rowToValues(row *xlsx.Row) []any {
	cells := make([]any, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cellValue(cell)
	}
	return cells
}

// cellValue keeps numeric cells as float64 instead of their formatted text.
func cellValue(cell *xlsx.Cell) any {
	if cell == nil {
		return ""
	}
	switch cell.Type() {
	case xlsx.CellTypeNumeric:
		if f, err := cell.Float(); err == nil {
			return f
		}
	case xlsx.CellTypeBool:
		return cell.Bool()
	}
	return cell.String()
}
