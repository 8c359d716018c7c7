package sheet

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

// createTestXLSX builds a single-sheet workbook. float64 cells are written as
// numbers, everything else as strings.
func createTestXLSX(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Empresas")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, v := range rowData {
			cell := row.AddCell()
			switch n := v.(type) {
			case float64:
				cell.SetFloat(n)
			case string:
				cell.SetString(n)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestReadXLSX_PreservesNumbers(t *testing.T) {
	data := createTestXLSX(t, [][]any{
		{"ID", "Nome da Empresa", "CNPJ"},
		{"5", "Acme", float64(191)},
	})

	rows, err := ReadXLSX(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"ID", "Nome da Empresa", "CNPJ"}, rows[0])
	assert.Equal(t, "Acme", rows[1][1])
	assert.Equal(t, float64(191), rows[1][2])
}

func TestReadXLSX_InvalidData(t *testing.T) {
	_, err := ReadXLSX([]byte("not a workbook"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open workbook")
}

func TestReadFile_XLSX(t *testing.T) {
	data := createTestXLSX(t, [][]any{{"CNPJ"}, {"11222333000181"}})
	path := filepath.Join(t.TempDir(), "empresas.xlsx")
	require.NoError(t, writeFile(path, data))

	rows, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "11222333000181", rows[1][0])
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(context.Background(), "/nonexistent/empresas.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheet: read")
}

func TestRead_RejectsLegacyXLS(t *testing.T) {
	_, err := Read(context.Background(), "empresas.xls", []byte{0xD0, 0xCF})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "legacy .xls")
}

func TestRead_UnknownExtension(t *testing.T) {
	_, err := Read(context.Background(), "empresas.pdf", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}
