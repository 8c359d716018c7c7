package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSecondaryKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"5", "000005"},
		{"123", "000123"},
		{"A-0042", "000042"},
		{"", "000000"},
		{"123456", "123456"},
		{"1234567", "1234567"},
		{" 10 ", "000010"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := FormatSecondaryKey(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, got, FormatSecondaryKey(got), "formatting must be idempotent")
		})
	}
}

func TestFormatSecondaryKey_AlwaysSixDigitsForShortInput(t *testing.T) {
	for _, in := range []string{"0", "7", "99", "x1y2", "00001", "987654"} {
		assert.Len(t, FormatSecondaryKey(in), SecondaryKeyLength, in)
	}
}

func TestFoldLabel(t *testing.T) {
	assert.Equal(t, "razao social", FoldLabel("Razão_Social"))
	assert.Equal(t, "razao social", FoldLabel("  RAZAO   SOCIAL "))
	assert.Equal(t, "nome da empresa", FoldLabel("Nome da Empresa"))
	assert.Equal(t, "e mail", FoldLabel("E-mail"))
	assert.Equal(t, "municipio", FoldLabel("Município"))
	assert.Equal(t, "", FoldLabel("   "))
}

func TestIsHeaderLabel(t *testing.T) {
	assert.True(t, IsHeaderLabel(" cnpj "))
	assert.True(t, IsHeaderLabel("Razão Social"))
	assert.True(t, IsHeaderLabel("NOME DA EMPRESA"))
	assert.False(t, IsHeaderLabel("Relatório de empresas"))
	assert.False(t, IsHeaderLabel(float64(123)))
	assert.False(t, IsHeaderLabel(nil))
}

func TestFindHeaderRowIndex(t *testing.T) {
	rows := [][]any{
		{"Relatório de empresas", ""},
		{"Gerado em 01/02/2026"},
		{},
		{"ID", "Nome da Empresa", "CNPJ"},
		{"5", "Acme", "11222333000181"},
	}
	assert.Equal(t, 3, FindHeaderRowIndex(rows))
}

func TestFindHeaderRowIndex_DefaultsToZero(t *testing.T) {
	assert.Equal(t, 0, FindHeaderRowIndex(nil))
	assert.Equal(t, 0, FindHeaderRowIndex([][]any{{"a", "b"}, {"c"}}))
}

func TestFindHeaderRowIndex_OnlyScansFirstRows(t *testing.T) {
	rows := make([][]any, HeaderScanRows+2)
	for i := range rows {
		rows[i] = []any{"filler"}
	}
	rows[HeaderScanRows] = []any{"CNPJ"}
	assert.Equal(t, 0, FindHeaderRowIndex(rows))

	rows[HeaderScanRows-1] = []any{"CNPJ"}
	assert.Equal(t, HeaderScanRows-1, FindHeaderRowIndex(rows))
}
