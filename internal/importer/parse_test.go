package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRow_Synonyms(t *testing.T) {
	c := ParseRow(4, map[string]any{
		"Código":        float64(5),
		"Razão Social":  "  Acme Ltda ",
		"CNPJ":          float64(11222333000181),
		"E-mail":        " contato@acme.com ",
		"Município":     "Recife",
		"uf":            "PE",
		"Nome Fantasia": "Acme",
	})

	assert.Empty(t, c.Errors)
	assert.Equal(t, Disposition(""), c.Disposition)
	assert.Equal(t, 4, c.RowNumber)
	assert.Equal(t, "5", c.ExternalID)
	assert.Equal(t, "000005", c.TargetKey())
	assert.Equal(t, "Acme Ltda", c.Name)
	assert.Equal(t, "Acme", c.TradeName)
	assert.Equal(t, "11222333000181", c.TaxID)
	assert.Equal(t, "contato@acme.com", c.Details.Email)
	assert.Equal(t, "Recife", c.Details.City)
	assert.Equal(t, "PE", c.Details.State)
	assert.Empty(t, c.Details.Phone)
}

func TestParseRow_NameSynonymPriority(t *testing.T) {
	c := ParseRow(2, map[string]any{
		"ID":              "7",
		"Nome":            "Second",
		"NOME DA EMPRESA": "First",
		"CNPJ":            "11.222.333/0001-81",
	})
	assert.Equal(t, "First", c.Name)

	c = ParseRow(2, map[string]any{
		"ID":              "7",
		"Nome":            "Second",
		"Nome da Empresa": "  ",
		"CNPJ":            "11.222.333/0001-81",
	})
	assert.Equal(t, "Second", c.Name, "blank higher-priority column falls through")
}

func TestParseRow_MissingName(t *testing.T) {
	c := ParseRow(3, map[string]any{"ID": "1", "CNPJ": "11222333000181"})
	assert.Equal(t, Invalid, c.Disposition)
	assert.Equal(t, []string{"Nome ausente"}, c.Errors)
}

func TestParseRow_AllMissing(t *testing.T) {
	c := ParseRow(3, map[string]any{"Observação": "x"})
	assert.Equal(t, Invalid, c.Disposition)
	assert.Equal(t, []string{"ID ausente", "Nome ausente", "CNPJ ausente"}, c.Errors)
}

func TestParseRow_InvalidTaxID(t *testing.T) {
	c := ParseRow(3, map[string]any{"ID": "1", "Nome": "Acme", "CNPJ": "11.222.333/0001-82"})
	assert.Equal(t, Invalid, c.Disposition)
	assert.Equal(t, []string{"CNPJ inválido: 11222333000182"}, c.Errors)
}

func TestParseRow_ScientificTaxID(t *testing.T) {
	c := ParseRow(3, map[string]any{"ID": "1", "Nome": "Acme", "CNPJ": "1.1222333000181E13"})
	assert.Empty(t, c.Errors)
	assert.Equal(t, "11222333000181", c.TaxID)
}

func TestParseSheet(t *testing.T) {
	rows := [][]any{
		{"Relatório de empresas"},
		{},
		{"ID", "Nome da Empresa", "CNPJ", "Email"},
		{float64(5), "Acme", float64(11222333000181), "a@acme.com"},
		{"", "", nil},
		{"6", "Beta", "33.000.167/0001-01"},
		{"7", "", "60701190000104", "c@x.com", "extra"},
	}

	got := ParseSheet(rows)
	require.Len(t, got, 3)

	assert.Equal(t, 4, got[0].RowNumber)
	assert.Equal(t, "000005", got[0].TargetKey())
	assert.Equal(t, "a@acme.com", got[0].Details.Email)

	assert.Equal(t, 6, got[1].RowNumber)
	assert.Equal(t, "33000167000101", got[1].TaxID)
	assert.Empty(t, got[1].Details.Email, "short rows read missing cells as blank")

	assert.Equal(t, 7, got[2].RowNumber)
	assert.Equal(t, Invalid, got[2].Disposition)
}

func TestParseSheet_FoldedHeaderCollision(t *testing.T) {
	header := []any{"ID", "Nome", "CNPJ", "NOME"}
	row := []any{"1", "Primeira", "11222333000181", "Segunda"}

	for range 20 {
		got := ParseSheet([][]any{header, row})
		require.Len(t, got, 1)
		assert.Equal(t, "Primeira", got[0].Name)
	}

	// Swapping the columns swaps the winner.
	got := ParseSheet([][]any{
		{"ID", "NOME", "CNPJ", "Nome"},
		{"1", "Segunda", "11222333000181", "Primeira"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "Segunda", got[0].Name)

	// A blank leftmost cell does not hide a filled one.
	got = ParseSheet([][]any{header, {"1", "", "11222333000181", "Segunda"}})
	require.Len(t, got, 1)
	assert.Equal(t, "Segunda", got[0].Name)
	assert.Empty(t, got[0].Errors)
}

func TestParseRow_FoldedLabelCollisionIsStable(t *testing.T) {
	row := map[string]any{"ID": "1", "CNPJ": "11222333000181", "Nome": "Primeira", "NOME": "Segunda", "nome": "Terceira"}
	first := ParseRow(2, row).Name
	for range 20 {
		assert.Equal(t, first, ParseRow(2, row).Name)
	}
	assert.Equal(t, "Segunda", first, "labels are taken in sorted order")
}

func TestParseSheet_Empty(t *testing.T) {
	assert.Empty(t, ParseSheet(nil))
	assert.Empty(t, ParseSheet([][]any{{"ID", "Nome", "CNPJ"}}))
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", cellString(nil))
	assert.Equal(t, "5", cellString(float64(5)))
	assert.Equal(t, "5.5", cellString(5.5))
	assert.Equal(t, "abc", cellString("  abc "))
	assert.Equal(t, "true", cellString(true))
}
