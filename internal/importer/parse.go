package importer

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/sells-group/employer-import/internal/normalize"
)

// Logical fields a row can carry.
const (
	fieldExternalID   = "external_id"
	fieldName         = "name"
	fieldTradeName    = "trade_name"
	fieldTaxID        = "tax_id"
	fieldEmail        = "email"
	fieldPhone        = "phone"
	fieldContactName  = "contact_name"
	fieldStreet       = "street"
	fieldNumber       = "number"
	fieldComplement   = "complement"
	fieldNeighborhood = "neighborhood"
	fieldCity         = "city"
	fieldState        = "state"
	fieldZipCode      = "zip_code"
)

// columnSynonyms lists the accepted column labels per field, in priority
// order. Labels are compared after normalize.FoldLabel.
var columnSynonyms = map[string][]string{
	fieldExternalID:   {"ID", "Codigo", "Código", "Cod", "Matricula", "Matrícula"},
	fieldName:         {"Nome da Empresa", "Nome", "Razao_Social", "Razão Social"},
	fieldTradeName:    {"Nome Fantasia", "Fantasia"},
	fieldTaxID:        {"CNPJ", "CNPJ da Empresa"},
	fieldEmail:        {"Email", "E-mail"},
	fieldPhone:        {"Telefone", "Fone", "Celular"},
	fieldContactName:  {"Contato", "Responsavel", "Responsável"},
	fieldStreet:       {"Endereco", "Endereço", "Logradouro"},
	fieldNumber:       {"Numero", "Número", "Nº"},
	fieldComplement:   {"Complemento"},
	fieldNeighborhood: {"Bairro"},
	fieldCity:         {"Cidade", "Municipio", "Município"},
	fieldState:        {"UF", "Estado"},
	fieldZipCode:      {"CEP"},
}

// Row validation messages.
const (
	msgMissingID    = "ID ausente"
	msgMissingName  = "Nome ausente"
	msgMissingTaxID = "CNPJ ausente"
)

type foldedRow map[string]any

// foldRow folds a labeled row. Labels that collide after folding are taken in
// sorted order, so the result does not depend on map iteration.
func foldRow(row map[string]any) foldedRow {
	out := make(foldedRow, len(row))
	for _, label := range slices.Sorted(maps.Keys(row)) {
		out.set(label, row[label])
	}
	return out
}

// set stores v under label's folded key unless a non-blank value got there
// first.
func (r foldedRow) set(label string, v any) {
	key := normalize.FoldLabel(label)
	if prev, ok := r[key]; ok && cellString(prev) != "" {
		return
	}
	r[key] = v
}

// raw returns the first non-blank value among field's synonyms.
func (r foldedRow) raw(field string) any {
	for _, label := range columnSynonyms[field] {
		if v, ok := r[normalize.FoldLabel(label)]; ok && cellString(v) != "" {
			return v
		}
	}
	return nil
}

func (r foldedRow) str(field string) string {
	return cellString(r.raw(field))
}

// cellString renders a cell as trimmed text. Integral floats lose their
// fractional part so that a numeric "5" reads back as "5".
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// ParseRow maps one labeled row into a Candidate and validates it. A
// candidate with any error is Invalid and is never matched.
func ParseRow(rowNumber int, row map[string]any) Candidate {
	return parseFolded(rowNumber, foldRow(row))
}

func parseFolded(rowNumber int, r foldedRow) Candidate {
	c := Candidate{
		RowNumber:  rowNumber,
		ExternalID: r.str(fieldExternalID),
		Name:       r.str(fieldName),
		TradeName:  r.str(fieldTradeName),
		TaxID:      normalize.NormalizeTaxID(trimmed(r.raw(fieldTaxID))),
	}
	c.Details.Email = r.str(fieldEmail)
	c.Details.Phone = r.str(fieldPhone)
	c.Details.ContactName = r.str(fieldContactName)
	c.Details.Street = r.str(fieldStreet)
	c.Details.Number = r.str(fieldNumber)
	c.Details.Complement = r.str(fieldComplement)
	c.Details.Neighborhood = r.str(fieldNeighborhood)
	c.Details.City = r.str(fieldCity)
	c.Details.State = r.str(fieldState)
	c.Details.ZipCode = r.str(fieldZipCode)

	if c.ExternalID == "" {
		c.Errors = append(c.Errors, msgMissingID)
	}
	if c.Name == "" {
		c.Errors = append(c.Errors, msgMissingName)
	}
	switch {
	case c.TaxID == "":
		c.Errors = append(c.Errors, msgMissingTaxID)
	case !normalize.ValidateTaxID(c.TaxID):
		c.Errors = append(c.Errors, "CNPJ inválido: "+c.TaxID)
	}

	if len(c.Errors) > 0 {
		c.Disposition = Invalid
	}
	return c
}

func trimmed(v any) any {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}

// ParseSheet locates the header row and parses every following non-blank row.
// RowNumber is the 1-based position of the row in the sheet. When two headers
// name the same field, the leftmost non-blank cell wins.
func ParseSheet(rows [][]any) []Candidate {
	if len(rows) == 0 {
		return nil
	}
	headerIdx := normalize.FindHeaderRowIndex(rows)
	header := rows[headerIdx]

	labels := make([]string, len(header))
	for i, cell := range header {
		labels[i] = cellString(cell)
	}

	var out []Candidate
	for i := headerIdx + 1; i < len(rows); i++ {
		if blankRow(rows[i]) {
			continue
		}
		row := make(foldedRow, len(labels))
		for j, label := range labels {
			if label == "" {
				continue
			}
			var v any = ""
			if j < len(rows[i]) && rows[i][j] != nil {
				v = rows[i][j]
			}
			row.set(label, v)
		}
		out = append(out, parseFolded(i+1, row))
	}
	return out
}

func blankRow(row []any) bool {
	for _, cell := range row {
		if cellString(cell) != "" {
			return false
		}
	}
	return true
}
