package importer

import (
	"fmt"

	"github.com/sells-group/employer-import/internal/employer"
)

// Index is a lookup over a snapshot of a tenant's active employers. Both maps
// are one-to-one within a tenant.
type Index struct {
	byTaxID        map[string]employer.Employer
	bySecondaryKey map[string]employer.Employer
}

// NewIndex indexes snapshot by tax id and by secondary key.
func NewIndex(snapshot []employer.Employer) Index {
	idx := Index{
		byTaxID:        make(map[string]employer.Employer, len(snapshot)),
		bySecondaryKey: make(map[string]employer.Employer, len(snapshot)),
	}
	for _, e := range snapshot {
		idx.byTaxID[e.TaxID] = e
		if e.SecondaryKey != "" {
			idx.bySecondaryKey[e.SecondaryKey] = e
		}
	}
	return idx
}

// ByTaxID returns the employer with taxID.
func (idx Index) ByTaxID(taxID string) (employer.Employer, bool) {
	e, ok := idx.byTaxID[taxID]
	return e, ok
}

// BySecondaryKey returns the employer holding key.
func (idx Index) BySecondaryKey(key string) (employer.Employer, bool) {
	e, ok := idx.bySecondaryKey[key]
	return e, ok
}

// Match classifies every candidate against idx and returns the classified
// copies. Invalid candidates pass through untouched. Tax id decides identity;
// the secondary key is the attribute that may have to move.
func Match(candidates []Candidate, idx Index) []Candidate {
	out := make([]Candidate, len(candidates))
	for i, c := range candidates {
		out[i] = matchOne(c, idx)
	}
	return out
}

func matchOne(c Candidate, idx Index) Candidate {
	if c.Disposition == Invalid {
		return c
	}
	c.Errors = nil
	c.Changes = nil
	c.Conflict = nil
	c.ExistingID = ""

	key := c.TargetKey()
	existing, found := idx.ByTaxID(c.TaxID)
	occupant, occupied := idx.BySecondaryKey(key)

	if found {
		c.ExistingID = existing.ID
	}

	switch {
	case found && (!occupied || occupant.ID == existing.ID):
		c.Disposition = ToUpdate
		c.Changes = changeNotes(existing, c, key)
	case occupied:
		c.Disposition = Conflict
		c.Conflict = &ConflictInfo{
			OccupantID:    occupant.ID,
			OccupantName:  occupant.Name,
			OccupantTaxID: occupant.TaxID,
			TargetKey:     key,
		}
		c.Errors = append(c.Errors, fmt.Sprintf("Código %s já pertence a %s (CNPJ %s)", key, occupant.Name, occupant.TaxID))
		if found {
			c.Changes = changeNotes(existing, c, key)
		}
	default:
		c.Disposition = ToCreate
	}
	return c
}

var detailLabels = map[string]string{
	"email":        "Email",
	"phone":        "Telefone",
	"contact_name": "Contato",
	"street":       "Endereço",
	"number":       "Número",
	"complement":   "Complemento",
	"neighborhood": "Bairro",
	"city":         "Cidade",
	"state":        "UF",
	"zip_code":     "CEP",
}

// changeNotes describes what an update would change on existing. Blank
// candidate fields never overwrite, so they produce no note.
func changeNotes(existing employer.Employer, c Candidate, key string) []string {
	var notes []string
	if existing.SecondaryKey != key {
		notes = append(notes, fmt.Sprintf("Código: %s → %s", orEmpty(existing.SecondaryKey), key))
	}
	current := existing.Details.Columns()
	for i, col := range c.Details.Columns() {
		if col.Value == "" || col.Value == current[i].Value {
			continue
		}
		notes = append(notes, fmt.Sprintf("%s: %s → %s", detailLabels[col.Name], orEmpty(current[i].Value), col.Value))
	}
	return notes
}

func orEmpty(s string) string {
	if s == "" {
		return "(vazio)"
	}
	return s
}
