// Package importer turns spreadsheet rows into employer candidates, classifies
// them against a tenant's existing employers and applies the result to the
// store.
package importer

import (
	"github.com/sells-group/employer-import/internal/employer"
	"github.com/sells-group/employer-import/internal/normalize"
)

// Disposition is the classification assigned to a candidate.
type Disposition string

// Dispositions.
const (
	ToCreate Disposition = "to_create"
	ToUpdate Disposition = "to_update"
	Conflict Disposition = "conflict"
	Invalid  Disposition = "invalid"
)

// ConflictInfo identifies the employer already holding a candidate's target
// secondary key.
type ConflictInfo struct {
	OccupantID    string `json:"occupant_id"`
	OccupantName  string `json:"occupant_name"`
	OccupantTaxID string `json:"occupant_tax_id"`
	TargetKey     string `json:"target_key"`
}

// Candidate is one parsed spreadsheet row.
type Candidate struct {
	RowNumber   int              `json:"row_number"`
	ExternalID  string           `json:"external_id,omitempty"`
	Name        string           `json:"name,omitempty"`
	TradeName   string           `json:"trade_name,omitempty"`
	TaxID       string           `json:"tax_id,omitempty"`
	Details     employer.Details `json:"details"`
	Errors      []string         `json:"errors,omitempty"`
	Changes     []string         `json:"changes,omitempty"`
	Conflict    *ConflictInfo    `json:"conflict,omitempty"`
	ExistingID  string           `json:"existing_id,omitempty"`
	Disposition Disposition      `json:"disposition"`
}

// TargetKey is the secondary key the candidate will claim.
func (c Candidate) TargetKey() string {
	return normalize.FormatSecondaryKey(c.ExternalID)
}

// PreviewSummary counts candidates per disposition.
type PreviewSummary struct {
	ToCreate  int `json:"to_create" yaml:"to_create"`
	ToUpdate  int `json:"to_update" yaml:"to_update"`
	Conflicts int `json:"conflicts" yaml:"conflicts"`
	Invalid   int `json:"invalid" yaml:"invalid"`
	Total     int `json:"total" yaml:"total"`
}

// Summarize counts candidates per disposition. The four counts always add up
// to Total.
func Summarize(candidates []Candidate) PreviewSummary {
	s := PreviewSummary{Total: len(candidates)}
	for _, c := range candidates {
		switch c.Disposition {
		case ToCreate:
			s.ToCreate++
		case ToUpdate:
			s.ToUpdate++
		case Conflict:
			s.Conflicts++
		default:
			s.Invalid++
		}
	}
	return s
}
