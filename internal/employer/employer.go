// Package employer holds the persisted employer record and the store that
// reads and mutates it on behalf of a tenant.
package employer

import "time"

// Employer is a persisted employer. TaxID is its identity within a tenant;
// SecondaryKey is a reassignable 6-digit registration number that is unique
// among a tenant's active employers. An empty SecondaryKey means none.
type Employer struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	TaxID        string    `json:"tax_id"`
	SecondaryKey string    `json:"secondary_key,omitempty"`
	Name         string    `json:"name"`
	TradeName    string    `json:"trade_name,omitempty"`
	Details      Details   `json:"details"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Details are the optional contact and address fields of an employer.
type Details struct {
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	Street       string `json:"street,omitempty"`
	Number       string `json:"number,omitempty"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zip_code,omitempty"`
}

// Column is a database column paired with the value to write to it.
type Column struct {
	Name  string
	Value string
}

// Columns returns every details column in a fixed order.
func (d Details) Columns() []Column {
	return []Column{
		{"email", d.Email},
		{"phone", d.Phone},
		{"contact_name", d.ContactName},
		{"street", d.Street},
		{"number", d.Number},
		{"complement", d.Complement},
		{"neighborhood", d.Neighborhood},
		{"city", d.City},
		{"state", d.State},
		{"zip_code", d.ZipCode},
	}
}

// NonBlank returns only the columns that carry a value. Updates write these
// and leave the rest of the stored record alone.
func (d Details) NonBlank() []Column {
	var out []Column
	for _, c := range d.Columns() {
		if c.Value != "" {
			out = append(out, c)
		}
	}
	return out
}

// Patch is a partial update: SecondaryKey is always written, Details only
// where non-blank.
type Patch struct {
	SecondaryKey string
	Details      Details
}

// DuplicateKey is a secondary key held by more than one active employer.
type DuplicateKey struct {
	Key         string   `json:"key"`
	EmployerIDs []string `json:"employer_ids"`
}
