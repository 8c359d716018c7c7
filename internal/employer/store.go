package employer

import "context"

// Store defines the persistence operations the import engine needs. Every
// call is scoped to one tenant and only sees active employers.
type Store interface {
	// ListEmployers returns the tenant's active employers.
	ListEmployers(ctx context.Context, tenantID string) ([]Employer, error)

	// FindByTaxID returns nil, nil when no active employer has taxID.
	FindByTaxID(ctx context.Context, tenantID, taxID string) (*Employer, error)

	// Insert creates e and sets its ID.
	Insert(ctx context.Context, e *Employer) error

	// Update applies p to employer id.
	Update(ctx context.Context, tenantID, id string, p Patch) error

	// ReleaseSecondaryKey clears key from every active employer except
	// exceptID (empty means no exception) and returns how many were cleared.
	ReleaseSecondaryKey(ctx context.Context, tenantID, key, exceptID string) (int64, error)

	// DuplicateSecondaryKeys lists keys held by more than one active employer.
	DuplicateSecondaryKeys(ctx context.Context, tenantID string) ([]DuplicateKey, error)

	Migrate(ctx context.Context) error
	Close() error
}
