package employer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/employer-import/internal/db"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS employers (
	id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	tenant_id     TEXT NOT NULL,
	tax_id        TEXT NOT NULL,
	secondary_key TEXT,
	name          TEXT NOT NULL,
	trade_name    TEXT,
	email         TEXT,
	phone         TEXT,
	contact_name  TEXT,
	street        TEXT,
	number        TEXT,
	complement    TEXT,
	neighborhood  TEXT,
	city          TEXT,
	state         TEXT,
	zip_code      TEXT,
	active        BOOLEAN NOT NULL DEFAULT true,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- Deactivated rows must not block re-importing their tax id.
ALTER TABLE employers DROP CONSTRAINT IF EXISTS employers_tenant_tax_id_key;

CREATE UNIQUE INDEX IF NOT EXISTS employers_tenant_tax_id_active
	ON employers (tenant_id, tax_id)
	WHERE active;

CREATE UNIQUE INDEX IF NOT EXISTS employers_tenant_secondary_key_active
	ON employers (tenant_id, secondary_key)
	WHERE active AND secondary_key IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_employers_tenant ON employers (tenant_id) WHERE active;
`

const employerColumns = `id::text, tenant_id, tax_id, COALESCE(secondary_key, ''), name, COALESCE(trade_name, ''),
	COALESCE(email, ''), COALESCE(phone, ''), COALESCE(contact_name, ''),
	COALESCE(street, ''), COALESCE(number, ''), COALESCE(complement, ''),
	COALESCE(neighborhood, ''), COALESCE(city, ''), COALESCE(state, ''), COALESCE(zip_code, ''),
	active, created_at, updated_at`

func employerDests(e *Employer) []any {
	return []any{
		&e.ID, &e.TenantID, &e.TaxID, &e.SecondaryKey, &e.Name, &e.TradeName,
		&e.Details.Email, &e.Details.Phone, &e.Details.ContactName,
		&e.Details.Street, &e.Details.Number, &e.Details.Complement,
		&e.Details.Neighborhood, &e.Details.City, &e.Details.State, &e.Details.ZipCode,
		&e.Active, &e.CreatedAt, &e.UpdatedAt,
	}
}

// Migrate creates the employers table and its indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "employer: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ListEmployers returns the tenant's active employers ordered by name.
func (s *PostgresStore) ListEmployers(ctx context.Context, tenantID string) ([]Employer, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+employerColumns+`
		FROM employers
		WHERE tenant_id = $1 AND active
		ORDER BY name`, tenantID)
	if err != nil {
		return nil, wrapErr("employer: list", err)
	}
	defer rows.Close()

	var out []Employer
	for rows.Next() {
		var e Employer
		if err := rows.Scan(employerDests(&e)...); err != nil {
			return nil, wrapErr("employer: scan", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("employer: list rows", err)
	}
	return out, nil
}

// FindByTaxID fetches the active employer with taxID.
func (s *PostgresStore) FindByTaxID(ctx context.Context, tenantID, taxID string) (*Employer, error) {
	e := &Employer{}
	err := s.pool.QueryRow(ctx, `SELECT `+employerColumns+`
		FROM employers
		WHERE tenant_id = $1 AND tax_id = $2 AND active`, tenantID, taxID).
		Scan(employerDests(e)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("employer: find by tax id "+taxID, err)
	}
	return e, nil
}

// Insert creates a new employer and sets its ID and timestamps.
func (s *PostgresStore) Insert(ctx context.Context, e *Employer) error {
	d := e.Details
	err := s.pool.QueryRow(ctx, `
		INSERT INTO employers (
			tenant_id, tax_id, secondary_key, name, trade_name,
			email, phone, contact_name,
			street, number, complement, neighborhood, city, state, zip_code
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12, $13, $14, $15
		) RETURNING id::text, active, created_at, updated_at`,
		e.TenantID, e.TaxID, nilIfEmpty(e.SecondaryKey), e.Name, nilIfEmpty(e.TradeName),
		nilIfEmpty(d.Email), nilIfEmpty(d.Phone), nilIfEmpty(d.ContactName),
		nilIfEmpty(d.Street), nilIfEmpty(d.Number), nilIfEmpty(d.Complement),
		nilIfEmpty(d.Neighborhood), nilIfEmpty(d.City), nilIfEmpty(d.State), nilIfEmpty(d.ZipCode),
	).Scan(&e.ID, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return wrapErr("employer: insert "+e.TaxID, err)
	}
	return nil
}

// Update writes the patch's secondary key and its non-blank details.
func (s *PostgresStore) Update(ctx context.Context, tenantID, id string, p Patch) error {
	sets := []string{"secondary_key = $3"}
	args := []any{tenantID, id, nilIfEmpty(p.SecondaryKey)}
	for _, c := range p.Details.NonBlank() {
		args = append(args, c.Value)
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{c.Name}.Sanitize(), len(args)))
	}
	sets = append(sets, "updated_at = now()")

	tag, err := s.pool.Exec(ctx,
		`UPDATE employers SET `+strings.Join(sets, ", ")+` WHERE tenant_id = $1 AND id = $2::uuid AND active`,
		args...,
	)
	if err != nil {
		return wrapErr("employer: update "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return &StoreError{Kind: KindOther, Op: "employer: update " + id, Err: eris.New("employer not found")}
	}
	return nil
}

// ReleaseSecondaryKey clears key from every other active holder.
func (s *PostgresStore) ReleaseSecondaryKey(ctx context.Context, tenantID, key, exceptID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE employers SET secondary_key = NULL, updated_at = now()
		WHERE tenant_id = $1 AND secondary_key = $2 AND active AND id::text <> $3`,
		tenantID, key, exceptID,
	)
	if err != nil {
		return 0, wrapErr("employer: release secondary key "+key, err)
	}
	return tag.RowsAffected(), nil
}

// DuplicateSecondaryKeys lists keys held by more than one active employer.
func (s *PostgresStore) DuplicateSecondaryKeys(ctx context.Context, tenantID string) ([]DuplicateKey, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT secondary_key, array_agg(id::text ORDER BY id)
		FROM employers
		WHERE tenant_id = $1 AND active AND secondary_key IS NOT NULL
		GROUP BY secondary_key
		HAVING count(*) > 1
		ORDER BY secondary_key`, tenantID)
	if err != nil {
		return nil, wrapErr("employer: duplicate secondary keys", err)
	}
	defer rows.Close()

	var out []DuplicateKey
	for rows.Next() {
		var d DuplicateKey
		if err := rows.Scan(&d.Key, &d.EmployerIDs); err != nil {
			return nil, wrapErr("employer: scan duplicate key", err)
		}
		out = append(out, d)
	}
	return out, wrapErr("employer: duplicate key rows", rows.Err())
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
