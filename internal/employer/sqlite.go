package employer

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local runs
// and tests; production tenants live in Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS employers (
	id            TEXT PRIMARY KEY,
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
	active        INTEGER NOT NULL DEFAULT 1,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS employers_tenant_tax_id_active
	ON employers (tenant_id, tax_id)
	WHERE active = 1;

CREATE UNIQUE INDEX IF NOT EXISTS employers_tenant_secondary_key_active
	ON employers (tenant_id, secondary_key)
	WHERE active = 1 AND secondary_key IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_employers_tenant ON employers (tenant_id);
`

const sqliteColumns = `id, tenant_id, tax_id, COALESCE(secondary_key, ''), name, COALESCE(trade_name, ''),
	COALESCE(email, ''), COALESCE(phone, ''), COALESCE(contact_name, ''),
	COALESCE(street, ''), COALESCE(number, ''), COALESCE(complement, ''),
	COALESCE(neighborhood, ''), COALESCE(city, ''), COALESCE(state, ''), COALESCE(zip_code, ''),
	active, created_at, updated_at`

// Migrate creates the employers table and its indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListEmployers returns the tenant's active employers ordered by name.
func (s *SQLiteStore) ListEmployers(ctx context.Context, tenantID string) ([]Employer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM employers WHERE tenant_id = ? AND active = 1 ORDER BY name`,
		tenantID,
	)
	if err != nil {
		return nil, wrapErr("sqlite: list employers", err)
	}
	defer rows.Close()

	var out []Employer
	for rows.Next() {
		var e Employer
		if err := rows.Scan(employerDests(&e)...); err != nil {
			return nil, wrapErr("sqlite: scan employer", err)
		}
		out = append(out, e)
	}
	return out, wrapErr("sqlite: list rows", rows.Err())
}

// FindByTaxID fetches the active employer with taxID.
func (s *SQLiteStore) FindByTaxID(ctx context.Context, tenantID, taxID string) (*Employer, error) {
	e := &Employer{}
	err := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM employers WHERE tenant_id = ? AND tax_id = ? AND active = 1`,
		tenantID, taxID,
	).Scan(employerDests(e)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("sqlite: find by tax id "+taxID, err)
	}
	return e, nil
}

// Insert creates a new employer with a fresh UUID.
func (s *SQLiteStore) Insert(ctx context.Context, e *Employer) error {
	id := uuid.New().String()
	now := time.Now().UTC()
	d := e.Details

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employers (
			id, tenant_id, tax_id, secondary_key, name, trade_name,
			email, phone, contact_name,
			street, number, complement, neighborhood, city, state, zip_code,
			active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		id, e.TenantID, e.TaxID, nilIfEmpty(e.SecondaryKey), e.Name, nilIfEmpty(e.TradeName),
		nilIfEmpty(d.Email), nilIfEmpty(d.Phone), nilIfEmpty(d.ContactName),
		nilIfEmpty(d.Street), nilIfEmpty(d.Number), nilIfEmpty(d.Complement),
		nilIfEmpty(d.Neighborhood), nilIfEmpty(d.City), nilIfEmpty(d.State), nilIfEmpty(d.ZipCode),
		now, now,
	)
	if err != nil {
		return wrapErr("sqlite: insert employer "+e.TaxID, err)
	}

	e.ID = id
	e.Active = true
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

// Update writes the patch's secondary key and its non-blank details.
func (s *SQLiteStore) Update(ctx context.Context, tenantID, id string, p Patch) error {
	sets := []string{"secondary_key = ?"}
	args := []any{nilIfEmpty(p.SecondaryKey)}
	for _, c := range p.Details.NonBlank() {
		sets = append(sets, c.Name+" = ?")
		args = append(args, c.Value)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), tenantID, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE employers SET `+strings.Join(sets, ", ")+` WHERE tenant_id = ? AND id = ? AND active = 1`,
		args...,
	)
	if err != nil {
		return wrapErr("sqlite: update employer "+id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr("sqlite: rows affected", err)
	}
	if n == 0 {
		return &StoreError{Kind: KindOther, Op: "sqlite: update employer " + id, Err: eris.New("employer not found")}
	}
	return nil
}

// ReleaseSecondaryKey clears key from every other active holder.
func (s *SQLiteStore) ReleaseSecondaryKey(ctx context.Context, tenantID, key, exceptID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE employers SET secondary_key = NULL, updated_at = ?
		WHERE tenant_id = ? AND secondary_key = ? AND active = 1 AND id <> ?`,
		time.Now().UTC(), tenantID, key, exceptID,
	)
	if err != nil {
		return 0, wrapErr("sqlite: release secondary key "+key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr("sqlite: rows affected", err)
	}
	return n, nil
}

// DuplicateSecondaryKeys lists keys held by more than one active employer.
func (s *SQLiteStore) DuplicateSecondaryKeys(ctx context.Context, tenantID string) ([]DuplicateKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT secondary_key, group_concat(id, ',')
		FROM employers
		WHERE tenant_id = ? AND active = 1 AND secondary_key IS NOT NULL
		GROUP BY secondary_key
		HAVING count(*) > 1
		ORDER BY secondary_key`, tenantID)
	if err != nil {
		return nil, wrapErr("sqlite: duplicate secondary keys", err)
	}
	defer rows.Close()

	var out []DuplicateKey
	for rows.Next() {
		var key, ids string
		if err := rows.Scan(&key, &ids); err != nil {
			return nil, wrapErr("sqlite: scan duplicate key", err)
		}
		out = append(out, DuplicateKey{Key: key, EmployerIDs: strings.Split(ids, ",")})
	}
	return out, wrapErr("sqlite: duplicate key rows", rows.Err())
}
