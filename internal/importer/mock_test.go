package importer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/employer-import/internal/employer"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListEmployers(ctx context.Context, tenantID string) ([]employer.Employer, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]employer.Employer), args.Error(1)
}

func (m *mockStore) FindByTaxID(ctx context.Context, tenantID, taxID string) (*employer.Employer, error) {
	args := m.Called(ctx, tenantID, taxID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*employer.Employer), args.Error(1)
}

func (m *mockStore) Insert(ctx context.Context, e *employer.Employer) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockStore) Update(ctx context.Context, tenantID, id string, p employer.Patch) error {
	args := m.Called(ctx, tenantID, id, p)
	return args.Error(0)
}

func (m *mockStore) ReleaseSecondaryKey(ctx context.Context, tenantID, key, exceptID string) (int64, error) {
	args := m.Called(ctx, tenantID, key, exceptID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) DuplicateSecondaryKeys(ctx context.Context, tenantID string) ([]employer.DuplicateKey, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]employer.DuplicateKey), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

type mockSessionStore struct {
	mock.Mock
}

func (m *mockSessionStore) Load(ctx context.Context, tenantID string) (*Session, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *mockSessionStore) Save(ctx context.Context, s *Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockSessionStore) Delete(ctx context.Context, tenantID string) error {
	return m.Called(ctx, tenantID).Error(0)
}

// newSQLiteStore returns a migrated store backed by a temp file.
func newSQLiteStore(t *testing.T) *employer.SQLiteStore {
	t.Helper()
	st, err := employer.NewSQLite(filepath.Join(t.TempDir(), "import.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// candidate builds a valid, unmatched candidate.
func candidate(row int, externalID, name, taxID string) Candidate {
	return Candidate{RowNumber: row, ExternalID: externalID, Name: name, TaxID: taxID}
}
