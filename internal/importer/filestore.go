package importer

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// FileSessionStore keeps one JSON file per tenant under a directory. It is a
// convenience for resuming a review, not a durable log.
type FileSessionStore struct {
	dir string
}

// NewFileSessionStore creates dir if needed.
func NewFileSessionStore(dir string) (*FileSessionStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, eris.Wrapf(err, "session: create dir %s", dir)
	}
	return &FileSessionStore{dir: dir}, nil
}

func (f *FileSessionStore) path(tenantID string) string {
	return filepath.Join(f.dir, url.PathEscape(tenantID)+".json")
}

// Load reads the tenant's session.
func (f *FileSessionStore) Load(_ context.Context, tenantID string) (*Session, error) {
	data, err := os.ReadFile(f.path(tenantID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "session: read %s", tenantID)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrapf(err, "session: decode %s", tenantID)
	}
	return &s, nil
}

// Save writes the session through a temp file and rename.
func (f *FileSessionStore) Save(_ context.Context, s *Session) error {
	if s.TenantID == "" {
		return eris.New("session: tenant id is required")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "session: encode")
	}
	tmp, err := os.CreateTemp(f.dir, ".session-*")
	if err != nil {
		return eris.Wrap(err, "session: create temp file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrap(err, "session: write")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrap(err, "session: close")
	}
	return eris.Wrap(os.Rename(tmp.Name(), f.path(s.TenantID)), "session: rename")
}

// Delete removes the tenant's session. Missing sessions are not an error.
func (f *FileSessionStore) Delete(_ context.Context, tenantID string) error {
	err := os.Remove(f.path(tenantID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return eris.Wrapf(err, "session: delete %s", tenantID)
	}
	return nil
}
