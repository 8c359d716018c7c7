package employer

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorKind tells the import engine how to react to a failed store call.
type ErrorKind string

// Error kinds.
const (
	KindUnique  ErrorKind = "unique"  // uniqueness constraint violated
	KindRLS     ErrorKind = "rls"     // row-level security / permission denied
	KindSession ErrorKind = "session" // credentials expired or rejected
	KindOther   ErrorKind = "other"
)

// StoreError is a failed store call tagged with its kind.
type StoreError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// wrapErr tags err for op. nil stays nil.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Kind: kindOfCause(err), Op: op, Err: err}
}

// KindOf classifies err. Tagged StoreErrors answer directly; anything else
// falls back to SQLSTATE codes and then to message inspection.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return kindOfCause(err)
}

func kindOfCause(err error) ErrorKind {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return KindUnique
		case "42501":
			return KindRLS
		case "28000", "28P01":
			return KindSession
		}
	}
	return ClassifyMessage(err.Error())
}

// ClassifyMessage buckets an error by its text, for collaborators that do not
// expose a machine-readable code.
func ClassifyMessage(msg string) ErrorKind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "jwt expired"),
		strings.Contains(m, "session expired"),
		strings.Contains(m, "invalid refresh token"),
		strings.Contains(m, "password authentication failed"):
		return KindSession
	case strings.Contains(m, "duplicate key"),
		strings.Contains(m, "unique constraint"),
		strings.Contains(m, "23505"):
		return KindUnique
	case strings.Contains(m, "row-level security"),
		strings.Contains(m, "permission denied"),
		strings.Contains(m, "42501"):
		return KindRLS
	default:
		return KindOther
	}
}
