package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrStudentNotFound     = errors.New("student not found")
	ErrClassNotFound       = errors.New("class not found")
	ErrEnrollmentNotFound  = errors.New("enrollment not found")
	ErrEnrollmentReference = errors.New("class or student does not exist")
	ErrInvalidStudent      = errors.New("invalid student")

	// ErrInconsistentState reports an outcome the schema makes impossible,
	// such as an aggregate with no row or an id filter hitting several rows.
	ErrInconsistentState = errors.New("inconsistent state")

	// ErrStoreFault matches every *StoreError via errors.Is.
	ErrStoreFault = errors.New("store fault")
)

// StoreError wraps a connectivity or query-execution failure. Code holds the
// Postgres SQLSTATE when the cause is a server error.
type StoreError struct {
	Op   string
	Code string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: store fault (sqlstate %s): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: store fault: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreFault }

func storeFault(op string, err error) error {
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}

	se = &StoreError{Op: op, Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		se.Code = pgErr.Code
	}
	return se
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
