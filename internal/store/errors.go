package store

import "errors"

// Sentinel errors returned by row store methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrNotFound is returned when a load or update targets a row that
	// does not exist (or is soft-deleted and the caller did not ask for
	// deleted rows).
	ErrNotFound = errors.New("row not found")

	// ErrUniqueViolation is returned when an insert or update collides
	// with a unique index (uuid or a declared natural key).
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrUnknownOperator is returned when a filter node carries an
	// operator the store cannot translate.
	ErrUnknownOperator = errors.New("unknown filter operator")

	// ErrHierarchyUnsupported is returned when a belongs-to-hierarchy
	// filter targets a table that declares no hierarchy field.
	ErrHierarchyUnsupported = errors.New("table declares no hierarchy field")
)

// Low-level database operation errors. These are returned (or wrapped) by
// store methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails (e.g. invalid argument count or unsupported type).
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT or similar
	// read-only query against the database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing an open transaction
	// fails. The transaction is considered rolled back at this point.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrExecutingStatement is returned when executing a DML statement
	// (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to execute statement")

	// ErrScanningRow is returned when scanning column values from a single
	// result row into a destination record fails.
	ErrScanningRow = errors.New("failed to scan row")

	// ErrScanningRows is returned when scanning column values during
	// multi-row iteration fails, typically mid-result-set.
	ErrScanningRows = errors.New("failed to scan rows")
)
