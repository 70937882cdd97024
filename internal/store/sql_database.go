package store

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/migrations"
)

// DB wraps the shared *sql.DB connection pool together with the driver
// name and the squirrel statement builder configured for the driver's
// placeholder style ($N for postgres, ? for sqlite).
type DB struct {
	*sql.DB
	driver  string
	builder squirrel.StatementBuilderType
	logger  *logger.Logger
}

// NewFromConn wraps an already opened connection pool. Used by tests that
// substitute sqlmock for a real driver.
func NewFromConn(conn *sql.DB, driver string, log *logger.Logger) *DB {
	var placeholder squirrel.PlaceholderFormat = squirrel.Dollar
	if driver == "sqlite3" {
		placeholder = squirrel.Question
	}
	return &DB{
		DB:      conn,
		driver:  driver,
		builder: squirrel.StatementBuilder.PlaceholderFormat(placeholder),
		logger:  log,
	}
}

// Builder returns the statement builder configured for this connection.
func (db *DB) Builder() squirrel.StatementBuilderType {
	return db.builder
}

// Driver returns the driver name the pool was opened with.
func (db *DB) Driver() string {
	return db.driver
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	return migrations.Migrate(db.DB, db.driver)
}
