package config

import "errors"

// Validation errors returned by [StructuredConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidDatabaseConfigs indicates that no usable database
	// connection string could be assembled from the merged sources.
	ErrInvalidDatabaseConfigs = errors.New("invalid database configuration")
	// ErrUnsupportedDatabaseDriver indicates a driver other than pgx or
	// sqlite3 was configured.
	ErrUnsupportedDatabaseDriver = errors.New("unsupported database driver")
	// ErrInvalidAuthConfigs indicates missing credential keys (password
	// hash key or token signing key).
	ErrInvalidAuthConfigs = errors.New("invalid auth configuration")
)
