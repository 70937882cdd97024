package store

import (
	"database/sql"

	"github.com/reliefhub/reliefhub/internal/schema"
)

// scanTarget allocates a nullable scan destination for a field type.
func scanTarget(ft schema.FieldType) any {
	switch ft {
	case schema.TypeInteger, schema.TypeReference:
		return new(sql.NullInt64)
	case schema.TypeFloat:
		return new(sql.NullFloat64)
	case schema.TypeBoolean:
		return new(sql.NullBool)
	case schema.TypeDate, schema.TypeDateTime:
		return new(sql.NullTime)
	default:
		return new(sql.NullString)
	}
}

// targetValue unwraps a scan destination into a plain Go value, or nil when
// the column was NULL.
func targetValue(target any) any {
	switch v := target.(type) {
	case *sql.NullInt64:
		if v.Valid {
			return v.Int64
		}
	case *sql.NullFloat64:
		if v.Valid {
			return v.Float64
		}
	case *sql.NullBool:
		if v.Valid {
			return v.Bool
		}
	case *sql.NullTime:
		if v.Valid {
			return v.Time.UTC()
		}
	case *sql.NullString:
		if v.Valid {
			return v.String
		}
	}
	return nil
}
