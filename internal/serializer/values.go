package serializer

import (
	"fmt"
	"strconv"
	"time"

	"github.com/reliefhub/reliefhub/internal/schema"
	"github.com/reliefhub/reliefhub/models"
)

// dateFormat is the wire format of date-typed fields.
const dateFormat = "2006-01-02"

// FormatValue renders a typed field value into its wire representation.
func FormatValue(ft schema.FieldType, v any) string {
	switch ft {
	case schema.TypeInteger, schema.TypeReference:
		switch n := v.(type) {
		case int64:
			return strconv.FormatInt(n, 10)
		case int:
			return strconv.Itoa(n)
		}
	case schema.TypeFloat:
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case schema.TypeBoolean:
		if b, ok := v.(bool); ok {
			return strconv.FormatBool(b)
		}
	case schema.TypeDate:
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(dateFormat)
		}
	case schema.TypeDateTime:
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(models.MetaTimeFormat)
		}
	}
	return fmt.Sprintf("%v", v)
}

// DecodeValue parses a wire value under the field's declared type.
func DecodeValue(ft schema.FieldType, s string) (any, error) {
	switch ft {
	case schema.TypeString, schema.TypeText:
		return s, nil
	case schema.TypeInteger, schema.TypeReference:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrBadValue, s)
		}
		return n, nil
	case schema.TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrBadValue, s)
		}
		return f, nil
	case schema.TypeBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean", ErrBadValue, s)
		}
		return b, nil
	case schema.TypeDate:
		t, err := time.Parse(dateFormat, s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a date", ErrBadValue, s)
		}
		return t.UTC(), nil
	case schema.TypeDateTime:
		t, err := time.Parse(models.MetaTimeFormat, s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a datetime", ErrBadValue, s)
		}
		return t.UTC(), nil
	}
	return s, nil
}
