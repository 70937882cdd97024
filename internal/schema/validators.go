package schema

import (
	"fmt"
	"strings"
)

// NotEmpty rejects nil values and blank strings.
func NotEmpty() Validator {
	return func(value any) error {
		if value == nil {
			return fmt.Errorf("value required")
		}
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			return fmt.Errorf("value required")
		}
		return nil
	}
}

// InSet accepts only the listed string codes. Nil values pass; pair with
// NotEmpty when the field is required.
func InSet(allowed ...string) Validator {
	return func(value any) error {
		if value == nil {
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string code")
		}
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return fmt.Errorf("value %q not in [%s]", s, strings.Join(allowed, ", "))
	}
}

// MaxLength caps the rune length of string values.
func MaxLength(n int) Validator {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return nil
		}
		if len([]rune(s)) > n {
			return fmt.Errorf("longer than %d characters", n)
		}
		return nil
	}
}
