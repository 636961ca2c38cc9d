package config

import "fmt"

// FieldError is a fatal configuration violation naming the offending field
// in section.key form (e.g. "auth.signing_secret").
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}
