package channel

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField         = errors.New("missing required field")
	ErrMalformedPattern     = errors.New("malformed pattern")
	ErrWrongGroupCount      = errors.New("pattern must have exactly one capturing group")
	ErrMissingMultilineFlag = errors.New("item pattern must enable dot-matches-newline")
	ErrUnvalidatedChannel   = errors.New("extraction requires a validated channel")
)

// ValidationError reports why a channel definition was rejected.
// errors.Is matches it against its Kind.
type ValidationError struct {
	Kind  error
	Field Field
	Found int // capturing groups found, set for ErrWrongGroupCount
	Err   error
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ErrWrongGroupCount:
		return fmt.Sprintf("%s pattern: %v, found %d", e.Field, e.Kind, e.Found)
	case ErrMalformedPattern:
		return fmt.Sprintf("%s pattern: %v: %v", e.Field, e.Kind, e.Err)
	case ErrMissingField:
		return fmt.Sprintf("%v: %s", e.Kind, e.Field)
	default:
		return fmt.Sprintf("%s pattern: %v", e.Field, e.Kind)
	}
}

func (e *ValidationError) Is(target error) bool {
	return target == e.Kind
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// KindName returns a stable identifier for the error kind, used in API
// responses.
func (e *ValidationError) KindName() string {
	switch e.Kind {
	case ErrMissingField:
		return "missing_field"
	case ErrMalformedPattern:
		return "malformed_pattern"
	case ErrWrongGroupCount:
		return "wrong_group_count"
	case ErrMissingMultilineFlag:
		return "missing_multiline_flag"
	default:
		return "invalid"
	}
}
