package channel

import (
	"regexp"
)

// ValidatedChannel is a channel whose patterns satisfy the extractor's
// preconditions. It is only produced by Validate and is safe for concurrent
// use.
type ValidatedChannel struct {
	def         Definition
	item        *regexp.Regexp
	title       *regexp.Regexp
	link        *regexp.Regexp
	description *regexp.Regexp
}

// Definition returns a copy of the definition the channel was validated from.
func (c *ValidatedChannel) Definition() Definition {
	return c.def
}

func (c *ValidatedChannel) Name() string {
	return c.def.Name
}

func (c *ValidatedChannel) Source() string {
	return c.def.Source
}

// Validate checks a channel definition and compiles its patterns. Checks run
// in a fixed order and stop at the first failure: required fields, pattern
// compilation, capturing group counts, then the item pattern's
// dot-matches-newline flag.
func Validate(def Definition) (*ValidatedChannel, error) {
	if def.Name == "" {
		return nil, &ValidationError{Kind: ErrMissingField, Field: FieldName}
	}
	if def.Source == "" {
		return nil, &ValidationError{Kind: ErrMissingField, Field: FieldSource}
	}

	compiled := make(map[Field]*regexp.Regexp, len(patternFields))
	for _, field := range patternFields {
		re, err := def.Pattern(field).compile()
		if err != nil {
			return nil, &ValidationError{Kind: ErrMalformedPattern, Field: field, Err: err}
		}
		compiled[field] = re
	}

	for _, field := range patternFields {
		if n := compiled[field].NumSubexp(); n != 1 {
			return nil, &ValidationError{Kind: ErrWrongGroupCount, Field: field, Found: n}
		}
	}

	if !def.ItemPattern.Flags.Has(FlagDotMatchesNewline) {
		return nil, &ValidationError{Kind: ErrMissingMultilineFlag, Field: FieldItem}
	}

	return &ValidatedChannel{
		def:         def,
		item:        compiled[FieldItem],
		title:       compiled[FieldTitle],
		link:        compiled[FieldLink],
		description: compiled[FieldDescription],
	}, nil
}
