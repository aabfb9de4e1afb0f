package channel

import (
	"fmt"
	"regexp"
	"strings"
)

// Flag is a matching mode applied to an ExtractionPattern.
type Flag uint8

const (
	// FlagDotMatchesNewline lets "." match line breaks (inline "s").
	FlagDotMatchesNewline Flag = 1 << iota
	// FlagCaseInsensitive makes matching case-insensitive (inline "i").
	FlagCaseInsensitive
)

// FlagSet is a set of Flag values.
type FlagSet uint8

func NewFlagSet(flags ...Flag) FlagSet {
	var fs FlagSet
	for _, f := range flags {
		fs = fs.With(f)
	}
	return fs
}

func (fs FlagSet) Has(f Flag) bool {
	return uint8(fs)&uint8(f) != 0
}

func (fs FlagSet) With(f Flag) FlagSet {
	return FlagSet(uint8(fs) | uint8(f))
}

// inline renders the flag set as RE2 inline flag letters, "is" order.
func (fs FlagSet) inline() string {
	var sb strings.Builder
	if fs.Has(FlagCaseInsensitive) {
		sb.WriteByte('i')
	}
	if fs.Has(FlagDotMatchesNewline) {
		sb.WriteByte('s')
	}
	return sb.String()
}

// Names returns the configuration names of the flags in the set.
func (fs FlagSet) Names() []string {
	var names []string
	if fs.Has(FlagDotMatchesNewline) {
		names = append(names, "dotall")
	}
	if fs.Has(FlagCaseInsensitive) {
		names = append(names, "ignore_case")
	}
	return names
}

// ParseFlagName maps a configuration flag name to a Flag.
func ParseFlagName(name string) (Flag, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dotall", "s", "dot_matches_newline":
		return FlagDotMatchesNewline, nil
	case "ignore_case", "i", "case_insensitive":
		return FlagCaseInsensitive, nil
	default:
		return 0, fmt.Errorf("unknown pattern flag %q", name)
	}
}

// ExtractionPattern is a regular expression body plus its flag set.
type ExtractionPattern struct {
	Body  string
	Flags FlagSet
}

// leadingFlags matches a leading inline flag group made only of flags that
// FlagSet can represent. Anything else stays in the body.
var leadingFlags = regexp.MustCompile(`^\(\?([is]+)\)`)

// ParsePattern converts the wire form of a pattern, where flags are encoded
// inline as leading "(?s)" style groups, into an ExtractionPattern.
// Consecutive leading groups such as "(?i)(?s)" are all lifted.
func ParsePattern(raw string) ExtractionPattern {
	var flags FlagSet
	body := raw

	for {
		m := leadingFlags.FindStringSubmatch(body)
		if m == nil {
			break
		}
		for _, r := range m[1] {
			switch r {
			case 's':
				flags = flags.With(FlagDotMatchesNewline)
			case 'i':
				flags = flags.With(FlagCaseInsensitive)
			}
		}
		body = body[len(m[0]):]
	}

	return ExtractionPattern{Body: body, Flags: flags}
}

// String returns the wire form of the pattern.
func (p ExtractionPattern) String() string {
	if inline := p.Flags.inline(); inline != "" {
		return "(?" + inline + ")" + p.Body
	}
	return p.Body
}

func (p ExtractionPattern) compile() (*regexp.Regexp, error) {
	return regexp.Compile(p.String())
}

// MarshalYAML writes the pattern in its wire form.
func (p ExtractionPattern) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

// UnmarshalYAML accepts either a wire-form string or a mapping with an
// explicit body and flag list.
func (p *ExtractionPattern) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err == nil {
		*p = ParsePattern(raw)
		return nil
	}

	var explicit struct {
		Body  string   `yaml:"body"`
		Flags []string `yaml:"flags"`
	}
	if err := unmarshal(&explicit); err != nil {
		return fmt.Errorf("pattern must be a string or a {body, flags} mapping: %w", err)
	}

	var flags FlagSet
	for _, name := range explicit.Flags {
		f, err := ParseFlagName(name)
		if err != nil {
			return err
		}
		flags = flags.With(f)
	}

	*p = ExtractionPattern{Body: explicit.Body, Flags: flags}
	return nil
}
