package keys

import (
	"fmt"
	"regexp"
	"strings"
)

// fieldRefRegex matches {fieldName} patterns (including empty braces for validation)
var fieldRefRegex = regexp.MustCompile(`\{([^}]*)\}`)

// Parse builds a Strategy from a pattern using {field} references:
//
//	"PROFILE"             -> Static
//	"USER#{id}"           -> Prefix
//	"{id}"                -> Prefix with an empty prefix
//	"ORG#{org}#USER#{id}" -> Composite, segments split on "#"
func Parse(pattern string) (Strategy, error) {
	return ParseWithSeparator(pattern, DefaultSeparator)
}

// MustParse is like Parse but panics on invalid patterns.
func MustParse(pattern string) Strategy {
	s, err := Parse(pattern)
	if err != nil {
		panic(fmt.Sprintf("keys.MustParse: %v", err))
	}
	return s
}

// ParseWithSeparator is Parse with a custom Composite separator.
func ParseWithSeparator(pattern, sep string) (Strategy, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}
	if sep == "" {
		sep = DefaultSeparator
	}

	matches := fieldRefRegex.FindAllStringSubmatchIndex(pattern, -1)
	if len(matches) == 0 {
		if strings.ContainsAny(pattern, "{}") {
			return nil, fmt.Errorf("unbalanced braces in pattern %q", pattern)
		}
		return Static{Value: pattern}, nil
	}
	for _, m := range matches {
		ref := pattern[m[2]:m[3]]
		if err := validateFieldRef(ref, m[0]); err != nil {
			return nil, err
		}
	}

	// A single reference closing the pattern is a plain prefix key.
	last := matches[len(matches)-1]
	if len(matches) == 1 && last[1] == len(pattern) {
		prefix := pattern[:last[0]]
		if strings.ContainsAny(prefix, "{}") {
			return nil, fmt.Errorf("unbalanced braces in pattern %q", pattern)
		}
		return Prefix{Prefix: prefix, Attribute: pattern[last[2]:last[3]]}, nil
	}

	pieces := strings.Split(pattern, sep)
	segments := make([]Segment, 0, len(pieces))
	for _, piece := range pieces {
		m := fieldRefRegex.FindStringSubmatchIndex(piece)
		switch {
		case m == nil:
			if strings.ContainsAny(piece, "{}") {
				return nil, fmt.Errorf("unbalanced braces in pattern %q", pattern)
			}
			segments = append(segments, Lit(piece))
		case m[0] == 0 && m[1] == len(piece):
			segments = append(segments, Attr(piece[m[2]:m[3]]))
		default:
			return nil, fmt.Errorf("pattern %q: segment %q mixes literal text and a field reference", pattern, piece)
		}
	}
	return Composite{Separator: sep, Segments: segments}, nil
}

func validateFieldRef(ref string, pos int) error {
	if ref == "" {
		return fmt.Errorf("empty field reference at position %d", pos)
	}
	for i, part := range strings.Split(ref, ".") {
		if part == "" {
			return fmt.Errorf("invalid field path %q: empty component at position %d", ref, i)
		}
	}
	return nil
}
