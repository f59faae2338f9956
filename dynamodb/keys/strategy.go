// Package keys describes how logical attribute values map onto physical
// partition and sort key strings.
//
// A Strategy is one of Static, Prefix or Composite:
//
//	keys.Static{Value: "PROFILE"}                          // PROFILE
//	keys.Prefix{Prefix: "USER#", Attribute: "id"}          // USER#123
//	keys.NewComposite(keys.Lit("ORG"), keys.Attr("org"))   // ORG#acme
//
// Resolving a strategy never fails: a missing attribute means the key is
// unresolved, which callers treat as "not enough information".
package keys

import (
	"strings"
)

// Strategy derives a physical key value from logical attribute values.
// The set of implementations is closed to this package.
type Strategy interface {
	// Resolve returns the physical key, or false when an attribute it
	// references is absent or nil.
	Resolve(values map[string]any) (string, bool)
	// Attributes returns the logical attributes referenced, in order.
	Attributes() []string
	// LiteralPrefix is the constant leading part of every key this strategy produces.
	LiteralPrefix() string
	// Matches reports whether a stored key could have been produced by this strategy.
	Matches(physical string) bool
	// String renders the strategy in pattern syntax, e.g. "USER#{id}".
	String() string

	isStrategy()
}

// DefaultSeparator joins Composite segments when none is given.
const DefaultSeparator = "#"

// Static always resolves to Value.
type Static struct {
	Value string
}

func (s Static) Resolve(map[string]any) (string, bool) { return s.Value, true }
func (s Static) Attributes() []string                  { return nil }
func (s Static) LiteralPrefix() string                 { return s.Value }
func (s Static) Matches(physical string) bool          { return physical == s.Value }
func (s Static) String() string                        { return s.Value }
func (Static) isStrategy()                             {}

// Prefix resolves to Prefix followed by the attribute value.
type Prefix struct {
	Prefix    string
	Attribute string
}

func (p Prefix) Resolve(values map[string]any) (string, bool) {
	v, ok := lookup(values, p.Attribute)
	if !ok {
		return "", false
	}
	return p.Prefix + v, true
}

func (p Prefix) Attributes() []string  { return []string{p.Attribute} }
func (p Prefix) LiteralPrefix() string { return p.Prefix }
func (p Prefix) Matches(physical string) bool {
	return strings.HasPrefix(physical, p.Prefix)
}
func (p Prefix) String() string { return p.Prefix + "{" + p.Attribute + "}" }
func (Prefix) isStrategy()      {}

// Segment is one part of a Composite key, either a literal or an attribute reference.
type Segment struct {
	Literal   string
	Attribute string
}

// IsAttribute reports whether the segment references an attribute.
func (s Segment) IsAttribute() bool {
	return s.Attribute != ""
}

// Lit creates a literal segment.
func Lit(v string) Segment { return Segment{Literal: v} }

// Attr creates an attribute reference segment.
func Attr(name string) Segment { return Segment{Attribute: name} }

// Composite joins its segments with Separator. All attribute segments
// must be present for the key to resolve.
type Composite struct {
	Separator string
	Segments  []Segment
}

// NewComposite creates a Composite using DefaultSeparator.
func NewComposite(segments ...Segment) Composite {
	return Composite{Separator: DefaultSeparator, Segments: segments}
}

func (c Composite) separator() string {
	if c.Separator == "" {
		return DefaultSeparator
	}
	return c.Separator
}

func (c Composite) Resolve(values map[string]any) (string, bool) {
	parts := make([]string, 0, len(c.Segments))
	for _, seg := range c.Segments {
		if !seg.IsAttribute() {
			parts = append(parts, seg.Literal)
			continue
		}
		v, ok := lookup(values, seg.Attribute)
		if !ok {
			return "", false
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, c.separator()), true
}

func (c Composite) Attributes() []string {
	var attrs []string
	for _, seg := range c.Segments {
		if seg.IsAttribute() {
			attrs = append(attrs, seg.Attribute)
		}
	}
	return attrs
}

// LiteralPrefix joins the leading literal segments. When an attribute
// segment follows them the separator is included, so "ORG#{org}" yields "ORG#".
func (c Composite) LiteralPrefix() string {
	var lits []string
	for _, seg := range c.Segments {
		if seg.IsAttribute() {
			if len(lits) == 0 {
				return ""
			}
			return strings.Join(lits, c.separator()) + c.separator()
		}
		lits = append(lits, seg.Literal)
	}
	return strings.Join(lits, c.separator())
}

func (c Composite) Matches(physical string) bool {
	if len(c.Attributes()) == 0 {
		return physical == c.LiteralPrefix()
	}
	return strings.HasPrefix(physical, c.LiteralPrefix())
}

func (c Composite) String() string {
	parts := make([]string, len(c.Segments))
	for i, seg := range c.Segments {
		if seg.IsAttribute() {
			parts[i] = "{" + seg.Attribute + "}"
		} else {
			parts[i] = seg.Literal
		}
	}
	return strings.Join(parts, c.separator())
}

func (Composite) isStrategy() {}

// Specificity ranks how precisely a strategy identifies a key. Static keys
// rank above any prefix; longer literal prefixes rank above shorter ones.
func Specificity(s Strategy) int {
	if _, ok := s.(Static); ok {
		return 1 << 20
	}
	if c, ok := s.(Composite); ok && len(c.Attributes()) == 0 {
		return 1 << 20
	}
	return len(s.LiteralPrefix())
}

// PartialPrefix returns the longest leading part of the key that values
// determine, for begins_with queries over a collection. For a resolvable
// strategy it is the whole key.
func PartialPrefix(s Strategy, values map[string]any) string {
	if v, ok := s.Resolve(values); ok {
		return v
	}
	c, ok := s.(Composite)
	if !ok {
		return s.LiteralPrefix()
	}
	var b strings.Builder
	for _, seg := range c.Segments {
		part := seg.Literal
		if seg.IsAttribute() {
			v, ok := lookup(values, seg.Attribute)
			if !ok {
				return b.String()
			}
			part = v
		}
		b.WriteString(part)
		b.WriteString(c.separator())
	}
	return b.String()
}
