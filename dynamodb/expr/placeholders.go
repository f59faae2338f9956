package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Placeholders allocates #name and :value placeholders for one request and
// collects the ExpressionAttributeNames / ExpressionAttributeValues side
// tables. Create one per request with NewPlaceholders; share it across the
// key condition, filter, projection and update of that request so their
// placeholders do not collide.
type Placeholders struct {
	names     map[string]string // attribute name -> placeholder
	nameTable map[string]string // placeholder -> attribute name
	values    map[string]types.AttributeValue
}

func NewPlaceholders() *Placeholders {
	return &Placeholders{
		names:     make(map[string]string),
		nameTable: make(map[string]string),
		values:    make(map[string]types.AttributeValue),
	}
}

// Name returns the placeholder path for an attribute. Dotted paths get one
// placeholder per segment, e.g. "profile.name" -> "#n0.#n1". Repeated names
// reuse their placeholder.
func (p *Placeholders) Name(path string) string {
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		segments[i] = p.name(seg)
	}
	return strings.Join(segments, ".")
}

func (p *Placeholders) name(attr string) string {
	if ph, ok := p.names[attr]; ok {
		return ph
	}
	ph := "#n" + strconv.Itoa(len(p.names))
	p.names[attr] = ph
	p.nameTable[ph] = attr
	return ph
}

// Value marshals v and returns a fresh placeholder for it.
func (p *Placeholders) Value(v any) (string, error) {
	av, ok := v.(types.AttributeValue)
	if !ok {
		var err error
		av, err = attributevalue.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("marshal value of type %T: %w", v, err)
		}
	}
	ph := ":v" + strconv.Itoa(len(p.values))
	p.values[ph] = av
	return ph, nil
}

// Names is the ExpressionAttributeNames table, nil when empty
// (DynamoDB rejects empty maps).
func (p *Placeholders) Names() map[string]string {
	if len(p.nameTable) == 0 {
		return nil
	}
	out := make(map[string]string, len(p.nameTable))
	for k, v := range p.nameTable {
		out[k] = v
	}
	return out
}

// Values is the ExpressionAttributeValues table, nil when empty.
func (p *Placeholders) Values() map[string]types.AttributeValue {
	if len(p.values) == 0 {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Projection renders a ProjectionExpression for the given attributes.
func (p *Placeholders) Projection(attrs ...string) string {
	if len(attrs) == 0 {
		return ""
	}
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		parts[i] = p.Name(a)
	}
	return strings.Join(parts, ", ")
}
