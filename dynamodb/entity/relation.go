package entity

import "fmt"

// Cardinality of a relation.
type Cardinality string

const (
	One  Cardinality = "one"
	Many Cardinality = "many"
)

// Relation links an entity to another entity of the same registry.
// Fields maps attributes of the parent onto attributes of the target; the
// parent's values for them are used to resolve the target's access plan.
type Relation struct {
	Name        string
	Target      string
	Cardinality Cardinality
	Fields      map[string]string
}

func (r Relation) validate() error {
	if r.Name == "" {
		return fmt.Errorf("relation name is required")
	}
	if r.Target == "" {
		return fmt.Errorf("relation target is required")
	}
	switch r.Cardinality {
	case One, Many:
	default:
		return fmt.Errorf("unknown cardinality %q", r.Cardinality)
	}
	if len(r.Fields) == 0 {
		return fmt.Errorf("relation needs at least one field mapping")
	}
	return nil
}

func (r Relation) clone() Relation {
	fields := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	r.Fields = fields
	return r
}
