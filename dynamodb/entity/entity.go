// Package entity defines logical record types stored in a physical table and
// the key strategies that place them there.
package entity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/acksell/dynaplan/dynamodb/keys"
	"github.com/acksell/dynaplan/dynamodb/table"
)

var (
	// ErrMissingPartitionKey is returned when an entity has no partition key strategy.
	ErrMissingPartitionKey = errors.New("entity: missing partition key strategy")

	// ErrUnknownIndex is returned when an index name is not defined on the entity's table.
	ErrUnknownIndex = table.ErrUnknownIndex

	// ErrUnknownEntity is returned when a registry lookup fails.
	ErrUnknownEntity = errors.New("entity: unknown entity")
)

// Key binding roles.
const (
	RolePK = "pk"
	RoleSK = "sk"
)

// AttributeType is the DynamoDB type of a stored attribute.
type AttributeType string

const (
	TypeS    AttributeType = "S"
	TypeN    AttributeType = "N"
	TypeB    AttributeType = "B"
	TypeBool AttributeType = "BOOL"
	TypeSS   AttributeType = "SS"
	TypeNS   AttributeType = "NS"
	TypeBS   AttributeType = "BS"
	TypeL    AttributeType = "L"
	TypeM    AttributeType = "M"
	TypeNull AttributeType = "NULL"
)

// Attribute describes where a logical attribute is stored.
type Attribute struct {
	Name string // physical attribute name
	Type AttributeType
}

// KeyStrategies binds partition and sort key strategies for the table or one index.
type KeyStrategies struct {
	PK keys.Strategy
	SK keys.Strategy // nil when the table or index has no sort key
}

// Entity is a logical record type. It is immutable once built with New.
type Entity struct {
	name       string
	table      table.TableDefinition
	attributes map[string]Attribute
	physical   map[string]string // physical -> logical
	keys       KeyStrategies
	indexes    map[string]KeyStrategies
	relations  map[string]Relation
}

// Option configures an Entity under construction.
type Option func(*Entity)

// WithAttribute maps a logical attribute onto a physical one.
func WithAttribute(logical string, attr Attribute) Option {
	return func(e *Entity) {
		e.attributes[logical] = attr
	}
}

// WithKeys binds the primary table key strategies.
func WithKeys(pk, sk keys.Strategy) Option {
	return func(e *Entity) {
		e.keys = KeyStrategies{PK: pk, SK: sk}
	}
}

// WithIndex binds key strategies for a secondary index of the table.
func WithIndex(name string, pk, sk keys.Strategy) Option {
	return func(e *Entity) {
		e.indexes[name] = KeyStrategies{PK: pk, SK: sk}
	}
}

// WithRelation declares a relation to another entity in the same registry.
func WithRelation(r Relation) Option {
	return func(e *Entity) {
		e.relations[r.Name] = r.clone()
	}
}

// New builds and validates an entity.
//
//	users := entity.New("User", appTable,
//	    entity.WithKeys(keys.MustParse("USER#{id}"), keys.Static{Value: "PROFILE"}),
//	    entity.WithAttribute("id", entity.Attribute{Name: "userId", Type: entity.TypeS}),
//	    entity.WithRelation(entity.Relation{Name: "posts", Target: "Post", Cardinality: entity.Many,
//	        Fields: map[string]string{"id": "userId"}}),
//	)
func New(name string, t table.TableDefinition, opts ...Option) (*Entity, error) {
	e := &Entity{
		name:       name,
		table:      t,
		attributes: make(map[string]Attribute),
		physical:   make(map[string]string),
		indexes:    make(map[string]KeyStrategies),
		relations:  make(map[string]Relation),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	for logical, attr := range e.attributes {
		if attr.Name == "" {
			attr.Name = logical
			e.attributes[logical] = attr
		}
		e.physical[attr.Name] = logical
	}
	return e, nil
}

// MustNew is like New but panics on error. Meant for package-level declarations.
func MustNew(name string, t table.TableDefinition, opts ...Option) *Entity {
	e, err := New(name, t, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Entity) validate() error {
	if e.name == "" {
		return fmt.Errorf("entity name is required")
	}
	if err := e.table.Validate(); err != nil {
		return fmt.Errorf("entity %q: %w", e.name, err)
	}
	if e.keys.PK == nil {
		return fmt.Errorf("entity %q: %w", e.name, ErrMissingPartitionKey)
	}
	if e.table.HasSortKey() && e.keys.SK == nil {
		return fmt.Errorf("entity %q: table %q has sort key %q but no sort key strategy is bound",
			e.name, e.table.Name, e.table.KeyDefinitions.SortKey.Name)
	}
	for name, ks := range e.indexes {
		if _, ok := e.table.Index(name); !ok {
			return fmt.Errorf("entity %q: %w %q on table %q", e.name, ErrUnknownIndex, name, e.table.Name)
		}
		if ks.PK == nil {
			return fmt.Errorf("entity %q: index %q: %w", e.name, name, ErrMissingPartitionKey)
		}
	}
	for name, r := range e.relations {
		if err := r.validate(); err != nil {
			return fmt.Errorf("entity %q: relation %q: %w", e.name, name, err)
		}
	}
	return nil
}

func (e *Entity) Name() string                 { return e.name }
func (e *Entity) Table() table.TableDefinition { return e.table }
func (e *Entity) Keys() KeyStrategies          { return e.keys }

// IndexKeys returns the strategies bound for a secondary index.
func (e *Entity) IndexKeys(index string) (KeyStrategies, bool) {
	ks, ok := e.indexes[index]
	return ks, ok
}

// Attribute returns the descriptor of a logical attribute.
func (e *Entity) Attribute(logical string) (Attribute, bool) {
	a, ok := e.attributes[logical]
	return a, ok
}

// Attributes returns the logical attribute names, sorted.
func (e *Entity) Attributes() []string {
	names := make([]string, 0, len(e.attributes))
	for n := range e.attributes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PhysicalName maps a logical attribute name to its stored name.
// Unmapped names are stored as-is.
func (e *Entity) PhysicalName(logical string) string {
	if a, ok := e.attributes[logical]; ok {
		return a.Name
	}
	return logical
}

// LogicalName maps a stored attribute name back to its logical name.
func (e *Entity) LogicalName(physical string) string {
	if l, ok := e.physical[physical]; ok {
		return l
	}
	return physical
}

// Relation returns a declared relation.
func (e *Entity) Relation(name string) (Relation, bool) {
	r, ok := e.relations[name]
	if !ok {
		return Relation{}, false
	}
	return r.clone(), true
}

// Relations returns the relation names, sorted.
func (e *Entity) Relations() []string {
	names := make([]string, 0, len(e.relations))
	for n := range e.relations {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ToLogical decodes a stored item into logical attribute values.
// Physical key attributes that have no logical mapping are kept under their
// stored names so callers can still see them.
func (e *Entity) ToLogical(item map[string]types.AttributeValue) (map[string]any, error) {
	var raw map[string]any
	if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
		return nil, fmt.Errorf("entity %q: unmarshal item: %w", e.name, err)
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[e.LogicalName(k)] = v
	}
	return out, nil
}

// ToPhysical encodes logical values as a storable item, stamping every key
// (table and index) whose strategy resolves from the values.
func (e *Entity) ToPhysical(values map[string]any) (map[string]types.AttributeValue, error) {
	renamed := make(map[string]any, len(values))
	for k, v := range values {
		renamed[e.PhysicalName(k)] = v
	}
	item, err := attributevalue.MarshalMap(renamed)
	if err != nil {
		return nil, fmt.Errorf("entity %q: marshal item: %w", e.name, err)
	}
	keyAttrs, err := e.KeyAttributes(values)
	if err != nil {
		return nil, err
	}
	for k, v := range keyAttrs {
		item[k] = v
	}
	return item, nil
}

// KeyAttributes resolves the physical table key and any index keys from
// logical values. The table partition key (and sort key when the table has
// one) must resolve; index keys are skipped when unresolved (sparse index).
func (e *Entity) KeyAttributes(values map[string]any) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue)
	def := e.table.KeyDefinitions
	if err := stamp(out, def.PartitionKey, e.keys.PK, values, true); err != nil {
		return nil, fmt.Errorf("entity %q: %w", e.name, err)
	}
	if def.HasSortKey() {
		if err := stamp(out, def.SortKey, e.keys.SK, values, true); err != nil {
			return nil, fmt.Errorf("entity %q: %w", e.name, err)
		}
	}
	for _, idx := range e.table.Indexes {
		ks, ok := e.indexes[idx.Name]
		if !ok {
			continue
		}
		pk, pkOK := ks.PK.Resolve(values)
		if !pkOK {
			continue
		}
		if idx.KeyDefinitions.HasSortKey() && ks.SK != nil {
			if _, skOK := ks.SK.Resolve(values); !skOK {
				continue
			}
		}
		av, err := table.MarshalKeyValue(idx.KeyDefinitions.PartitionKey, pk)
		if err != nil {
			return nil, fmt.Errorf("entity %q: index %q: %w", e.name, idx.Name, err)
		}
		out[idx.KeyDefinitions.PartitionKey.Name] = av
		if idx.KeyDefinitions.HasSortKey() && ks.SK != nil {
			if err := stamp(out, idx.KeyDefinitions.SortKey, ks.SK, values, false); err != nil {
				return nil, fmt.Errorf("entity %q: index %q: %w", e.name, idx.Name, err)
			}
		}
	}
	return out, nil
}

// PrimaryKey resolves the table primary key from logical values.
func (e *Entity) PrimaryKey(values map[string]any) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, 2)
	def := e.table.KeyDefinitions
	if err := stamp(out, def.PartitionKey, e.keys.PK, values, true); err != nil {
		return nil, fmt.Errorf("entity %q: %w", e.name, err)
	}
	if def.HasSortKey() {
		if err := stamp(out, def.SortKey, e.keys.SK, values, true); err != nil {
			return nil, fmt.Errorf("entity %q: %w", e.name, err)
		}
	}
	return out, nil
}

// Owns reports whether a stored item carries table keys that e's
// strategies can produce. Several entities share a partition in single-table
// design, so Query and Scan results are checked item by item. Key
// attributes missing from the item are not held against it.
func (e *Entity) Owns(item map[string]types.AttributeValue) bool {
	def := e.table.KeyDefinitions
	if !ownsKey(item, def.PartitionKey.Name, e.keys.PK) {
		return false
	}
	if def.HasSortKey() && e.keys.SK != nil {
		return ownsKey(item, def.SortKey.Name, e.keys.SK)
	}
	return true
}

func ownsKey(item map[string]types.AttributeValue, name string, s keys.Strategy) bool {
	av, ok := item[name]
	if !ok {
		return true
	}
	var v string
	switch m := av.(type) {
	case *types.AttributeValueMemberS:
		v = m.Value
	case *types.AttributeValueMemberN:
		v = m.Value
	case *types.AttributeValueMemberB:
		v = string(m.Value)
	default:
		return false
	}
	return s.Matches(v)
}

func stamp(out map[string]types.AttributeValue, def table.KeyDef, s keys.Strategy, values map[string]any, required bool) error {
	v, ok := s.Resolve(values)
	if !ok {
		if required {
			return fmt.Errorf("cannot resolve key %q from pattern %q: missing attributes %v", def.Name, s.String(), s.Attributes())
		}
		return nil
	}
	av, err := table.MarshalKeyValue(def, v)
	if err != nil {
		return fmt.Errorf("key %q: %w", def.Name, err)
	}
	out[def.Name] = av
	return nil
}
