package table

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrInvalidDefinition is returned by Validate for malformed table definitions.
var ErrInvalidDefinition = errors.New("invalid table definition")

// ErrUnknownIndex is returned when an index name is not declared on a table.
var ErrUnknownIndex = errors.New("unknown index")

// TableDefinition describes the physical layout of a DynamoDB table.
// Several entities may share one definition (single-table design).
type TableDefinition struct {
	Name           string
	KeyDefinitions PrimaryKeyDefinition
	TimeToLiveKey  string
	// Indexes are kept in declaration order. The planner picks the first
	// index it can resolve a partition key for.
	Indexes []IndexDefinition
}

// IndexKind tells whether an index has its own partition space.
type IndexKind string

const (
	IndexKindGlobal IndexKind = "global"
	IndexKindLocal  IndexKind = "local"
)

// IndexDefinition represents a secondary index on a table.
type IndexDefinition struct {
	Name           string
	KeyDefinitions PrimaryKeyDefinition
	Kind           IndexKind
}

// IsLocal reports whether the index shares the base table's partition key.
func (i IndexDefinition) IsLocal() bool {
	return i.Kind == IndexKindLocal
}

// HasSortKey reports whether the table defines a sort key.
func (t TableDefinition) HasSortKey() bool {
	return t.KeyDefinitions.HasSortKey()
}

// Index looks up a secondary index by name.
func (t TableDefinition) Index(name string) (IndexDefinition, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexDefinition{}, false
}

// Validate checks that the definition is usable by the planner.
func (t TableDefinition) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: table name is required", ErrInvalidDefinition)
	}
	if t.KeyDefinitions.PartitionKey.Name == "" {
		return fmt.Errorf("%w: table %q has no partition key", ErrInvalidDefinition, t.Name)
	}
	seen := make(map[string]bool, len(t.Indexes))
	for _, idx := range t.Indexes {
		if idx.Name == "" {
			return fmt.Errorf("%w: table %q has an unnamed index", ErrInvalidDefinition, t.Name)
		}
		if seen[idx.Name] {
			return fmt.Errorf("%w: table %q declares index %q twice", ErrInvalidDefinition, t.Name, idx.Name)
		}
		seen[idx.Name] = true
		if idx.KeyDefinitions.PartitionKey.Name == "" {
			return fmt.Errorf("%w: index %q has no partition key", ErrInvalidDefinition, idx.Name)
		}
		switch idx.Kind {
		case IndexKindGlobal, "":
		case IndexKindLocal:
			if idx.KeyDefinitions.PartitionKey.Name != t.KeyDefinitions.PartitionKey.Name {
				return fmt.Errorf("%w: local index %q must share partition key %q", ErrInvalidDefinition, idx.Name, t.KeyDefinitions.PartitionKey.Name)
			}
		default:
			return fmt.Errorf("%w: index %q has unknown kind %q", ErrInvalidDefinition, idx.Name, idx.Kind)
		}
	}
	return nil
}

// ExtractPrimaryKey extracts the primary key values from a document.
func (t TableDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	return t.KeyDefinitions.ExtractPrimaryKey(doc)
}

// ExtractPrimaryKey extracts the primary key values from a document.
func (k PrimaryKeyDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	part, ok := doc[k.PartitionKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("partition key %q not found", k.PartitionKey.Name)
	}
	if err := attributeMatchesDefinition(k.PartitionKey.Kind, part); err != nil {
		return PrimaryKey{}, fmt.Errorf("document key %q kind does not match definition: %w", k.PartitionKey.Name, err)
	}
	pk := PrimaryKey{
		Definition: k,
		Values: PrimaryKeyValues{
			PartitionKey: keyValueFromAV(part),
		},
	}
	if !k.HasSortKey() {
		return pk, nil
	}
	sort, ok := doc[k.SortKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("sort key %q not found on document", k.SortKey.Name)
	}
	if err := attributeMatchesDefinition(k.SortKey.Kind, sort); err != nil {
		return PrimaryKey{}, fmt.Errorf("sort key %q kind does not match definition: %w", k.SortKey.Name, err)
	}
	pk.Values.SortKey = keyValueFromAV(sort)
	return pk, nil
}

func keyValueFromAV(av types.AttributeValue) any {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberB:
		return v.Value
	default:
		return nil
	}
}
