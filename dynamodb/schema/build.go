package schema

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/acksell/dynaplan/dynamodb/entity"
	"github.com/acksell/dynaplan/dynamodb/keys"
	"github.com/acksell/dynaplan/dynamodb/table"
)

// Load reads and parses a schema file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a schema document. Unknown fields are rejected so typos
// surface instead of silently dropping a mapping.
func Parse(data []byte) (*Schema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Schema
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &s, nil
}

// Build turns the schema into an entity registry. Every entity is validated
// against its table, and every relation target must exist.
func (s *Schema) Build() (*entity.Registry, error) {
	reg, err := entity.NewRegistry()
	if err != nil {
		return nil, err
	}
	for _, t := range s.Tables {
		def, err := t.Definition()
		if err != nil {
			return nil, err
		}
		for _, es := range t.Entities {
			e, err := es.build(def)
			if err != nil {
				return nil, err
			}
			if err := reg.Register(e); err != nil {
				return nil, err
			}
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Definition converts the table declaration, GSIs first and then LSIs,
// each in file order.
func (t Table) Definition() (table.TableDefinition, error) {
	def := table.TableDefinition{
		Name:          t.Name,
		TimeToLiveKey: t.TimeToLiveKey,
	}
	var err error
	if def.KeyDefinitions, err = keyDefinition(t.PartitionKey, t.SortKey); err != nil {
		return table.TableDefinition{}, fmt.Errorf("table %q: %w", t.Name, err)
	}
	for _, g := range t.GSIs {
		kd, err := keyDefinition(g.PartitionKey, g.SortKey)
		if err != nil {
			return table.TableDefinition{}, fmt.Errorf("table %q index %q: %w", t.Name, g.Name, err)
		}
		def.Indexes = append(def.Indexes, table.IndexDefinition{Name: g.Name, Kind: table.IndexKindGlobal, KeyDefinitions: kd})
	}
	for _, l := range t.LSIs {
		pk := l.PartitionKey
		if pk.Name == "" {
			pk = t.PartitionKey
		}
		kd, err := keyDefinition(pk, l.SortKey)
		if err != nil {
			return table.TableDefinition{}, fmt.Errorf("table %q index %q: %w", t.Name, l.Name, err)
		}
		def.Indexes = append(def.Indexes, table.IndexDefinition{Name: l.Name, Kind: table.IndexKindLocal, KeyDefinitions: kd})
	}
	if err := def.Validate(); err != nil {
		return table.TableDefinition{}, err
	}
	return def, nil
}

func keyDefinition(pk KeyDef, sk *KeyDef) (table.PrimaryKeyDefinition, error) {
	var out table.PrimaryKeyDefinition
	var err error
	if out.PartitionKey, err = pk.definition(); err != nil {
		return out, err
	}
	if sk != nil {
		if out.SortKey, err = sk.definition(); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (k KeyDef) definition() (table.KeyDef, error) {
	kind := table.KeyKind(strings.ToUpper(k.Kind))
	switch kind {
	case "":
		kind = table.KeyKindS
	case table.KeyKindS, table.KeyKindN, table.KeyKindB:
	default:
		return table.KeyDef{}, fmt.Errorf("key %q: unknown kind %q", k.Name, k.Kind)
	}
	return table.KeyDef{Name: k.Name, Kind: kind}, nil
}

func (es Entity) build(def table.TableDefinition) (*entity.Entity, error) {
	pk, err := keys.Parse(es.PartitionKeyPattern)
	if err != nil {
		return nil, fmt.Errorf("entity %q partition key: %w", es.Type, err)
	}
	var sk keys.Strategy
	if es.SortKeyPattern != "" {
		if sk, err = keys.Parse(es.SortKeyPattern); err != nil {
			return nil, fmt.Errorf("entity %q sort key: %w", es.Type, err)
		}
	}
	opts := []entity.Option{entity.WithKeys(pk, sk)}

	for _, f := range es.Fields {
		opts = append(opts, entity.WithAttribute(f.Name, entity.Attribute{
			Name: f.Tag,
			Type: entity.AttributeType(strings.ToUpper(f.Type)),
		}))
	}
	for _, m := range es.GSIMappings {
		idx, ok := def.Index(m.GSI)
		if !ok {
			return nil, fmt.Errorf("entity %q: %w %q on table %q", es.Type, table.ErrUnknownIndex, m.GSI, def.Name)
		}
		var ipk, isk keys.Strategy
		switch {
		case m.PartitionPattern != "":
			if ipk, err = keys.Parse(m.PartitionPattern); err != nil {
				return nil, fmt.Errorf("entity %q index %q partition key: %w", es.Type, m.GSI, err)
			}
		case idx.IsLocal():
			ipk = pk
		}
		if m.SortPattern != "" {
			if isk, err = keys.Parse(m.SortPattern); err != nil {
				return nil, fmt.Errorf("entity %q index %q sort key: %w", es.Type, m.GSI, err)
			}
		}
		opts = append(opts, entity.WithIndex(m.GSI, ipk, isk))
	}
	for _, r := range es.Relations {
		opts = append(opts, entity.WithRelation(entity.Relation{
			Name:        r.Name,
			Target:      r.Target,
			Cardinality: entity.Cardinality(strings.ToLower(r.Cardinality)),
			Fields:      r.Fields,
		}))
	}
	return entity.New(es.Type, def, opts...)
}
