// Package schema reads table and entity declarations from YAML and builds
// the table definitions and entity registry the planner works with.
//
//	tables:
//	  - name: app
//	    partitionKey: {name: pk, kind: S}
//	    sortKey: {name: sk, kind: S}
//	    gsis:
//	      - name: byEmail
//	        partitionKey: {name: gsi1pk, kind: S}
//	        sortKey: {name: gsi1sk, kind: S}
//	    entities:
//	      - type: User
//	        partitionKeyPattern: "USER#{id}"
//	        sortKeyPattern: "PROFILE"
//	        fields:
//	          - {name: id, tag: userId, type: S}
//	        gsiMappings:
//	          - {gsi: byEmail, partitionPattern: "EMAIL#{email}", sortPattern: "USER"}
//	        relations:
//	          - {name: posts, target: Post, cardinality: many, fields: {id: userId}}
package schema

// Schema is the root of a schema file.
type Schema struct {
	Tables []Table `yaml:"tables" json:"tables"`
}

// Table describes a DynamoDB table and the entities stored in it.
type Table struct {
	Name          string   `yaml:"name" json:"name"`
	PartitionKey  KeyDef   `yaml:"partitionKey" json:"partitionKey"`
	SortKey       *KeyDef  `yaml:"sortKey,omitempty" json:"sortKey,omitempty"`
	TimeToLiveKey string   `yaml:"timeToLiveKey,omitempty" json:"timeToLiveKey,omitempty"`
	GSIs          []Index  `yaml:"gsis,omitempty" json:"gsis,omitempty"`
	LSIs          []Index  `yaml:"lsis,omitempty" json:"lsis,omitempty"`
	Entities      []Entity `yaml:"entities,omitempty" json:"entities,omitempty"`
}

type KeyDef struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind" json:"kind"` // "S", "N", or "B"; empty means S
}

// Index describes a secondary index. Local indexes only declare a sort key;
// they share the table's partition key.
type Index struct {
	Name         string  `yaml:"name" json:"name"`
	PartitionKey KeyDef  `yaml:"partitionKey,omitempty" json:"partitionKey,omitempty"`
	SortKey      *KeyDef `yaml:"sortKey,omitempty" json:"sortKey,omitempty"`
}

// Entity describes a record type stored in a table.
type Entity struct {
	Type                string       `yaml:"type" json:"type"`
	PartitionKeyPattern string       `yaml:"partitionKeyPattern" json:"partitionKeyPattern"`
	SortKeyPattern      string       `yaml:"sortKeyPattern,omitempty" json:"sortKeyPattern,omitempty"`
	Fields              []Field      `yaml:"fields,omitempty" json:"fields,omitempty"`
	GSIMappings         []GSIMapping `yaml:"gsiMappings,omitempty" json:"gsiMappings,omitempty"`
	Relations           []Relation   `yaml:"relations,omitempty" json:"relations,omitempty"`
}

// Field maps a logical attribute (Name) onto its stored name (Tag).
type Field struct {
	Name string `yaml:"name" json:"name"`
	Tag  string `yaml:"tag,omitempty" json:"tag,omitempty"`
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
}

// GSIMapping binds an entity's key patterns for one secondary index,
// global or local.
type GSIMapping struct {
	GSI              string `yaml:"gsi" json:"gsi"`
	PartitionPattern string `yaml:"partitionPattern,omitempty" json:"partitionPattern,omitempty"`
	SortPattern      string `yaml:"sortPattern,omitempty" json:"sortPattern,omitempty"`
}

type Relation struct {
	Name        string            `yaml:"name" json:"name"`
	Target      string            `yaml:"target" json:"target"`
	Cardinality string            `yaml:"cardinality" json:"cardinality"`
	Fields      map[string]string `yaml:"fields" json:"fields"`
}
