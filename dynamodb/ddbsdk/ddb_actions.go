package ddbsdk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/acksell/dynaplan/dynamodb/expr"
	"github.com/acksell/dynaplan/dynamodb/table"
)

// Action is a single write staged in a transaction. The set of actions is
// closed: *Put, *Update, *Delete and *ConditionCheck.
type Action interface {
	TableName() string
	// PrimaryKey returns the key attributes of the item the action targets.
	PrimaryKey() (Item, error)

	toTransactWriteItem() (types.TransactWriteItem, error)
}

// BatchAction is an action BatchWriteItem accepts: an unconditional *Put or *Delete.
type BatchAction interface {
	Action
	toWriteRequest() (types.WriteRequest, error)
}

var (
	_ BatchAction = &Put{}
	_ BatchAction = &Delete{}
	_ Action      = &Update{}
	_ Action      = &ConditionCheck{}
)

// keyOf picks the table's key attributes out of an item and checks their
// kinds against the table definition.
func keyOf(t table.TableDefinition, item Item) (Item, error) {
	pk, err := t.ExtractPrimaryKey(item)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", t.Name, err)
	}
	return pk.DDB()
}

// keyID renders a key as a stable string, used to detect two actions on
// the same item.
func keyID(tableName string, key Item) string {
	names := make([]string, 0, len(key))
	for n := range key {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(tableName)
	for _, n := range names {
		b.WriteString("|" + n + "=")
		switch v := key[n].(type) {
		case *types.AttributeValueMemberS:
			b.WriteString("S:" + v.Value)
		case *types.AttributeValueMemberN:
			b.WriteString("N:" + v.Value)
		case *types.AttributeValueMemberB:
			b.WriteString("B:" + string(v.Value))
		default:
			fmt.Fprintf(&b, "%T", v)
		}
	}
	return b.String()
}

// compileCondition renders an optional condition into p. A nil result means
// no condition.
func compileCondition(c expr.Expression, p *expr.Placeholders) (*string, error) {
	if c == nil {
		return nil, nil
	}
	s, err := expr.Compile(c, p, nil)
	if err != nil {
		return nil, fmt.Errorf("compile condition: %w", err)
	}
	if s == "" {
		return nil, nil
	}
	return &s, nil
}
