package ddbsdk

import (
	"fmt"
	"time"

	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/acksell/dynaplan/dynamodb/expr"
	"github.com/acksell/dynaplan/dynamodb/table"
)

// Put writes a whole item, replacing any existing item with the same key.
type Put struct {
	Table table.TableDefinition
	Item  Item
	// Condition uses physical attribute names.
	Condition expr.Expression

	ttlExpiry *time.Time
}

func NewPut(t table.TableDefinition, item Item) *Put {
	return &Put{Table: t, Item: item}
}

// NewCreate is a Put that fails when an item with the same key exists.
func NewCreate(t table.TableDefinition, item Item) *Put {
	return NewPut(t, item).WithCondition(expr.NotExists(t.KeyDefinitions.PartitionKey.Name))
}

func (p *Put) TableName() string { return p.Table.Name }

func (p *Put) PrimaryKey() (Item, error) { return keyOf(p.Table, p.Item) }

// WithCondition makes the put conditional. Conditional puts cannot be batched.
func (p *Put) WithCondition(c expr.Expression) *Put {
	p.Condition = c
	return p
}

// WithTTL stamps the table's time-to-live attribute with expiry.
func (p *Put) WithTTL(expiry time.Time) *Put {
	p.ttlExpiry = &expiry
	return p
}

func (p *Put) document() (Item, error) {
	doc := make(Item, len(p.Item)+1)
	for k, v := range p.Item {
		doc[k] = v
	}
	if p.ttlExpiry != nil {
		if p.Table.TimeToLiveKey == "" {
			return nil, fmt.Errorf("table %q has no time to live attribute", p.Table.Name)
		}
		doc[p.Table.TimeToLiveKey] = ttlDDB(*p.ttlExpiry)
	}
	if _, err := keyOf(p.Table, doc); err != nil {
		return nil, err
	}
	if err := checkItemSize(p.Table.Name, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *Put) ToPutItem() (*dynamodbv2.PutItemInput, error) {
	doc, err := p.document()
	if err != nil {
		return nil, err
	}
	ph := expr.NewPlaceholders()
	cond, err := compileCondition(p.Condition, ph)
	if err != nil {
		return nil, err
	}
	return &dynamodbv2.PutItemInput{
		TableName:                 &p.Table.Name,
		Item:                      doc,
		ConditionExpression:       cond,
		ExpressionAttributeNames:  ph.Names(),
		ExpressionAttributeValues: ph.Values(),
	}, nil
}

func (p *Put) toTransactWriteItem() (types.TransactWriteItem, error) {
	in, err := p.ToPutItem()
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	return types.TransactWriteItem{Put: &types.Put{
		TableName:                 in.TableName,
		Item:                      in.Item,
		ConditionExpression:       in.ConditionExpression,
		ExpressionAttributeNames:  in.ExpressionAttributeNames,
		ExpressionAttributeValues: in.ExpressionAttributeValues,
	}}, nil
}

func (p *Put) toWriteRequest() (types.WriteRequest, error) {
	if p.Condition != nil {
		return types.WriteRequest{}, errConditionalBatch(p.Table.Name)
	}
	doc, err := p.document()
	if err != nil {
		return types.WriteRequest{}, err
	}
	return types.WriteRequest{PutRequest: &types.PutRequest{Item: doc}}, nil
}
