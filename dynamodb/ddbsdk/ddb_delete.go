package ddbsdk

import (
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/acksell/dynaplan/dynamodb/expr"
	"github.com/acksell/dynaplan/dynamodb/table"
)

type Delete struct {
	Table     table.TableDefinition
	Key       Item
	Condition expr.Expression
}

func NewDelete(t table.TableDefinition, key Item) *Delete {
	return &Delete{Table: t, Key: key}
}

func (d *Delete) TableName() string { return d.Table.Name }

func (d *Delete) PrimaryKey() (Item, error) { return keyOf(d.Table, d.Key) }

// WithCondition makes the delete conditional. Conditional deletes cannot be batched.
func (d *Delete) WithCondition(c expr.Expression) *Delete {
	d.Condition = c
	return d
}

func (d *Delete) ToDeleteItem() (*dynamodbv2.DeleteItemInput, error) {
	key, err := d.PrimaryKey()
	if err != nil {
		return nil, err
	}
	ph := expr.NewPlaceholders()
	cond, err := compileCondition(d.Condition, ph)
	if err != nil {
		return nil, err
	}
	return &dynamodbv2.DeleteItemInput{
		TableName:                 &d.Table.Name,
		Key:                       key,
		ConditionExpression:       cond,
		ExpressionAttributeNames:  ph.Names(),
		ExpressionAttributeValues: ph.Values(),
	}, nil
}

func (d *Delete) toTransactWriteItem() (types.TransactWriteItem, error) {
	in, err := d.ToDeleteItem()
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	return types.TransactWriteItem{Delete: &types.Delete{
		TableName:                 in.TableName,
		Key:                       in.Key,
		ConditionExpression:       in.ConditionExpression,
		ExpressionAttributeNames:  in.ExpressionAttributeNames,
		ExpressionAttributeValues: in.ExpressionAttributeValues,
	}}, nil
}

func (d *Delete) toWriteRequest() (types.WriteRequest, error) {
	key, err := d.PrimaryKey()
	if err != nil {
		return types.WriteRequest{}, err
	}
	if d.Condition != nil {
		return types.WriteRequest{}, errConditionalBatch(d.Table.Name)
	}
	return types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: key}}, nil
}

// ConditionCheck asserts a condition on an item without writing it. It is
// only meaningful inside a transaction.
type ConditionCheck struct {
	Table     table.TableDefinition
	Key       Item
	Condition expr.Expression
}

func NewConditionCheck(t table.TableDefinition, key Item, c expr.Expression) *ConditionCheck {
	return &ConditionCheck{Table: t, Key: key, Condition: c}
}

func (c *ConditionCheck) TableName() string { return c.Table.Name }

func (c *ConditionCheck) PrimaryKey() (Item, error) { return keyOf(c.Table, c.Key) }

func (c *ConditionCheck) toTransactWriteItem() (types.TransactWriteItem, error) {
	key, err := c.PrimaryKey()
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	ph := expr.NewPlaceholders()
	cond, err := compileCondition(c.Condition, ph)
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	if cond == nil {
		return types.TransactWriteItem{}, errMissingCondition(c.Table.Name)
	}
	return types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
		TableName:                 &c.Table.Name,
		Key:                       key,
		ConditionExpression:       cond,
		ExpressionAttributeNames:  ph.Names(),
		ExpressionAttributeValues: ph.Values(),
	}}, nil
}
