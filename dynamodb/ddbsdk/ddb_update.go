package ddbsdk

import (
	"errors"
	"fmt"
	"time"

	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/acksell/dynaplan/dynamodb/expr"
	"github.com/acksell/dynaplan/dynamodb/table"
)

// Update changes attributes of one item. The item is created when it does
// not exist unless a Condition prevents it.
type Update struct {
	Table table.TableDefinition
	Key   Item
	// Changes and Condition use physical attribute names.
	Changes   expr.UpdateState
	Condition expr.Expression
	// ReturnValues is honoured for single updates; transactions ignore it.
	ReturnValues types.ReturnValue

	ttlExpiry *time.Time
}

// NewUpdate builds an update from attribute -> value, where values may be
// expr.UpdateAction helpers and nil removes the attribute.
func NewUpdate(t table.TableDefinition, key Item, changes map[string]any) *Update {
	return &Update{Table: t, Key: key, Changes: expr.NewUpdateState(changes)}
}

func (u *Update) TableName() string { return u.Table.Name }

func (u *Update) PrimaryKey() (Item, error) { return keyOf(u.Table, u.Key) }

func (u *Update) WithCondition(c expr.Expression) *Update {
	u.Condition = c
	return u
}

func (u *Update) WithReturnValues(rv types.ReturnValue) *Update {
	u.ReturnValues = rv
	return u
}

func (u *Update) WithTTL(expiry time.Time) *Update {
	u.ttlExpiry = &expiry
	return u
}

func (u *Update) build() (key Item, update string, cond *string, ph *expr.Placeholders, err error) {
	key, err = u.PrimaryKey()
	if err != nil {
		return nil, "", nil, nil, err
	}
	changes := u.Changes
	if u.ttlExpiry != nil {
		if u.Table.TimeToLiveKey == "" {
			return nil, "", nil, nil, fmt.Errorf("table %q has no time to live attribute", u.Table.Name)
		}
		changes = changes.Clone()
		changes.Set[u.Table.TimeToLiveKey] = expr.SetEntry{Value: ttlDDB(*u.ttlExpiry)}
	}
	if changes.IsEmpty() {
		return nil, "", nil, nil, errors.New("update has no changes")
	}
	for _, attr := range changes.Attributes() {
		if _, isKey := key[attr]; isKey {
			return nil, "", nil, nil, fmt.Errorf("table %q: key attribute %q cannot be updated", u.Table.Name, attr)
		}
	}
	ph = expr.NewPlaceholders()
	update, err = expr.CompileUpdate(changes, ph)
	if err != nil {
		return nil, "", nil, nil, fmt.Errorf("compile update: %w", err)
	}
	cond, err = compileCondition(u.Condition, ph)
	if err != nil {
		return nil, "", nil, nil, err
	}
	return key, update, cond, ph, nil
}

func (u *Update) ToUpdateItem() (*dynamodbv2.UpdateItemInput, error) {
	key, update, cond, ph, err := u.build()
	if err != nil {
		return nil, err
	}
	return &dynamodbv2.UpdateItemInput{
		TableName:                 &u.Table.Name,
		Key:                       key,
		UpdateExpression:          &update,
		ConditionExpression:       cond,
		ExpressionAttributeNames:  ph.Names(),
		ExpressionAttributeValues: ph.Values(),
		ReturnValues:              u.ReturnValues,
	}, nil
}

func (u *Update) toTransactWriteItem() (types.TransactWriteItem, error) {
	key, update, cond, ph, err := u.build()
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	return types.TransactWriteItem{Update: &types.Update{
		TableName:                 &u.Table.Name,
		Key:                       key,
		UpdateExpression:          &update,
		ConditionExpression:       cond,
		ExpressionAttributeNames:  ph.Names(),
		ExpressionAttributeValues: ph.Values(),
	}}, nil
}
