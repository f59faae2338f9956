package ddbsdk

import (
	"context"
	"fmt"

	expression2 "github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/acksell/dynaplan/dynamodb/ddbiface"
	"github.com/acksell/dynaplan/dynamodb/table"
)

// Querier runs a key-condition query against one partition of a table or
// index and pages through the results. Unlike the planner it takes the
// physical partition value directly.
type Querier struct {
	awsddb ddbiface.AWSDynamoClientV2

	table   table.TableDefinition
	keyCond KeyCondition

	lastCursor map[string]types.AttributeValue
	done       bool

	opts queryOptions
}

type queryOptions struct {
	// default to consistent reads
	// because if you don't know what you're doing you may introduce race conditions.
	eventuallyConsistent bool
	pageSize             int32
	descending           bool
	indexName            string
	filter               expression2.ConditionBuilder
	projectionAttributes []string
}

const defaultPageSize = 10

type KeyCondition struct {
	partition any
	strategy  SortKeyStrategy
}

// NewKeyCondition selects the partition and optionally narrows the sort key;
// strategy may be nil.
func NewKeyCondition(partition any, strategy SortKeyStrategy) KeyCondition {
	return KeyCondition{
		partition: partition,
		strategy:  strategy,
	}
}

func NewQuerier(ddb ddbiface.AWSDynamoClientV2, t table.TableDefinition, kc KeyCondition) *Querier {
	return &Querier{
		awsddb:  ddb,
		table:   t,
		keyCond: kc,
		opts: queryOptions{
			pageSize: defaultPageSize,
		},
	}
}

type QueryResult struct {
	Items  []Item
	IsDone bool
}

func (q *Querier) keyDefinitions() (table.PrimaryKeyDefinition, error) {
	if q.opts.indexName == "" {
		return q.table.KeyDefinitions, nil
	}
	idx, ok := q.table.Index(q.opts.indexName)
	if !ok {
		return table.PrimaryKeyDefinition{}, fmt.Errorf("%w: %q on table %q", table.ErrUnknownIndex, q.opts.indexName, q.table.Name)
	}
	return idx.KeyDefinitions, nil
}

func (q *Querier) Next(ctx context.Context) (*QueryResult, error) {
	if q.done {
		return &QueryResult{IsDone: true}, nil
	}
	keyDefs, err := q.keyDefinitions()
	if err != nil {
		return nil, err
	}

	b := expression2.NewBuilder()
	key := expression2.KeyEqual(expression2.Key(keyDefs.PartitionKey.Name), expression2.Value(q.keyCond.partition))
	if q.keyCond.strategy != nil {
		if !keyDefs.HasSortKey() {
			return nil, fmt.Errorf("sort key condition on %q which has no sort key", q.table.Name)
		}
		key = key.And(q.keyCond.strategy(keyDefs.SortKey.Name))
	}
	b = b.WithKeyCondition(key)

	if q.opts.filter.IsSet() {
		b = b.WithFilter(q.opts.filter)
	}
	if len(q.opts.projectionAttributes) > 0 {
		var proj expression2.ProjectionBuilder
		for i, attr := range q.opts.projectionAttributes {
			if i == 0 {
				proj = expression2.NamesList(expression2.Name(attr))
			} else {
				proj = proj.AddNames(expression2.Name(attr))
			}
		}
		b = b.WithProjection(proj)
	}

	expr, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	input := &dynamodbv2.QueryInput{
		TableName:                 &q.table.Name,
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeValues: expr.Values(),
		ExpressionAttributeNames:  expr.Names(),
		Limit:                     ptr(q.opts.pageSize),
		ScanIndexForward:          ptr(!q.opts.descending),
		ExclusiveStartKey:         q.lastCursor,
	}
	if q.opts.indexName != "" {
		input.IndexName = &q.opts.indexName
		// global secondary indexes reject consistent reads
		if idx, _ := q.table.Index(q.opts.indexName); idx.IsLocal() {
			input.ConsistentRead = ptr(!q.opts.eventuallyConsistent)
		}
	} else {
		input.ConsistentRead = ptr(!q.opts.eventuallyConsistent)
	}

	res, err := q.awsddb.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	q.lastCursor = res.LastEvaluatedKey
	q.done = len(res.LastEvaluatedKey) == 0
	return &QueryResult{
		Items:  res.Items,
		IsDone: q.done,
	}, nil
}

func (q *Querier) QueryAll(ctx context.Context) (*QueryResult, error) {
	var allItems []Item
	for {
		res, err := q.Next(ctx)
		if err != nil {
			return nil, err
		}
		allItems = append(allItems, res.Items...)
		if res.IsDone {
			break
		}
	}
	return &QueryResult{
		Items:  allItems,
		IsDone: true,
	}, nil
}

func (q *Querier) WithEventuallyConsistentReads() *Querier {
	q.opts.eventuallyConsistent = true
	return q
}

func (q *Querier) WithDescending() *Querier {
	q.opts.descending = true
	return q
}

func (q *Querier) WithPageSize(limit int) *Querier {
	q.opts.pageSize = int32(limit)
	return q
}

// WithIndex queries a secondary index; its key names replace the table's.
func (q *Querier) WithIndex(indexName string) *Querier {
	q.opts.indexName = indexName
	return q
}

func (q *Querier) WithFilter(c expression2.ConditionBuilder) *Querier {
	q.opts.filter = c
	return q
}

// WithProjection limits the attributes returned in the response.
// Only the specified attributes will be retrieved from DynamoDB.
func (q *Querier) WithProjection(attrs ...string) *Querier {
	q.opts.projectionAttributes = attrs
	return q
}
