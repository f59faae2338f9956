package ddbsdk

import (
	"context"
	"fmt"

	expression2 "github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/acksell/dynaplan/dynamodb/ddbiface"
	"github.com/acksell/dynaplan/dynamodb/table"
)

type getter struct {
	awsddb ddbiface.AWSDynamoClientV2
	logger *zap.Logger

	opts getOpts
}

var _ Getter = &getter{}

func NewGetter(ddb ddbiface.AWSDynamoClientV2, opts ...GetOption) *getter {
	g := &getter{
		awsddb: ddb,
		logger: zap.NewNop(),
		opts:   getOpts{backoff: DefaultBackoff},
	}
	for _, opt := range opts {
		opt(&g.opts)
	}
	return g
}

// GetItemRequest identifies an item to retrieve with optional projection.
// Projection is per-item since different items may have different schemas.
type GetItemRequest struct {
	Table      table.TableDefinition
	Key        table.PrimaryKey
	Projection []string // Optional: limits which attributes are returned
}

// BatchGetResult holds what a batch read returned. Failed lists, per table,
// the keys still unprocessed after MaxBatchRounds.
type BatchGetResult struct {
	Succeeded []Item
	Failed    map[string][]Item
}

// Done reports whether every key was processed.
func (r BatchGetResult) Done() bool { return len(r.Failed) == 0 }

func (r *BatchGetResult) addFailed(tableName string, keys ...Item) {
	if len(keys) == 0 {
		return
	}
	if r.Failed == nil {
		r.Failed = make(map[string][]Item)
	}
	r.Failed[tableName] = append(r.Failed[tableName], keys...)
}

func (g *getter) GetItem(ctx context.Context, item GetItemRequest) (Item, error) {
	key, err := item.Key.DDB()
	if err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}
	input := &dynamodbv2.GetItemInput{
		TableName:      &item.Table.Name,
		Key:            key,
		ConsistentRead: ptr(!g.opts.eventuallyConsistent),
	}

	if err := applyProjectionToGetInput(input, item.Projection); err != nil {
		return nil, fmt.Errorf("failed to apply projection: %w", err)
	}

	res, err := g.awsddb.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("get item failed: %w", err)
	}
	if res.Item == nil {
		return nil, nil
	}
	return res.Item, nil
}

// GetItemsTx retrieves multiple items transactionally using TransactGetItems.
// All items are retrieved atomically - either all succeed or all fail.
// Missing items come back as nil entries in request order.
func (g *getter) GetItemsTx(ctx context.Context, items ...GetItemRequest) ([]Item, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) > maxTransactItems {
		return nil, fmt.Errorf("transact get items limited to %d items, got %d", maxTransactItems, len(items))
	}

	transactItems := make([]types.TransactGetItem, 0, len(items))
	for _, item := range items {
		key, err := item.Key.DDB()
		if err != nil {
			return nil, fmt.Errorf("invalid key: %w", err)
		}
		get := &types.Get{
			TableName: &item.Table.Name,
			Key:       key,
		}
		if err := applyProjectionToGet(get, item.Projection); err != nil {
			return nil, fmt.Errorf("failed to apply projection: %w", err)
		}
		transactItems = append(transactItems, types.TransactGetItem{Get: get})
	}

	res, err := g.awsddb.TransactGetItems(ctx, &dynamodbv2.TransactGetItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		return nil, fmt.Errorf("transact get items failed: %w", asTransactionCanceled(err))
	}

	out := make([]Item, 0, len(res.Responses))
	for _, resp := range res.Responses {
		out = append(out, resp.Item)
	}
	return out, nil
}

// GetItemsBatch only resubmits the keys DynamoDB reports as unprocessed.
// BatchGetItem applies projection per table, so the first request seen for
// a table decides its projection.
func (g *getter) GetItemsBatch(ctx context.Context, items ...GetItemRequest) (BatchGetResult, error) {
	var res BatchGetResult
	if len(items) == 0 {
		return res, nil
	}

	keyed, err := g.dedupe(items)
	if err != nil {
		return res, err
	}

	for start := 0; start < len(keyed); start += maxBatchGetKeys {
		end := min(start+maxBatchGetKeys, len(keyed))
		requestItems, err := g.buildBatchRequestItems(keyed[start:end])
		if err != nil {
			return res, err
		}
		if err := g.converge(ctx, requestItems, &res); err != nil {
			for _, item := range keyed[end:] {
				res.addFailed(item.Table.Name, item.key)
			}
			return res, err
		}
	}
	return res, nil
}

// converge resubmits unprocessed keys until none are left or the rounds
// run out. Keys still unread when it stops, on error too, go to res.Failed.
func (g *getter) converge(ctx context.Context, requestItems map[string]types.KeysAndAttributes, res *BatchGetResult) error {
	fail := func() {
		for tableName, ka := range requestItems {
			res.addFailed(tableName, ka.Keys...)
		}
	}
	for round := 1; len(requestItems) > 0; round++ {
		out, err := g.awsddb.BatchGetItem(ctx, &dynamodbv2.BatchGetItemInput{
			RequestItems: requestItems,
		})
		if err != nil {
			fail()
			return fmt.Errorf("batch get item failed: %w", err)
		}
		for _, tableItems := range out.Responses {
			res.Succeeded = append(res.Succeeded, tableItems...)
		}
		requestItems = out.UnprocessedKeys
		if len(requestItems) == 0 {
			return nil
		}
		if round >= MaxBatchRounds {
			break
		}
		if err := wait(ctx, g.opts.backoff(round)); err != nil {
			fail()
			return err
		}
	}

	fail()
	for tableName, ka := range requestItems {
		g.logger.Warn("batch get left keys unprocessed",
			zap.String("table", tableName),
			zap.Int("keys", len(ka.Keys)),
			zap.Int("rounds", MaxBatchRounds))
	}
	return nil
}

type keyedRequest struct {
	GetItemRequest
	key Item
}

// dedupe drops repeated keys; BatchGetItem rejects duplicates.
func (g *getter) dedupe(items []GetItemRequest) ([]keyedRequest, error) {
	seen := make(map[string]bool, len(items))
	out := make([]keyedRequest, 0, len(items))
	for _, item := range items {
		key, err := item.Key.DDB()
		if err != nil {
			return nil, fmt.Errorf("invalid key: %w", err)
		}
		id := keyID(item.Table.Name, key)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, keyedRequest{GetItemRequest: item, key: key})
	}
	return out, nil
}

func (g *getter) buildBatchRequestItems(items []keyedRequest) (map[string]types.KeysAndAttributes, error) {
	requestItems := make(map[string]types.KeysAndAttributes)

	for _, item := range items {
		tableName := item.Table.Name

		keysAndAttrs, exists := requestItems[tableName]
		if !exists {
			keysAndAttrs = types.KeysAndAttributes{
				ConsistentRead: ptr(!g.opts.eventuallyConsistent),
			}
			if err := applyProjectionToKeysAndAttributes(&keysAndAttrs, item.Projection); err != nil {
				return nil, fmt.Errorf("failed to apply projection: %w", err)
			}
		}

		keysAndAttrs.Keys = append(keysAndAttrs.Keys, item.key)
		requestItems[tableName] = keysAndAttrs
	}

	return requestItems, nil
}

func applyProjectionToGetInput(input *dynamodbv2.GetItemInput, projection []string) error {
	if len(projection) == 0 {
		return nil
	}
	expr, err := buildProjectionExpression(projection)
	if err != nil {
		return err
	}
	input.ProjectionExpression = expr.Projection()
	input.ExpressionAttributeNames = expr.Names()
	return nil
}

func applyProjectionToGet(get *types.Get, projection []string) error {
	if len(projection) == 0 {
		return nil
	}
	expr, err := buildProjectionExpression(projection)
	if err != nil {
		return err
	}
	get.ProjectionExpression = expr.Projection()
	get.ExpressionAttributeNames = expr.Names()
	return nil
}

func applyProjectionToKeysAndAttributes(keysAndAttrs *types.KeysAndAttributes, projection []string) error {
	if len(projection) == 0 {
		return nil
	}
	expr, err := buildProjectionExpression(projection)
	if err != nil {
		return err
	}
	keysAndAttrs.ProjectionExpression = expr.Projection()
	keysAndAttrs.ExpressionAttributeNames = expr.Names()
	return nil
}

func buildProjectionExpression(attributes []string) (expression2.Expression, error) {
	var proj expression2.ProjectionBuilder
	for i, attr := range attributes {
		if i == 0 {
			proj = expression2.NamesList(expression2.Name(attr))
		} else {
			proj = proj.AddNames(expression2.Name(attr))
		}
	}
	return expression2.NewBuilder().WithProjection(proj).Build()
}

// GetOption configures the getter behavior.
type GetOption func(*getOpts)

type getOpts struct {
	// Note: TransactGetItems always uses serializable isolation.
	eventuallyConsistent bool
	backoff              BackoffFunc
}

// WithEventualConsistency enables eventually consistent reads for lookups.
// By default, reads are strongly consistent.
// This option has no effect on GetItemsTx.
func WithEventualConsistency() GetOption {
	return func(o *getOpts) {
		o.eventuallyConsistent = true
	}
}

// WithGetBackoff sets the wait between GetItemsBatch rounds.
func WithGetBackoff(fn BackoffFunc) GetOption {
	return func(o *getOpts) {
		o.backoff = fn
	}
}
