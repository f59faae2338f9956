package ddbsdk

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item represents a raw DynamoDB item. Use entity.Entity.ToLogical or
// attributevalue.UnmarshalMap to decode it.
type Item = map[string]types.AttributeValue

type Txer interface {
	// AddAction stages an action. Errors are also reported by Commit, so
	// checking them here is optional.
	AddAction(Action) error
	Commit(context.Context) error
}

type Batcher interface {
	AddAction(...BatchAction) error
	// Exec writes every staged action, resubmitting unprocessed items for a
	// bounded number of rounds. Items still unprocessed are reported in the
	// result, not as an error.
	Exec(context.Context) (BatchWriteResult, error)
}

// ConsistentReads are enabled by default.
// To use EventuallyConsistent reads, add the WithEventualConsistency option.
type Getter interface {
	// GetItem retrieves a single item, nil when it does not exist.
	GetItem(context.Context, GetItemRequest) (Item, error)
	// GetItemsTx retrieves up to 100 items with serializable isolation.
	GetItemsTx(context.Context, ...GetItemRequest) ([]Item, error)
	// GetItemsBatch retrieves items using BatchGetItem.
	//
	// As a batch unit, not serializable isolation. Only read-committed isolation.
	// On a per-item basis, it is serializable.
	// If there's a concurrent transaction write request in-flight,
	// it's possible that you'll be able to read the new state of
	// some of the items and the old state of the other items.
	// If you need better isolation guarantees, use GetItemsTx.
	//
	// Requests are split into chunks of 100 keys.
	GetItemsBatch(context.Context, ...GetItemRequest) (BatchGetResult, error)
}
