package retry

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/acksell/dynaplan/dynamodb/ddbiface"
)

// Wrap returns a client that runs every operation of c under h.
// Cancelled transactions are not retryable and pass straight through.
func Wrap(c ddbiface.AWSDynamoClientV2, h *Handler) ddbiface.AWSDynamoClientV2 {
	return &client{next: c, h: h}
}

type client struct {
	next ddbiface.AWSDynamoClientV2
	h    *Handler
}

var _ ddbiface.AWSDynamoClientV2 = &client{}

func (c *client) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	return Value(ctx, c.h, func(ctx context.Context) (*dynamodb.BatchGetItemOutput, error) {
		return c.next.BatchGetItem(ctx, in, optFns...)
	})
}

func (c *client) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	return Value(ctx, c.h, func(ctx context.Context) (*dynamodb.BatchWriteItemOutput, error) {
		return c.next.BatchWriteItem(ctx, in, optFns...)
	})
}

func (c *client) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return Value(ctx, c.h, func(ctx context.Context) (*dynamodb.DeleteItemOutput, error) {
		return c.next.DeleteItem(ctx, in, optFns...)
	})
}

func (c *client) GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return Value(ctx, c.h, func(ctx context.Context) (*dynamodb.GetItemOutput, error) {
		return c.next.GetItem(ctx, in, optFns...)
	})
}

func (c *client) PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return Value(ctx, c.h, func(ctx context.Context) (*dynamodb.PutItemOutput, error) {
		return c.next.PutItem(ctx, in, optFns...)
	})
}

func (c *client) TransactGetItems(ctx context.Context, in *dynamodb.TransactGetItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactGetItemsOutput, error) {
	return Value(ctx, c.h, func(ctx context.Context) (*dynamodb.TransactGetItemsOutput, error) {
		return c.next.TransactGetItems(ctx, in, optFns...)
	})
}

func (c *client) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	return Value(ctx, c.h, func(ctx context.Context) (*dynamodb.TransactWriteItemsOutput, error) {
		return c.next.TransactWriteItems(ctx, in, optFns...)
	})
}

func (c *client) Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return Value(ctx, c.h, func(ctx context.Context) (*dynamodb.QueryOutput, error) {
		return c.next.Query(ctx, in, optFns...)
	})
}

func (c *client) Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return Value(ctx, c.h, func(ctx context.Context) (*dynamodb.ScanOutput, error) {
		return c.next.Scan(ctx, in, optFns...)
	})
}

func (c *client) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return Value(ctx, c.h, func(ctx context.Context) (*dynamodb.UpdateItemOutput, error) {
		return c.next.UpdateItem(ctx, in, optFns...)
	})
}
