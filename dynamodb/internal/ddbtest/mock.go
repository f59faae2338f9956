// Package ddbtest holds test doubles for the DynamoDB transport.
package ddbtest

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/mock"

	"github.com/acksell/dynaplan/dynamodb/ddbiface"
)

// Client is a testify mock of the DynamoDB transport. Expectations are set
// per method name, e.g. c.On("Query", mock.Anything, mock.Anything).Return(out, nil).
type Client struct {
	mock.Mock
}

var _ ddbiface.AWSDynamoClientV2 = &Client{}

func NewClient() *Client { return &Client{} }

func result[T any](args mock.Arguments) (T, error) {
	var out T
	if v := args.Get(0); v != nil {
		if fn, ok := v.(func() T); ok {
			out = fn()
		} else {
			out = v.(T)
		}
	}
	return out, args.Error(1)
}

func (c *Client) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	return result[*dynamodb.BatchGetItemOutput](c.Called(ctx, in))
}

func (c *Client) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	return result[*dynamodb.BatchWriteItemOutput](c.Called(ctx, in))
}

func (c *Client) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return result[*dynamodb.DeleteItemOutput](c.Called(ctx, in))
}

func (c *Client) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return result[*dynamodb.GetItemOutput](c.Called(ctx, in))
}

func (c *Client) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return result[*dynamodb.PutItemOutput](c.Called(ctx, in))
}

func (c *Client) TransactGetItems(ctx context.Context, in *dynamodb.TransactGetItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactGetItemsOutput, error) {
	return result[*dynamodb.TransactGetItemsOutput](c.Called(ctx, in))
}

func (c *Client) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	return result[*dynamodb.TransactWriteItemsOutput](c.Called(ctx, in))
}

func (c *Client) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return result[*dynamodb.QueryOutput](c.Called(ctx, in))
}

func (c *Client) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return result[*dynamodb.ScanOutput](c.Called(ctx, in))
}

func (c *Client) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return result[*dynamodb.UpdateItemOutput](c.Called(ctx, in))
}

// APIError builds a service error with the given code, as the SDK would
// return it.
func APIError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}
