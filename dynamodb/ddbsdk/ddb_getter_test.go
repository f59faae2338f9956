package ddbsdk_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/acksell/dynaplan/dynamodb/ddbsdk"
)

func TestGetItem(t *testing.T) {
	c, m := newClient()
	item := ddbsdk.Item{"pk": s("USER#1"), "sk": s("PROFILE"), "name": s("Alice")}
	m.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return *in.TableName == "app" && *in.ConsistentRead && *in.ProjectionExpression != ""
	})).Return(&dynamodb.GetItemOutput{Item: item}, nil)

	got, err := c.NewLookup().GetItem(context.Background(), ddbsdk.GetItemRequest{
		Table:      testTable,
		Key:        primaryKey("USER#1", "PROFILE"),
		Projection: []string{"name"},
	})
	require.NoError(t, err)
	assert.Equal(t, item, got)
}

func TestGetItem_NotFound(t *testing.T) {
	c, m := newClient()
	m.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	got, err := c.NewLookup(ddbsdk.WithEventualConsistency()).GetItem(context.Background(), ddbsdk.GetItemRequest{
		Table: testTable,
		Key:   primaryKey("USER#999", "PROFILE"),
	})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetItemsBatch_GivesUpAfterMaxRounds(t *testing.T) {
	c, m := newClient()
	key := rawKey("USER#1", "PROFILE")
	m.On("BatchGetItem", mock.Anything, mock.Anything).Return(&dynamodb.BatchGetItemOutput{
		UnprocessedKeys: map[string]types.KeysAndAttributes{"app": {Keys: []map[string]types.AttributeValue{key}}},
	}, nil)

	res, err := c.NewLookup(ddbsdk.WithGetBackoff(ddbsdk.NoBackoff)).GetItemsBatch(context.Background(),
		ddbsdk.GetItemRequest{Table: testTable, Key: primaryKey("USER#1", "PROFILE")})
	require.NoError(t, err)

	m.AssertNumberOfCalls(t, "BatchGetItem", ddbsdk.MaxBatchRounds)
	assert.Empty(t, res.Succeeded)
	assert.False(t, res.Done())
	assert.Equal(t, []ddbsdk.Item{key}, res.Failed["app"])
}

func TestGetItemsBatch_ResubmitsOnlyUnprocessed(t *testing.T) {
	c, m := newClient()
	first := ddbsdk.Item{"pk": s("USER#1"), "sk": s("PROFILE")}
	second := ddbsdk.Item{"pk": s("USER#2"), "sk": s("PROFILE")}

	m.On("BatchGetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.BatchGetItemInput) bool {
		return len(in.RequestItems["app"].Keys) == 2
	})).Return(&dynamodb.BatchGetItemOutput{
		Responses:       map[string][]map[string]types.AttributeValue{"app": {first}},
		UnprocessedKeys: map[string]types.KeysAndAttributes{"app": {Keys: []map[string]types.AttributeValue{rawKey("USER#2", "PROFILE")}}},
	}, nil).Once()
	m.On("BatchGetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.BatchGetItemInput) bool {
		keys := in.RequestItems["app"].Keys
		return len(keys) == 1 && keys[0]["pk"].(*types.AttributeValueMemberS).Value == "USER#2"
	})).Return(&dynamodb.BatchGetItemOutput{
		Responses: map[string][]map[string]types.AttributeValue{"app": {second}},
	}, nil).Once()

	res, err := c.NewLookup(ddbsdk.WithGetBackoff(ddbsdk.NoBackoff)).GetItemsBatch(context.Background(),
		ddbsdk.GetItemRequest{Table: testTable, Key: primaryKey("USER#1", "PROFILE")},
		ddbsdk.GetItemRequest{Table: testTable, Key: primaryKey("USER#2", "PROFILE")},
		ddbsdk.GetItemRequest{Table: testTable, Key: primaryKey("USER#1", "PROFILE")},
	)
	require.NoError(t, err)
	assert.True(t, res.Done())
	assert.Equal(t, []ddbsdk.Item{first, second}, res.Succeeded)
	m.AssertExpectations(t)
}

func TestGetItemsBatch_ChunksKeys(t *testing.T) {
	c, m := newClient()
	var sizes []int
	m.On("BatchGetItem", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		in := args.Get(1).(*dynamodb.BatchGetItemInput)
		sizes = append(sizes, len(in.RequestItems["app"].Keys))
	}).Return(&dynamodb.BatchGetItemOutput{}, nil)

	reqs := make([]ddbsdk.GetItemRequest, 150)
	for i := range reqs {
		reqs[i] = ddbsdk.GetItemRequest{Table: testTable, Key: primaryKey(fmt.Sprintf("USER#%d", i), "PROFILE")}
	}
	_, err := c.NewLookup().GetItemsBatch(context.Background(), reqs...)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 50}, sizes)
}

func TestGetItemsTx(t *testing.T) {
	c, m := newClient()
	item := ddbsdk.Item{"pk": s("USER#1"), "sk": s("PROFILE")}
	m.On("TransactGetItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactGetItemsInput) bool {
		return len(in.TransactItems) == 2
	})).Return(&dynamodb.TransactGetItemsOutput{
		Responses: []types.ItemResponse{{Item: item}, {}},
	}, nil)

	got, err := c.NewLookup().GetItemsTx(context.Background(),
		ddbsdk.GetItemRequest{Table: testTable, Key: primaryKey("USER#1", "PROFILE")},
		ddbsdk.GetItemRequest{Table: testTable, Key: primaryKey("USER#2", "PROFILE")},
	)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, item, got[0])
	assert.Nil(t, got[1])
}

func TestGetItemsBatch_TransportErrorReportsEveryKey(t *testing.T) {
	tests := []struct {
		name string
		keys int
	}{
		{name: "single chunk", keys: 40},
		{name: "later chunks never sent", keys: 150},
		{name: "many chunks", keys: 320},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, m := newClient()
			m.On("BatchGetItem", mock.Anything, mock.Anything).Return(nil, assert.AnError)

			reqs := make([]ddbsdk.GetItemRequest, tt.keys)
			for i := range reqs {
				reqs[i] = ddbsdk.GetItemRequest{Table: testTable, Key: primaryKey(fmt.Sprintf("USER#%d", i), "PROFILE")}
			}
			res, err := c.NewLookup(ddbsdk.WithGetBackoff(ddbsdk.NoBackoff)).GetItemsBatch(context.Background(), reqs...)
			require.ErrorIs(t, err, assert.AnError)
			assert.Empty(t, res.Succeeded)
			assert.Len(t, res.Failed["app"], tt.keys)
			m.AssertNumberOfCalls(t, "BatchGetItem", 1)
		})
	}
}
