package ddbsdk_test

import (
	"context"
	"testing"

	expression2 "github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/acksell/dynaplan/dynamodb/ddbsdk"
	"github.com/acksell/dynaplan/dynamodb/keys"
	"github.com/acksell/dynaplan/dynamodb/table"
)

func TestQuerier_PaginatesPartition(t *testing.T) {
	c, m := newClient()
	cursor := rawKey("ORG#1", "POST#2")
	var inputs []*dynamodb.QueryInput
	m.On("Query", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		inputs = append(inputs, args.Get(1).(*dynamodb.QueryInput))
	}).Return(&dynamodb.QueryOutput{
		Items:            []map[string]types.AttributeValue{rawKey("ORG#1", "POST#1"), cursor},
		LastEvaluatedKey: cursor,
	}, nil).Once()
	m.On("Query", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		inputs = append(inputs, args.Get(1).(*dynamodb.QueryInput))
	}).Return(&dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{rawKey("ORG#1", "POST#3")},
	}, nil).Once()

	q := c.NewQuery(testTable, ddbsdk.NewKeyCondition("ORG#1", ddbsdk.BeginsWith("POST#"))).
		WithPageSize(2).
		WithDescending().
		WithFilter(expression2.Name("status").Equal(expression2.Value("published")))
	res, err := q.QueryAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.Items, 3)
	assert.True(t, res.IsDone)
	require.Len(t, inputs, 2)
	assert.Nil(t, inputs[0].ExclusiveStartKey)
	assert.Equal(t, cursor, inputs[1].ExclusiveStartKey)
	assert.Equal(t, int32(2), *inputs[0].Limit)
	assert.False(t, *inputs[0].ScanIndexForward)
	assert.True(t, *inputs[0].ConsistentRead)
	assert.NotNil(t, inputs[0].FilterExpression)
	assert.Contains(t, inputs[0].ExpressionAttributeNames, "#0")
}

func TestQuerier_Index(t *testing.T) {
	c, m := newClient()
	m.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		names := make(map[string]bool)
		for _, n := range in.ExpressionAttributeNames {
			names[n] = true
		}
		return *in.IndexName == "gsi1" && in.ConsistentRead == nil && names["gsi1pk"] && !names["pk"]
	})).Return(&dynamodb.QueryOutput{}, nil)

	res, err := c.NewQuery(testTable, ddbsdk.NewKeyCondition("EMAIL#a@b.c", nil)).WithIndex("gsi1").Next(context.Background())
	require.NoError(t, err)
	assert.True(t, res.IsDone)
	m.AssertExpectations(t)
}

func TestQuerier_UnknownIndex(t *testing.T) {
	c, m := newClient()
	_, err := c.NewQuery(testTable, ddbsdk.NewKeyCondition("x", nil)).WithIndex("nope").Next(context.Background())
	assert.ErrorIs(t, err, table.ErrUnknownIndex)
	assert.Empty(t, m.Calls)
}

func TestQuerier_MatchingSortKey(t *testing.T) {
	posts := keys.MustParse("POST#{postId}")
	tests := []struct {
		name     string
		values   map[string]any
		wantCond string
		wantVal  string
	}{
		{name: "unresolved narrows to prefix", values: nil, wantCond: "begins_with", wantVal: "POST#"},
		{name: "resolved selects one item", values: map[string]any{"postId": 7}, wantCond: "=", wantVal: "POST#7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, m := newClient()
			var in *dynamodb.QueryInput
			m.On("Query", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
				in = args.Get(1).(*dynamodb.QueryInput)
			}).Return(&dynamodb.QueryOutput{}, nil)

			_, err := c.NewQuery(testTable, ddbsdk.NewKeyCondition("USER#1", ddbsdk.Matching(posts, tt.values))).Next(context.Background())
			require.NoError(t, err)
			require.NotNil(t, in)
			assert.Contains(t, *in.KeyConditionExpression, tt.wantCond)
			var got []string
			for _, av := range in.ExpressionAttributeValues {
				got = append(got, av.(*types.AttributeValueMemberS).Value)
			}
			assert.ElementsMatch(t, []string{"USER#1", tt.wantVal}, got)
		})
	}
}
