package ddbsdk_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acksell/dynaplan/dynamodb/ddbsdk"
)

func TestEstimateItemSize(t *testing.T) {
	tests := []struct {
		name string
		item ddbsdk.Item
		want int
	}{
		{"string", ddbsdk.Item{"ab": s("hello")}, 2 + 5},
		{"utf8 bytes", ddbsdk.Item{"a": s("é")}, 1 + 2},
		{"number", ddbsdk.Item{"n": &types.AttributeValueMemberN{Value: "12345"}}, 1 + 4},
		{"number trims zeros", ddbsdk.Item{"n": &types.AttributeValueMemberN{Value: "-0.0100"}}, 1 + 2},
		{"binary", ddbsdk.Item{"b": &types.AttributeValueMemberB{Value: []byte{1, 2, 3}}}, 1 + 3},
		{"bool and null", ddbsdk.Item{"t": &types.AttributeValueMemberBOOL{Value: true}, "z": &types.AttributeValueMemberNULL{Value: true}}, 4},
		{"list", ddbsdk.Item{"l": &types.AttributeValueMemberL{Value: []types.AttributeValue{s("ab"), s("c")}}}, 1 + 3 + 3 + 2},
		{"map", ddbsdk.Item{"m": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{"k": s("v")}}}, 1 + 3 + 1 + 1 + 1},
		{"string set", ddbsdk.Item{"ss": &types.AttributeValueMemberSS{Value: []string{"a", "bc"}}}, 2 + 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ddbsdk.EstimateItemSize(tt.item))
		})
	}
}

func TestPut_ItemTooLarge(t *testing.T) {
	c, m := newClient()
	item := rawKey("USER#1", "PROFILE")
	item["blob"] = s(strings.Repeat("x", ddbsdk.MaxItemSize))

	tx := c.NewTx()
	require.NoError(t, tx.AddAction(ddbsdk.NewPut(testTable, item)))
	err := tx.Commit(context.Background())

	var sizeErr *ddbsdk.ItemSizeError
	require.True(t, errors.As(err, &sizeErr))
	assert.Greater(t, sizeErr.Size, ddbsdk.MaxItemSize)
	assert.Empty(t, m.Calls)
}
