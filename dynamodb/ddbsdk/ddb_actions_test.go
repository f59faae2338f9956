package ddbsdk_test

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"github.com/acksell/dynaplan/dynamodb/ddbsdk"
)

func TestPrimaryKey(t *testing.T) {
	full := ddbsdk.Item{"pk": s("USER#1"), "sk": s("PROFILE"), "name": s("Alice")}
	numericSK := ddbsdk.Item{"pk": s("USER#1"), "sk": &types.AttributeValueMemberN{Value: "7"}}

	tests := []struct {
		name    string
		action  ddbsdk.Action
		want    ddbsdk.Item
		wantErr bool
	}{
		{name: "put keeps only key attributes", action: ddbsdk.NewPut(testTable, full), want: rawKey("USER#1", "PROFILE")},
		{name: "delete", action: ddbsdk.NewDelete(testTable, rawKey("USER#2", "PROFILE")), want: rawKey("USER#2", "PROFILE")},
		{name: "missing sort key", action: ddbsdk.NewPut(testTable, ddbsdk.Item{"pk": s("USER#1")}), wantErr: true},
		{name: "sort key of the wrong kind", action: ddbsdk.NewPut(testTable, numericSK), wantErr: true},
		{name: "update with wrong partition kind", action: ddbsdk.NewUpdate(testTable, ddbsdk.Item{
			"pk": &types.AttributeValueMemberB{Value: []byte("x")}, "sk": s("PROFILE"),
		}, map[string]any{"name": "Bob"}), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.action.PrimaryKey()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
