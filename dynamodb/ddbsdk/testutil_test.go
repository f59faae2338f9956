package ddbsdk_test

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/acksell/dynaplan/dynamodb/ddbsdk"
	"github.com/acksell/dynaplan/dynamodb/entity"
	"github.com/acksell/dynaplan/dynamodb/internal/ddbtest"
	"github.com/acksell/dynaplan/dynamodb/keys"
	"github.com/acksell/dynaplan/dynamodb/table"
)

var testTable = table.TableDefinition{
	Name: "app",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindS},
	},
	TimeToLiveKey: "ttl",
	Indexes: []table.IndexDefinition{
		{
			Name: "gsi1",
			Kind: table.IndexKindGlobal,
			KeyDefinitions: table.PrimaryKeyDefinition{
				PartitionKey: table.KeyDef{Name: "gsi1pk", Kind: table.KeyKindS},
				SortKey:      table.KeyDef{Name: "gsi1sk", Kind: table.KeyKindS},
			},
		},
	},
}

var userEntity = entity.MustNew("User", testTable,
	entity.WithKeys(keys.MustParse("USER#{id}"), keys.Static{Value: "PROFILE"}),
	entity.WithIndex("gsi1", keys.MustParse("EMAIL#{email}"), keys.Static{Value: "USER"}),
	entity.WithAttribute("id", entity.Attribute{Name: "userId", Type: entity.TypeS}),
)

func s(v string) *types.AttributeValueMemberS { return &types.AttributeValueMemberS{Value: v} }

func rawKey(pk, sk string) ddbsdk.Item {
	return ddbsdk.Item{"pk": s(pk), "sk": s(sk)}
}

func primaryKey(pk, sk string) table.PrimaryKey {
	return table.PrimaryKey{
		Definition: testTable.KeyDefinitions,
		Values:     table.PrimaryKeyValues{PartitionKey: pk, SortKey: sk},
	}
}

func newClient() (*ddbsdk.Client, *ddbtest.Client) {
	m := ddbtest.NewClient()
	return ddbsdk.New(m, ddbsdk.WithoutRetry()), m
}
