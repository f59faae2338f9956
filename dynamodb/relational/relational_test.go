package relational_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/acksell/dynaplan/dynamodb/ddbsdk"
	"github.com/acksell/dynaplan/dynamodb/entity"
	"github.com/acksell/dynaplan/dynamodb/expr"
	"github.com/acksell/dynaplan/dynamodb/internal/ddbtest"
	"github.com/acksell/dynaplan/dynamodb/keys"
	"github.com/acksell/dynaplan/dynamodb/relational"
	"github.com/acksell/dynaplan/dynamodb/table"
)

var (
	appTable = table.TableDefinition{
		Name: "app",
		KeyDefinitions: table.PrimaryKeyDefinition{
			PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
			SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindS},
		},
	}
	orgTable = table.TableDefinition{
		Name: "orgs",
		KeyDefinitions: table.PrimaryKeyDefinition{
			PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		},
	}
)

func newRegistry(t *testing.T) *entity.Registry {
	t.Helper()
	users := entity.MustNew("User", appTable,
		entity.WithKeys(keys.MustParse("USER#{id}"), keys.Static{Value: "PROFILE"}),
		entity.WithRelation(entity.Relation{Name: "posts", Target: "Post", Cardinality: entity.Many,
			Fields: map[string]string{"id": "userId"}}),
		entity.WithRelation(entity.Relation{Name: "settings", Target: "Settings", Cardinality: entity.One,
			Fields: map[string]string{"id": "userId"}}),
		entity.WithRelation(entity.Relation{Name: "org", Target: "Org", Cardinality: entity.One,
			Fields: map[string]string{"orgId": "id"}}),
	)
	posts := entity.MustNew("Post", appTable,
		entity.WithKeys(keys.MustParse("USER#{userId}"), keys.MustParse("POST#{postId}")),
		entity.WithRelation(entity.Relation{Name: "author", Target: "User", Cardinality: entity.One,
			Fields: map[string]string{"userId": "id"}}),
	)
	settings := entity.MustNew("Settings", appTable,
		entity.WithKeys(keys.MustParse("USER#{userId}"), keys.Static{Value: "POST#SETTINGS"}),
	)
	orgs := entity.MustNew("Org", orgTable,
		entity.WithKeys(keys.MustParse("ORG#{id}"), nil),
		entity.WithRelation(entity.Relation{Name: "parent", Target: "Org", Cardinality: entity.One,
			Fields: map[string]string{"parentId": "id"}}),
		entity.WithRelation(entity.Relation{Name: "owner", Target: "User", Cardinality: entity.One,
			Fields: map[string]string{"ownerId": "id"}}),
	)
	r, err := entity.NewRegistry(users, posts, settings, orgs)
	require.NoError(t, err)
	require.NoError(t, r.Validate())
	return r
}

func item(kv ...string) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = &types.AttributeValueMemberS{Value: kv[i+1]}
	}
	return out
}

func partition() []map[string]types.AttributeValue {
	return []map[string]types.AttributeValue{
		item("pk", "USER#1", "sk", "FOLLOWER#9"),
		item("pk", "USER#1", "sk", "POST#1", "userId", "1", "postId", "1", "likes", "3"),
		item("pk", "USER#1", "sk", "POST#2", "userId", "1", "postId", "2", "likes", "7"),
		item("pk", "USER#1", "sk", "PROFILE", "id", "1", "name", "Ann"),
	}
}

func newEngine(t *testing.T, m *ddbtest.Client, opts ...relational.Option) *relational.Engine {
	t.Helper()
	return relational.New(ddbsdk.New(m, ddbsdk.WithoutRetry()), newRegistry(t), opts...)
}

func TestParse_SingleTableCollection(t *testing.T) {
	p := relational.NewItemCollectionParser(newRegistry(t))

	got, err := p.Parse(partition(), "User", map[string]*relational.Include{"posts": nil})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ann", got[0]["name"])

	children, ok := got[0]["posts"].([]relational.Item)
	require.True(t, ok)
	require.Len(t, children, 2)
	assert.Equal(t, "1", children[0]["postId"])
	assert.Equal(t, "2", children[1]["postId"])
}

func TestParse_StaticKeyOutranksPrefix(t *testing.T) {
	p := relational.NewItemCollectionParser(newRegistry(t))

	items := append(partition(), item("pk", "USER#1", "sk", "POST#SETTINGS", "userId", "1", "theme", "dark"))

	got, err := p.Parse(items, "User", map[string]*relational.Include{"posts": nil, "settings": nil})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0]["posts"], 2)
	settings, ok := got[0]["settings"].(relational.Item)
	require.True(t, ok)
	assert.Equal(t, "dark", settings["theme"])
}

func TestParse_UnrequestedEntityIsNotTakenForTarget(t *testing.T) {
	p := relational.NewItemCollectionParser(newRegistry(t))

	items := append(partition(), item("pk", "USER#1", "sk", "POST#SETTINGS", "userId", "1", "theme", "dark"))

	got, err := p.Parse(items, "User", map[string]*relational.Include{"posts": nil})
	require.NoError(t, err)
	require.Len(t, got, 1)
	posts := got[0]["posts"].([]relational.Item)
	require.Len(t, posts, 2)
	for _, post := range posts {
		assert.NotEqual(t, "POST#SETTINGS", post["sk"])
	}
	assert.NotContains(t, got[0], "settings")
}

func TestParse_IncludeWhereAndLimit(t *testing.T) {
	p := relational.NewItemCollectionParser(newRegistry(t))

	got, err := p.Parse(partition(), "User", map[string]*relational.Include{
		"posts": {Where: expr.Eq("likes", "7")},
	})
	require.NoError(t, err)
	require.Len(t, got[0]["posts"], 1)
	assert.Equal(t, "2", got[0]["posts"].([]relational.Item)[0]["postId"])

	got, err = p.Parse(partition(), "User", map[string]*relational.Include{"posts": {Limit: 1}})
	require.NoError(t, err)
	require.Len(t, got[0]["posts"], 1)
	assert.Equal(t, "1", got[0]["posts"].([]relational.Item)[0]["postId"])

	got, err = p.Parse(partition(), "User", map[string]*relational.Include{
		"posts": {Where: expr.Eq("likes", "100")},
	})
	require.NoError(t, err)
	assert.NotContains(t, got[0], "posts")
}

func TestParse_UnknownRelation(t *testing.T) {
	p := relational.NewItemCollectionParser(newRegistry(t))
	_, err := p.Parse(partition(), "User", map[string]*relational.Include{"nope": nil})
	assert.ErrorIs(t, err, relational.ErrUnknownRelation)
}

func TestFindFirst_CollocatedRelationsUseOneQuery(t *testing.T) {
	m := ddbtest.NewClient()
	m.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.FilterExpression == nil && *in.TableName == "app"
	})).Return(&dynamodb.QueryOutput{Items: partition()}, nil)

	user, err := newEngine(t, m).FindFirst(context.Background(), "User", relational.FindOptions{
		Where: expr.Eq("id", "1"),
		With:  map[string]*relational.Include{"posts": nil},
	})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Ann", user["name"])
	assert.Len(t, user["posts"], 2)
	m.AssertNumberOfCalls(t, "Query", 1)
	m.AssertNotCalled(t, "GetItem", mock.Anything, mock.Anything)
}

func TestFindMany_NestedIncludeRefetches(t *testing.T) {
	m := ddbtest.NewClient()
	m.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{Items: partition()}, nil)

	user, err := newEngine(t, m).FindFirst(context.Background(), "User", relational.FindOptions{
		Where: expr.Eq("id", "1"),
		With: map[string]*relational.Include{
			"posts": {With: map[string]*relational.Include{"author": nil}},
		},
	})
	require.NoError(t, err)
	posts := user["posts"].([]relational.Item)
	require.Len(t, posts, 2)
	for _, p := range posts {
		author, ok := p["author"].(relational.Item)
		require.True(t, ok)
		assert.Equal(t, "Ann", author["name"])
	}
	// the user's partition, then the posts' partition for the nested include
	m.AssertNumberOfCalls(t, "Query", 2)
}

func orgItem(id, parent string) map[string]types.AttributeValue {
	it := item("pk", "ORG#"+id, "id", id, "name", "org "+id)
	if parent != "" {
		it["parentId"] = &types.AttributeValueMemberS{Value: parent}
	}
	return it
}

func onOrg(m *ddbtest.Client, id, parent string) {
	m.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		pk, ok := in.Key["pk"].(*types.AttributeValueMemberS)
		return *in.TableName == "orgs" && ok && pk.Value == "ORG#"+id
	})).Return(&dynamodb.GetItemOutput{Item: orgItem(id, parent)}, nil)
}

func TestFindMany_FansOutAcrossPartitions(t *testing.T) {
	m := ddbtest.NewClient()
	m.On("Scan", mock.Anything, mock.Anything).Return(&dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{
		item("pk", "USER#1", "sk", "PROFILE", "id", "1", "orgId", "a"),
		item("pk", "USER#2", "sk", "PROFILE", "id", "2", "orgId", "b"),
		item("pk", "USER#3", "sk", "PROFILE", "id", "3"),
	}}, nil)
	onOrg(m, "a", "")
	onOrg(m, "b", "")

	users, err := newEngine(t, m).FindMany(context.Background(), "User", relational.FindOptions{
		With: map[string]*relational.Include{"org": nil},
	})
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "org a", users[0]["org"].(relational.Item)["name"])
	assert.Equal(t, "org b", users[1]["org"].(relational.Item)["name"])
	assert.Contains(t, users[2], "org")
	assert.Nil(t, users[2]["org"])
	m.AssertNumberOfCalls(t, "GetItem", 2)
}

func TestFindMany_CyclicRelationStops(t *testing.T) {
	m := ddbtest.NewClient()
	onOrg(m, "a", "b")
	onOrg(m, "b", "c")

	org, err := newEngine(t, m).FindFirst(context.Background(), "Org", relational.FindOptions{
		Where: expr.Eq("id", "a"),
		With: map[string]*relational.Include{
			"parent": {With: map[string]*relational.Include{"parent": nil}},
		},
	})
	require.NoError(t, err)
	parent := org["parent"].(relational.Item)
	assert.Equal(t, "b", parent["id"])
	assert.NotContains(t, parent, "parent")
	m.AssertNumberOfCalls(t, "GetItem", 2)
}

func TestFindMany_MaxDepth(t *testing.T) {
	m := ddbtest.NewClient()
	m.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return *in.TableName == "app"
	})).Return(&dynamodb.GetItemOutput{Item: item("pk", "USER#1", "sk", "PROFILE", "id", "1", "orgId", "a")}, nil)
	onOrg(m, "a", "")

	user, err := newEngine(t, m, relational.WithMaxDepth(1)).FindFirst(context.Background(), "User", relational.FindOptions{
		Where: expr.Eq("id", "1"),
		With: map[string]*relational.Include{
			"org": {With: map[string]*relational.Include{"parent": nil}},
		},
	})
	require.NoError(t, err)
	org := user["org"].(relational.Item)
	assert.Equal(t, "a", org["id"])
	assert.NotContains(t, org, "parent")
}

func TestFindFirst_NothingFound(t *testing.T) {
	m := ddbtest.NewClient()
	m.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	got, err := newEngine(t, m).FindFirst(context.Background(), "Org", relational.FindOptions{Where: expr.Eq("id", "zz")})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindMany_Errors(t *testing.T) {
	m := ddbtest.NewClient()
	m.On("Scan", mock.Anything, mock.Anything).Return(&dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{
		item("pk", "USER#1", "sk", "PROFILE", "id", "1"),
	}}, nil)
	engine := newEngine(t, m)

	_, err := engine.FindMany(context.Background(), "User", relational.FindOptions{
		With: map[string]*relational.Include{"nope": nil},
	})
	assert.ErrorIs(t, err, relational.ErrUnknownRelation)

	_, err = engine.FindMany(context.Background(), "Ghost", relational.FindOptions{})
	assert.ErrorIs(t, err, entity.ErrUnknownEntity)

	_, err = engine.FindMany(context.Background(), "User", relational.FindOptions{Index: "missing"})
	assert.ErrorIs(t, err, table.ErrUnknownIndex)
}

func TestFindMany_RelationErrorPropagates(t *testing.T) {
	m := ddbtest.NewClient()
	m.On("Scan", mock.Anything, mock.Anything).Return(&dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{
		item("pk", "USER#1", "sk", "PROFILE", "id", "1", "orgId", "a"),
	}}, nil)
	boom := errors.New("boom")
	m.On("GetItem", mock.Anything, mock.Anything).Return(nil, boom)

	_, err := newEngine(t, m).FindMany(context.Background(), "User", relational.FindOptions{
		With: map[string]*relational.Include{"org": nil},
	})
	assert.ErrorIs(t, err, boom)
}
