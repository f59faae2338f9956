package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acksell/dynaplan/dynamodb/expr"
	"github.com/acksell/dynaplan/dynamodb/relational"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		in   string
		want expr.Expression
	}{
		{in: "id=42", want: expr.Eq("id", int64(42))},
		{in: "id='42'", want: expr.Eq("id", "42")},
		{in: "name=Ann", want: expr.Eq("name", "Ann")},
		{in: "active=true", want: expr.Eq("active", true)},
		{in: "status!=done", want: expr.Ne("status", "done")},
		{in: "likes>=10", want: expr.Gte("likes", int64(10))},
		{in: "score<1.5", want: expr.Lt("score", 1.5)},
		{in: "sk^=POST#", want: expr.BeginsWith("sk", "POST#")},
		{in: " email = a=b ", want: expr.Eq("email", "a=b")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseCondition(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCondition_Invalid(t *testing.T) {
	for _, in := range []string{"id", "=42", "flag>true"} {
		_, err := parseCondition(in)
		assert.Error(t, err, in)
	}
}

func TestParseWith(t *testing.T) {
	got := parseWith([]string{"posts.author", "org", "posts.comments"})
	assert.Equal(t, map[string]*relational.Include{
		"org": {},
		"posts": {With: map[string]*relational.Include{
			"author":   {},
			"comments": {},
		}},
	}, got)
	assert.Nil(t, parseWith(nil))
}

func TestParseValues(t *testing.T) {
	got, err := parseValues([]string{"pk=USER#1", "n=3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"pk": "USER#1", "n": int64(3)}, got)

	_, err = parseValues([]string{"nope"})
	assert.Error(t, err)
}

func TestRunPlan(t *testing.T) {
	root := &rootOptions{schema: "../../schema/testdata/schema.yaml"}

	var buf bytes.Buffer
	require.NoError(t, runPlan(root, &readFlags{where: []string{"id=42"}}, "User", &buf))
	assert.Contains(t, buf.String(), "path: GetItem")
	assert.Contains(t, buf.String(), "pk: USER#42")

	buf.Reset()
	require.NoError(t, runPlan(root, &readFlags{where: []string{"authorId=7", "likes>10"}, eventual: true}, "Post", &buf))
	out := buf.String()
	assert.Contains(t, out, "path: Query")
	assert.Contains(t, out, "keyCondition: '#n0 = :v0 AND begins_with(#n1, :v1)'")
	assert.Contains(t, out, "filter: '#n2 > :v2'")
	assert.Contains(t, out, "consistentRead: false")

	buf.Reset()
	assert.Error(t, runPlan(root, &readFlags{index: "missing"}, "User", &buf))
}

func TestConfig_DynamoOptions(t *testing.T) {
	cfg := Config{Endpoint: "http://localhost:8000", Retry: RetryConfig{MaxAttempts: 5, BaseDelay: time.Second}}

	var o dynamodb.Options
	cfg.dynamoOptions(&o)
	assert.Equal(t, aws.NopRetryer{}, o.Retryer, "only ddbsdk retries")
	require.NotNil(t, o.BaseEndpoint)
	assert.Equal(t, "http://localhost:8000", *o.BaseEndpoint)

	rc := cfg.retryConfig()
	assert.Equal(t, 5, rc.MaxAttempts)
	assert.Equal(t, time.Second, rc.BaseDelay)

	o = dynamodb.Options{}
	Config{}.dynamoOptions(&o)
	assert.Nil(t, o.BaseEndpoint)
	assert.Equal(t, 3, Config{}.retryConfig().MaxAttempts)
}
