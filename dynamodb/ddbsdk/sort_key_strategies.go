package ddbsdk

import (
	expression2 "github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"golang.org/x/exp/constraints"

	"github.com/acksell/dynaplan/dynamodb/keys"
)

// SortKeyStrategy narrows a partition query on the sort key named skName.
type SortKeyStrategy func(skName string) expression2.KeyConditionBuilder

// Equals selects the item whose sort key is v.
func Equals[T constraints.Ordered](v T) SortKeyStrategy {
	return compare(v, expression2.KeyEqual)
}

// BeginsWith selects items whose sort key starts with prefix.
func BeginsWith(prefix string) SortKeyStrategy {
	return func(skName string) expression2.KeyConditionBuilder {
		return expression2.KeyBeginsWith(expression2.Key(skName), prefix)
	}
}

// Between selects sort keys in [low, high].
func Between[T constraints.Ordered](low, high T) SortKeyStrategy {
	return func(skName string) expression2.KeyConditionBuilder {
		return expression2.KeyBetween(expression2.Key(skName), expression2.Value(low), expression2.Value(high))
	}
}

func GreaterThan[T constraints.Ordered](v T) SortKeyStrategy {
	return compare(v, expression2.KeyGreaterThan)
}

func GreaterThanOrEqual[T constraints.Ordered](v T) SortKeyStrategy {
	return compare(v, expression2.KeyGreaterThanEqual)
}

func LessThan[T constraints.Ordered](v T) SortKeyStrategy {
	return compare(v, expression2.KeyLessThan)
}

func LessThanOrEqual[T constraints.Ordered](v T) SortKeyStrategy {
	return compare(v, expression2.KeyLessThanEqual)
}

type keyComparison func(expression2.KeyBuilder, expression2.ValueBuilder) expression2.KeyConditionBuilder

func compare[T constraints.Ordered](v T, cmp keyComparison) SortKeyStrategy {
	return func(skName string) expression2.KeyConditionBuilder {
		return cmp(expression2.Key(skName), expression2.Value(v))
	}
}

// Matching selects the items an entity's sort key strategy can produce
// from values: the exact key when it resolves, otherwise every key
// sharing the part values determine.
//
//	// all posts of user 1
//	ddbsdk.NewKeyCondition("USER#1", ddbsdk.Matching(posts.Keys().SK, nil))
func Matching(s keys.Strategy, values map[string]any) SortKeyStrategy {
	if v, ok := s.Resolve(values); ok {
		return Equals(v)
	}
	return BeginsWith(keys.PartialPrefix(s, values))
}

func ptr[T any](v T) *T {
	return &v
}
