package ddbsdk

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// EstimateItemSize approximates the stored size of an item the way DynamoDB
// bills it: attribute name bytes plus the value size.
func EstimateItemSize(item Item) int {
	size := 0
	for name, v := range item {
		size += len(name) + attributeSize(v)
	}
	return size
}

func checkItemSize(tableName string, item Item) error {
	if size := EstimateItemSize(item); size > MaxItemSize {
		return &ItemSizeError{Table: tableName, Size: size, Limit: MaxItemSize}
	}
	return nil
}

func attributeSize(av types.AttributeValue) int {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return len(v.Value)
	case *types.AttributeValueMemberN:
		return numberSize(v.Value)
	case *types.AttributeValueMemberB:
		return len(v.Value)
	case *types.AttributeValueMemberBOOL, *types.AttributeValueMemberNULL:
		return 1
	case *types.AttributeValueMemberSS:
		n := 0
		for _, s := range v.Value {
			n += len(s)
		}
		return n
	case *types.AttributeValueMemberNS:
		n := 0
		for _, s := range v.Value {
			n += numberSize(s)
		}
		return n
	case *types.AttributeValueMemberBS:
		n := 0
		for _, b := range v.Value {
			n += len(b)
		}
		return n
	case *types.AttributeValueMemberL:
		n := 3
		for _, e := range v.Value {
			n += 1 + attributeSize(e)
		}
		return n
	case *types.AttributeValueMemberM:
		n := 3
		for k, e := range v.Value {
			n += 1 + len(k) + attributeSize(e)
		}
		return n
	}
	return 0
}

// numberSize is one byte per two significant digits plus one.
func numberSize(n string) int {
	n = strings.TrimLeft(n, "+-")
	if i := strings.IndexAny(n, "eE"); i >= 0 {
		n = n[:i]
	}
	digits := strings.Replace(n, ".", "", 1)
	digits = strings.Trim(digits, "0")
	d := len(digits)
	if d == 0 {
		d = 1
	}
	return (d+1)/2 + 1
}
