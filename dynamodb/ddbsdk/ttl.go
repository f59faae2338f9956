package ddbsdk

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ttlDDB encodes an expiry as the epoch seconds DynamoDB TTL expects.
func ttlDDB(expiry time.Time) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(expiry.Unix(), 10)}
}
