package ddbsdk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrDuplicateAction is returned when a transaction or batch touches the
// same item twice.
var ErrDuplicateAction = errors.New("ddbsdk: duplicate action for item")

func errConditionalBatch(tableName string) error {
	return fmt.Errorf("table %q: conditional writes cannot be batched", tableName)
}

func errMissingCondition(tableName string) error {
	return fmt.Errorf("table %q: condition check needs a condition", tableName)
}

// MaxItemSize is DynamoDB's item size limit in bytes.
const MaxItemSize = 400 * 1024

// ItemSizeError is returned before any request is sent when an item is
// estimated to exceed MaxItemSize.
type ItemSizeError struct {
	Table string
	Size  int
	Limit int
}

func (e *ItemSizeError) Error() string {
	return fmt.Sprintf("item for table %q is %d bytes, exceeding the %d byte limit", e.Table, e.Size, e.Limit)
}

// CancellationReason explains why one action of a cancelled transaction failed.
// Index is the position of the action in the commit order.
type CancellationReason struct {
	Index   int
	Code    string
	Message string
	Item    Item
}

// TransactionCanceledError is returned by Commit when DynamoDB cancels the
// transaction. Reasons only lists the actions that failed.
type TransactionCanceledError struct {
	Reasons []CancellationReason
	err     error
}

func (e *TransactionCanceledError) Error() string {
	parts := make([]string, len(e.Reasons))
	for i, r := range e.Reasons {
		parts[i] = fmt.Sprintf("action %d: %s", r.Index, r.Code)
		if r.Message != "" {
			parts[i] += " (" + r.Message + ")"
		}
	}
	return "transaction cancelled: " + strings.Join(parts, ", ")
}

func (e *TransactionCanceledError) Unwrap() error { return e.err }

// asTransactionCanceled maps the SDK exception onto TransactionCanceledError.
// Any other error is returned unchanged.
func asTransactionCanceled(err error) error {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return err
	}
	out := &TransactionCanceledError{err: err}
	for i, r := range tce.CancellationReasons {
		code := deref(r.Code)
		if code == "" || code == "None" {
			continue
		}
		out.Reasons = append(out.Reasons, CancellationReason{
			Index:   i,
			Code:    code,
			Message: deref(r.Message),
			Item:    r.Item,
		})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
