package ddbsdk

import (
	"context"
	"fmt"
	"time"

	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/acksell/dynaplan/dynamodb/ddbiface"
)

func NewBatcher(ddb ddbiface.AWSDynamoClientV2, opts ...BatchOption) *batcher {
	b := &batcher{
		awsddb: ddb,
		logger: zap.NewNop(),
		seen:   make(map[string]bool),
		opts:   batchOpts{backoff: DefaultBackoff},
	}
	for _, opt := range opts {
		opt(&b.opts)
	}
	return b
}

type batcher struct {
	awsddb ddbiface.AWSDynamoClientV2
	logger *zap.Logger
	opts   batchOpts

	pending []pendingWrite
	seen    map[string]bool
}

type pendingWrite struct {
	table string
	req   types.WriteRequest
}

var _ Batcher = &batcher{}

// AddAction adds unconditional Puts and Deletes to the batch.
// Returns error if an action with the same table+primarykey already exists,
// or if the action has a condition expression set.
func (b *batcher) AddAction(actions ...BatchAction) error {
	for _, a := range actions {
		req, err := a.toWriteRequest()
		if err != nil {
			return err
		}
		key, err := a.PrimaryKey()
		if err != nil {
			return err
		}
		id := keyID(a.TableName(), key)
		if b.seen[id] {
			return fmt.Errorf("%w: table %s", ErrDuplicateAction, a.TableName())
		}
		b.seen[id] = true
		b.pending = append(b.pending, pendingWrite{table: a.TableName(), req: req})
	}
	return nil
}

// Exec sends the pending writes in chunks of 25. Each chunk is resubmitted
// with only its unprocessed items for up to MaxBatchRounds rounds. The batch
// is empty afterwards.
//
// Example:
//
//	batch := client.NewBatch()
//	batch.AddAction(putUser, putOrder, deleteOldItem)
//	res, err := batch.Exec(ctx)
//	if err != nil {
//	    return err
//	}
//	if !res.Done() {
//	    // res.Failed holds what DynamoDB never accepted
//	}
func (b *batcher) Exec(ctx context.Context) (BatchWriteResult, error) {
	var res BatchWriteResult
	if b.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.timeout)
		defer cancel()
	}

	pending := b.pending
	b.pending = nil
	b.seen = make(map[string]bool)

	for start := 0; start < len(pending); start += maxBatchWriteReqs {
		end := min(start+maxBatchWriteReqs, len(pending))
		chunk := make(map[string][]types.WriteRequest)
		for _, w := range pending[start:end] {
			chunk[w.table] = append(chunk[w.table], w.req)
		}
		left, err := b.converge(ctx, chunk)
		if err != nil {
			res.SucceededCount += (end - start) - countRequests(left)
			res.addFailed(left)
			rest := make(map[string][]types.WriteRequest)
			for _, w := range pending[end:] {
				rest[w.table] = append(rest[w.table], w.req)
			}
			res.addFailed(rest)
			return res, err
		}
		res.SucceededCount += (end - start) - countRequests(left)
		res.addFailed(left)
	}
	return res, nil
}

// converge resubmits unprocessed writes until none are left or the rounds
// run out. On error it returns the writes not yet known to be applied.
func (b *batcher) converge(ctx context.Context, requestItems map[string][]types.WriteRequest) (map[string][]types.WriteRequest, error) {
	for round := 1; ; round++ {
		out, err := b.awsddb.BatchWriteItem(ctx, &dynamodbv2.BatchWriteItemInput{
			RequestItems: requestItems,
		})
		if err != nil {
			return requestItems, fmt.Errorf("batch write failed: %w", err)
		}
		requestItems = out.UnprocessedItems
		if len(requestItems) == 0 {
			return nil, nil
		}
		if round >= MaxBatchRounds {
			for tableName, reqs := range requestItems {
				b.logger.Warn("batch write left items unprocessed",
					zap.String("table", tableName),
					zap.Int("items", len(reqs)),
					zap.Int("rounds", MaxBatchRounds))
			}
			return requestItems, nil
		}
		if err := wait(ctx, b.opts.backoff(round)); err != nil {
			return requestItems, err
		}
	}
}

func countRequests(m map[string][]types.WriteRequest) int {
	var n int
	for _, reqs := range m {
		n += len(reqs)
	}
	return n
}

// BatchWriteResult contains the result of a batch write.
type BatchWriteResult struct {
	SucceededCount int
	// Failed holds, per table, the writes still unprocessed after MaxBatchRounds.
	Failed map[string][]types.WriteRequest
}

func (r *BatchWriteResult) addFailed(m map[string][]types.WriteRequest) {
	if len(m) == 0 {
		return
	}
	if r.Failed == nil {
		r.Failed = make(map[string][]types.WriteRequest)
	}
	for t, reqs := range m {
		r.Failed[t] = append(r.Failed[t], reqs...)
	}
}

// Done returns true if all items were successfully processed.
func (r BatchWriteResult) Done() bool {
	return len(r.Failed) == 0
}

// Err returns nil if Done(), otherwise returns an error.
func (r BatchWriteResult) Err() error {
	if r.Done() {
		return nil
	}
	return fmt.Errorf("batch incomplete: %d items unprocessed after %d rounds", countRequests(r.Failed), MaxBatchRounds)
}

type BatchOption func(*batchOpts)

// WithTimeout bounds the whole Exec call.
func WithTimeout(d time.Duration) BatchOption {
	return func(o *batchOpts) {
		o.timeout = d
	}
}

// WithCustomBackoff sets the wait between Exec rounds.
func WithCustomBackoff(fn BackoffFunc) BatchOption {
	return func(o *batchOpts) {
		o.backoff = fn
	}
}

type batchOpts struct {
	timeout time.Duration
	backoff BackoffFunc
}
