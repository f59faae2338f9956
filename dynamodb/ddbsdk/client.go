// Package ddbsdk is the read/write client used by the planner and the
// relational engine: single item writes, batches that converge on
// unprocessed items, transactions and partition queries.
package ddbsdk

import (
	"go.uber.org/zap"

	"github.com/acksell/dynaplan/dynamodb/ddbiface"
	"github.com/acksell/dynaplan/dynamodb/retry"
	"github.com/acksell/dynaplan/dynamodb/table"
)

type Client struct {
	awsddb ddbiface.AWSDynamoClientV2
	logger *zap.Logger
}

type ClientOption func(*clientOpts)

type clientOpts struct {
	retry   retry.Config
	noRetry bool
	logger  *zap.Logger
}

// WithRetry overrides the retry policy applied to every operation.
func WithRetry(cfg retry.Config) ClientOption {
	return func(o *clientOpts) { o.retry = cfg }
}

// WithoutRetry sends every operation once.
func WithoutRetry() ClientOption {
	return func(o *clientOpts) { o.noRetry = true }
}

func WithLogger(l *zap.Logger) ClientOption {
	return func(o *clientOpts) {
		if l != nil {
			o.logger = l
		}
	}
}

// New wraps a transport, usually a *dynamodb.Client, with the retry policy
// (retry.DefaultConfig unless configured).
func New(transport ddbiface.AWSDynamoClientV2, opts ...ClientOption) *Client {
	o := clientOpts{retry: retry.DefaultConfig(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Client{awsddb: transport, logger: o.logger}
	if !o.noRetry {
		c.awsddb = retry.Wrap(transport, retry.New(o.retry, retry.WithLogger(o.logger)))
	}
	return c
}

// Transport returns the retrying transport shared by everything the client builds.
func (c *Client) Transport() ddbiface.AWSDynamoClientV2 { return c.awsddb }

func (c *Client) Logger() *zap.Logger { return c.logger }

// NewTx creates a new transaction. Add actions and commit the transaction.
func (c *Client) NewTx(opts ...TxOption) Txer {
	tx := NewTx(c.awsddb, opts...)
	tx.logger = c.logger
	return tx
}

// NewBatch creates a new write-batch. Add actions and execute the batch writes.
func (c *Client) NewBatch(opts ...BatchOption) Batcher {
	b := NewBatcher(c.awsddb, opts...)
	b.logger = c.logger
	return b
}

// NewQuery creates a new querier.
//
// Configure with method chaining: WithDescending(), WithPageSize(n), WithProjection(...), WithFilter(...), WithEventuallyConsistentReads().
func (c *Client) NewQuery(t table.TableDefinition, kc KeyCondition) *Querier {
	return NewQuerier(c.awsddb, t, kc)
}

// NewLookup creates a new getter for direct lookups by primary key.
//
// Options: [WithEventualConsistency]
func (c *Client) NewLookup(opts ...GetOption) Getter {
	g := NewGetter(c.awsddb, opts...)
	g.logger = c.logger
	return g
}
