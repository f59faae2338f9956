package ddbsdk

import (
	"context"
	"errors"
	"fmt"

	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acksell/dynaplan/dynamodb/ddbiface"
)

func NewTx(ddb ddbiface.AWSDynamoClientV2, opts ...TxOption) *txer {
	tx := &txer{
		awsddb: ddb,
		logger: zap.NewNop(),
		seen:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(&tx.opts)
	}
	return tx
}

type txer struct {
	awsddb ddbiface.AWSDynamoClientV2
	logger *zap.Logger

	opts txOpts

	// errors from AddAction are returned again by Commit so callers may skip
	// checking each AddAction.
	errs []error
	// actions keep insertion order; cancellation reasons are indexed by it.
	actions []Action
	// only one action per item is allowed in a transaction.
	seen map[string]bool
}

var _ Txer = &txer{}

func (tx *txer) addError(err error) error {
	tx.errs = append(tx.errs, err)
	return err
}

// AddAction stages the action for the commit.
func (tx *txer) AddAction(a Action) error {
	if a.TableName() == "" {
		return tx.addError(fmt.Errorf("missing table name for action %T", a))
	}
	key, err := a.PrimaryKey()
	if err != nil {
		return tx.addError(fmt.Errorf("failed to get primary key: %w", err))
	}
	id := keyID(a.TableName(), key)
	if tx.seen[id] {
		return tx.addError(fmt.Errorf("%w: table %q", ErrDuplicateAction, a.TableName()))
	}
	if len(tx.actions) == maxTransactItems {
		return tx.addError(fmt.Errorf("transaction limited to %d actions", maxTransactItems))
	}
	tx.seen[id] = true
	tx.actions = append(tx.actions, a)
	return nil
}

// Commit writes the staged actions. A single Put, Update or Delete is sent
// as the plain operation; anything else goes through TransactWriteItems.
func (tx *txer) Commit(ctx context.Context) error {
	if len(tx.errs) > 0 {
		return errors.Join(tx.errs...)
	}
	switch len(tx.actions) {
	case 0:
		return nil
	case 1:
		if done, err := tx.commitSingle(ctx, tx.actions[0]); done {
			return err
		}
	}

	items := make([]types.TransactWriteItem, 0, len(tx.actions))
	for _, action := range tx.actions {
		twi, err := action.toTransactWriteItem()
		if err != nil {
			return fmt.Errorf("failed to convert action to transact write item: %w", err)
		}
		items = append(items, twi)
	}
	token := tx.opts.idempotencyToken
	if token == "" {
		token = uuid.NewString()
	}
	tx.logger.Debug("committing transaction",
		zap.Int("actions", len(items)),
		zap.String("client_request_token", token))
	_, err := tx.awsddb.TransactWriteItems(ctx, &dynamodbv2.TransactWriteItemsInput{
		TransactItems:      items,
		ClientRequestToken: &token,
	})
	if err != nil {
		return fmt.Errorf("failed to transact write items: %w", asTransactionCanceled(err))
	}
	return nil
}

// commitSingle uses the plain operation to avoid transactional overhead.
// done is false for actions that only exist inside transactions.
func (tx *txer) commitSingle(ctx context.Context, action Action) (done bool, err error) {
	switch a := action.(type) {
	case *Put:
		in, err := a.ToPutItem()
		if err != nil {
			return true, fmt.Errorf("failed to convert put to put item: %w", err)
		}
		if _, err := tx.awsddb.PutItem(ctx, in); err != nil {
			return true, fmt.Errorf("failed to put item: %w", err)
		}
	case *Update:
		in, err := a.ToUpdateItem()
		if err != nil {
			return true, fmt.Errorf("failed to convert update to update item: %w", err)
		}
		if _, err := tx.awsddb.UpdateItem(ctx, in); err != nil {
			return true, fmt.Errorf("failed to update item: %w", err)
		}
	case *Delete:
		in, err := a.ToDeleteItem()
		if err != nil {
			return true, fmt.Errorf("failed to convert delete to delete item: %w", err)
		}
		if _, err := tx.awsddb.DeleteItem(ctx, in); err != nil {
			return true, fmt.Errorf("failed to delete item: %w", err)
		}
	default:
		return false, nil
	}
	return true, nil
}

type TxOption func(*txOpts)

type txOpts struct {
	idempotencyToken string
}

// IdempotencyTokens last for 10 minutes according to AWS documentation.
// If used after that, the request will be treated as new.
// Without this option every commit gets a fresh random token.
// https://docs.aws.amazon.com/amazondynamodb/latest/APIReference/API_TransactWriteItems.html
func WithIdempotencyToken(token string) TxOption {
	return func(opts *txOpts) {
		opts.idempotencyToken = token
	}
}
