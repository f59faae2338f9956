package ddbsdk

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/acksell/dynaplan/dynamodb/entity"
	"github.com/acksell/dynaplan/dynamodb/expr"
	"github.com/acksell/dynaplan/dynamodb/keys"
)

// WriteOption configures an entity write. Conditions use logical attribute
// names.
type WriteOption func(*writeOpts)

type writeOpts struct {
	condition    expr.Expression
	returnValues types.ReturnValue
	expiry       *time.Time
}

func WithCondition(c expr.Expression) WriteOption {
	return func(o *writeOpts) { o.condition = c }
}

// WithReturnValues asks Update to return item attributes: NONE, ALL_OLD,
// ALL_NEW, UPDATED_OLD or UPDATED_NEW.
func WithReturnValues(rv types.ReturnValue) WriteOption {
	return func(o *writeOpts) { o.returnValues = rv }
}

// WithExpiry sets the table's time-to-live attribute.
func WithExpiry(t time.Time) WriteOption {
	return func(o *writeOpts) { o.expiry = &t }
}

func applyWriteOpts(opts []WriteOption) writeOpts {
	var o writeOpts
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func physicalCondition(e *entity.Entity, c expr.Expression) expr.Expression {
	if c == nil {
		return nil
	}
	return expr.Rename(c, e.PhysicalName)
}

// EntityPut builds a Put of logical values, stamping every resolvable key.
func EntityPut(e *entity.Entity, values map[string]any, opts ...WriteOption) (*Put, error) {
	o := applyWriteOpts(opts)
	item, err := e.ToPhysical(values)
	if err != nil {
		return nil, err
	}
	p := NewPut(e.Table(), item).WithCondition(physicalCondition(e, o.condition))
	if o.expiry != nil {
		p.WithTTL(*o.expiry)
	}
	return p, nil
}

// EntityUpdate builds an Update of the item identified by key. Index keys
// whose attributes change are restamped so the item stays in its indexes.
func EntityUpdate(e *entity.Entity, key map[string]any, changes map[string]any, opts ...WriteOption) (*Update, error) {
	o := applyWriteOpts(opts)
	pk, err := e.PrimaryKey(key)
	if err != nil {
		return nil, err
	}
	state := expr.NewUpdateState(changes)
	restamp, err := indexKeyChanges(e, key, state)
	if err != nil {
		return nil, err
	}
	state = state.Rename(e.PhysicalName)
	for name, av := range restamp {
		state.Set[name] = expr.SetEntry{Value: av}
	}
	u := &Update{
		Table:        e.Table(),
		Key:          pk,
		Changes:      state,
		Condition:    physicalCondition(e, o.condition),
		ReturnValues: o.returnValues,
	}
	if o.expiry != nil {
		u.WithTTL(*o.expiry)
	}
	return u, nil
}

func indexKeyChanges(e *entity.Entity, key map[string]any, state expr.UpdateState) (Item, error) {
	if len(state.Set) == 0 {
		return nil, nil
	}
	values := make(map[string]any, len(key)+len(state.Set))
	for k, v := range key {
		values[k] = v
	}
	changed := make(map[string]bool, len(state.Set))
	for attr, entry := range state.Set {
		if entry.Func != "" {
			continue
		}
		values[attr] = entry.Value
		changed[attr] = true
	}
	resolved, err := e.KeyAttributes(values)
	if err != nil {
		return nil, err
	}
	out := make(Item)
	for _, idx := range e.Table().Indexes {
		ks, ok := e.IndexKeys(idx.Name)
		if !ok || !touches(ks, changed) {
			continue
		}
		for _, name := range idx.KeyDefinitions.Names() {
			if av, ok := resolved[name]; ok && !isTableKey(e, name) {
				out[name] = av
			}
		}
	}
	return out, nil
}

func touches(ks entity.KeyStrategies, changed map[string]bool) bool {
	for _, s := range []keys.Strategy{ks.PK, ks.SK} {
		if s == nil {
			continue
		}
		for _, a := range s.Attributes() {
			if changed[a] {
				return true
			}
		}
	}
	return false
}

func isTableKey(e *entity.Entity, name string) bool {
	for _, n := range e.Table().KeyDefinitions.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func EntityDelete(e *entity.Entity, key map[string]any, opts ...WriteOption) (*Delete, error) {
	o := applyWriteOpts(opts)
	pk, err := e.PrimaryKey(key)
	if err != nil {
		return nil, err
	}
	return NewDelete(e.Table(), pk).WithCondition(physicalCondition(e, o.condition)), nil
}

// Put writes an entity item.
func (c *Client) Put(ctx context.Context, e *entity.Entity, values map[string]any, opts ...WriteOption) error {
	p, err := EntityPut(e, values, opts...)
	if err != nil {
		return err
	}
	in, err := p.ToPutItem()
	if err != nil {
		return fmt.Errorf("failed to convert put to put item: %w", err)
	}
	if _, err := c.awsddb.PutItem(ctx, in); err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// Update applies changes to the entity item identified by key and returns
// the attributes selected by WithReturnValues, decoded to logical names.
func (c *Client) Update(ctx context.Context, e *entity.Entity, key map[string]any, changes map[string]any, opts ...WriteOption) (map[string]any, error) {
	u, err := EntityUpdate(e, key, changes, opts...)
	if err != nil {
		return nil, err
	}
	in, err := u.ToUpdateItem()
	if err != nil {
		return nil, fmt.Errorf("failed to convert update to update item: %w", err)
	}
	out, err := c.awsddb.UpdateItem(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	if len(out.Attributes) == 0 {
		return nil, nil
	}
	return e.ToLogical(out.Attributes)
}

// Delete removes the entity item identified by key.
func (c *Client) Delete(ctx context.Context, e *entity.Entity, key map[string]any, opts ...WriteOption) error {
	d, err := EntityDelete(e, key, opts...)
	if err != nil {
		return err
	}
	in, err := d.ToDeleteItem()
	if err != nil {
		return fmt.Errorf("failed to convert delete to delete item: %w", err)
	}
	if _, err := c.awsddb.DeleteItem(ctx, in); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// QueryEntity starts a query over the items of e that share a partition.
// values must resolve the partition key; the sort key narrows to the exact
// item when it resolves and to the determined prefix otherwise.
func (c *Client) QueryEntity(e *entity.Entity, values map[string]any) (*Querier, error) {
	ks := e.Keys()
	pk, ok := ks.PK.Resolve(values)
	if !ok {
		return nil, fmt.Errorf("entity %q: partition key %q needs %v", e.Name(), ks.PK.String(), ks.PK.Attributes())
	}
	var sk SortKeyStrategy
	if e.Table().HasSortKey() && ks.SK != nil {
		sk = Matching(ks.SK, values)
	}
	return c.NewQuery(e.Table(), NewKeyCondition(pk, sk)), nil
}
