package planner

import "go.uber.org/zap"

type Option func(*Planner)

func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// FindOption configures one Find or Explain call.
type FindOption func(*findOpts)

type findOpts struct {
	limit      int
	pageSize   int32
	consistent bool
	descending bool
	index      string
	projection []string
	values     map[string]any
}

func defaultFindOpts() findOpts {
	return findOpts{consistent: true}
}

// WithLimit caps the number of returned items. Zero means no limit.
func WithLimit(n int) FindOption {
	return func(o *findOpts) { o.limit = n }
}

// WithPageSize sets the Limit sent with each Query or Scan page.
func WithPageSize(n int) FindOption {
	return func(o *findOpts) { o.pageSize = int32(n) }
}

// WithConsistentRead selects strong (the default) or eventual consistency.
// Reads on an index are always eventually consistent.
func WithConsistentRead(strong bool) FindOption {
	return func(o *findOpts) { o.consistent = strong }
}

// WithDescending reverses sort key order.
func WithDescending() FindOption {
	return func(o *findOpts) { o.descending = true }
}

// WithIndex forces the named secondary index.
func WithIndex(name string) FindOption {
	return func(o *findOpts) { o.index = name }
}

// WithProjection returns only the given logical attributes.
func WithProjection(attrs ...string) FindOption {
	return func(o *findOpts) { o.projection = attrs }
}

// WithValues provides key values, by logical or physical name, in addition
// to the equalities of the where condition.
func WithValues(values map[string]any) FindOption {
	return func(o *findOpts) { o.values = values }
}
