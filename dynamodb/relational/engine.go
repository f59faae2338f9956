// Package relational reads an entity together with its related entities.
//
// When the root lives in a single partition the engine reads the whole
// item collection with one Query and lets ItemCollectionParser sort the
// items into root and related entities. Relations the partition cannot
// answer are fetched per root item, concurrently across items.
package relational

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/acksell/dynaplan/dynamodb/ddbsdk"
	"github.com/acksell/dynaplan/dynamodb/entity"
	"github.com/acksell/dynaplan/dynamodb/expr"
	"github.com/acksell/dynaplan/dynamodb/keys"
	"github.com/acksell/dynaplan/dynamodb/planner"
)

// DefaultMaxDepth bounds how many relation levels one call follows.
const DefaultMaxDepth = 4

// ErrUnknownRelation is returned when a requested relation is not declared.
var ErrUnknownRelation = errors.New("unknown relation")

// Item holds logical attribute values. Relations are stored under their
// relation name: an Item for "one", a []Item for "many".
type Item = map[string]any

// FindOptions selects root items and the relations to load with them.
type FindOptions struct {
	Where expr.Expression
	// Values are key values by logical or physical name.
	Values map[string]any
	// Index forces a secondary index for the root read.
	Index      string
	Limit      int
	Descending bool
	// ConsistentRead requests strongly consistent reads where DynamoDB allows them.
	ConsistentRead bool
	With           map[string]*Include
}

// Include narrows one relation. A nil *Include loads the relation unfiltered.
type Include struct {
	Where expr.Expression
	Limit int
	With  map[string]*Include
}

func (i *Include) orEmpty() *Include {
	if i == nil {
		return &Include{}
	}
	return i
}

type Engine struct {
	client   *ddbsdk.Client
	registry *entity.Registry
	planner  *planner.Planner
	parser   *ItemCollectionParser
	logger   *zap.Logger
	maxDepth int
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMaxDepth bounds relation recursion. Relations below the bound are
// left unset.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// New creates an engine reading through client. The client's logger is
// used unless WithLogger overrides it.
func New(client *ddbsdk.Client, registry *entity.Registry, opts ...Option) *Engine {
	e := &Engine{
		client:   client,
		registry: registry,
		parser:   NewItemCollectionParser(registry),
		logger:   client.Logger(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.planner = planner.New(client.Transport(), planner.WithLogger(e.logger))
	return e
}

// FindMany returns the items of entityName matching o, with the requested
// relations attached.
func (e *Engine) FindMany(ctx context.Context, entityName string, o FindOptions) ([]Item, error) {
	ent, err := e.registry.Get(entityName)
	if err != nil {
		return nil, err
	}
	return e.findMany(ctx, ent, o, trail{})
}

// FindFirst returns the first matching item, or nil when there is none.
func (e *Engine) FindFirst(ctx context.Context, entityName string, o FindOptions) (Item, error) {
	o.Limit = 1
	items, err := e.FindMany(ctx, entityName, o)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

// trail is the relation path of the current branch.
type trail struct {
	visited []string
}

func (t trail) depth() int { return len(t.visited) }

func (t trail) has(step string) bool {
	for _, v := range t.visited {
		if v == step {
			return true
		}
	}
	return false
}

func (t trail) push(step string) trail {
	visited := make([]string, len(t.visited), len(t.visited)+1)
	copy(visited, t.visited)
	return trail{visited: append(visited, step)}
}

func (e *Engine) findMany(ctx context.Context, ent *entity.Entity, o FindOptions, tr trail) ([]Item, error) {
	plan, err := planner.Resolve(ent, o.Where, o.Values, o.Index)
	if err != nil {
		return nil, err
	}

	var rows []Item
	if e.collocated(ent, plan, o.With) {
		rows, err = e.readPartition(ctx, ent, plan, o)
	} else {
		rows, err = e.planner.Find(ctx, ent, o.Where, findOptions(o)...)
	}
	if err != nil {
		return nil, err
	}

	if err := e.populate(ctx, ent, rows, o, tr); err != nil {
		return nil, err
	}
	return rows, nil
}

// collocated reports whether the root's partition is known and at least
// one requested relation could live in it. Without a sort key a partition
// holds a single item.
func (e *Engine) collocated(ent *entity.Entity, plan planner.AccessPlan, with map[string]*Include) bool {
	if len(with) == 0 || !plan.HasPartitionKey || plan.IndexName != "" || !ent.Table().HasSortKey() {
		return false
	}
	for name := range with {
		rel, ok := ent.Relation(name)
		if !ok {
			continue
		}
		target, err := e.registry.Get(rel.Target)
		if err == nil && target.Table().Name == ent.Table().Name {
			return true
		}
	}
	return false
}

// readPartition queries the root's whole partition without a filter, parses
// the collection, then applies the root condition and limit on the client.
func (e *Engine) readPartition(ctx context.Context, ent *entity.Entity, plan planner.AccessPlan, o FindOptions) ([]Item, error) {
	t := ent.Table()
	def := t.KeyDefinitions

	q := e.client.NewQuery(t, ddbsdk.NewKeyCondition(plan.Keys[def.PartitionKey.Name], nil)).
		WithPageSize(partitionPageSize)
	if o.Descending {
		q = q.WithDescending()
	}
	if !o.ConsistentRead {
		q = q.WithEventuallyConsistentReads()
	}
	res, err := q.QueryAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read partition of %q: %w", ent.Name(), err)
	}
	e.logger.Debug("read item collection",
		zap.String("entity", ent.Name()),
		zap.Int("items", len(res.Items)))

	parsed, err := e.parser.Parse(res.Items, ent.Name(), o.With)
	if err != nil {
		return nil, err
	}

	// The partition key is guaranteed by the query; everything else is not.
	byPartition := make(map[string]bool)
	for _, a := range ent.Keys().PK.Attributes() {
		byPartition[a] = true
	}
	residual := expr.Without(o.Where, byPartition)
	wantSK, checkSK := plan.Keys[def.SortKey.Name]
	checkSK = checkSK && plan.HasSortKey && def.HasSortKey()

	rows := make([]Item, 0, len(parsed))
	for _, row := range parsed {
		if checkSK && !sameKey(row[ent.LogicalName(def.SortKey.Name)], wantSK) {
			continue
		}
		if !expr.Match(residual, row) {
			continue
		}
		rows = append(rows, row)
		if o.Limit > 0 && len(rows) == o.Limit {
			break
		}
	}
	return rows, nil
}

const partitionPageSize = 100

func sameKey(a, b any) bool {
	as, aok := keys.ToString(a)
	bs, bok := keys.ToString(b)
	return aok && bok && as == bs
}

func findOptions(o FindOptions) []planner.FindOption {
	opts := []planner.FindOption{
		planner.WithLimit(o.Limit),
		planner.WithConsistentRead(o.ConsistentRead),
		planner.WithValues(o.Values),
	}
	if o.Descending {
		opts = append(opts, planner.WithDescending())
	}
	if o.Index != "" {
		opts = append(opts, planner.WithIndex(o.Index))
	}
	return opts
}

// populate loads the requested relations of rows. Relation names are
// handled one after another; rows of one relation are fetched concurrently.
func (e *Engine) populate(ctx context.Context, ent *entity.Entity, rows []Item, o FindOptions, tr trail) error {
	if len(o.With) == 0 || len(rows) == 0 {
		return nil
	}
	if tr.depth() >= e.maxDepth {
		e.logger.Debug("relation depth reached",
			zap.String("entity", ent.Name()),
			zap.Strings("path", tr.visited))
		return nil
	}

	names := make([]string, 0, len(o.With))
	for n := range o.With {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		rel, ok := ent.Relation(name)
		if !ok {
			return fmt.Errorf("entity %q: %w %q", ent.Name(), ErrUnknownRelation, name)
		}
		step := ent.Name() + "." + name
		if tr.has(step) {
			e.logger.Debug("skipping cyclic relation",
				zap.String("relation", step),
				zap.String("path", strings.Join(tr.visited, " > ")))
			continue
		}
		target, err := e.registry.Get(rel.Target)
		if err != nil {
			return fmt.Errorf("entity %q relation %q: %w", ent.Name(), name, err)
		}
		if err := e.fetchRelation(ctx, rows, rel, target, o.With[name].orEmpty(), o.ConsistentRead, tr.push(step)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) fetchRelation(ctx context.Context, rows []Item, rel entity.Relation, target *entity.Entity, inc *Include, consistent bool, tr trail) error {
	results := make([]any, len(rows))
	fetch := make([]bool, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	for i, row := range rows {
		if v, ok := row[rel.Name]; ok && v != nil && len(inc.With) == 0 {
			continue
		}
		fields, ok := relationValues(row, rel)
		if !ok {
			continue
		}
		fetch[i] = true
		child := FindOptions{
			Where:          expr.And(expr.Where(fields), inc.Where),
			Limit:          inc.Limit,
			ConsistentRead: consistent,
			With:           inc.With,
		}
		if rel.Cardinality == entity.One {
			child.Limit = 1
		}
		i := i
		g.Go(func() error {
			found, err := e.findMany(gctx, target, child, tr)
			if err != nil {
				return fmt.Errorf("relation %q: %w", rel.Name, err)
			}
			if rel.Cardinality == entity.One {
				if len(found) > 0 {
					results[i] = found[0]
				}
				return nil
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, row := range rows {
		if !fetch[i] {
			if _, ok := row[rel.Name]; !ok {
				row[rel.Name] = emptyRelation(rel)
			}
			continue
		}
		if results[i] == nil {
			row[rel.Name] = emptyRelation(rel)
			continue
		}
		row[rel.Name] = results[i]
	}
	return nil
}

// relationValues maps the parent's field values onto the target's
// attributes. It fails when the parent lacks any mapped field.
func relationValues(row Item, rel entity.Relation) (map[string]any, bool) {
	out := make(map[string]any, len(rel.Fields))
	for from, to := range rel.Fields {
		v, ok := row[from]
		if !ok || v == nil {
			return nil, false
		}
		out[to] = v
	}
	return out, true
}

func emptyRelation(rel entity.Relation) any {
	if rel.Cardinality == entity.One {
		return nil
	}
	return []Item{}
}
