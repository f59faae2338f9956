package main

import (
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/acksell/dynaplan/dynamodb/expr"
	"github.com/acksell/dynaplan/dynamodb/planner"
)

// readFlags are shared by plan and find.
type readFlags struct {
	where      []string
	values     []string
	index      string
	limit      int
	pageSize   int
	descending bool
	eventual   bool
	projection []string
}

func (f *readFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.where, "where", "w", nil, "condition attr<op>value, repeatable and ANDed (ops: = != < <= > >= ^=)")
	cmd.Flags().StringArrayVar(&f.values, "value", nil, "key value name=value by logical or physical name, repeatable")
	cmd.Flags().StringVar(&f.index, "index", "", "force a secondary index")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of items")
	cmd.Flags().BoolVar(&f.descending, "desc", false, "descending sort key order")
	cmd.Flags().BoolVar(&f.eventual, "eventual", false, "eventually consistent reads")
}

func (f *readFlags) findOptions() ([]planner.FindOption, expr.Expression, error) {
	where, err := parseWhere(f.where)
	if err != nil {
		return nil, nil, err
	}
	values, err := parseValues(f.values)
	if err != nil {
		return nil, nil, err
	}
	opts := []planner.FindOption{
		planner.WithLimit(f.limit),
		planner.WithPageSize(f.pageSize),
		planner.WithConsistentRead(!f.eventual),
		planner.WithValues(values),
		planner.WithProjection(f.projection...),
	}
	if f.descending {
		opts = append(opts, planner.WithDescending())
	}
	if f.index != "" {
		opts = append(opts, planner.WithIndex(f.index))
	}
	return opts, where, nil
}

func newPlanCommand(rootOpts *rootOptions) *cobra.Command {
	flags := &readFlags{}
	cmd := &cobra.Command{
		Use:   "plan <entity>",
		Short: "Show the DynamoDB request a read compiles to",
		Long: `Resolve keys for the entity from the conditions and print the chosen
access path (GetItem, Query or Scan) with its compiled expressions.
Nothing is sent to DynamoDB.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, flags, args[0], cmd.OutOrStdout())
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&flags.pageSize, "page-size", 0, "Limit sent with each Query or Scan page")
	cmd.Flags().StringSliceVar(&flags.projection, "project", nil, "attributes to return")
	return cmd
}

func runPlan(rootOpts *rootOptions, flags *readFlags, entityName string, w io.Writer) error {
	env, err := rootOpts.load()
	if err != nil {
		return err
	}
	defer env.logger.Sync() //nolint:errcheck

	ent, err := env.registry.Get(entityName)
	if err != nil {
		return err
	}
	opts, where, err := flags.findOptions()
	if err != nil {
		return err
	}
	ex, err := planner.New(nil, planner.WithLogger(env.logger)).Explain(ent, where, opts...)
	if err != nil {
		return err
	}
	view, err := newPlanView(ex)
	if err != nil {
		return err
	}
	return writeYAML(w, view)
}

// planView is the printable form of an explanation.
type planView struct {
	Entity         string            `yaml:"entity"`
	Table          string            `yaml:"table"`
	Index          string            `yaml:"index,omitempty"`
	Path           planner.Path      `yaml:"path"`
	Key            map[string]any    `yaml:"key,omitempty"`
	KeyCondition   string            `yaml:"keyCondition,omitempty"`
	Filter         string            `yaml:"filter,omitempty"`
	ClientFilter   []string          `yaml:"clientFilter,omitempty"`
	Projection     string            `yaml:"projection,omitempty"`
	Names          map[string]string `yaml:"names,omitempty"`
	Values         map[string]any    `yaml:"values,omitempty"`
	ConsistentRead bool              `yaml:"consistentRead"`
	Descending     bool              `yaml:"descending,omitempty"`
	Limit          int               `yaml:"limit,omitempty"`
	PageSize       int32             `yaml:"pageSize,omitempty"`
}

func newPlanView(ex planner.Explanation) (planView, error) {
	v := planView{
		Entity:         ex.Entity,
		Table:          ex.Table,
		Index:          ex.Plan.IndexName,
		Path:           ex.Path,
		KeyCondition:   ex.KeyCondition,
		Filter:         ex.Filter,
		Projection:     ex.Projection,
		Names:          ex.Names,
		ConsistentRead: ex.ConsistentRead,
		Descending:     ex.Descending,
		Limit:          ex.Limit,
		PageSize:       ex.PageSize,
	}
	if ex.Residual != nil {
		v.ClientFilter = expr.Attributes(ex.Residual)
	}
	var err error
	if v.Key, err = plainValues(ex.Key); err != nil {
		return planView{}, err
	}
	if v.Values, err = plainValues(ex.Values); err != nil {
		return planView{}, err
	}
	return v, nil
}

func plainValues(m map[string]types.AttributeValue) (map[string]any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := attributevalue.UnmarshalMap(m, &out); err != nil {
		return nil, fmt.Errorf("decode values: %w", err)
	}
	return out, nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return enc.Close()
}
