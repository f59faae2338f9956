package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/acksell/dynaplan/dynamodb/relational"
)

func newFindCommand(rootOpts *rootOptions) *cobra.Command {
	flags := &readFlags{}
	var with []string
	cmd := &cobra.Command{
		Use:   "find <entity>",
		Short: "Read items of an entity, with relations",
		Long: `Run a read planned from the conditions and print the matching items.
Relations named with --with are loaded too; use dots for nested relations,
e.g. --with posts.author.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd.Context(), rootOpts, flags, with, args[0], cmd.OutOrStdout())
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVar(&with, "with", nil, "relation to load, repeatable; dotted for nesting")
	return cmd
}

func runFind(ctx context.Context, rootOpts *rootOptions, flags *readFlags, with []string, entityName string, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := rootOpts.load()
	if err != nil {
		return err
	}
	defer env.logger.Sync() //nolint:errcheck

	where, err := parseWhere(flags.where)
	if err != nil {
		return err
	}
	values, err := parseValues(flags.values)
	if err != nil {
		return err
	}
	client, err := env.client(ctx)
	if err != nil {
		return err
	}

	engine := relational.New(client, env.registry)
	items, err := engine.FindMany(ctx, entityName, relational.FindOptions{
		Where:          where,
		Values:         values,
		Index:          flags.index,
		Limit:          flags.limit,
		Descending:     flags.descending,
		ConsistentRead: !flags.eventual,
		With:           parseWith(with),
	})
	if err != nil {
		return err
	}
	return writeYAML(w, items)
}
