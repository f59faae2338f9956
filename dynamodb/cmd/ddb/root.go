package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/acksell/dynaplan/dynamodb/ddbsdk"
	"github.com/acksell/dynaplan/dynamodb/entity"
	"github.com/acksell/dynaplan/dynamodb/retry"
	"github.com/acksell/dynaplan/dynamodb/schema"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	schema   string
	region   string
	profile  string
	endpoint string
	verbose  bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "ddb",
		Short:         "Plan and run reads against a single-table DynamoDB schema",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.schema, "schema", "", "schema file (default: ddb.yaml schema, or the schema_dynamodb.yaml found below the working directory)")
	cmd.PersistentFlags().StringVar(&opts.region, "region", "", "AWS region")
	cmd.PersistentFlags().StringVar(&opts.profile, "profile", "", "AWS shared config profile")
	cmd.PersistentFlags().StringVar(&opts.endpoint, "endpoint", "", "DynamoDB endpoint override, e.g. http://localhost:8000")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging on stderr")

	cmd.AddCommand(newPlanCommand(opts))
	cmd.AddCommand(newFindCommand(opts))

	return cmd
}

// env is what a command needs at run time, built from config and flags.
type env struct {
	cfg      Config
	registry *entity.Registry
	logger   *zap.Logger
}

func (o *rootOptions) load() (*env, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if o.schema != "" {
		cfg.Schema = o.schema
	}
	if o.region != "" {
		cfg.Region = o.region
	}
	if o.profile != "" {
		cfg.Profile = o.profile
	}
	if o.endpoint != "" {
		cfg.Endpoint = o.endpoint
	}
	if cfg.Schema == "" {
		if cfg.Schema, err = discoverSchema(workingDir()); err != nil {
			return nil, err
		}
	}

	s, err := schema.Load(cfg.Schema)
	if err != nil {
		return nil, err
	}
	reg, err := s.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Schema, err)
	}
	logger, err := newLogger(o.verbose)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, registry: reg, logger: logger}, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zc.DisableStacktrace = true
	return zc.Build()
}

// client connects to DynamoDB with the default AWS credential chain.
func (e *env) client(ctx context.Context) (*ddbsdk.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if e.cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(e.cfg.Region))
	}
	if e.cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(e.cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	transport := dynamodb.NewFromConfig(awsCfg, e.cfg.dynamoOptions)
	return ddbsdk.New(transport, ddbsdk.WithRetry(e.cfg.retryConfig()), ddbsdk.WithLogger(e.logger)), nil
}

// dynamoOptions turns off the SDK's own retryer: ddbsdk retries every
// operation, and retry.maxAttempts must stay the bound on attempts.
func (c Config) dynamoOptions(o *dynamodb.Options) {
	o.Retryer = aws.NopRetryer{}
	if c.Endpoint != "" {
		o.BaseEndpoint = aws.String(c.Endpoint)
	}
}

func (c Config) retryConfig() retry.Config {
	rc := retry.DefaultConfig()
	if c.Retry.MaxAttempts > 0 {
		rc.MaxAttempts = c.Retry.MaxAttempts
	}
	if c.Retry.BaseDelay > 0 {
		rc.BaseDelay = c.Retry.BaseDelay
	}
	return rc
}
