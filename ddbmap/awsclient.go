package ddbmap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// ClientConfig configures the real DynamoDB client. All fields are
// optional; the default AWS credential chain applies.
type ClientConfig struct {
	// Region overrides the region from the environment/shared config.
	Region string
	// Endpoint points the client at a non-default endpoint, e.g. a
	// DynamoDB Local instance.
	Endpoint string
	// RoleARN, when set, assumes the role via STS before talking to
	// DynamoDB.
	RoleARN string
}

// NewClient builds a *dynamodb.Client from the standard AWS config
// chain, optionally assuming a role.
func NewClient(ctx context.Context, cfg ClientConfig) (*dynamodb.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.RoleARN != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(awsCfg), cfg.RoleARN)
		awsCfg.Credentials = aws.NewCredentialsCache(provider)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}
