package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Client wraps the DynamoDB client.
type Client struct {
	DB *dynamodb.Client
}

// Config holds DynamoDB configuration.
type Config struct {
	Region   string
	Endpoint string // Optional: for local development (e.g., "http://localhost:8000")
	// For local development only - in production use IAM roles
	AccessKeyID     string
	SecretAccessKey string
}

// NewClient creates a new DynamoDB client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	var opts []func(*config.LoadOptions) error

	opts = append(opts, config.WithRegion(cfg.Region))

	// For local development with DynamoDB Local
	if cfg.Endpoint != "" {
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				if service == dynamodb.ServiceID {
					return aws.Endpoint{
						URL:           cfg.Endpoint,
						SigningRegion: cfg.Region,
					}, nil
				}
				return aws.Endpoint{}, &aws.EndpointNotFoundError{}
			})
		opts = append(opts, config.WithEndpointResolverWithOptions(customResolver))

		// Static credentials keep the SDK off the AWS metadata endpoint.
		accessKey := cfg.AccessKeyID
		secretKey := cfg.SecretAccessKey
		if accessKey == "" {
			accessKey = "local"
		}
		if secretKey == "" {
			secretKey = "local"
		}
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Client{DB: dynamodb.NewFromConfig(awsCfg)}, nil
}

// Ping verifies connectivity (used by /readyz).
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.DB.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	return err
}
