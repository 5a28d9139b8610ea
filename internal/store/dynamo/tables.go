package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Table names
const (
	TableRatingFactors = "insurance_rating_factors"
	TablePolicies      = "insurance_policies"
	TablePolicyNumbers = "insurance_policy_numbers" // number-claim items for uniqueness
	TableClients       = "insurance_clients"
	TableVehicles      = "insurance_vehicles"
)

// GSI names
const (
	GSIPoliciesNumber   = "number-index"
	GSIPoliciesClientID = "client_id-index"
)

// EnsureTables creates all required tables if they don't exist.
func EnsureTables(ctx context.Context, client *dynamodb.Client, log *slog.Logger) error {
	tables := []struct {
		name   string
		create func(context.Context, *dynamodb.Client) error
	}{
		{TableRatingFactors, createRatingFactorsTable},
		{TablePolicies, createPoliciesTable},
		{TablePolicyNumbers, createPolicyNumbersTable},
		{TableClients, createClientsTable},
		{TableVehicles, createVehiclesTable},
	}

	for _, t := range tables {
		exists, err := tableExists(ctx, client, t.name)
		if err != nil {
			return fmt.Errorf("check table %s: %w", t.name, err)
		}
		if exists {
			log.Info("table exists", "table", t.name)
			continue
		}

		log.Info("creating table", "table", t.name)
		if err := t.create(ctx, client); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
		log.Info("table created", "table", t.name)
	}

	return nil
}

func tableExists(ctx context.Context, client *dynamodb.Client, name string) (bool, error) {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(name),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Rating rows are keyed by category#factor_key with valid_from as the sort
// key, so a temporal lookup is a single Query.
func createRatingFactorsTable(ctx context.Context, client *dynamodb.Client) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(TableRatingFactors),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("category_key"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("valid_from"), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("category_key"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("valid_from"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}

func createPoliciesTable(ctx context.Context, client *dynamodb.Client) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(TablePolicies),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("number"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("client_id"), AttributeType: types.ScalarAttributeTypeS},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(GSIPoliciesNumber),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("number"), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
			{
				IndexName: aws.String(GSIPoliciesClientID),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("client_id"), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}

// Policy numbers are claimed with a conditional put on this table; GSIs do
// not enforce uniqueness, the claim item does.
func createPolicyNumbersTable(ctx context.Context, client *dynamodb.Client) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(TablePolicyNumbers),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("number"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("number"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}

func createClientsTable(ctx context.Context, client *dynamodb.Client) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(TableClients),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}

func createVehiclesTable(ctx context.Context, client *dynamodb.Client) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(TableVehicles),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}
