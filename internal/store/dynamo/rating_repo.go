package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/Assamir/kiro-demo-sub001/internal/core"
)

const dateLayout = "2006-01-02"

type RatingFactorItem struct {
	CategoryKey string `dynamodbav:"category_key"` // <category>#<factor_key>
	ValidFrom   string `dynamodbav:"valid_from"`
	ID          string `dynamodbav:"id"`
	Category    string `dynamodbav:"category"`
	FactorKey   string `dynamodbav:"factor_key"`
	Multiplier  string `dynamodbav:"multiplier"`
	ValidTo     string `dynamodbav:"valid_to,omitempty"` // empty = open-ended
}

func ratingKey(category core.InsuranceCategory, key string) string {
	return fmt.Sprintf("%s#%s", category, key)
}

type RatingRepo struct {
	client *dynamodb.Client
}

func NewRatingRepo(client *dynamodb.Client) *RatingRepo {
	return &RatingRepo{client: client}
}

// Lookup queries rows for (category, key) with valid_from <= asOf and keeps
// the first whose valid_to (if any) has not passed. Sort-key order makes the
// pick deterministic without implying precedence.
func (r *RatingRepo) Lookup(ctx context.Context, category core.InsuranceCategory, key string, asOf time.Time) (decimal.Decimal, bool, error) {
	day := core.DateOnly(asOf).Format(dateLayout)

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(TableRatingFactors),
		KeyConditionExpression: aws.String("category_key = :ck AND valid_from <= :day"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ck":  &types.AttributeValueMemberS{Value: ratingKey(category, key)},
			":day": &types.AttributeValueMemberS{Value: day},
		},
	})
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("rating_factors.query: %w", err)
	}

	var items []RatingFactorItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("rating_factors.unmarshal: %w", err)
	}

	for _, item := range items {
		if item.ValidTo != "" && item.ValidTo < day {
			continue
		}
		mult, err := decimal.NewFromString(item.Multiplier)
		if err != nil {
			return decimal.Decimal{}, false, fmt.Errorf("rating_factors.multiplier %q: %w", item.Multiplier, err)
		}
		return mult, true, nil
	}
	return decimal.Decimal{}, false, nil
}

func (r *RatingRepo) Put(ctx context.Context, f core.RatingFactor) error {
	if err := f.Validate(); err != nil {
		return err
	}

	item := RatingFactorItem{
		CategoryKey: ratingKey(f.Category, f.FactorKey),
		ValidFrom:   core.DateOnly(f.ValidFrom).Format(dateLayout),
		ID:          f.ID,
		Category:    string(f.Category),
		FactorKey:   f.FactorKey,
		Multiplier:  f.Multiplier.String(),
	}
	if f.ValidTo != nil {
		item.ValidTo = core.DateOnly(*f.ValidTo).Format(dateLayout)
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("rating_factors.marshal: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(TableRatingFactors),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("rating_factors.putItem: %w", err)
	}
	return nil
}

// Retire closes an open-ended row by setting its valid_to. The row is found
// by scanning on id because the admin surface addresses rows by id, not key.
func (r *RatingRepo) Retire(ctx context.Context, id string, validTo time.Time) error {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(TableRatingFactors),
		FilterExpression: aws.String("id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("rating_factors.scan: %w", err)
	}
	if len(out.Items) == 0 {
		return fmt.Errorf("%w: rating factor %s", core.ErrNotFound, id)
	}

	var item RatingFactorItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return fmt.Errorf("rating_factors.unmarshal: %w", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(TableRatingFactors),
		Key: map[string]types.AttributeValue{
			"category_key": &types.AttributeValueMemberS{Value: item.CategoryKey},
			"valid_from":   &types.AttributeValueMemberS{Value: item.ValidFrom},
		},
		UpdateExpression: aws.String("SET valid_to = :to"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":to": &types.AttributeValueMemberS{Value: core.DateOnly(validTo).Format(dateLayout)},
		},
	})
	if err != nil {
		return fmt.Errorf("rating_factors.updateItem: %w", err)
	}
	return nil
}
