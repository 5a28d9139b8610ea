package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Assamir/kiro-demo-sub001/internal/core"
)

type ClientItem struct {
	ID       string `dynamodbav:"id"`
	FullName string `dynamodbav:"full_name"`
	PESEL    string `dynamodbav:"pesel,omitempty"`
	Email    string `dynamodbav:"email,omitempty"`
	Phone    string `dynamodbav:"phone,omitempty"`
}

type ClientRepo struct {
	client *dynamodb.Client
}

func NewClientRepo(client *dynamodb.Client) *ClientRepo {
	return &ClientRepo{client: client}
}

func (r *ClientRepo) Get(ctx context.Context, id string) (core.Client, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(TableClients),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return core.Client{}, fmt.Errorf("clients.getItem: %w", err)
	}
	if out.Item == nil {
		return core.Client{}, core.ErrClientNotFound
	}

	var item ClientItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return core.Client{}, fmt.Errorf("clients.unmarshal: %w", err)
	}
	return core.Client(item), nil
}

func (r *ClientRepo) Put(ctx context.Context, c core.Client) error {
	av, err := attributevalue.MarshalMap(ClientItem(c))
	if err != nil {
		return fmt.Errorf("clients.marshal: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(TableClients),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("clients.putItem: %w", err)
	}
	return nil
}

// SearchByName scans with a contains filter; case folding happens here since
// DynamoDB filters are case-sensitive.
func (r *ClientRepo) SearchByName(ctx context.Context, fragment string, limit int) ([]core.Client, error) {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(TableClients),
	})
	if err != nil {
		return nil, fmt.Errorf("clients.scan: %w", err)
	}

	var items []ClientItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("clients.unmarshal: %w", err)
	}

	needle := strings.ToLower(fragment)
	var clients []core.Client
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.FullName), needle) {
			clients = append(clients, core.Client(item))
		}
	}

	sort.Slice(clients, func(i, j int) bool { return clients[i].FullName < clients[j].FullName })
	if limit > 0 && len(clients) > limit {
		clients = clients[:limit]
	}
	return clients, nil
}
