package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Assamir/kiro-demo-sub001/internal/core"
)

type VehicleItem struct {
	ID                string `dynamodbav:"id"`
	Registration      string `dynamodbav:"registration"`
	Make              string `dynamodbav:"make"`
	Model             string `dynamodbav:"model"`
	EngineCapacityCCM int    `dynamodbav:"engine_capacity_ccm"`
	EnginePowerKW     int    `dynamodbav:"engine_power_kw"`
	FirstRegistration string `dynamodbav:"first_registration"`
}

func (i VehicleItem) ToCore() core.Vehicle {
	return core.Vehicle{
		ID:                i.ID,
		Registration:      i.Registration,
		Make:              i.Make,
		Model:             i.Model,
		EngineCapacityCCM: i.EngineCapacityCCM,
		EnginePowerKW:     i.EnginePowerKW,
		FirstRegistration: parseDate(i.FirstRegistration),
	}
}

func vehicleItemFromCore(v core.Vehicle) VehicleItem {
	return VehicleItem{
		ID:                v.ID,
		Registration:      v.Registration,
		Make:              v.Make,
		Model:             v.Model,
		EngineCapacityCCM: v.EngineCapacityCCM,
		EnginePowerKW:     v.EnginePowerKW,
		FirstRegistration: formatDate(v.FirstRegistration),
	}
}

type VehicleRepo struct {
	client *dynamodb.Client
}

func NewVehicleRepo(client *dynamodb.Client) *VehicleRepo {
	return &VehicleRepo{client: client}
}

func (r *VehicleRepo) Get(ctx context.Context, id string) (core.Vehicle, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(TableVehicles),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return core.Vehicle{}, fmt.Errorf("vehicles.getItem: %w", err)
	}
	if out.Item == nil {
		return core.Vehicle{}, core.ErrVehicleNotFound
	}

	var item VehicleItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return core.Vehicle{}, fmt.Errorf("vehicles.unmarshal: %w", err)
	}
	return item.ToCore(), nil
}

func (r *VehicleRepo) Put(ctx context.Context, v core.Vehicle) error {
	av, err := attributevalue.MarshalMap(vehicleItemFromCore(v))
	if err != nil {
		return fmt.Errorf("vehicles.marshal: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(TableVehicles),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("vehicles.putItem: %w", err)
	}
	return nil
}
