package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/Assamir/kiro-demo-sub001/internal/core"
)

type PolicyDetailsItem struct {
	GuaranteedSum  string `dynamodbav:"guaranteed_sum,omitempty"`
	CoverageArea   string `dynamodbav:"coverage_area,omitempty"`
	SumInsured     string `dynamodbav:"sum_insured,omitempty"`
	Deductible     string `dynamodbav:"deductible,omitempty"`
	WorkshopType   string `dynamodbav:"workshop_type,omitempty"`
	CoveredPersons int    `dynamodbav:"covered_persons,omitempty"`
}

type PolicyItem struct {
	ID         string            `dynamodbav:"id"`
	Number     string            `dynamodbav:"number"`
	ClientID   string            `dynamodbav:"client_id"`
	VehicleID  string            `dynamodbav:"vehicle_id"`
	Category   string            `dynamodbav:"category"`
	Status     string            `dynamodbav:"status"`
	IssueDate  string            `dynamodbav:"issue_date"`
	StartDate  string            `dynamodbav:"start_date"`
	EndDate    string            `dynamodbav:"end_date"`
	Premium    string            `dynamodbav:"premium"`
	Adjustment string            `dynamodbav:"adjustment"`
	Details    PolicyDetailsItem `dynamodbav:"details"`
}

func (i PolicyItem) ToCore() core.Policy {
	p := core.Policy{
		ID:         i.ID,
		Number:     i.Number,
		ClientID:   i.ClientID,
		VehicleID:  i.VehicleID,
		Category:   core.InsuranceCategory(i.Category),
		Status:     core.PolicyStatus(i.Status),
		IssueDate:  parseDate(i.IssueDate),
		StartDate:  parseDate(i.StartDate),
		EndDate:    parseDate(i.EndDate),
		Premium:    parseDecimal(i.Premium),
		Adjustment: parseDecimal(i.Adjustment),
		Details: core.PolicyDetails{
			CoverageArea:   i.Details.CoverageArea,
			WorkshopType:   i.Details.WorkshopType,
			CoveredPersons: i.Details.CoveredPersons,
		},
	}
	if i.Details.GuaranteedSum != "" {
		v := parseDecimal(i.Details.GuaranteedSum)
		p.Details.GuaranteedSum = &v
	}
	if i.Details.SumInsured != "" {
		v := parseDecimal(i.Details.SumInsured)
		p.Details.SumInsured = &v
	}
	if i.Details.Deductible != "" {
		v := parseDecimal(i.Details.Deductible)
		p.Details.Deductible = &v
	}
	return p
}

func policyItemFromCore(p core.Policy) PolicyItem {
	item := PolicyItem{
		ID:         p.ID,
		Number:     p.Number,
		ClientID:   p.ClientID,
		VehicleID:  p.VehicleID,
		Category:   string(p.Category),
		Status:     string(p.Status),
		IssueDate:  formatDate(p.IssueDate),
		StartDate:  formatDate(p.StartDate),
		EndDate:    formatDate(p.EndDate),
		Premium:    p.Premium.String(),
		Adjustment: p.Adjustment.String(),
		Details: PolicyDetailsItem{
			CoverageArea:   p.Details.CoverageArea,
			WorkshopType:   p.Details.WorkshopType,
			CoveredPersons: p.Details.CoveredPersons,
		},
	}
	if p.Details.GuaranteedSum != nil {
		item.Details.GuaranteedSum = p.Details.GuaranteedSum.String()
	}
	if p.Details.SumInsured != nil {
		item.Details.SumInsured = p.Details.SumInsured.String()
	}
	if p.Details.Deductible != nil {
		item.Details.Deductible = p.Details.Deductible.String()
	}
	return item
}

type PolicyRepo struct {
	client *dynamodb.Client
}

func NewPolicyRepo(client *dynamodb.Client) *PolicyRepo {
	return &PolicyRepo{client: client}
}

// Create claims the policy number with a conditional put, then writes the
// policy item. The claim table is the authoritative uniqueness guard since
// GSIs do not enforce uniqueness.
func (r *PolicyRepo) Create(ctx context.Context, policy core.Policy) error {
	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(TablePolicyNumbers),
		Item: map[string]types.AttributeValue{
			"number":    &types.AttributeValueMemberS{Value: policy.Number},
			"policy_id": &types.AttributeValueMemberS{Value: policy.ID},
		},
		ConditionExpression: aws.String("attribute_not_exists(#n)"),
		ExpressionAttributeNames: map[string]string{
			"#n": "number",
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return core.ErrPolicyNumberTaken
		}
		return fmt.Errorf("policy_numbers.putItem: %w", err)
	}

	item := policyItemFromCore(policy)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("policies.marshal: %w", err)
	}

	cond := expression.AttributeNotExists(expression.Name("id"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("policies.buildExpr: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(TablePolicies),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: policy %s", core.ErrConflict, policy.ID)
		}
		return fmt.Errorf("policies.putItem: %w", err)
	}

	return nil
}

func (r *PolicyRepo) Update(ctx context.Context, policy core.Policy) error {
	item := policyItemFromCore(policy)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("policies.marshal: %w", err)
	}

	cond := expression.AttributeExists(expression.Name("id"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("policies.buildExpr: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(TablePolicies),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return core.ErrPolicyNotFound
		}
		return fmt.Errorf("policies.putItem: %w", err)
	}
	return nil
}

func (r *PolicyRepo) Get(ctx context.Context, id string) (core.Policy, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(TablePolicies),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return core.Policy{}, fmt.Errorf("policies.getItem: %w", err)
	}
	if out.Item == nil {
		return core.Policy{}, core.ErrPolicyNotFound
	}

	var item PolicyItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return core.Policy{}, fmt.Errorf("policies.unmarshal: %w", err)
	}
	return item.ToCore(), nil
}

func (r *PolicyRepo) GetByNumber(ctx context.Context, number string) (core.Policy, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(TablePolicies),
		IndexName:              aws.String(GSIPoliciesNumber),
		KeyConditionExpression: aws.String("#number = :number"),
		ExpressionAttributeNames: map[string]string{
			"#number": "number",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":number": &types.AttributeValueMemberS{Value: number},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return core.Policy{}, fmt.Errorf("policies.query: %w", err)
	}
	if len(out.Items) == 0 {
		return core.Policy{}, core.ErrPolicyNotFound
	}

	var item PolicyItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return core.Policy{}, fmt.Errorf("policies.unmarshal: %w", err)
	}
	return item.ToCore(), nil
}

func (r *PolicyRepo) NumberExists(ctx context.Context, number string) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(TablePolicyNumbers),
		Key: map[string]types.AttributeValue{
			"number": &types.AttributeValueMemberS{Value: number},
		},
	})
	if err != nil {
		return false, fmt.Errorf("policy_numbers.getItem: %w", err)
	}
	return out.Item != nil, nil
}

func (r *PolicyRepo) List(ctx context.Context, filter core.PolicyFilter, limit, offset int) ([]core.Policy, int64, error) {
	// Scan with filters; fine at back-office volumes. The client_id GSI
	// covers the hot path when only the client filter is set.
	var conds []expression.ConditionBuilder

	if filter.ClientID != "" {
		conds = append(conds, expression.Name("client_id").Equal(expression.Value(filter.ClientID)))
	}
	if filter.Status != "" {
		conds = append(conds, expression.Name("status").Equal(expression.Value(string(filter.Status))))
	}
	if filter.Category != "" {
		conds = append(conds, expression.Name("category").Equal(expression.Value(string(filter.Category))))
	}
	if filter.ActiveOn != nil {
		day := formatDate(*filter.ActiveOn)
		conds = append(conds,
			expression.Name("start_date").LessThanEqual(expression.Value(day)),
			expression.Name("end_date").GreaterThanEqual(expression.Value(day)))
	}
	if filter.ExpiringAfter != nil && filter.ExpiringBefore != nil {
		conds = append(conds, expression.Name("end_date").Between(
			expression.Value(formatDate(*filter.ExpiringAfter)),
			expression.Value(formatDate(*filter.ExpiringBefore))))
	}

	scanInput := &dynamodb.ScanInput{TableName: aws.String(TablePolicies)}
	if len(conds) > 0 {
		filterExpr := conds[0]
		for _, c := range conds[1:] {
			filterExpr = filterExpr.And(c)
		}
		expr, err := expression.NewBuilder().WithFilter(filterExpr).Build()
		if err != nil {
			return nil, 0, fmt.Errorf("policies.buildExpr: %w", err)
		}
		scanInput.FilterExpression = expr.Filter()
		scanInput.ExpressionAttributeNames = expr.Names()
		scanInput.ExpressionAttributeValues = expr.Values()
	}

	out, err := r.client.Scan(ctx, scanInput)
	if err != nil {
		return nil, 0, fmt.Errorf("policies.scan: %w", err)
	}

	var items []PolicyItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, 0, fmt.Errorf("policies.unmarshal: %w", err)
	}

	// Scans return items in key order; sort newest first like the mongo repo.
	sort.Slice(items, func(i, j int) bool {
		if items[i].IssueDate != items[j].IssueDate {
			return items[i].IssueDate > items[j].IssueDate
		}
		return items[i].ID < items[j].ID
	})

	total := int64(len(items))
	if offset >= len(items) {
		return []core.Policy{}, total, nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	items = items[offset:end]

	policies := make([]core.Policy, len(items))
	for i, item := range items {
		policies[i] = item.ToCore()
	}
	return policies, total, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}
