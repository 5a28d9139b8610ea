package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Assamir/kiro-demo-sub001/internal/platform/ids"
)

// maxNumberAttempts bounds the generate-and-check loop for policy numbers.
// Collisions on an 8-hex-char suffix are astronomically unlikely, but the
// uniqueness check is mandatory, not optional.
const maxNumberAttempts = 5

const policyNumberSuffixLen = 8

type CreatePolicyInput struct {
	ClientID   string
	VehicleID  string
	Category   InsuranceCategory
	StartDate  time.Time
	EndDate    time.Time
	Adjustment decimal.Decimal
	Details    PolicyDetails
}

type UpdatePolicyInput struct {
	StartDate  time.Time
	EndDate    time.Time
	Adjustment decimal.Decimal
	Details    PolicyDetails
}

// PolicyService owns the policy lifecycle: creation, numbering, update
// constraints and cancellation, with premiums computed by the rating engine.
type PolicyService interface {
	Create(ctx context.Context, in CreatePolicyInput) (Policy, error)
	Update(ctx context.Context, id string, in UpdatePolicyInput) (Policy, error)
	Cancel(ctx context.Context, id string) (Policy, error)

	Get(ctx context.Context, id string) (Policy, error)
	GetByNumber(ctx context.Context, number string) (Policy, error)
	List(ctx context.Context, filter PolicyFilter, limit, offset int) ([]Policy, int64, error)
	SearchByClientName(ctx context.Context, fragment string, limit int) ([]Policy, error)
	ListCurrentlyActive(ctx context.Context, limit, offset int) ([]Policy, int64, error)
	ListExpiringWithin(ctx context.Context, days int, limit, offset int) ([]Policy, int64, error)

	// PreviewPremium prices a category/vehicle pair without touching any
	// policy record, for quote screens.
	PreviewPremium(ctx context.Context, category InsuranceCategory, vehicleID string, effectiveDate time.Time) (PremiumBreakdown, error)
}

type policyService struct {
	policies PolicyRepo
	clients  ClientRepo
	vehicles VehicleRepo
	engine   RatingEngine
	clock    func() time.Time
}

func NewPolicyService(policies PolicyRepo, clients ClientRepo, vehicles VehicleRepo, engine RatingEngine) PolicyService {
	return &policyService{
		policies: policies,
		clients:  clients,
		vehicles: vehicles,
		engine:   engine,
		clock:    time.Now,
	}
}

func (s *policyService) Create(ctx context.Context, in CreatePolicyInput) (Policy, error) {
	today := DateOnly(s.clock())

	// 1) Date rules, before any side effect.
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return Policy{}, fmt.Errorf("%w: start and end dates are required", ErrValidation)
	}
	start := DateOnly(in.StartDate)
	end := DateOnly(in.EndDate)
	if end.Before(start) {
		return Policy{}, fmt.Errorf("%w: start date after end date", ErrValidation)
	}
	if end.Before(today) {
		return Policy{}, fmt.Errorf("%w: end date in the past", ErrValidation)
	}
	if start.Before(today) {
		return Policy{}, fmt.Errorf("%w: start date in the past", ErrValidation)
	}
	if !in.Category.Valid() {
		return Policy{}, fmt.Errorf("%w: unknown category %q", ErrValidation, in.Category)
	}

	// 2) Resolve references; resolution failures surface as not-found.
	if _, err := s.clients.Get(ctx, in.ClientID); err != nil {
		return Policy{}, err
	}
	vehicle, err := s.vehicles.Get(ctx, in.VehicleID)
	if err != nil {
		return Policy{}, err
	}

	// 3) Price with the start date as the effective date.
	premium, err := s.engine.CalculatePremium(ctx, in.Category, vehicle, start)
	if err != nil {
		return Policy{}, err
	}

	policy := Policy{
		ID:         ids.New(),
		ClientID:   in.ClientID,
		VehicleID:  in.VehicleID,
		Category:   in.Category,
		Status:     PolicyStatusActive,
		IssueDate:  today,
		StartDate:  start,
		EndDate:    end,
		Premium:    premium,
		Adjustment: in.Adjustment,
		Details:    in.Details,
	}

	// 4) Generate a number and persist. The store's unique index is the
	// authoritative guard; a lost race regenerates and retries.
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := s.nextPolicyNumber(ctx, in.Category)
		if err != nil {
			return Policy{}, err
		}
		policy.Number = number

		if err := policy.validateInvariants(); err != nil {
			return Policy{}, err
		}

		err = s.policies.Create(ctx, policy)
		if err == nil {
			return policy, nil
		}
		if !errors.Is(err, ErrPolicyNumberTaken) {
			return Policy{}, err
		}
	}
	return Policy{}, fmt.Errorf("%w: could not allocate a unique policy number after %d attempts", ErrConflict, maxNumberAttempts)
}

// nextPolicyNumber builds <category>-<random suffix> and checks it against
// the store, regenerating on collision.
func (s *policyService) nextPolicyNumber(ctx context.Context, category InsuranceCategory) (string, error) {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number := fmt.Sprintf("%s-%s", category, ids.Suffix(policyNumberSuffixLen))
		taken, err := s.policies.NumberExists(ctx, number)
		if err != nil {
			return "", fmt.Errorf("check policy number: %w", err)
		}
		if !taken {
			return number, nil
		}
	}
	return "", fmt.Errorf("%w: could not generate a unique policy number", ErrConflict)
}

func (s *policyService) Update(ctx context.Context, id string, in UpdatePolicyInput) (Policy, error) {
	if id == "" {
		return Policy{}, fmt.Errorf("%w: missing policy ID", ErrValidation)
	}
	policy, err := s.policies.Get(ctx, id)
	if err != nil {
		return Policy{}, err
	}
	if policy.Status == PolicyStatusCanceled {
		return Policy{}, fmt.Errorf("%w: policy %s", ErrPolicyCanceled, policy.Number)
	}

	today := DateOnly(s.clock())
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return Policy{}, fmt.Errorf("%w: start and end dates are required", ErrValidation)
	}
	start := DateOnly(in.StartDate)
	end := DateOnly(in.EndDate)
	if end.Before(start) {
		return Policy{}, fmt.Errorf("%w: start date after end date", ErrValidation)
	}
	// The window may already have begun; the start date only needs to stay
	// on or after the original issue date.
	if start.Before(DateOnly(policy.IssueDate)) {
		return Policy{}, fmt.Errorf("%w: start date before issue date", ErrValidation)
	}
	if end.Before(today) {
		return Policy{}, fmt.Errorf("%w: end date in the past", ErrValidation)
	}

	// Moving the start date moves the effective date, so the premium is
	// recomputed against the policy's vehicle.
	vehicle, err := s.vehicles.Get(ctx, policy.VehicleID)
	if err != nil {
		return Policy{}, err
	}
	premium, err := s.engine.CalculatePremium(ctx, policy.Category, vehicle, start)
	if err != nil {
		return Policy{}, err
	}

	// Number, issue date and status are immutable under update.
	policy.StartDate = start
	policy.EndDate = end
	policy.Premium = premium
	policy.Adjustment = in.Adjustment
	policy.Details = in.Details

	if err := policy.validateInvariants(); err != nil {
		return Policy{}, err
	}
	if err := s.policies.Update(ctx, policy); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

func (s *policyService) Cancel(ctx context.Context, id string) (Policy, error) {
	if id == "" {
		return Policy{}, fmt.Errorf("%w: missing policy ID", ErrValidation)
	}
	policy, err := s.policies.Get(ctx, id)
	if err != nil {
		return Policy{}, err
	}
	if policy.Status == PolicyStatusCanceled {
		return Policy{}, fmt.Errorf("%w: policy %s", ErrPolicyCanceled, policy.Number)
	}
	// Expired is a computed condition, not a stored one, but it still
	// forbids cancellation.
	if policy.Expired(s.clock()) {
		return Policy{}, fmt.Errorf("%w: policy %s", ErrPolicyExpired, policy.Number)
	}

	policy.Status = PolicyStatusCanceled
	if err := s.policies.Update(ctx, policy); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

func (s *policyService) Get(ctx context.Context, id string) (Policy, error) {
	if id == "" {
		return Policy{}, fmt.Errorf("%w: missing policy ID", ErrValidation)
	}
	return s.policies.Get(ctx, id)
}

func (s *policyService) GetByNumber(ctx context.Context, number string) (Policy, error) {
	if number == "" {
		return Policy{}, fmt.Errorf("%w: missing policy number", ErrValidation)
	}
	return s.policies.GetByNumber(ctx, number)
}

func (s *policyService) List(ctx context.Context, filter PolicyFilter, limit, offset int) ([]Policy, int64, error) {
	limit, offset = clampPage(limit, offset)
	return s.policies.List(ctx, filter, limit, offset)
}

func (s *policyService) SearchByClientName(ctx context.Context, fragment string, limit int) ([]Policy, error) {
	if fragment == "" {
		return nil, fmt.Errorf("%w: missing name fragment", ErrValidation)
	}
	limit, _ = clampPage(limit, 0)

	clients, err := s.clients.SearchByName(ctx, fragment, limit)
	if err != nil {
		return nil, err
	}

	var out []Policy
	for _, c := range clients {
		policies, _, err := s.policies.List(ctx, PolicyFilter{ClientID: c.ID}, limit, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, policies...)
		if len(out) >= limit {
			out = out[:limit]
			break
		}
	}
	return out, nil
}

func (s *policyService) ListCurrentlyActive(ctx context.Context, limit, offset int) ([]Policy, int64, error) {
	limit, offset = clampPage(limit, offset)
	today := DateOnly(s.clock())
	filter := PolicyFilter{
		Status:   PolicyStatusActive,
		ActiveOn: &today,
	}
	return s.policies.List(ctx, filter, limit, offset)
}

func (s *policyService) ListExpiringWithin(ctx context.Context, days int, limit, offset int) ([]Policy, int64, error) {
	if days < 0 {
		return nil, 0, fmt.Errorf("%w: days must be >= 0", ErrValidation)
	}
	limit, offset = clampPage(limit, offset)
	today := DateOnly(s.clock())
	until := today.AddDate(0, 0, days)
	filter := PolicyFilter{
		Status:         PolicyStatusActive,
		ExpiringAfter:  &today,
		ExpiringBefore: &until,
	}
	return s.policies.List(ctx, filter, limit, offset)
}

func (s *policyService) PreviewPremium(ctx context.Context, category InsuranceCategory, vehicleID string, effectiveDate time.Time) (PremiumBreakdown, error) {
	vehicle, err := s.vehicles.Get(ctx, vehicleID)
	if err != nil {
		return PremiumBreakdown{}, err
	}
	return s.engine.CalculatePremiumBreakdown(ctx, category, vehicle, effectiveDate)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
