package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PolicyStatus string

// Status is a strict two-state machine. "Expired" is never stored; it is
// derived from the end date (see Policy.Expired).
const (
	PolicyStatusActive   PolicyStatus = "ACTIVE"
	PolicyStatusCanceled PolicyStatus = "CANCELED"
)

// PolicyDetails carries the category-specific coverage fields. They are
// opaque to rating; the lifecycle manager only stores them.
type PolicyDetails struct {
	// OC
	GuaranteedSum *decimal.Decimal `json:"guaranteed_sum,omitempty"`
	CoverageArea  string           `json:"coverage_area,omitempty"`
	// AC
	SumInsured   *decimal.Decimal `json:"sum_insured,omitempty"`
	Deductible   *decimal.Decimal `json:"deductible,omitempty"`
	WorkshopType string           `json:"workshop_type,omitempty"`
	// NNW
	CoveredPersons int `json:"covered_persons,omitempty"`
}

// Policy is an issued insurance policy record.
type Policy struct {
	ID         string            `json:"id"`
	Number     string            `json:"number"` // e.g. OC-9F2A41C7, immutable after creation
	ClientID   string            `json:"client_id"`
	VehicleID  string            `json:"vehicle_id"`
	Category   InsuranceCategory `json:"category"`
	Status     PolicyStatus      `json:"status"`
	IssueDate  time.Time         `json:"issue_date"`
	StartDate  time.Time         `json:"start_date"`
	EndDate    time.Time         `json:"end_date"`
	Premium    decimal.Decimal   `json:"premium"`    // system-computed, never caller-settable
	Adjustment decimal.Decimal   `json:"adjustment"` // signed discount/surcharge on top of premium
	Details    PolicyDetails     `json:"details"`
}

// TotalPayable is the premium plus the signed adjustment.
func (p Policy) TotalPayable() decimal.Decimal {
	return p.Premium.Add(p.Adjustment)
}

// DurationDays is the coverage length in whole days.
func (p Policy) DurationDays() int {
	return int(DateOnly(p.EndDate).Sub(DateOnly(p.StartDate)).Hours() / 24)
}

// Expired reports whether the coverage window has passed. This is a computed
// predicate, independent of the stored status.
func (p Policy) Expired(now time.Time) bool {
	return DateOnly(now).After(DateOnly(p.EndDate))
}

// InForce reports whether the policy is active and today falls within its
// coverage window.
func (p Policy) InForce(now time.Time) bool {
	if p.Status != PolicyStatusActive {
		return false
	}
	day := DateOnly(now)
	return !day.Before(DateOnly(p.StartDate)) && !day.After(DateOnly(p.EndDate))
}

// validateInvariants checks the record-level invariants that must hold after
// every successful create or update.
func (p Policy) validateInvariants() error {
	if p.Number == "" {
		return fmt.Errorf("%w: missing policy number", ErrValidation)
	}
	if p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("%w: start date after end date", ErrValidation)
	}
	if DateOnly(p.StartDate).Before(DateOnly(p.IssueDate)) {
		return fmt.Errorf("%w: start date before issue date", ErrValidation)
	}
	if p.Premium.IsNegative() {
		return fmt.Errorf("%w: negative premium", ErrValidation)
	}
	if p.TotalPayable().IsNegative() {
		return fmt.Errorf("%w: adjustment exceeds premium", ErrValidation)
	}
	return nil
}

// PolicyFilter narrows list queries; zero values mean "no constraint".
type PolicyFilter struct {
	ClientID string
	Status   PolicyStatus
	Category InsuranceCategory

	// ActiveOn, when set, keeps only policies in force on that date.
	ActiveOn *time.Time
	// ExpiringBefore, when set together with ExpiringAfter, keeps active
	// policies whose end date falls inside the window.
	ExpiringAfter  *time.Time
	ExpiringBefore *time.Time
}

type PolicyRepo interface {
	// Create persists a new record; it must fail with ErrPolicyNumberTaken
	// when the policy number is already claimed (unique index is the
	// authoritative guard against concurrent generation races).
	Create(ctx context.Context, p Policy) error
	Update(ctx context.Context, p Policy) error
	Get(ctx context.Context, id string) (Policy, error)
	GetByNumber(ctx context.Context, number string) (Policy, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	List(ctx context.Context, filter PolicyFilter, limit, offset int) ([]Policy, int64, error)
}

var (
	ErrPolicyNotFound    = fmt.Errorf("%w: policy not found", ErrNotFound)
	ErrPolicyNumberTaken = fmt.Errorf("%w: policy number already in use", ErrConflict)
	ErrPolicyCanceled    = fmt.Errorf("%w: policy is canceled", ErrInvalidState)
	ErrPolicyExpired     = fmt.Errorf("%w: policy is expired", ErrInvalidState)
)
