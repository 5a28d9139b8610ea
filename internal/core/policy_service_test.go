package core

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPolicyRepo struct {
	mu      sync.Mutex
	byID    map[string]Policy
	numbers map[string]struct{}
}

func newMemPolicyRepo() *memPolicyRepo {
	return &memPolicyRepo{
		byID:    make(map[string]Policy),
		numbers: make(map[string]struct{}),
	}
}

func (r *memPolicyRepo) Create(_ context.Context, p Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.numbers[p.Number]; taken {
		return ErrPolicyNumberTaken
	}
	r.numbers[p.Number] = struct{}{}
	r.byID[p.ID] = p
	return nil
}

func (r *memPolicyRepo) Update(_ context.Context, p Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; !ok {
		return ErrPolicyNotFound
	}
	r.byID[p.ID] = p
	return nil
}

func (r *memPolicyRepo) Get(_ context.Context, id string) (Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return Policy{}, ErrPolicyNotFound
	}
	return p, nil
}

func (r *memPolicyRepo) GetByNumber(_ context.Context, number string) (Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.Number == number {
			return p, nil
		}
	}
	return Policy{}, ErrPolicyNotFound
}

func (r *memPolicyRepo) NumberExists(_ context.Context, number string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.numbers[number]
	return ok, nil
}

func (r *memPolicyRepo) List(_ context.Context, f PolicyFilter, limit, offset int) ([]Policy, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []Policy
	for _, p := range r.byID {
		if f.ClientID != "" && p.ClientID != f.ClientID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.ActiveOn != nil {
			day := DateOnly(*f.ActiveOn)
			if day.Before(DateOnly(p.StartDate)) || day.After(DateOnly(p.EndDate)) {
				continue
			}
		}
		if f.ExpiringAfter != nil && DateOnly(p.EndDate).Before(DateOnly(*f.ExpiringAfter)) {
			continue
		}
		if f.ExpiringBefore != nil && DateOnly(p.EndDate).After(DateOnly(*f.ExpiringBefore)) {
			continue
		}
		matched = append(matched, p)
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

type memClientRepo struct {
	byID map[string]Client
}

func (r *memClientRepo) Get(_ context.Context, id string) (Client, error) {
	c, ok := r.byID[id]
	if !ok {
		return Client{}, ErrClientNotFound
	}
	return c, nil
}

func (r *memClientRepo) Put(_ context.Context, c Client) error {
	r.byID[c.ID] = c
	return nil
}

func (r *memClientRepo) SearchByName(_ context.Context, fragment string, limit int) ([]Client, error) {
	var out []Client
	for _, c := range r.byID {
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type memVehicleRepo struct {
	byID map[string]Vehicle
}

func (r *memVehicleRepo) Get(_ context.Context, id string) (Vehicle, error) {
	v, ok := r.byID[id]
	if !ok {
		return Vehicle{}, ErrVehicleNotFound
	}
	return v, nil
}

func (r *memVehicleRepo) Put(_ context.Context, v Vehicle) error {
	r.byID[v.ID] = v
	return nil
}

// countingEngine tracks invocations so tests can assert that validation
// failures never reach the rating engine.
type countingEngine struct {
	inner RatingEngine
	calls int
}

func (e *countingEngine) CalculatePremium(ctx context.Context, c InsuranceCategory, v Vehicle, d time.Time) (decimal.Decimal, error) {
	e.calls++
	return e.inner.CalculatePremium(ctx, c, v, d)
}

func (e *countingEngine) CalculatePremiumBreakdown(ctx context.Context, c InsuranceCategory, v Vehicle, d time.Time) (PremiumBreakdown, error) {
	e.calls++
	return e.inner.CalculatePremiumBreakdown(ctx, c, v, d)
}

type serviceFixture struct {
	svc      *policyService
	policies *memPolicyRepo
	engine   *countingEngine
	now      time.Time
}

func newServiceFixture(t *testing.T, factors ...RatingFactor) *serviceFixture {
	t.Helper()

	inner, err := NewRatingEngine(DefaultRatingConfig(), &memRatingRepo{factors: factors})
	require.NoError(t, err)
	engine := &countingEngine{inner: inner}

	policies := newMemPolicyRepo()
	clients := &memClientRepo{byID: map[string]Client{
		"client-1": {ID: "client-1", FullName: "Jan Kowalski", PESEL: "85010112345"},
	}}
	vehicles := &memVehicleRepo{byID: map[string]Vehicle{
		"vehicle-1": testVehicle(),
	}}

	now := date(2024, 2, 1)
	svc := NewPolicyService(policies, clients, vehicles, engine).(*policyService)
	svc.clock = func() time.Time { return now }

	return &serviceFixture{svc: svc, policies: policies, engine: engine, now: now}
}

func validCreateInput() CreatePolicyInput {
	return CreatePolicyInput{
		ClientID:  "client-1",
		VehicleID: "vehicle-1",
		Category:  CategoryOC,
		StartDate: date(2024, 2, 1),
		EndDate:   date(2025, 1, 31),
	}
}

var policyNumberPattern = regexp.MustCompile(`^OC-[0-9A-F]{8}$`)

func TestCreatePolicy(t *testing.T) {
	fx := newServiceFixture(t,
		openEnded(CategoryOC, "VEHICLE_AGE_6", "1.20", date(2024, 1, 1)),
	)

	policy, err := fx.svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	assert.NotEmpty(t, policy.ID)
	assert.Regexp(t, policyNumberPattern, policy.Number)
	assert.Equal(t, PolicyStatusActive, policy.Status)
	assert.True(t, policy.IssueDate.Equal(date(2024, 2, 1)))
	assert.True(t, mustDec(t, "960.00").Equal(policy.Premium), "got %s", policy.Premium)
	assert.True(t, policy.TotalPayable().Equal(policy.Premium))

	stored, err := fx.policies.Get(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, policy.Number, stored.Number)
}

func TestCreatePolicyDateValidation(t *testing.T) {
	fx := newServiceFixture(t)

	cases := map[string]func(*CreatePolicyInput){
		"missing start":    func(in *CreatePolicyInput) { in.StartDate = time.Time{} },
		"missing end":      func(in *CreatePolicyInput) { in.EndDate = time.Time{} },
		"start after end":  func(in *CreatePolicyInput) { in.StartDate = date(2025, 2, 1) },
		"end in the past":  func(in *CreatePolicyInput) { in.StartDate = date(2023, 1, 1); in.EndDate = date(2023, 12, 31) },
		"start in past":    func(in *CreatePolicyInput) { in.StartDate = date(2024, 1, 31) },
		"unknown category": func(in *CreatePolicyInput) { in.Category = "CASCO" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validCreateInput()
			mutate(&in)
			_, err := fx.svc.Create(context.Background(), in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	// No pricing and no record for any rejected input.
	assert.Zero(t, fx.engine.calls)
	assert.Empty(t, fx.policies.byID)
}

func TestCreatePolicyUnknownReferences(t *testing.T) {
	fx := newServiceFixture(t)

	in := validCreateInput()
	in.ClientID = "nobody"
	_, err := fx.svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrClientNotFound)

	in = validCreateInput()
	in.VehicleID = "nothing"
	_, err = fx.svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrVehicleNotFound)
}

func TestCreatePolicyNumbersUniqueUnderConcurrency(t *testing.T) {
	fx := newServiceFixture(t)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.svc.Create(context.Background(), validCreateInput())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, fx.policies.byID, n)
	assert.Len(t, fx.policies.numbers, n)
}

// racyPolicyRepo reports numbers as free but rejects the first create
// attempts, simulating a lost race on the unique index.
type racyPolicyRepo struct {
	memPolicyRepo
	rejections int
}

func (r *racyPolicyRepo) NumberExists(context.Context, string) (bool, error) {
	return false, nil
}

func (r *racyPolicyRepo) Create(ctx context.Context, p Policy) error {
	r.mu.Lock()
	reject := r.rejections > 0
	if reject {
		r.rejections--
	}
	r.mu.Unlock()
	if reject {
		return ErrPolicyNumberTaken
	}
	return r.memPolicyRepo.Create(ctx, p)
}

func TestCreatePolicyRetriesOnNumberRace(t *testing.T) {
	fx := newServiceFixture(t)
	repo := &racyPolicyRepo{rejections: 2}
	repo.byID = make(map[string]Policy)
	repo.numbers = make(map[string]struct{})
	fx.svc.policies = repo

	policy, err := fx.svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)
	assert.Regexp(t, policyNumberPattern, policy.Number)
}

func TestCreatePolicyGivesUpOnExhaustedNumberSpace(t *testing.T) {
	fx := newServiceFixture(t)
	repo := &racyPolicyRepo{rejections: maxNumberAttempts + 1}
	repo.byID = make(map[string]Policy)
	repo.numbers = make(map[string]struct{})
	fx.svc.policies = repo

	_, err := fx.svc.Create(context.Background(), validCreateInput())
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdatePolicyReprices(t *testing.T) {
	fx := newServiceFixture(t,
		openEnded(CategoryOC, "VEHICLE_AGE_6", "1.20", date(2024, 1, 1)),
		openEnded(CategoryOC, "VEHICLE_AGE_7", "1.30", date(2024, 1, 1)),
	)

	created, err := fx.svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	// Pushing the window past the vehicle's next birthday changes the age
	// bucket and therefore the premium.
	updated, err := fx.svc.Update(context.Background(), created.ID, UpdatePolicyInput{
		StartDate:  date(2025, 2, 1),
		EndDate:    date(2026, 1, 31),
		Adjustment: mustDec(t, "-40.00"),
	})
	require.NoError(t, err)

	assert.True(t, mustDec(t, "1040.00").Equal(updated.Premium), "got %s", updated.Premium)
	assert.True(t, mustDec(t, "1000.00").Equal(updated.TotalPayable()))

	// Identity fields never move under update.
	assert.Equal(t, created.Number, updated.Number)
	assert.True(t, created.IssueDate.Equal(updated.IssueDate))
	assert.Equal(t, PolicyStatusActive, updated.Status)
}

func TestUpdatePolicyRejectsCanceled(t *testing.T) {
	fx := newServiceFixture(t)

	created, err := fx.svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)
	_, err = fx.svc.Cancel(context.Background(), created.ID)
	require.NoError(t, err)

	_, err = fx.svc.Update(context.Background(), created.ID, UpdatePolicyInput{
		StartDate: date(2024, 3, 1),
		EndDate:   date(2025, 2, 28),
	})
	assert.ErrorIs(t, err, ErrPolicyCanceled)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestUpdatePolicyRejectsStartBeforeIssueDate(t *testing.T) {
	fx := newServiceFixture(t)

	created, err := fx.svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	_, err = fx.svc.Update(context.Background(), created.ID, UpdatePolicyInput{
		StartDate: date(2024, 1, 15),
		EndDate:   date(2025, 1, 14),
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdatePolicyRejectsNegativeTotal(t *testing.T) {
	fx := newServiceFixture(t)

	created, err := fx.svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	_, err = fx.svc.Update(context.Background(), created.ID, UpdatePolicyInput{
		StartDate:  created.StartDate,
		EndDate:    created.EndDate,
		Adjustment: mustDec(t, "-10000.00"),
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCancelPolicy(t *testing.T) {
	fx := newServiceFixture(t)

	created, err := fx.svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	canceled, err := fx.svc.Cancel(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, PolicyStatusCanceled, canceled.Status)

	// Cancel is not idempotent.
	_, err = fx.svc.Cancel(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrPolicyCanceled)
}

func TestCancelPolicyRejectsExpired(t *testing.T) {
	fx := newServiceFixture(t)

	created, err := fx.svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	// Move the clock past the end date; the stored status is still ACTIVE.
	fx.svc.clock = func() time.Time { return date(2025, 2, 2) }

	_, err = fx.svc.Cancel(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrPolicyExpired)

	stored, err := fx.policies.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, PolicyStatusActive, stored.Status)
}

func TestGetPolicyByNumber(t *testing.T) {
	fx := newServiceFixture(t)

	created, err := fx.svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	found, err := fx.svc.GetByNumber(context.Background(), created.Number)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = fx.svc.GetByNumber(context.Background(), "OC-00000000")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fx.svc.GetByNumber(context.Background(), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListCurrentlyActive(t *testing.T) {
	fx := newServiceFixture(t)

	inForce, err := fx.svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	future := validCreateInput()
	future.StartDate = date(2024, 6, 1)
	future.EndDate = date(2025, 5, 31)
	_, err = fx.svc.Create(context.Background(), future)
	require.NoError(t, err)

	canceled, err := fx.svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)
	_, err = fx.svc.Cancel(context.Background(), canceled.ID)
	require.NoError(t, err)

	active, total, err := fx.svc.ListCurrentlyActive(context.Background(), 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, active, 1)
	assert.Equal(t, inForce.ID, active[0].ID)
}

func TestListExpiringWithin(t *testing.T) {
	fx := newServiceFixture(t)

	soon := validCreateInput()
	soon.EndDate = date(2024, 2, 20)
	expiring, err := fx.svc.Create(context.Background(), soon)
	require.NoError(t, err)

	_, err = fx.svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	got, total, err := fx.svc.ListExpiringWithin(context.Background(), 30, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assert.Equal(t, expiring.ID, got[0].ID)

	_, _, err = fx.svc.ListExpiringWithin(context.Background(), -1, 20, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPreviewPremium(t *testing.T) {
	fx := newServiceFixture(t,
		openEnded(CategoryOC, "VEHICLE_AGE_6", "1.20", date(2024, 1, 1)),
	)

	breakdown, err := fx.svc.PreviewPremium(context.Background(), CategoryOC, "vehicle-1", date(2024, 2, 1))
	require.NoError(t, err)
	assert.True(t, mustDec(t, "960.00").Equal(breakdown.Premium))
	assert.Empty(t, fx.policies.byID)

	_, err = fx.svc.PreviewPremium(context.Background(), CategoryOC, "nothing", date(2024, 2, 1))
	assert.ErrorIs(t, err, ErrVehicleNotFound)
}

func TestClampPage(t *testing.T) {
	limit, offset := clampPage(0, -5)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 0, offset)

	limit, _ = clampPage(500, 0)
	assert.Equal(t, 100, limit)
}

func TestPolicyDerivedFields(t *testing.T) {
	p := Policy{
		Status:     PolicyStatusActive,
		StartDate:  date(2024, 2, 1),
		EndDate:    date(2025, 1, 31),
		Premium:    mustDec(t, "960.00"),
		Adjustment: mustDec(t, "-60.00"),
	}

	assert.True(t, mustDec(t, "900.00").Equal(p.TotalPayable()))
	assert.Equal(t, 365, p.DurationDays())

	assert.False(t, p.Expired(date(2025, 1, 31)))
	assert.True(t, p.Expired(date(2025, 2, 1)))

	assert.True(t, p.InForce(date(2024, 6, 15)))
	assert.False(t, p.InForce(date(2024, 1, 31)))
	p.Status = PolicyStatusCanceled
	assert.False(t, p.InForce(date(2024, 6, 15)))
}

func TestVehicleAgeYears(t *testing.T) {
	v := Vehicle{FirstRegistration: date(2018, 2, 1)}

	assert.Equal(t, 6, v.AgeYears(date(2024, 2, 1)))
	assert.Equal(t, 5, v.AgeYears(date(2024, 1, 31)))
	assert.Equal(t, 0, v.AgeYears(date(2017, 1, 1)))
}

func TestSearchByClientName(t *testing.T) {
	fx := newServiceFixture(t)

	created, err := fx.svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	got, err := fx.svc.SearchByClientName(context.Background(), "kowal", 20)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, created.ID, got[0].ID)

	_, err = fx.svc.SearchByClientName(context.Background(), "", 20)
	assert.ErrorIs(t, err, ErrValidation)
}
