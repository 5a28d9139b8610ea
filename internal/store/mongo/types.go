package mongo

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Assamir/kiro-demo-sub001/internal/core"
)

const (
	ColRatingFactors = "rating_factors"
	ColPolicies      = "policies"
	ColClients       = "clients"
	ColVehicles      = "vehicles"
)

// Calendar dates are stored as YYYY-MM-DD strings so range filters compare
// lexicographically; decimals are stored as strings to avoid float drift.
const dateLayout = "2006-01-02"

func encodeDate(t time.Time) string {
	return core.DateOnly(t).Format(dateLayout)
}

func decodeDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func decodeDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

type RatingFactorDoc struct {
	ID         string `bson:"_id"`
	Category   string `bson:"category"`
	FactorKey  string `bson:"factor_key"`
	Multiplier string `bson:"multiplier"`
	ValidFrom  string `bson:"valid_from"`
	ValidTo    string `bson:"valid_to,omitempty"` // empty = open-ended
}

func toRatingFactorDoc(f core.RatingFactor) RatingFactorDoc {
	doc := RatingFactorDoc{
		ID:         f.ID,
		Category:   string(f.Category),
		FactorKey:  f.FactorKey,
		Multiplier: f.Multiplier.String(),
		ValidFrom:  encodeDate(f.ValidFrom),
	}
	if f.ValidTo != nil {
		doc.ValidTo = encodeDate(*f.ValidTo)
	}
	return doc
}

func fromRatingFactorDoc(d RatingFactorDoc) core.RatingFactor {
	f := core.RatingFactor{
		ID:         d.ID,
		Category:   core.InsuranceCategory(d.Category),
		FactorKey:  d.FactorKey,
		Multiplier: decodeDecimal(d.Multiplier),
		ValidFrom:  decodeDate(d.ValidFrom),
	}
	if d.ValidTo != "" {
		to := decodeDate(d.ValidTo)
		f.ValidTo = &to
	}
	return f
}

type PolicyDetailsDoc struct {
	GuaranteedSum  string `bson:"guaranteed_sum,omitempty"`
	CoverageArea   string `bson:"coverage_area,omitempty"`
	SumInsured     string `bson:"sum_insured,omitempty"`
	Deductible     string `bson:"deductible,omitempty"`
	WorkshopType   string `bson:"workshop_type,omitempty"`
	CoveredPersons int    `bson:"covered_persons,omitempty"`
}

type PolicyDoc struct {
	ID         string           `bson:"_id"`
	Number     string           `bson:"number"` // unique index
	ClientID   string           `bson:"client_id"`
	VehicleID  string           `bson:"vehicle_id"`
	Category   string           `bson:"category"`
	Status     string           `bson:"status"`
	IssueDate  string           `bson:"issue_date"`
	StartDate  string           `bson:"start_date"`
	EndDate    string           `bson:"end_date"`
	Premium    string           `bson:"premium"`
	Adjustment string           `bson:"adjustment"`
	Details    PolicyDetailsDoc `bson:"details"`
}

func toPolicyDoc(p core.Policy) PolicyDoc {
	return PolicyDoc{
		ID:         p.ID,
		Number:     p.Number,
		ClientID:   p.ClientID,
		VehicleID:  p.VehicleID,
		Category:   string(p.Category),
		Status:     string(p.Status),
		IssueDate:  encodeDate(p.IssueDate),
		StartDate:  encodeDate(p.StartDate),
		EndDate:    encodeDate(p.EndDate),
		Premium:    p.Premium.String(),
		Adjustment: p.Adjustment.String(),
		Details:    toDetailsDoc(p.Details),
	}
}

func fromPolicyDoc(d PolicyDoc) core.Policy {
	return core.Policy{
		ID:         d.ID,
		Number:     d.Number,
		ClientID:   d.ClientID,
		VehicleID:  d.VehicleID,
		Category:   core.InsuranceCategory(d.Category),
		Status:     core.PolicyStatus(d.Status),
		IssueDate:  decodeDate(d.IssueDate),
		StartDate:  decodeDate(d.StartDate),
		EndDate:    decodeDate(d.EndDate),
		Premium:    decodeDecimal(d.Premium),
		Adjustment: decodeDecimal(d.Adjustment),
		Details:    fromDetailsDoc(d.Details),
	}
}

func toDetailsDoc(d core.PolicyDetails) PolicyDetailsDoc {
	doc := PolicyDetailsDoc{
		CoverageArea:   d.CoverageArea,
		WorkshopType:   d.WorkshopType,
		CoveredPersons: d.CoveredPersons,
	}
	if d.GuaranteedSum != nil {
		doc.GuaranteedSum = d.GuaranteedSum.String()
	}
	if d.SumInsured != nil {
		doc.SumInsured = d.SumInsured.String()
	}
	if d.Deductible != nil {
		doc.Deductible = d.Deductible.String()
	}
	return doc
}

func fromDetailsDoc(d PolicyDetailsDoc) core.PolicyDetails {
	out := core.PolicyDetails{
		CoverageArea:   d.CoverageArea,
		WorkshopType:   d.WorkshopType,
		CoveredPersons: d.CoveredPersons,
	}
	if d.GuaranteedSum != "" {
		v := decodeDecimal(d.GuaranteedSum)
		out.GuaranteedSum = &v
	}
	if d.SumInsured != "" {
		v := decodeDecimal(d.SumInsured)
		out.SumInsured = &v
	}
	if d.Deductible != "" {
		v := decodeDecimal(d.Deductible)
		out.Deductible = &v
	}
	return out
}

type ClientDoc struct {
	ID       string `bson:"_id"`
	FullName string `bson:"full_name"`
	PESEL    string `bson:"pesel,omitempty"`
	Email    string `bson:"email,omitempty"`
	Phone    string `bson:"phone,omitempty"`
}

func toClientDoc(c core.Client) ClientDoc {
	return ClientDoc{ID: c.ID, FullName: c.FullName, PESEL: c.PESEL, Email: c.Email, Phone: c.Phone}
}

func fromClientDoc(d ClientDoc) core.Client {
	return core.Client{ID: d.ID, FullName: d.FullName, PESEL: d.PESEL, Email: d.Email, Phone: d.Phone}
}

type VehicleDoc struct {
	ID                string `bson:"_id"`
	Registration      string `bson:"registration"`
	Make              string `bson:"make"`
	Model             string `bson:"model"`
	EngineCapacityCCM int    `bson:"engine_capacity_ccm"`
	EnginePowerKW     int    `bson:"engine_power_kw"`
	FirstRegistration string `bson:"first_registration"`
}

func toVehicleDoc(v core.Vehicle) VehicleDoc {
	return VehicleDoc{
		ID:                v.ID,
		Registration:      v.Registration,
		Make:              v.Make,
		Model:             v.Model,
		EngineCapacityCCM: v.EngineCapacityCCM,
		EnginePowerKW:     v.EnginePowerKW,
		FirstRegistration: encodeDate(v.FirstRegistration),
	}
}

func fromVehicleDoc(d VehicleDoc) core.Vehicle {
	return core.Vehicle{
		ID:                d.ID,
		Registration:      d.Registration,
		Make:              d.Make,
		Model:             d.Model,
		EngineCapacityCCM: d.EngineCapacityCCM,
		EnginePowerKW:     d.EnginePowerKW,
		FirstRegistration: decodeDate(d.FirstRegistration),
	}
}
