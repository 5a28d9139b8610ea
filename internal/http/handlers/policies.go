package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Assamir/kiro-demo-sub001/internal/core"
	"github.com/Assamir/kiro-demo-sub001/pkg/problem"
)

type PolicyHandler struct {
	Svc core.PolicyService
	Log *slog.Logger
}

func NewPolicyHandler(svc core.PolicyService, log *slog.Logger) *PolicyHandler {
	return &PolicyHandler{Svc: svc, Log: log}
}

func (h *PolicyHandler) Mount(r chi.Router) {
	r.Route("/policies", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/number/{policy_number}", h.GetByNumber)
		r.Route("/{policy_id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Post("/cancel", h.Cancel)
		})
	})
}

type policyDetailsRequest struct {
	GuaranteedSum  *decimal.Decimal `json:"guaranteed_sum,omitempty"`
	CoverageArea   string           `json:"coverage_area,omitempty"`
	SumInsured     *decimal.Decimal `json:"sum_insured,omitempty"`
	Deductible     *decimal.Decimal `json:"deductible,omitempty"`
	WorkshopType   string           `json:"workshop_type,omitempty"`
	CoveredPersons int              `json:"covered_persons,omitempty"`
}

func (d policyDetailsRequest) toCore() core.PolicyDetails {
	return core.PolicyDetails{
		GuaranteedSum:  d.GuaranteedSum,
		CoverageArea:   d.CoverageArea,
		SumInsured:     d.SumInsured,
		Deductible:     d.Deductible,
		WorkshopType:   d.WorkshopType,
		CoveredPersons: d.CoveredPersons,
	}
}

type createPolicyRequest struct {
	ClientID   string               `json:"client_id" validate:"required"`
	VehicleID  string               `json:"vehicle_id" validate:"required"`
	Category   string               `json:"category" validate:"required,oneof=OC AC NNW"`
	StartDate  string               `json:"start_date" validate:"required"`
	EndDate    string               `json:"end_date" validate:"required"`
	Adjustment decimal.Decimal      `json:"adjustment"`
	Details    policyDetailsRequest `json:"details"`
}

// Create issues a new policy.
// 201: JSON; 400: validation; 404: unknown client/vehicle; 500: internal.
func (h *PolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPolicyRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(r.Context(), h.Log, w, err, "Invalid create payload")
		return
	}

	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Invalid start date")
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Invalid end date")
		return
	}

	policy, err := h.Svc.Create(r.Context(), core.CreatePolicyInput{
		ClientID:   req.ClientID,
		VehicleID:  req.VehicleID,
		Category:   core.InsuranceCategory(req.Category),
		StartDate:  start,
		EndDate:    end,
		Adjustment: req.Adjustment,
		Details:    req.Details.toCore(),
	})
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to create policy")
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(policy); err != nil {
		h.Log.Error("failed to encode policy", "policy_number", policy.Number, "err", err)
	}
}

type updatePolicyRequest struct {
	StartDate  string               `json:"start_date" validate:"required"`
	EndDate    string               `json:"end_date" validate:"required"`
	Adjustment decimal.Decimal      `json:"adjustment"`
	Details    policyDetailsRequest `json:"details"`
}

// Update changes the coverage window, adjustment and details of a policy;
// the premium is repriced against the new start date.
// 200: JSON; 400: validation; 404: unknown policy; 409: canceled policy.
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "policy_id")

	var req updatePolicyRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(r.Context(), h.Log, w, err, "Invalid update payload")
		return
	}

	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Invalid start date")
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Invalid end date")
		return
	}

	policy, err := h.Svc.Update(r.Context(), id, core.UpdatePolicyInput{
		StartDate:  start,
		EndDate:    end,
		Adjustment: req.Adjustment,
		Details:    req.Details.toCore(),
	})
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to update policy")
		return
	}

	if err := json.NewEncoder(w).Encode(policy); err != nil {
		h.Log.Error("failed to encode policy", "policy_id", id, "err", err)
	}
}

// Cancel transitions ACTIVE -> CANCELED.
// 200: JSON; 404: unknown policy; 409: already canceled or expired.
func (h *PolicyHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "policy_id")

	policy, err := h.Svc.Cancel(r.Context(), id)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to cancel policy")
		return
	}

	if err := json.NewEncoder(w).Encode(policy); err != nil {
		h.Log.Error("failed to encode policy", "policy_id", id, "err", err)
	}
}

// Get retrieves a policy by ID.
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "policy_id")

	policy, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to get policy")
		return
	}

	if err := json.NewEncoder(w).Encode(policy); err != nil {
		h.Log.Error("failed to encode policy", "policy_id", id, "err", err)
	}
}

// GetByNumber retrieves a policy by its human-facing number.
func (h *PolicyHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "policy_number")
	if number == "" {
		problem.Write(w, http.StatusBadRequest, "Missing Policy Number", "Path parameter policy_number is required.")
		return
	}

	policy, err := h.Svc.GetByNumber(r.Context(), number)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to get policy")
		return
	}

	if err := json.NewEncoder(w).Encode(policy); err != nil {
		h.Log.Error("failed to encode policy", "policy_number", number, "err", err)
	}
}

// List returns policies with optional filtering and pagination. Supported
// query parameters: client_id, status, category, q (client-name search),
// active=true, expiring_within_days, limit, offset.
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 20
	if l := q.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	offset := 0
	if o := q.Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	var (
		policies []core.Policy
		total    int64
		err      error
	)

	switch {
	case q.Get("q") != "":
		policies, err = h.Svc.SearchByClientName(r.Context(), q.Get("q"), limit)
		total = int64(len(policies))

	case q.Get("active") == "true":
		policies, total, err = h.Svc.ListCurrentlyActive(r.Context(), limit, offset)

	case q.Get("expiring_within_days") != "":
		days, perr := strconv.Atoi(q.Get("expiring_within_days"))
		if perr != nil {
			problem.Write(w, http.StatusBadRequest, "Validation Error", "expiring_within_days must be an integer.")
			return
		}
		policies, total, err = h.Svc.ListExpiringWithin(r.Context(), days, limit, offset)

	default:
		filter := core.PolicyFilter{
			ClientID: q.Get("client_id"),
			Status:   core.PolicyStatus(q.Get("status")),
			Category: core.InsuranceCategory(q.Get("category")),
		}
		policies, total, err = h.Svc.List(r.Context(), filter, limit, offset)
	}

	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to list policies")
		return
	}

	if policies == nil {
		policies = []core.Policy{}
	}

	response := map[string]interface{}{
		"items":  policies,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.Log.Error("failed to encode policies", "err", err)
	}
}
