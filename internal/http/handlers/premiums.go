package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Assamir/kiro-demo-sub001/internal/core"
)

// PremiumHandler exposes the rating engine's breakdown for quote screens
// without touching any policy record.
type PremiumHandler struct {
	Svc core.PolicyService
	Log *slog.Logger
}

func NewPremiumHandler(svc core.PolicyService, log *slog.Logger) *PremiumHandler {
	return &PremiumHandler{Svc: svc, Log: log}
}

func (h *PremiumHandler) Mount(r chi.Router) {
	r.Post("/premiums/preview", h.Preview)
}

type previewPremiumRequest struct {
	Category      string `json:"category" validate:"required,oneof=OC AC NNW"`
	VehicleID     string `json:"vehicle_id" validate:"required"`
	EffectiveDate string `json:"effective_date" validate:"required"`
}

// Preview prices a category/vehicle pair on an effective date and returns
// the base premium, the factor multipliers and the final premium.
func (h *PremiumHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewPremiumRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(r.Context(), h.Log, w, err, "Invalid preview payload")
		return
	}

	effective, err := parseDate("effective_date", req.EffectiveDate)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Invalid effective date")
		return
	}

	breakdown, err := h.Svc.PreviewPremium(r.Context(), core.InsuranceCategory(req.Category), req.VehicleID, effective)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to preview premium")
		return
	}

	if err := json.NewEncoder(w).Encode(breakdown); err != nil {
		h.Log.Error("failed to encode breakdown", "err", err)
	}
}
