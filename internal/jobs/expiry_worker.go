package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/Assamir/kiro-demo-sub001/internal/core"
)

// ExpiryWorker surfaces policies whose coverage ends within the reminder
// window so renewal follow-up can happen. It never mutates policy status:
// expiry is a computed condition, not a stored transition.
type ExpiryWorker struct {
	BaseWorker
	policies     core.PolicyService
	reminderDays int
}

func NewExpiryWorker(
	policies core.PolicyService,
	reminderDays int,
	interval time.Duration,
	log *slog.Logger,
) *ExpiryWorker {
	return &ExpiryWorker{
		BaseWorker:   NewBaseWorker("expiry-reminder", interval, log),
		policies:     policies,
		reminderDays: reminderDays,
	}
}

func (w *ExpiryWorker) Start(ctx context.Context) {
	w.Poll(ctx, w.remindExpiring)
}

func (w *ExpiryWorker) Name() string {
	return w.name
}

func (w *ExpiryWorker) remindExpiring(ctx context.Context) error {
	const batch = 50

	policies, total, err := w.policies.ListExpiringWithin(ctx, w.reminderDays, batch, 0)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}

	w.log.Info("policies approaching expiry", "count", total, "window_days", w.reminderDays)

	for _, p := range policies {
		w.log.Info("renewal reminder",
			"policy_number", p.Number,
			"client_id", p.ClientID,
			"end_date", p.EndDate.Format("2006-01-02"),
		)
	}

	return nil
}
