package jobs

import (
	"context"

	"github.com/onnwee/reelcast/internal/analytics"
	"github.com/onnwee/reelcast/internal/reconcile"
	"github.com/onnwee/reelcast/internal/schedule"
)

// PublishScheduledTask publishes every due scheduled post.
func PublishScheduledTask(svc *schedule.Service) Task {
	return func(ctx context.Context) (string, error) {
		res, err := svc.PublishDue(ctx)
		return res.String(), err
	}
}

// DailyRollupTask aggregates yesterday's analytics events.
func DailyRollupTask(r *analytics.Rollup) Task {
	return func(ctx context.Context) (string, error) {
		res, err := r.RunYesterday(ctx)
		if res == nil {
			return "", err
		}
		return res.String(), err
	}
}

// CounterReconcileTask recomputes denormalized counters.
func CounterReconcileTask(r *reconcile.Reconciler) Task {
	return func(ctx context.Context) (string, error) {
		res, err := r.Run(ctx)
		return res.String(), err
	}
}
