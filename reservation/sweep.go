package reservation

import (
	"context"
	"time"

	"github.com/perugo/reservation-engine/calendar"
	"github.com/perugo/reservation-engine/plan"
	"github.com/perugo/reservation-engine/planstore"
)

// SweepTimeout bounds a sweep started by Attach.
var SweepTimeout = 30 * time.Second

// DueForCompletion returns the confirmed plans whose trip ended before
// today (date-only comparison). It does not touch anything.
func DueForCompletion(plans []plan.Plan, today calendar.Date) []plan.ID {
	var ids []plan.ID
	for _, p := range plans {
		if p.State == plan.StateConfirmed && p.EndDate != nil && p.EndDate.Before(today) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// SweepResult reports what a sweep did. Failed plans stay confirmed.
type SweepResult struct {
	Completed []plan.ID
	Failed    map[plan.ID]error
}

// Sweep completes every plan DueForCompletion selects.
func (m *Machine) Sweep(ctx context.Context) SweepResult {
	res := SweepResult{Failed: map[plan.ID]error{}}
	for _, id := range DueForCompletion(m.Store.Plans(), m.today()) {
		// A plan completed by an earlier iteration's reload is a no-op.
		p, err := m.Store.Get(id)
		if err != nil || p.State != plan.StateConfirmed {
			continue
		}
		if _, err := m.Store.Update(ctx, id, plan.Changes{State: plan.StatePtr(plan.StateCompleted)}); err != nil {
			m.logger().Warn("sweep could not complete plan", "id", id, "error", err)
			res.Failed[id] = err
			continue
		}
		res.Completed = append(res.Completed, id)
	}
	if len(res.Completed) > 0 {
		m.logger().Info("sweep completed finished trips", "count", len(res.Completed))
	}
	return res
}

// Attach runs Sweep after every load of the store. A load caused by a
// failing sweep update does not start another sweep.
func (m *Machine) Attach() (detach func()) {
	return m.Store.Subscribe(func(e planstore.Event) {
		if e.Kind != planstore.EventLoaded {
			return
		}
		if !m.sweeping.CompareAndSwap(false, true) {
			return
		}
		defer m.sweeping.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), SweepTimeout)
		defer cancel()
		m.Sweep(ctx)
	})
}
