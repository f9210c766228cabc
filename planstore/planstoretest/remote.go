// Package planstoretest provides an in-process plan service for tests.
package planstoretest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/perugo/reservation-engine/auth"
	"github.com/perugo/reservation-engine/plan"
	"github.com/perugo/reservation-engine/remote"
	"github.com/perugo/reservation-engine/wire"
)

// Remote implements planstore.Remote over an in-memory record list.
// Set a Fail* field to make the matching call fail once it is reached.
type Remote struct {
	mu      sync.Mutex
	records []wire.PlanRecord
	nextID  int
	calls   map[string]int

	SignedOut  bool
	FailList   error
	FailCreate error
	FailUpdate error
	FailDelete error
}

func NewRemote(plans ...plan.Plan) *Remote {
	r := &Remote{calls: make(map[string]int)}
	for _, p := range plans {
		r.records = append(r.records, wire.FromPlan(p))
	}
	return r
}

func (r *Remote) Authorized() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SignedOut {
		return auth.ErrNoSession
	}
	return nil
}

func (r *Remote) ListPlans(_ context.Context) ([]wire.PlanRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["list"]++
	if r.FailList != nil {
		return nil, r.FailList
	}
	return append([]wire.PlanRecord(nil), r.records...), nil
}

func (r *Remote) CreatePlan(_ context.Context, rec wire.PlanRecord) (wire.PlanRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["create"]++
	if r.FailCreate != nil {
		return wire.PlanRecord{}, r.FailCreate
	}
	r.nextID++
	rec.ID = wire.ID(fmt.Sprintf("srv-%d", r.nextID))
	r.records = append(r.records, rec)
	return rec, nil
}

func (r *Remote) UpdatePlan(_ context.Context, id plan.ID, patch map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["update"]++
	if r.FailUpdate != nil {
		return r.FailUpdate
	}
	i := r.indexLocked(id)
	if i < 0 {
		return &remote.APIError{Op: "update plan", Status: http.StatusNotFound, Message: "Plan no encontrado"}
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	changes, err := wire.DecodePatch(body)
	if err != nil {
		return &remote.APIError{Op: "update plan", Status: http.StatusBadRequest, Message: err.Error()}
	}
	current, _, err := r.records[i].ToPlan()
	if err != nil {
		return err
	}
	r.records[i] = wire.FromPlan(current.Apply(changes))
	return nil
}

func (r *Remote) DeletePlan(_ context.Context, id plan.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["delete"]++
	if r.FailDelete != nil {
		return r.FailDelete
	}
	i := r.indexLocked(id)
	if i < 0 {
		return &remote.APIError{Op: "delete plan", Status: http.StatusNotFound, Message: "Plan no encontrado"}
	}
	r.records = append(r.records[:i:i], r.records[i+1:]...)
	return nil
}

// Plan returns the service's current view of a plan.
func (r *Remote) Plan(id plan.ID) (plan.Plan, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(id)
	if i < 0 {
		return plan.Plan{}, false
	}
	p, _, err := r.records[i].ToPlan()
	return p, err == nil
}

// Put stores a raw record, replacing any with the same id.
func (r *Remote) Put(rec wire.PlanRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(plan.ID(rec.ID)); i >= 0 {
		r.records[i] = rec
		return
	}
	r.records = append(r.records, rec)
}

// Calls counts invocations of "list", "create", "update" or "delete".
func (r *Remote) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// Set changes a failure knob under the lock.
func (r *Remote) Set(fn func(r *Remote)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

func (r *Remote) indexLocked(id plan.ID) int {
	for i, rec := range r.records {
		if plan.ID(rec.ID) == id {
			return i
		}
	}
	return -1
}
