/*
Package planstore holds the canonical collection of a user's plans.

PURPOSE:
  Every part of the client reads plans from one Store and changes them only
  through it. The store talks to the plan service and keeps the local
  collection consistent with it.

OPTIMISTIC UPDATE WITH RELOAD ROLLBACK:
  ┌────────────┐   ┌──────────────┐   ┌──────────┐   ok   ┌──────────┐
  │ apply      │──▶│ notify       │──▶│ PUT to   │──────▶│ keep     │
  │ locally    │   │ EventUpdated │   │ service  │       │ value    │
  └────────────┘   └──────────────┘   └──────────┘       └──────────┘
                                           │ error
                                           ▼
                                    ┌─────────────────┐
                                    │ reload all plans │──▶ EventLoaded
                                    │ (detached ctx)   │──▶ EventRolledBack
                                    └─────────────────┘──▶ *SyncError

  There is no per-change undo: the server's collection is the truth, and a
  full reload replaces whatever the optimistic change did. If the reload
  fails too, the store is marked stale and the next Load repairs it.

CONFLICTS:
  Last write wins. There are no version stamps; the service applies PUTs in
  arrival order. Two concurrent changes to the same plan are not serialized
  by the store.

AUTHENTICATION:
  Remote.Authorized() is checked before any local change, so a signed-out
  caller gets auth.ErrNoSession with the collection untouched.

SEE ALSO:
  - reservation/machine.go: Builds the Changes applied here
  - refresher.go: Periodic Load
  - wire/plan.go: Record conversion and normalization
*/
package planstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/perugo/reservation-engine/plan"
	"github.com/perugo/reservation-engine/wire"
)

// DefaultReloadTimeout bounds the recovery reload after a failed commit.
const DefaultReloadTimeout = 15 * time.Second

type Store struct {
	Remote        Remote
	Cache         Cache  // optional
	Catalog       Filler // optional
	Logger        *slog.Logger
	ReloadTimeout time.Duration

	mu    sync.RWMutex
	plans []plan.Plan
	stale bool

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

func New(remote Remote) *Store {
	return &Store{
		Remote:        remote,
		ReloadTimeout: DefaultReloadTimeout,
		subs:          make(map[int]func(Event)),
	}
}

// =============================================================================
// READS
// =============================================================================

// Plans returns a deep copy of the collection in service order.
func (s *Store) Plans() []plan.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) Get(id plan.ID) (plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.plans[i].Clone(), nil
	}
	return plan.Plan{}, &plan.NotFoundError{ID: id}
}

// Stale reports whether the last recovery reload failed.
func (s *Store) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

// =============================================================================
// LOAD / RESTORE / CLEAR
// =============================================================================

// Load replaces the collection with the service's. Records that cannot be
// read (no id, unknown estado) or that still break the plan invariants after
// normalization (a confirmed plan without dates) are logged and skipped.
func (s *Store) Load(ctx context.Context) error {
	if err := s.Remote.Authorized(); err != nil {
		return err
	}
	recs, err := s.Remote.ListPlans(ctx)
	if err != nil {
		return fmt.Errorf("load plans: %w", err)
	}

	plans := make([]plan.Plan, 0, len(recs))
	for _, rec := range recs {
		p, err := s.prepare(rec)
		if err != nil {
			s.logger().Warn("skipping unreadable plan record", "id", rec.ID, "error", err)
			continue
		}
		plans = append(plans, p)
	}

	s.mu.Lock()
	s.plans = plans
	s.stale = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger().Debug("plans loaded", "count", len(snap), "rejected", len(recs)-len(snap))
	s.saveCache(ctx, snap)
	s.notify(Event{Kind: EventLoaded, Plans: snap})
	return nil
}

// Restore seeds the collection from the offline cache.
func (s *Store) Restore(ctx context.Context) error {
	if s.Cache == nil {
		return ErrNoCache
	}
	cached, err := s.Cache.CachedPlans(ctx)
	if err != nil {
		return fmt.Errorf("restore plans: %w", err)
	}

	s.mu.Lock()
	s.plans = make([]plan.Plan, len(cached))
	for i, p := range cached {
		s.plans[i] = p.Clone()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(Event{Kind: EventRestored, Plans: snap})
	return nil
}

// Clear drops the collection, e.g. on sign-out. The cache is left alone.
func (s *Store) Clear() {
	s.mu.Lock()
	s.plans = nil
	s.stale = false
	s.mu.Unlock()
	s.notify(Event{Kind: EventCleared})
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Create adds a draft. A draft already held for the same destination and
// tour is returned as is, without a network call.
func (s *Store) Create(ctx context.Context, d plan.Draft) (plan.Plan, error) {
	if err := s.Remote.Authorized(); err != nil {
		return plan.Plan{}, err
	}

	s.mu.RLock()
	for _, p := range s.plans {
		if p.State == plan.StateDraft && p.Key() == d.Key() {
			existing := p.Clone()
			s.mu.RUnlock()
			s.logger().Debug("duplicate draft suppressed", "id", existing.ID, "destination", d.DestinationID, "tour", d.TourName)
			return existing, nil
		}
	}
	s.mu.RUnlock()

	rec, err := s.Remote.CreatePlan(ctx, wire.CreateRecord(d))
	if err != nil {
		return plan.Plan{}, s.recover(ctx, "create", "", err)
	}
	created, err := s.prepare(rec)
	if err != nil {
		return plan.Plan{}, s.recover(ctx, "create", plan.ID(rec.ID), err)
	}

	s.mu.Lock()
	if i := s.indexLocked(created.ID); i >= 0 {
		s.plans[i] = created
	} else {
		s.plans = append(s.plans, created)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveCache(ctx, snap)
	s.notify(Event{Kind: EventCreated, PlanID: created.ID, Plans: snap})
	return created.Clone(), nil
}

// Update applies c locally, notifies, then persists it. On failure the
// collection is reloaded and a *SyncError is returned.
func (s *Store) Update(ctx context.Context, id plan.ID, c plan.Changes) (plan.Plan, error) {
	if err := s.Remote.Authorized(); err != nil {
		return plan.Plan{}, err
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return plan.Plan{}, &plan.NotFoundError{ID: id}
	}
	next := s.plans[i].Apply(c)
	s.plans[i] = next
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(Event{Kind: EventUpdated, PlanID: id, Plans: snap})

	if err := s.Remote.UpdatePlan(ctx, id, wire.Patch(c)); err != nil {
		return plan.Plan{}, s.recover(ctx, "update", id, err)
	}
	s.saveCache(ctx, snap)
	return next.Clone(), nil
}

// Remove deletes a plan optimistically.
func (s *Store) Remove(ctx context.Context, id plan.ID) error {
	if err := s.Remote.Authorized(); err != nil {
		return err
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return &plan.NotFoundError{ID: id}
	}
	s.plans = append(s.plans[:i:i], s.plans[i+1:]...)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(Event{Kind: EventRemoved, PlanID: id, Plans: snap})

	if err := s.Remote.DeletePlan(ctx, id); err != nil {
		return s.recover(ctx, "remove", id, err)
	}
	s.saveCache(ctx, snap)
	return nil
}

// recover reloads the collection after a failed commit. The reload runs
// on a context detached from the caller's cancellation, bounded by
// ReloadTimeout, so a cancelled caller still gets a consistent store.
func (s *Store) recover(ctx context.Context, op string, id plan.ID, cause error) error {
	timeout := s.ReloadTimeout
	if timeout <= 0 {
		timeout = DefaultReloadTimeout
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	reloadErr := s.Load(rctx)
	if reloadErr != nil {
		s.mu.Lock()
		s.stale = true
		s.mu.Unlock()
	}

	syncErr := &SyncError{Op: op, PlanID: id, Err: cause, ReloadErr: reloadErr}
	s.logger().Warn("plan change rolled back", "op", op, "id", id, "error", cause, "reload_error", reloadErr)
	s.notify(Event{Kind: EventRolledBack, PlanID: id, Plans: s.Plans(), Err: syncErr})
	return syncErr
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers fn for every event and returns its cancel func.
// fn runs on the goroutine that changed the store.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]func(Event))
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(e Event) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	fns := make([]func(Event), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) prepare(rec wire.PlanRecord) (plan.Plan, error) {
	p, notes, err := rec.ToPlan()
	if err != nil {
		return plan.Plan{}, err
	}
	if s.Catalog != nil {
		var more []string
		p, more = plan.Normalize(s.Catalog.Fill(p))
		notes = append(notes, more...)
	}
	if len(notes) > 0 {
		s.logger().Debug("plan record normalized", "id", p.ID, "fixes", notes)
	}
	if err := plan.Validate(p); err != nil {
		return plan.Plan{}, err
	}
	return p, nil
}

func (s *Store) saveCache(ctx context.Context, plans []plan.Plan) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.SavePlans(ctx, plans); err != nil {
		s.logger().Warn("offline cache not updated", "error", err)
	}
}

func (s *Store) indexLocked(id plan.ID) int {
	for i, p := range s.plans {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() []plan.Plan {
	out := make([]plan.Plan, len(s.plans))
	for i, p := range s.plans {
		out[i] = p.Clone()
	}
	return out
}

func (s *Store) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default().With("component", "planstore")
	}
	return s.Logger.With("component", "planstore")
}
