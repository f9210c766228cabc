package planstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perugo/reservation-engine/auth"
	"github.com/perugo/reservation-engine/calendar"
	"github.com/perugo/reservation-engine/catalog"
	"github.com/perugo/reservation-engine/plan"
	"github.com/perugo/reservation-engine/planstore"
	"github.com/perugo/reservation-engine/planstore/planstoretest"
	"github.com/perugo/reservation-engine/wire"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var errNetwork = errors.New("connection reset")

func pendingPlan(id plan.ID) plan.Plan {
	start := calendar.New(2030, time.January, 10)
	return plan.Plan{
		ID:              id,
		DestinationID:   "cusco",
		DestinationName: "Cusco",
		TourName:        "Tour clásico Machu Picchu",
		Price:           decimal.NewFromInt(580),
		DurationDays:    4,
		State:           plan.StatePending,
		StartDate:       &start,
		EndDate:         calendar.Ptr(start.AddDays(4)),
	}
}

func draftPlan(id plan.ID, dest, tour string) plan.Plan {
	return plan.Plan{ID: id, DestinationID: dest, TourName: tour, DurationDays: 2, State: plan.StateDraft}
}

type recorder struct {
	mu     sync.Mutex
	events []planstore.Event
}

func (r *recorder) record(e planstore.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []planstore.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []planstore.EventKind
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

type memCache struct {
	plans []plan.Plan
	saves int
	err   error
}

func (c *memCache) SavePlans(_ context.Context, plans []plan.Plan) error {
	c.saves++
	if c.err != nil {
		return c.err
	}
	c.plans = plans
	return nil
}

func (c *memCache) CachedPlans(_ context.Context) ([]plan.Plan, error) { return c.plans, c.err }

func newLoadedStore(t *testing.T, plans ...plan.Plan) (*planstore.Store, *planstoretest.Remote, *recorder) {
	remote := planstoretest.NewRemote(plans...)
	s := planstore.New(remote)
	rec := &recorder{}
	s.Subscribe(rec.record)
	require.NoError(t, s.Load(context.Background()))
	return s, remote, rec
}

// =============================================================================
// LOAD
// =============================================================================

func TestLoad_ReplacesCollectionAndSkipsBadRecords(t *testing.T) {
	remote := planstoretest.NewRemote(pendingPlan("a"))
	remote.Put(wire.PlanRecord{ID: "b", State: "volando"})
	remote.Put(wire.PlanRecord{ID: "c", DestinationID: "paracas", State: "borrador"})

	s := planstore.New(remote)
	require.NoError(t, s.Load(context.Background()))

	plans := s.Plans()
	require.Len(t, plans, 2)
	assert.Equal(t, plan.ID("a"), plans[0].ID)
	assert.Equal(t, plan.ID("c"), plans[1].ID)
}

func TestLoad_SkipsRecordsThatBreakDateRules(t *testing.T) {
	// GIVEN: The service returns a confirmed plan without dates next to a valid one
	remote := planstoretest.NewRemote(pendingPlan("a"))
	remote.Put(wire.PlanRecord{ID: "p1", DestinationID: "cusco", State: "confirmado"})
	remote.Put(wire.PlanRecord{ID: "p2", DestinationID: "cusco", State: "completado", EndDate: strPtr("05/01/2030")})

	// WHEN: Loaded
	s := planstore.New(remote)
	require.NoError(t, s.Load(context.Background()))

	// THEN: Only the valid plan is kept and every kept plan satisfies the invariants
	plans := s.Plans()
	require.Len(t, plans, 1)
	assert.Equal(t, plan.ID("a"), plans[0].ID)
	for _, p := range plans {
		assert.NoError(t, plan.Validate(p))
	}
}

func strPtr(s string) *string { return &s }

func TestLoad_FillsFromCatalog(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	remote := planstoretest.NewRemote()
	remote.Put(wire.PlanRecord{ID: "1", DestinationID: "puno", Tour: "x", State: "borrador"})

	s := planstore.New(remote)
	s.Catalog = cat
	require.NoError(t, s.Load(context.Background()))

	p, err := s.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "Puno, Perú", p.Location)
	assert.Equal(t, 3, p.DurationDays)
	assert.NotEmpty(t, p.Expenses)
}

func TestLoad_IsIdempotent(t *testing.T) {
	s, _, rec := newLoadedStore(t, pendingPlan("a"))
	first := s.Plans()
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, first, s.Plans())
	assert.Equal(t, []planstore.EventKind{planstore.EventLoaded, planstore.EventLoaded}, rec.kinds())
}

func TestPlans_AreSnapshots(t *testing.T) {
	s, _, _ := newLoadedStore(t, pendingPlan("a"))
	snap := s.Plans()
	snap[0].State = plan.StateCancelled
	*snap[0].StartDate = calendar.New(1990, 1, 1)

	p, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, plan.StatePending, p.State)
	assert.Equal(t, 2030, p.StartDate.Year())

	_, err = s.Get("zzz")
	assert.True(t, plan.IsNotFound(err))
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_WaitsForServerID(t *testing.T) {
	s, remote, rec := newLoadedStore(t)

	p, err := s.Create(context.Background(), plan.Draft{DestinationID: "paracas", TourName: "Tour Islas Ballestas", Price: decimal.NewFromInt(380)})
	require.NoError(t, err)
	assert.Equal(t, plan.ID("srv-1"), p.ID)
	assert.Equal(t, plan.StateDraft, p.State)
	assert.Len(t, s.Plans(), 1)
	assert.Equal(t, 1, remote.Calls("create"))
	assert.Contains(t, rec.kinds(), planstore.EventCreated)
}

func TestCreate_DuplicateDraftSuppressed(t *testing.T) {
	// GIVEN: A draft for Paracas / Islas Ballestas already exists
	s, remote, _ := newLoadedStore(t, draftPlan("d1", "paracas", "Tour Islas Ballestas"))

	// WHEN: The same tour is added again
	p, err := s.Create(context.Background(), plan.Draft{DestinationID: "paracas", TourName: "Tour Islas Ballestas"})

	// THEN: The existing draft comes back and nothing is sent
	require.NoError(t, err)
	assert.Equal(t, plan.ID("d1"), p.ID)
	assert.Zero(t, remote.Calls("create"))
	assert.Len(t, s.Plans(), 1)
}

func TestCreate_NonDraftDoesNotSuppress(t *testing.T) {
	s, remote, _ := newLoadedStore(t, pendingPlan("a"))
	_, err := s.Create(context.Background(), plan.Draft{DestinationID: "cusco", TourName: "Tour clásico Machu Picchu"})
	require.NoError(t, err)
	assert.Equal(t, 1, remote.Calls("create"))
	assert.Len(t, s.Plans(), 2)
}

func TestCreate_FailureReloads(t *testing.T) {
	s, remote, _ := newLoadedStore(t)
	remote.Set(func(r *planstoretest.Remote) { r.FailCreate = errNetwork })

	_, err := s.Create(context.Background(), plan.Draft{DestinationID: "puno", TourName: "x"})
	assert.ErrorIs(t, err, errNetwork)
	assert.True(t, planstore.IsSyncFailure(err))
	assert.Equal(t, 2, remote.Calls("list"))
	assert.Empty(t, s.Plans())
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdate_OptimisticValueVisibleBeforeCommit(t *testing.T) {
	s, _, _ := newLoadedStore(t, pendingPlan("a"))

	var seen plan.State
	s.Subscribe(func(e planstore.Event) {
		if e.Kind == planstore.EventUpdated {
			p, err := s.Get(e.PlanID)
			require.NoError(t, err)
			seen = p.State
		}
	})

	got, err := s.Update(context.Background(), "a", plan.Changes{State: plan.StatePtr(plan.StateConfirmed)})
	require.NoError(t, err)
	assert.Equal(t, plan.StateConfirmed, seen)
	assert.Equal(t, plan.StateConfirmed, got.State)
}

func TestUpdate_FailureRollsBackToServerState(t *testing.T) {
	// GIVEN: A pending plan and a service that rejects the next PUT
	s, remote, rec := newLoadedStore(t, pendingPlan("a"))
	remote.Set(func(r *planstoretest.Remote) { r.FailUpdate = errNetwork })

	// WHEN: Cancelling it
	_, err := s.Update(context.Background(), "a", plan.Changes{State: plan.StatePtr(plan.StateCancelled), ClearDates: true})

	// THEN: A SyncError is returned and the store matches the server again
	var syncErr *planstore.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.ErrorIs(t, err, errNetwork)
	assert.NoError(t, syncErr.ReloadErr)
	assert.Equal(t, "update", syncErr.Op)

	p, err := s.Get("a")
	require.NoError(t, err)
	server, _ := remote.Plan("a")
	assert.Equal(t, server.State, p.State)
	assert.Equal(t, plan.StatePending, p.State)
	assert.NotNil(t, p.StartDate)
	assert.False(t, s.Stale())

	assert.Equal(t, []planstore.EventKind{
		planstore.EventLoaded,
		planstore.EventUpdated,
		planstore.EventLoaded,
		planstore.EventRolledBack,
	}, rec.kinds())
}

func TestUpdate_FailedReloadMarksStale(t *testing.T) {
	s, remote, _ := newLoadedStore(t, pendingPlan("a"))
	reloadErr := errors.New("service unavailable")
	remote.Set(func(r *planstoretest.Remote) {
		r.FailUpdate = errNetwork
		r.FailList = reloadErr
	})

	_, err := s.Update(context.Background(), "a", plan.Changes{State: plan.StatePtr(plan.StateConfirmed)})
	assert.ErrorIs(t, err, errNetwork)
	assert.ErrorIs(t, err, reloadErr)
	assert.True(t, s.Stale())

	// The next successful Load repairs the collection.
	remote.Set(func(r *planstoretest.Remote) { r.FailList = nil })
	require.NoError(t, s.Load(context.Background()))
	assert.False(t, s.Stale())
	p, _ := s.Get("a")
	assert.Equal(t, plan.StatePending, p.State)
}

func TestUpdate_ReloadSurvivesCancelledCaller(t *testing.T) {
	s, remote, _ := newLoadedStore(t, pendingPlan("a"))
	remote.Set(func(r *planstoretest.Remote) { r.FailUpdate = context.Canceled })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Update(ctx, "a", plan.Changes{State: plan.StatePtr(plan.StateConfirmed)})

	var syncErr *planstore.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.NoError(t, syncErr.ReloadErr, "reload runs detached from the caller")
	p, _ := s.Get("a")
	assert.Equal(t, plan.StatePending, p.State)
}

func TestUpdate_SignedOutFailsFast(t *testing.T) {
	s, remote, rec := newLoadedStore(t, pendingPlan("a"))
	remote.Set(func(r *planstoretest.Remote) { r.SignedOut = true })

	_, err := s.Update(context.Background(), "a", plan.Changes{State: plan.StatePtr(plan.StateCancelled)})
	assert.ErrorIs(t, err, auth.ErrNoSession)

	p, _ := s.Get("a")
	assert.Equal(t, plan.StatePending, p.State)
	assert.Zero(t, remote.Calls("update"))
	assert.Equal(t, []planstore.EventKind{planstore.EventLoaded}, rec.kinds())
}

func TestUpdate_UnknownPlan(t *testing.T) {
	s, _, _ := newLoadedStore(t)
	_, err := s.Update(context.Background(), "nope", plan.Changes{})
	assert.ErrorIs(t, err, plan.ErrPlanNotFound)
}

// =============================================================================
// REMOVE
// =============================================================================

func TestRemove(t *testing.T) {
	s, remote, _ := newLoadedStore(t, pendingPlan("a"), draftPlan("b", "puno", "t"))

	require.NoError(t, s.Remove(context.Background(), "a"))
	assert.Len(t, s.Plans(), 1)
	_, ok := remote.Plan("a")
	assert.False(t, ok)

	remote.Set(func(r *planstoretest.Remote) { r.FailDelete = errNetwork })
	err := s.Remove(context.Background(), "b")
	assert.True(t, planstore.IsSyncFailure(err))
	assert.Len(t, s.Plans(), 1, "reload brings the plan back")
}

// =============================================================================
// CACHE / RESTORE / CLEAR / UNSUBSCRIBE
// =============================================================================

func TestCache_WrittenOnLoadAndRestored(t *testing.T) {
	remote := planstoretest.NewRemote(pendingPlan("a"))
	cache := &memCache{}
	s := planstore.New(remote)
	s.Cache = cache
	require.NoError(t, s.Load(context.Background()))
	require.Len(t, cache.plans, 1)

	offline := planstore.New(planstoretest.NewRemote())
	offline.Cache = cache
	rec := &recorder{}
	offline.Subscribe(rec.record)
	require.NoError(t, offline.Restore(context.Background()))

	assert.Len(t, offline.Plans(), 1)
	assert.Equal(t, []planstore.EventKind{planstore.EventRestored}, rec.kinds())

	assert.ErrorIs(t, planstore.New(remote).Restore(context.Background()), planstore.ErrNoCache)
}

func TestCache_FailureDoesNotFailLoad(t *testing.T) {
	s := planstore.New(planstoretest.NewRemote(pendingPlan("a")))
	s.Cache = &memCache{err: errors.New("disk full")}
	assert.NoError(t, s.Load(context.Background()))
}

func TestClearAndUnsubscribe(t *testing.T) {
	s, _, rec := newLoadedStore(t, pendingPlan("a"))

	calls := 0
	unsubscribe := s.Subscribe(func(planstore.Event) { calls++ })
	s.Clear()
	unsubscribe()
	s.Clear()

	assert.Empty(t, s.Plans())
	assert.Equal(t, 1, calls)
	assert.Equal(t, planstore.EventCleared, rec.kinds()[len(rec.kinds())-1])
}

// =============================================================================
// REFRESHER
// =============================================================================

func TestRefresher_LoadsImmediatelyAndStops(t *testing.T) {
	remote := planstoretest.NewRemote(pendingPlan("a"))
	s := planstore.New(remote)

	r := planstore.NewRefresher(s, time.Hour)
	r.Start()
	r.Start()
	require.Eventually(t, func() bool { return len(s.Plans()) == 1 }, time.Second, 5*time.Millisecond)
	r.Stop()
	r.Stop()

	assert.Equal(t, 1, remote.Calls("list"))
}
