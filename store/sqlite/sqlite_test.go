package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perugo/reservation-engine/calendar"
	"github.com/perugo/reservation-engine/plan"
	"github.com/perugo/reservation-engine/planstore"
	"github.com/perugo/reservation-engine/store"
	"github.com/perugo/reservation-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newSQLite(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// repositories runs the same contract against both implementations.
func repositories(t *testing.T) map[string]store.Repository {
	return map[string]store.Repository{
		"memory": store.NewMemory(),
		"sqlite": newSQLite(t),
	}
}

func samplePlan(id plan.ID) plan.Plan {
	start := calendar.New(2030, time.March, 2)
	return plan.Plan{
		ID:              id,
		DestinationID:   "arequipa",
		DestinationName: "Arequipa",
		TourName:        "Cañón del Colca",
		Price:           decimal.RequireFromString("420.50"),
		DurationLabel:   "3 días / 2 noches",
		DurationDays:    3,
		Expenses: plan.Expenses{
			{Category: "Transporte", Amount: decimal.NewFromInt(120)},
			{Category: "Hospedaje", Amount: decimal.NewFromInt(200)},
			{Category: "Alimentación", Amount: decimal.RequireFromString("100.50")},
		},
		State:     plan.StatePending,
		StartDate: &start,
		EndDate:   calendar.Ptr(start.AddDays(3)),
	}
}

func addUser(t *testing.T, r store.Repository, id, email string) {
	t.Helper()
	require.NoError(t, r.CreateUser(context.Background(), store.User{
		ID: id, Email: email, Username: "viajero", PasswordHash: []byte("hash"),
	}))
}

// =============================================================================
// USERS
// =============================================================================

func TestUsers(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// GIVEN
			addUser(t, repo, "u1", "Ana@Example.com ")

			// WHEN looked up with different case
			u, err := repo.UserByEmail(ctx, "ana@example.COM")

			// THEN
			require.NoError(t, err)
			assert.Equal(t, "u1", u.ID)
			assert.Equal(t, "ana@example.com", u.Email)
			assert.Equal(t, []byte("hash"), u.PasswordHash)
			assert.False(t, u.CreatedAt.IsZero())

			// WHEN the email is registered again
			err = repo.CreateUser(ctx, store.User{ID: "u2", Email: "ANA@example.com", PasswordHash: []byte("x")})

			// THEN
			assert.ErrorIs(t, err, store.ErrEmailTaken)

			renamed, err := repo.UpdateUsername(ctx, "u1", "Ana")
			require.NoError(t, err)
			assert.Equal(t, "Ana", renamed.Username)

			byID, err := repo.UserByID(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, "Ana", byID.Username)

			_, err = repo.UserByID(ctx, "ghost")
			assert.ErrorIs(t, err, store.ErrUserNotFound)
			_, err = repo.UpdateUsername(ctx, "ghost", "x")
			assert.ErrorIs(t, err, store.ErrUserNotFound)
		})
	}
}

// =============================================================================
// PLANS
// =============================================================================

func TestPlans_RoundTripAndOrder(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			addUser(t, repo, "u1", "a@x.pe")

			// GIVEN three plans saved in order
			for _, id := range []plan.ID{"p1", "p2", "p3"} {
				require.NoError(t, repo.SavePlan(ctx, "u1", samplePlan(id)))
			}

			// WHEN the first is replaced
			updated := samplePlan("p1")
			updated.State = plan.StateConfirmed
			require.NoError(t, repo.SavePlan(ctx, "u1", updated))

			// THEN it keeps its position and the new state
			plans, err := repo.ListPlans(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, plans, 3)
			assert.Equal(t, []plan.ID{"p1", "p2", "p3"}, []plan.ID{plans[0].ID, plans[1].ID, plans[2].ID})
			assert.Equal(t, plan.StateConfirmed, plans[0].State)

			got, err := repo.GetPlan(ctx, "u1", "p2")
			require.NoError(t, err)
			assert.True(t, got.Price.Equal(decimal.RequireFromString("420.50")))
			assert.Equal(t, "05/03/2030", got.EndDate.String())
			require.Len(t, got.Expenses, 3)
			assert.Equal(t, "Alimentación", got.Expenses[2].Category)
			assert.True(t, got.Expenses[2].Amount.Equal(decimal.RequireFromString("100.50")))
		})
	}
}

func TestPlans_ScopedToOwner(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			addUser(t, repo, "u1", "a@x.pe")
			addUser(t, repo, "u2", "b@x.pe")
			require.NoError(t, repo.SavePlan(ctx, "u1", samplePlan("p1")))

			others, err := repo.ListPlans(ctx, "u2")
			require.NoError(t, err)
			assert.Empty(t, others)

			_, err = repo.GetPlan(ctx, "u2", "p1")
			assert.True(t, plan.IsNotFound(err))

			hijack := samplePlan("p1")
			hijack.State = plan.StateCancelled
			hijack.StartDate, hijack.EndDate = nil, nil
			err = repo.SavePlan(ctx, "u2", hijack)
			assert.True(t, plan.IsNotFound(err))

			err = repo.DeletePlan(ctx, "u2", "p1")
			assert.True(t, plan.IsNotFound(err))

			mine, err := repo.GetPlan(ctx, "u1", "p1")
			require.NoError(t, err)
			assert.Equal(t, plan.StatePending, mine.State)
		})
	}
}

func TestPlans_Delete(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			addUser(t, repo, "u1", "a@x.pe")
			require.NoError(t, repo.SavePlan(ctx, "u1", samplePlan("p1")))
			require.NoError(t, repo.SavePlan(ctx, "u1", samplePlan("p2")))

			require.NoError(t, repo.DeletePlan(ctx, "u1", "p1"))

			plans, err := repo.ListPlans(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, plans, 1)
			assert.Equal(t, plan.ID("p2"), plans[0].ID)

			assert.True(t, plan.IsNotFound(repo.DeletePlan(ctx, "u1", "p1")))
		})
	}
}

// =============================================================================
// CLIENT CACHE
// =============================================================================

func TestCache_ReplacesSnapshotPerOwner(t *testing.T) {
	mem := store.NewMemory()
	db := newSQLite(t)
	caches := map[string][2]planstore.Cache{
		"memory": {mem.ForOwner("u1"), mem.ForOwner("u2")},
		"sqlite": {db.ForOwner("u1"), db.ForOwner("u2")},
	}

	for name, c := range caches {
		t.Run(name, func(t *testing.T) {
			testCacheSnapshot(t, c[0], c[1])
		})
	}
}

func testCacheSnapshot(t *testing.T, mine, theirs planstore.Cache) {
	ctx := context.Background()

	// GIVEN an empty cache
	plans, err := mine.CachedPlans(ctx)
	require.NoError(t, err)
	assert.Empty(t, plans)

	// WHEN saved twice
	require.NoError(t, mine.SavePlans(ctx, []plan.Plan{samplePlan("a"), samplePlan("b")}))
	require.NoError(t, theirs.SavePlans(ctx, []plan.Plan{samplePlan("z")}))
	require.NoError(t, mine.SavePlans(ctx, []plan.Plan{samplePlan("c"), samplePlan("a")}))

	// THEN only the last snapshot remains, in order
	plans, err = mine.CachedPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, plan.ID("c"), plans[0].ID)
	assert.Equal(t, plan.ID("a"), plans[1].ID)

	other, err := theirs.CachedPlans(ctx)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, plan.ID("z"), other[0].ID)
}

func TestCache_FeedsStoreRestore(t *testing.T) {
	ctx := context.Background()
	db := newSQLite(t)
	require.NoError(t, db.ForOwner("u1").SavePlans(ctx, []plan.Plan{samplePlan("a")}))

	s := planstore.New(nil)
	s.Cache = db.ForOwner("u1")
	require.NoError(t, s.Restore(ctx))

	p, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "Cañón del Colca", p.TourName)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	db := newSQLite(t)
	addUser(t, db, "u1", "a@x.pe")
	require.NoError(t, db.SavePlan(ctx, "u1", samplePlan("p1")))
	require.NoError(t, db.ForOwner("u1").SavePlans(ctx, []plan.Plan{samplePlan("p1")}))

	require.NoError(t, db.Reset(ctx))

	_, err := db.UserByID(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
	cached, err := db.ForOwner("u1").CachedPlans(ctx)
	require.NoError(t, err)
	assert.Empty(t, cached)
}
