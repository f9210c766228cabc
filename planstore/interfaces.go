package planstore

import (
	"context"

	"github.com/perugo/reservation-engine/plan"
	"github.com/perugo/reservation-engine/wire"
)

// =============================================================================
// REMOTE - The plan service
// =============================================================================

// Remote is the plan service as the store needs it. remote.Client implements it.
type Remote interface {
	// Authorized returns an error (auth.ErrNoSession) when no token is available.
	Authorized() error

	ListPlans(ctx context.Context) ([]wire.PlanRecord, error)
	CreatePlan(ctx context.Context, rec wire.PlanRecord) (wire.PlanRecord, error)
	UpdatePlan(ctx context.Context, id plan.ID, patch map[string]any) error
	DeletePlan(ctx context.Context, id plan.ID) error
}

// =============================================================================
// CACHE - Offline copy of the last good collection
// =============================================================================

// Cache keeps the last loaded collection so a client can show plans offline.
// store/sqlite and store.Memory implement it.
type Cache interface {
	SavePlans(ctx context.Context, plans []plan.Plan) error
	CachedPlans(ctx context.Context) ([]plan.Plan, error)
}

// =============================================================================
// FILLER - Catalog fallback fields
// =============================================================================

// Filler completes display fields a record left empty. catalog.Catalog implements it.
type Filler interface {
	Fill(p plan.Plan) plan.Plan
}
