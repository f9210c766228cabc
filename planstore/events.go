package planstore

import "github.com/perugo/reservation-engine/plan"

type EventKind string

const (
	// EventLoaded follows every successful Load, including reloads after a failure.
	EventLoaded EventKind = "loaded"

	EventCreated EventKind = "created"

	// EventUpdated is emitted before the network call (optimistic).
	EventUpdated EventKind = "updated"

	// EventRemoved is emitted before the network call (optimistic).
	EventRemoved EventKind = "removed"

	// EventRolledBack follows the reload triggered by a failed commit.
	EventRolledBack EventKind = "rolled_back"

	// EventRestored follows seeding from the offline cache.
	EventRestored EventKind = "restored"

	EventCleared EventKind = "cleared"
)

// Event is delivered synchronously to subscribers after the store lock is released.
type Event struct {
	Kind   EventKind
	PlanID plan.ID // empty for collection-wide events
	Plans  []plan.Plan
	Err    error // set on EventRolledBack
}
