/*
Package store defines persistence for the reference plan service and the
client's offline cache.

PURPOSE:
  The development server (api package) keeps users and their plans behind
  the Repository interface. The client keeps its last loaded collection
  in a Cache so it can start offline. Two implementations exist: Memory
  here, and store/sqlite for anything that must survive a restart.

KEY INTERFACES:
  Users:      Account records (email is unique, case-insensitive)
  Plans:      Per-owner plan collections, kept in creation order
  Repository: Users + Plans, what the server needs

OWNERSHIP:
  Every plan belongs to exactly one user. Reads and writes take the owner
  and never see another owner's plans: a foreign id is reported as not
  found, the same as a missing one.

SEE ALSO:
  - store/sqlite/sqlite.go: SQLite implementation and the client cache
  - api/handlers.go: The consumer
*/
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/perugo/reservation-engine/plan"
)

var (
	// ErrUserNotFound is returned when no account matches.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when registering an email twice.
	ErrEmailTaken = errors.New("email already registered")
)

// User is an account of the plan service.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// =============================================================================
// INTERFACES
// =============================================================================

type Users interface {
	// CreateUser fails with ErrEmailTaken for a known email.
	CreateUser(ctx context.Context, u User) error
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	UpdateUsername(ctx context.Context, id, username string) (User, error)
}

type Plans interface {
	// SavePlan inserts or replaces a plan. Replacing keeps its position.
	SavePlan(ctx context.Context, owner string, p plan.Plan) error

	// ListPlans returns the owner's plans in creation order.
	ListPlans(ctx context.Context, owner string) ([]plan.Plan, error)

	// GetPlan returns *plan.NotFoundError for a missing or foreign id.
	GetPlan(ctx context.Context, owner string, id plan.ID) (plan.Plan, error)

	DeletePlan(ctx context.Context, owner string, id plan.ID) error
}

type Repository interface {
	Users
	Plans
}
