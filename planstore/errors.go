package planstore

import (
	"errors"
	"fmt"

	"github.com/perugo/reservation-engine/plan"
)

var (
	// ErrSyncFailed matches every *SyncError.
	ErrSyncFailed = errors.New("plan change not persisted")

	// ErrNoCache is returned by Restore on a store without a cache.
	ErrNoCache = errors.New("no offline cache configured")
)

// SyncError reports a commit that failed after the local change was applied.
// The collection has been reloaded from the service (or marked stale when
// ReloadErr is set).
type SyncError struct {
	Op        string
	PlanID    plan.ID
	Err       error
	ReloadErr error
}

func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s plan %s: %v", e.Op, e.PlanID, e.Err)
	if e.ReloadErr != nil {
		msg += fmt.Sprintf(" (reload also failed: %v)", e.ReloadErr)
	}
	return msg
}

func (e *SyncError) Unwrap() []error {
	errs := []error{ErrSyncFailed, e.Err}
	if e.ReloadErr != nil {
		errs = append(errs, e.ReloadErr)
	}
	return errs
}

// IsSyncFailure returns true if a local change was rolled back.
func IsSyncFailure(err error) bool {
	return errors.Is(err, ErrSyncFailed)
}
