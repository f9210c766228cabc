package reservation

import (
	"context"
	"time"

	"github.com/perugo/reservation-engine/plan"
)

// DefaultPaymentDelay is how long the simulated processor takes to approve.
const DefaultPaymentDelay = 1800 * time.Millisecond

// PaymentProcessor charges a pending plan. A nil error means approved.
type PaymentProcessor interface {
	Charge(ctx context.Context, p plan.Plan) error
}

// SimulatedProcessor approves every charge after Delay. It stands in for a
// real gateway; cancellation of ctx aborts the wait.
type SimulatedProcessor struct {
	Delay time.Duration
}

func (s SimulatedProcessor) Charge(ctx context.Context, _ plan.Plan) error {
	if s.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PaymentFunc adapts a function to PaymentProcessor.
type PaymentFunc func(ctx context.Context, p plan.Plan) error

func (f PaymentFunc) Charge(ctx context.Context, p plan.Plan) error { return f(ctx, p) }
