package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/perugo/reservation-engine/catalog"
	"github.com/perugo/reservation-engine/chart"
	"github.com/perugo/reservation-engine/plan"
	"github.com/perugo/reservation-engine/planstore"
	"github.com/perugo/reservation-engine/reservation"
)

var (
	errUsage   = errors.New("usage")
	errOffline = errors.New("command needs the plan service; drop -offline")
)

const commandHelp = `commands:
  list                          plans with state, dates and next actions
  destinations                  catalog destinations and tours
  add <destino> <tour>          add a catalog tour as a draft
  schedule <id> <DD/MM/YYYY>    draft -> pending
  reschedule <id> <DD/MM/YYYY>  cancelled -> pending
  pay <id>                      pending -> confirmed
  cancel <id>                   pending -> cancelled
  complete <id>                 confirmed -> completed
  review <id> <1-5> [comment]   review a completed trip
  chart <id>                    cost breakdown
  remove <id>                   delete a plan
  watch                         reload periodically and print changes
`

type app struct {
	out     io.Writer
	catalog *catalog.Catalog
	plans   *planstore.Store
	machine *reservation.Machine
	offline bool

	refreshInterval time.Duration
}

// =============================================================================
// DISPATCH
// =============================================================================

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list":
		return a.list()
	case "destinations":
		return a.destinations()
	case "chart":
		return a.withID(args, 1, func(id plan.ID) error { return a.chart(id) })
	}

	if a.offline {
		return errOffline
	}

	switch cmd {
	case "add":
		if len(args) < 2 {
			return errUsage
		}
		return a.add(ctx, args[0], strings.Join(args[1:], " "))
	case "schedule":
		return a.withID(args, 2, func(id plan.ID) error {
			return a.show(a.machine.Schedule(ctx, id, args[1]))
		})
	case "reschedule":
		return a.withID(args, 2, func(id plan.ID) error {
			return a.show(a.machine.Reschedule(ctx, id, args[1]))
		})
	case "pay":
		return a.withID(args, 1, func(id plan.ID) error {
			fmt.Fprintln(a.out, "Procesando pago...")
			return a.show(a.machine.Pay(ctx, id))
		})
	case "cancel":
		return a.withID(args, 1, func(id plan.ID) error { return a.show(a.machine.Cancel(ctx, id)) })
	case "complete":
		return a.withID(args, 1, func(id plan.ID) error { return a.show(a.machine.Complete(ctx, id)) })
	case "review":
		return a.withID(args, 2, func(id plan.ID) error { return a.review(ctx, id, args[1], args[2:]) })
	case "remove":
		return a.withID(args, 1, func(id plan.ID) error {
			if err := a.plans.Remove(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Plan %s eliminado\n", id)
			return nil
		})
	case "watch":
		return a.watch(ctx)
	}
	return errUsage
}

func (a *app) withID(args []string, min int, fn func(plan.ID) error) error {
	if len(args) < min {
		return errUsage
	}
	return fn(plan.ID(args[0]))
}

// =============================================================================
// COMMANDS
// =============================================================================

func (a *app) list() error {
	plans := a.plans.Plans()
	if len(plans) == 0 {
		fmt.Fprintln(a.out, "No tienes planes todavía")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDESTINO\tTOUR\tESTADO\tFECHAS\tPRECIO\tACCIONES")
	for _, p := range plans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\tS/ %s\t%s\n",
			p.ID, p.DestinationName, p.TourName, p.State.Label(), dates(p), p.Price.StringFixed(2), actions(p))
	}
	return tw.Flush()
}

func (a *app) destinations() error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DESTINO\tTOUR\tPRECIO\tDURACION")
	for _, d := range a.catalog.All() {
		for _, t := range d.Tours {
			fmt.Fprintf(tw, "%s\t%s\tS/ %s\t%s\n", d.ID, t.Name, t.Price.StringFixed(2), d.Duration)
		}
	}
	return tw.Flush()
}

func (a *app) add(ctx context.Context, destinationID, tourName string) error {
	draft, err := a.catalog.DraftFor(destinationID, tourName)
	if err != nil {
		return err
	}
	return a.show(a.plans.Create(ctx, draft))
}

func (a *app) review(ctx context.Context, id plan.ID, stars string, comment []string) error {
	n, err := strconv.Atoi(stars)
	if err != nil {
		return fmt.Errorf("%w: stars must be a number", reservation.ErrInvalidReview)
	}
	return a.show(a.machine.SubmitReview(ctx, id, plan.Review{Stars: n, Comment: strings.Join(comment, " ")}))
}

func (a *app) chart(id plan.ID) error {
	p, err := a.plans.Get(id)
	if err != nil {
		return err
	}
	if !chart.Visible(p) {
		fmt.Fprintf(a.out, "El desglose de costos se muestra en planes confirmados o completados (%s)\n", p.State.Label())
		return nil
	}
	pie, err := chart.FromExpenses(p.Expenses, chart.DefaultRadius)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Desglose de costos: %s (total S/ %s)\n", p.TourName, pie.Total.StringFixed(2))
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, item := range pie.Legend {
		fmt.Fprintf(tw, "%s\t%s\tS/ %s\t%s%%\n", item.Color, item.Category, item.Amount.StringFixed(2), item.Share.StringFixed(1))
	}
	return tw.Flush()
}

// watch keeps the store fresh until ctx ends, printing each change.
func (a *app) watch(ctx context.Context) error {
	unsubscribe := a.plans.Subscribe(func(e planstore.Event) {
		switch e.Kind {
		case planstore.EventLoaded:
			fmt.Fprintf(a.out, "[%s] %d planes\n", time.Now().Format(time.TimeOnly), len(e.Plans))
		case planstore.EventUpdated:
			for _, p := range e.Plans {
				if p.ID == e.PlanID {
					fmt.Fprintf(a.out, "[%s] %s: %s\n", time.Now().Format(time.TimeOnly), p.ID, p.State.Label())
				}
			}
		case planstore.EventRolledBack:
			fmt.Fprintf(a.out, "[%s] cambio revertido: %v\n", time.Now().Format(time.TimeOnly), e.Err)
		}
	})
	defer unsubscribe()

	r := planstore.NewRefresher(a.plans, a.refreshInterval)
	r.Start()
	defer r.Stop()

	<-ctx.Done()
	return nil
}

// =============================================================================
// FORMATTING
// =============================================================================

func (a *app) show(p plan.Plan, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s  %s / %s  %s  %s\n", p.ID, p.DestinationName, p.TourName, p.State.Label(), dates(p))
	return nil
}

func dates(p plan.Plan) string {
	if p.StartDate == nil || p.EndDate == nil {
		return "-"
	}
	return p.StartDate.String() + " - " + p.EndDate.String()
}

func actions(p plan.Plan) string {
	acts := reservation.ActionsFor(p)
	if len(acts) == 0 {
		return "-"
	}
	names := make([]string, len(acts))
	for i, act := range acts {
		names[i] = string(act)
	}
	return strings.Join(names, ",")
}
