/*
main.go - Command-line client for PeruGo trip plans

PURPOSE:
  Drives the reservation engine from a terminal: signs in, loads the
  user's plans and runs one lifecycle command against them.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Open the SQLite offline cache
  3. Sign in (skipped with -offline)
  4. Load plans, or restore them from the cache with -offline
  5. Run the command

USAGE:
  planes [flags] <command> [args]

  list                          Plans with state, dates and next actions
  destinations                  Catalog destinations and tours
  add <destino> <tour>          Add a catalog tour as a draft
  schedule <id> <DD/MM/YYYY>    Draft -> pending
  reschedule <id> <DD/MM/YYYY>  Cancelled -> pending
  pay <id>                      Pending -> confirmed (simulated payment)
  cancel <id>                   Pending -> cancelled
  complete <id>                 Confirmed -> completed
  review <id> <1-5> [comment]   Review a completed trip
  chart <id>                    Cost breakdown
  remove <id>                   Delete a plan
  watch                         Reload periodically and print changes

COMMAND-LINE FLAGS:
  -api       Plan service URL (default: PERUGO_API_URL)
  -email     Account email (default: PERUGO_EMAIL)
  -password  Account password (default: PERUGO_PASSWORD)
  -cache     Offline cache path (default: PERUGO_CACHE_DB)
  -offline   Read plans from the cache only (list, chart)

SEE ALSO:
  - commands.go: Command implementations
  - config/config.go: Environment keys
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/perugo/reservation-engine/auth"
	"github.com/perugo/reservation-engine/catalog"
	"github.com/perugo/reservation-engine/config"
	"github.com/perugo/reservation-engine/planstore"
	"github.com/perugo/reservation-engine/remote"
	"github.com/perugo/reservation-engine/reservation"
	"github.com/perugo/reservation-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags
	apiURL := flag.String("api", cfg.Client.APIURL, "plan service URL")
	email := flag.String("email", cfg.Client.Email, "account email")
	password := flag.String("password", cfg.Client.Password, "account password")
	cachePath := flag.String("cache", cfg.Client.CacheDB, "offline cache database")
	offline := flag.Bool("offline", false, "read plans from the offline cache")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	logger := cfg.Logger().With("app", "planes")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Default()
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	cache, err := sqlite.New(*cachePath)
	if err != nil {
		log.Fatalf("Failed to open offline cache: %v", err)
	}
	defer cache.Close()

	// Wire the client stack
	client := remote.New(*apiURL, cfg.Client.HTTPTimeout)
	client.Logger = logger
	session := auth.NewSession(client)
	client.Tokens = session

	plans := planstore.New(client)
	plans.Catalog = cat
	plans.Cache = cache.ForOwner(*email)
	plans.ReloadTimeout = cfg.Client.ReloadTimeout
	plans.Logger = logger

	machine := reservation.NewMachine(plans, reservation.SimulatedProcessor{Delay: cfg.Client.PaymentDelay})
	machine.Logger = logger

	a := &app{
		out:             os.Stdout,
		catalog:         cat,
		plans:           plans,
		machine:         machine,
		offline:         *offline,
		refreshInterval: cfg.Client.RefreshInterval,
	}

	if err := start(ctx, a, session, *email, *password); err != nil {
		log.Fatalf("%v", err)
	}

	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			usage()
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// start signs in and loads the plans, or restores them offline.
func start(ctx context.Context, a *app, session *auth.Session, email, password string) error {
	if a.offline {
		if err := a.plans.Restore(ctx); err != nil {
			return fmt.Errorf("restore cached plans: %w", err)
		}
		return nil
	}

	if _, err := session.Login(ctx, email, password); err != nil {
		return fmt.Errorf("login as %q: %w", email, err)
	}
	a.machine.Attach()
	if err := a.plans.Load(ctx); err != nil {
		return fmt.Errorf("load plans: %w", err)
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <command> [args]\n\n", os.Args[0])
	fmt.Fprint(os.Stderr, commandHelp)
	fmt.Fprintln(os.Stderr, "\nflags:")
	flag.PrintDefaults()
}
