package planstore

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Refresher reloads the store on a fixed interval so a long-running client
// keeps up with the service and keeps running the completion sweep, which
// listens for EventLoaded.
type Refresher struct {
	Store    *Store
	Interval time.Duration
	Logger   *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewRefresher(store *Store, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Refresher{Store: store, Interval: interval}
}

// Start loads once immediately and then on every tick. Calling Start twice
// is a no-op.
func (r *Refresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ticker != nil {
		return
	}

	r.ticker = time.NewTicker(r.Interval)
	r.stop = make(chan struct{})
	r.wg.Add(1)
	go r.run(r.ticker, r.stop)

	r.logger().Info("refresher started", "interval", r.Interval)
}

// Stop halts the loop and waits for an in-flight refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	close(r.stop)
	r.wg.Wait()
	r.ticker = nil
	r.logger().Info("refresher stopped")
}

func (r *Refresher) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer r.wg.Done()

	r.refresh(stop)
	for {
		select {
		case <-ticker.C:
			r.refresh(stop)
		case <-stop:
			return
		}
	}
}

func (r *Refresher) refresh(stop <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), r.Interval)
	defer cancel()

	// Abort an in-flight load when stopped.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-stop:
			cancel()
		case <-done:
		}
	}()

	if err := r.Store.Load(ctx); err != nil {
		r.logger().Warn("refresh failed", "error", err)
	}
}

func (r *Refresher) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default().With("component", "refresher")
	}
	return r.Logger.With("component", "refresher")
}
