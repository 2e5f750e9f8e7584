/*
sweeper.go - Automated non-payment cancellation sweep

PURPOSE:
  Periodically scans active policies and cancels the ones that are
  cancelable for non-payment: an invoice past its cancel date with a
  nonzero balance as of that date. This is the batch counterpart of the
  manual POST /api/policies/{id}/cancel route.

DESIGN:
  - Runs a background goroutine with a configurable sweep interval
  - Evaluates each policy through the same PolicyAccount facade the
    HTTP routes use, so batch and manual cancellation can never disagree
  - Canceled and already-canceled policies are skipped

CONFIGURATION:
  - Interval: How often to sweep (default: 1 hour)
  - Enabled:  Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewCancellationSweeper(store, log)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: CancelPolicy endpoint (manual cancellation)
  - billing/account.go: EvaluateCancel / MakeCancelation
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/billing-engine/billing"
)

const sweepCancelDescription = "Canceled for non-payment"

// CancellationSweeper cancels delinquent policies on a schedule.
type CancellationSweeper struct {
	Store    billing.TxStore
	Log      logrus.FieldLogger
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewCancellationSweeper creates a sweeper with the default interval.
func NewCancellationSweeper(store billing.TxStore, log logrus.FieldLogger) *CancellationSweeper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CancellationSweeper{
		Store:    store,
		Log:      log,
		Interval: 1 * time.Hour,
		Enabled:  true,
		stop:     make(chan struct{}),
	}
}

// Start begins sweeping in the background. The first sweep runs immediately.
func (cs *CancellationSweeper) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.Enabled {
		cs.Log.Info("cancellation sweeper disabled, not starting")
		return
	}

	cs.ticker = time.NewTicker(cs.Interval)
	cs.wg.Add(1)
	go cs.run()

	cs.Log.WithField("interval", cs.Interval).Info("cancellation sweeper started")
}

// Stop stops the sweeper and waits for an in-flight sweep to finish.
func (cs *CancellationSweeper) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ticker != nil {
		cs.ticker.Stop()
		close(cs.stop)
		cs.wg.Wait()
		cs.Log.Info("cancellation sweeper stopped")
	}
}

func (cs *CancellationSweeper) run() {
	defer cs.wg.Done()

	cs.sweep(context.Background())

	for {
		select {
		case <-cs.ticker.C:
			cs.sweep(context.Background())
		case <-cs.stop:
			return
		}
	}
}

// RunNow triggers an immediate sweep (for testing/admin) and returns how
// many policies were canceled.
func (cs *CancellationSweeper) RunNow(ctx context.Context) int {
	return cs.sweep(ctx)
}

func (cs *CancellationSweeper) sweep(ctx context.Context) int {
	asOf := billing.Today()

	policies, err := cs.Store.ListPolicies(ctx)
	if err != nil {
		cs.Log.WithError(err).Error("sweep failed to list policies")
		return 0
	}

	canceledCount := 0
	for _, policy := range policies {
		if policy.Status != billing.StatusActive {
			continue
		}

		account, err := billing.OpenAccount(ctx, cs.Store, cs.Log, policy.ID)
		if err != nil {
			cs.Log.WithError(err).WithField("policy_id", policy.ID).
				Error("sweep failed to open account")
			continue
		}

		canceled, err := account.MakeCancelation(ctx, sweepCancelDescription, asOf, asOf)
		if err != nil {
			cs.Log.WithError(err).WithField("policy_id", policy.ID).
				Error("sweep failed to evaluate cancellation")
			continue
		}
		if canceled {
			canceledCount++
			cs.Log.WithFields(logrus.Fields{
				"policy_id": policy.ID,
				"as_of":     asOf.String(),
			}).Info("policy canceled for non-payment")
		}
	}

	if canceledCount > 0 {
		cs.Log.WithField("canceled", canceledCount).Info("cancellation sweep completed")
	}
	return canceledCount
}
