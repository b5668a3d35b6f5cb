/*
scheduler.go - Background settlement scheduler

PURPOSE:
  Periodically runs a settlement sweep so scheduled payments complete on
  time even when nobody is querying balances. The balance facade also
  sweeps on read; this ticker is the safety net for idle periods.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Sweeps immediately on start, then on every tick
  - A failed sweep is logged and counted; the next tick retries naturally

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 minute)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSettlementScheduler(settler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSettlement endpoint (manual sweep)
  - ledger/settlement.go: the sweep itself
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vero/finance-engine/ledger"
)

// SettlementScheduler sweeps due scheduled payments in the background.
type SettlementScheduler struct {
	Settler       *ledger.Settler
	CheckInterval time.Duration
	Enabled       bool
	Log           logrus.FieldLogger

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSettlementScheduler creates a new scheduler around the settler.
func NewSettlementScheduler(settler *ledger.Settler) *SettlementScheduler {
	return &SettlementScheduler{
		Settler:       settler,
		CheckInterval: 1 * time.Minute,
		Enabled:       true,
		Log:           logrus.StandardLogger(),
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SettlementScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		ss.Log.Info("settlement scheduler disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	ss.Log.WithField("interval", ss.CheckInterval).Info("settlement scheduler started")
}

// Stop stops the scheduler and waits for an in-flight sweep to finish.
func (ss *SettlementScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		ss.Log.Info("settlement scheduler stopped")
	}
}

func (ss *SettlementScheduler) run() {
	defer ss.wg.Done()

	// Sweep immediately on start
	ss.sweep()

	for {
		select {
		case <-ss.ticker.C:
			ss.sweep()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SettlementScheduler) sweep() {
	ctx := context.Background()

	settled, err := ss.Settler.ProcessScheduledPayments(ctx)
	if err != nil {
		settlementFailuresTotal.Inc()
		ss.Log.WithError(err).Error("scheduled settlement sweep failed")
		return
	}

	settlementSweepsTotal.Inc()
	settledTransactionsTotal.Add(float64(len(settled)))

	if len(settled) > 0 {
		ss.Log.WithField("count", len(settled)).Info("background sweep settled payments")
	}
}
