// Package monitor runs the periodic balance watch over all active
// strategies. Each pass is failure-isolated per strategy: one broken balance
// read never stops the rest of the batch.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/refuel/internal/entity"
	"github.com/vadiminshakov/refuel/internal/events"
	"github.com/vadiminshakov/refuel/internal/registry"
	"github.com/vadiminshakov/refuel/internal/services/health"
	"go.uber.org/zap"
)

// DefaultInterval between monitoring passes. Fixed rate, no jitter.
const DefaultInterval = 30 * time.Second

// BalanceOracle is the read surface the loop needs. The estimated flag means
// the oracle substituted a synthetic value for a failed node read.
type BalanceOracle interface {
	Balance(ctx context.Context, address string) (balance decimal.Decimal, estimated bool)
}

// observation remembers the previous pass for one strategy so the loop can
// infer that the on-chain automation executed a top-up.
type observation struct {
	balance      decimal.Decimal
	belowTrigger bool
}

// Loop periodically refreshes every active strategy's balance, reclassifies
// health and raises notifications near or past the trigger threshold.
type Loop struct {
	store    *registry.Registry
	oracle   BalanceOracle
	bus      *events.Bus
	logger   *zap.Logger
	interval time.Duration

	mu   sync.Mutex
	prev map[string]observation
	stop context.CancelFunc
	done chan struct{}
}

func New(store *registry.Registry, oracle BalanceOracle, bus *events.Bus, interval time.Duration, logger *zap.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		store:    store,
		oracle:   oracle,
		bus:      bus,
		logger:   logger,
		interval: interval,
		prev:     make(map[string]observation),
	}
}

// Start launches the loop in a goroutine. It runs until the context is
// cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.stop = cancel
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		l.logger.Info("monitor started", zap.Duration("interval", l.interval))
		for {
			select {
			case <-ctx.Done():
				l.logger.Info("monitor stopped")
				return
			case <-ticker.C:
				l.RunOnce(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight pass to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	stop, done := l.stop, l.done
	l.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	<-done
}

// RunOnce performs a single monitoring pass over all active strategies.
func (l *Loop) RunOnce(ctx context.Context) {
	for _, strategy := range l.store.ListActive() {
		l.check(ctx, strategy)
	}
}

func (l *Loop) check(ctx context.Context, strategy *entity.Strategy) {
	balance, estimated := l.oracle.Balance(ctx, strategy.TargetAddress)
	if estimated {
		l.bus.Publish(events.Event{
			Type:       events.TypeStrategyError,
			StrategyID: strategy.ID,
			Message:    "balance query failed, monitoring with synthetic value",
		})
		l.logger.Warn("skipping health pass for strategy, balance unavailable",
			zap.String("id", strategy.ID))
		return
	}

	report := health.Evaluate(strategy, balance)
	if report.Status != health.StatusHealthy {
		l.bus.Publish(events.Event{
			Type:       events.TypeLowBalanceAlert,
			StrategyID: strategy.ID,
			Message:    report.Recommendation,
			Balance:    balance.String(),
		})
	}

	l.observeExecution(strategy, balance, report)

	if err := l.store.Touch(strategy.ID, time.Now()); err != nil {
		l.logger.Warn("failed to refresh last-checked time",
			zap.String("id", strategy.ID),
			zap.Error(err))
	}

	l.logger.Debug("strategy checked",
		zap.String("id", strategy.ID),
		zap.String("balance", balance.String()),
		zap.String("status", string(report.Status)))
}

// observeExecution infers that the on-chain automation ran: a strategy that
// was below the trigger on the previous pass and gained at least the top-up
// amount counts as one observed execution. Best effort only, the automation
// executes outside this process and reports nothing back.
func (l *Loop) observeExecution(strategy *entity.Strategy, balance decimal.Decimal, report health.Report) {
	l.mu.Lock()
	previous, seen := l.prev[strategy.ID]
	l.prev[strategy.ID] = observation{balance: balance, belowTrigger: report.WillTrigger}
	l.mu.Unlock()

	if !seen || !previous.belowTrigger {
		return
	}
	gained := balance.Sub(previous.balance)
	if gained.LessThan(strategy.TopupAmount) {
		return
	}

	if err := l.store.RecordExecution(strategy.ID, true, strategy.TopupAmount); err != nil {
		l.logger.Warn("failed to record observed execution",
			zap.String("id", strategy.ID),
			zap.Error(err))
		return
	}
	l.bus.Publish(events.Event{
		Type:       events.TypeTopupObserved,
		StrategyID: strategy.ID,
		Message:    "balance recovered past the trigger, counting one top-up execution",
		Balance:    balance.String(),
	})
}
