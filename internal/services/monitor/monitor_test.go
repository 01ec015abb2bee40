package monitor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/refuel/internal/entity"
	"github.com/vadiminshakov/refuel/internal/events"
	"github.com/vadiminshakov/refuel/internal/registry"
	"go.uber.org/zap"
)

// mockOracle serves per-address balances; addresses in failing are reported
// as estimated reads.
type mockOracle struct {
	balances map[string]decimal.Decimal
	failing  map[string]bool
}

func (m *mockOracle) Balance(_ context.Context, address string) (decimal.Decimal, bool) {
	if m.failing[address] {
		return decimal.NewFromInt(2 * entity.ThresholdMicro), true
	}
	return m.balances[address], false
}

func addr(b byte) string {
	return "0x" + strings.Repeat(string([]byte{'0' + b}), 64)
}

func drain(ch chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestRunOnce_FailureIsolation(t *testing.T) {
	store := registry.New()
	require.NoError(t, store.Put(entity.NewStrategy("a", "first", addr(1))))
	require.NoError(t, store.Put(entity.NewStrategy("b", "second", addr(2))))
	require.NoError(t, store.Put(entity.NewStrategy("c", "third", addr(3))))

	oracle := &mockOracle{
		balances: map[string]decimal.Decimal{
			addr(1): decimal.NewFromInt(2 * entity.ThresholdMicro),
			addr(3): decimal.NewFromInt(2 * entity.ThresholdMicro),
		},
		failing: map[string]bool{addr(2): true},
	}
	bus := events.NewBus(16)
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	loop := New(store, oracle, bus, time.Minute, zap.NewNop())
	loop.RunOnce(context.Background())

	// the broken middle read must not stop the pass
	first, err := store.Get("a")
	require.NoError(t, err)
	assert.False(t, first.LastChecked.IsZero())

	third, err := store.Get("c")
	require.NoError(t, err)
	assert.False(t, third.LastChecked.IsZero())

	// the failed strategy is reported but not marked checked
	second, err := store.Get("b")
	require.NoError(t, err)
	assert.True(t, second.LastChecked.IsZero())

	var errEvents []events.Event
	for _, e := range drain(sub) {
		if e.Type == events.TypeStrategyError {
			errEvents = append(errEvents, e)
		}
	}
	require.Len(t, errEvents, 1)
	assert.Equal(t, "b", errEvents[0].StrategyID)
}

func TestRunOnce_LowBalanceAlert(t *testing.T) {
	store := registry.New()
	require.NoError(t, store.Put(entity.NewStrategy("a", "low", addr(1))))

	oracle := &mockOracle{
		balances: map[string]decimal.Decimal{
			addr(1): decimal.NewFromInt(entity.ThresholdMicro - 1),
		},
	}
	bus := events.NewBus(16)
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	loop := New(store, oracle, bus, time.Minute, zap.NewNop())
	loop.RunOnce(context.Background())

	published := drain(sub)
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeLowBalanceAlert, published[0].Type)
	assert.Equal(t, "a", published[0].StrategyID)
	assert.NotEmpty(t, published[0].Balance)
}

func TestRunOnce_HealthyIsQuiet(t *testing.T) {
	store := registry.New()
	require.NoError(t, store.Put(entity.NewStrategy("a", "fine", addr(1))))

	oracle := &mockOracle{
		balances: map[string]decimal.Decimal{
			addr(1): decimal.NewFromInt(3 * entity.ThresholdMicro),
		},
	}
	bus := events.NewBus(16)
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	loop := New(store, oracle, bus, time.Minute, zap.NewNop())
	loop.RunOnce(context.Background())

	assert.Empty(t, drain(sub))
}

func TestObserveExecution_InfersTopup(t *testing.T) {
	store := registry.New()
	require.NoError(t, store.Put(entity.NewStrategy("a", "watched", addr(1))))

	oracle := &mockOracle{
		balances: map[string]decimal.Decimal{
			addr(1): decimal.NewFromInt(entity.ThresholdMicro - 10_000_000),
		},
	}
	bus := events.NewBus(16)
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	loop := New(store, oracle, bus, time.Minute, zap.NewNop())

	// first pass sees the strategy below the trigger
	loop.RunOnce(context.Background())

	// the automation tops up between passes
	oracle.balances[addr(1)] = decimal.NewFromInt(entity.ThresholdMicro - 10_000_000 + entity.TopupMicro)
	loop.RunOnce(context.Background())

	got, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 1, got.ExecutionCount)
	assert.True(t, got.TotalTransferred.Equal(entity.TopupAmount()))

	var observed int
	for _, e := range drain(sub) {
		if e.Type == events.TypeTopupObserved {
			observed++
		}
	}
	assert.Equal(t, 1, observed)
}

func TestObserveExecution_SmallGainIgnored(t *testing.T) {
	store := registry.New()
	require.NoError(t, store.Put(entity.NewStrategy("a", "watched", addr(1))))

	oracle := &mockOracle{
		balances: map[string]decimal.Decimal{
			addr(1): decimal.NewFromInt(entity.ThresholdMicro - 10_000_000),
		},
	}
	bus := events.NewBus(16)
	loop := New(store, oracle, bus, time.Minute, zap.NewNop())

	loop.RunOnce(context.Background())
	oracle.balances[addr(1)] = decimal.NewFromInt(entity.ThresholdMicro - 5_000_000)
	loop.RunOnce(context.Background())

	got, err := store.Get("a")
	require.NoError(t, err)
	assert.Zero(t, got.ExecutionCount)
}

func TestStartStop(t *testing.T) {
	store := registry.New()
	oracle := &mockOracle{balances: map[string]decimal.Decimal{}}
	loop := New(store, oracle, events.NewBus(1), 10*time.Millisecond, zap.NewNop())

	loop.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	loop.Stop()

	// Stop is idempotent
	loop.Stop()
}
