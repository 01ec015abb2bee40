package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/refuel/internal/entity"
	"github.com/vadiminshakov/refuel/internal/registry"
	"go.uber.org/zap"
)

var testAddress = "0x" + strings.Repeat("11", 32)

type mockGateway struct {
	createResult *entity.CreateResult
	createErr    error
	cancelResult *entity.CancelResult

	lastCreateName string
	lastCancelID   string
}

func (m *mockGateway) Create(_ context.Context, name, _ string) (*entity.CreateResult, error) {
	m.lastCreateName = name
	return m.createResult, m.createErr
}

func (m *mockGateway) Cancel(_ context.Context, strategyID string) *entity.CancelResult {
	m.lastCancelID = strategyID
	return m.cancelResult
}

type staticOracle struct {
	balance decimal.Decimal
}

func (o *staticOracle) Balance(_ context.Context, _ string) (decimal.Decimal, bool) {
	return o.balance, false
}

func testAgent(gw *mockGateway, store *registry.Registry) *Agent {
	return &Agent{
		logger:  zap.NewNop(),
		gateway: gw,
		store:   store,
		oracle:  &staticOracle{balance: decimal.NewFromInt(entity.ThresholdMicro - 1)},
	}
}

func TestParseOperation(t *testing.T) {
	op, err := parseOperation(toolCreate, map[string]any{
		"strategyName":  "Trading Wallet",
		"targetAddress": testAddress,
	})
	require.NoError(t, err)
	assert.Equal(t, KindCreate, op.Kind)
	assert.Equal(t, "Trading Wallet", op.StrategyName)
	assert.Equal(t, testAddress, op.TargetAddress)

	_, err = parseOperation(toolCreate, map[string]any{"strategyName": "x"})
	assert.Error(t, err)

	_, err = parseOperation(toolCancel, nil)
	assert.Error(t, err)

	op, err = parseOperation(toolCheck, nil)
	require.NoError(t, err)
	assert.Equal(t, KindCheck, op.Kind)
	assert.Empty(t, op.StrategyID)

	_, err = parseOperation("delete_everything", nil)
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestDispatch_Create(t *testing.T) {
	gw := &mockGateway{createResult: &entity.CreateResult{
		Success:    true,
		StrategyID: "id-1",
		Mode:       entity.ModeSimulation,
		TxHash:     "0xdead",
		Note:       "deployment failed, running in simulation",
	}}
	a := testAgent(gw, registry.New())

	result := a.dispatch(context.Background(), Operation{
		Kind:          KindCreate,
		StrategyName:  "Trading Wallet",
		TargetAddress: testAddress,
	})
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "id-1", result["strategy_id"])
	assert.Equal(t, "SIMULATION", result["mode"])
	assert.Equal(t, "Trading Wallet", gw.lastCreateName)
}

func TestDispatch_CreateFailureIsStructured(t *testing.T) {
	gw := &mockGateway{createErr: entity.ErrInvalidAddress}
	a := testAgent(gw, registry.New())

	result := a.dispatch(context.Background(), Operation{
		Kind:          KindCreate,
		StrategyName:  "Broken",
		TargetAddress: "0x123",
	})
	assert.Equal(t, false, result["success"])
	assert.Contains(t, result["message"], "invalid")
}

func TestDispatch_Cancel(t *testing.T) {
	gw := &mockGateway{cancelResult: &entity.CancelResult{Success: true, Mode: entity.ModeReal}}
	a := testAgent(gw, registry.New())

	result := a.dispatch(context.Background(), Operation{Kind: KindCancel, StrategyID: "id-1"})
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "id-1", gw.lastCancelID)
}

func TestDispatch_List(t *testing.T) {
	store := registry.New()
	require.NoError(t, store.Put(entity.NewStrategy("a", "first", testAddress)))
	require.NoError(t, store.Put(entity.NewStrategy("b", "second", testAddress)))
	require.NoError(t, store.Deactivate("b"))
	a := testAgent(&mockGateway{}, store)

	result := a.dispatch(context.Background(), Operation{Kind: KindList})
	assert.Equal(t, true, result["success"])
	assert.Equal(t, 1, result["count"])

	strategies, ok := result["strategies"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, strategies, 1)
	assert.Equal(t, "a", strategies[0]["id"])
}

func TestDispatch_CheckByID(t *testing.T) {
	store := registry.New()
	require.NoError(t, store.Put(entity.NewStrategy("a", "first", testAddress)))
	a := testAgent(&mockGateway{}, store)

	result := a.dispatch(context.Background(), Operation{Kind: KindCheck, StrategyID: "a"})
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "below_threshold", result["status"])
	assert.Equal(t, true, result["will_trigger"])

	// an explicit check refreshes the record's last-checked time
	got, err := store.Get("a")
	require.NoError(t, err)
	assert.False(t, got.LastChecked.IsZero())
}

func TestDispatch_CheckUnknownID(t *testing.T) {
	a := testAgent(&mockGateway{}, registry.New())

	result := a.dispatch(context.Background(), Operation{Kind: KindCheck, StrategyID: "missing"})
	assert.Equal(t, false, result["success"])
	assert.Equal(t, "Strategy not found", result["message"])
}

func TestDispatch_CheckAll(t *testing.T) {
	store := registry.New()
	require.NoError(t, store.Put(entity.NewStrategy("a", "first", testAddress)))
	require.NoError(t, store.Put(entity.NewStrategy("b", "second", testAddress)))
	a := testAgent(&mockGateway{}, store)

	result := a.dispatch(context.Background(), Operation{Kind: KindCheck})
	assert.Equal(t, true, result["success"])
	assert.Equal(t, 2, result["count"])
}

func TestDispatch_Analytics(t *testing.T) {
	store := registry.New()
	sim := entity.NewStrategy("a", "sim", testAddress)
	sim.Mode = entity.ModeSimulation
	require.NoError(t, store.Put(sim))
	require.NoError(t, store.Put(entity.NewStrategy("b", "real", testAddress)))
	require.NoError(t, store.Deactivate("b"))
	require.NoError(t, store.RecordExecution("a", true, entity.TopupAmount()))
	a := testAgent(&mockGateway{}, store)

	result := a.dispatch(context.Background(), Operation{Kind: KindAnalytics, Timeframe: "last week"})
	assert.Equal(t, true, result["success"])
	assert.EqualValues(t, 2, result["strategies_created"])
	assert.Equal(t, 1, result["strategies_active"])
	assert.Equal(t, 1, result["strategies_simulated"])
	assert.Equal(t, 1, result["topups_observed"])
	assert.Equal(t, entity.TopupAmount().String(), result["total_transferred"])
	assert.Equal(t, "last week", result["timeframe"])
}

func TestExecuteToolCall_BadArguments(t *testing.T) {
	a := testAgent(&mockGateway{}, registry.New())

	result := a.executeToolCall(context.Background(), toolCreate, "{not json")
	assert.Equal(t, false, result["success"])

	result = a.executeToolCall(context.Background(), "no_such_tool", "{}")
	assert.Equal(t, false, result["success"])
	assert.Contains(t, result["message"], "unknown operation")
}
