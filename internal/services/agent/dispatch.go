package agent

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/refuel/internal/entity"
	"github.com/vadiminshakov/refuel/internal/registry"
	"github.com/vadiminshakov/refuel/internal/services/health"
)

// executionGateway is the mutation surface the agent dispatches into.
type executionGateway interface {
	Create(ctx context.Context, name, targetAddress string) (*entity.CreateResult, error)
	Cancel(ctx context.Context, strategyID string) *entity.CancelResult
}

// balanceOracle is the read surface for status checks.
type balanceOracle interface {
	Balance(ctx context.Context, address string) (balance decimal.Decimal, estimated bool)
}

// dispatch executes one parsed operation and returns a machine-readable
// result for the model's final text-generation pass. Failures come back as
// structured {success:false} results, never as raised errors.
func (a *Agent) dispatch(ctx context.Context, op Operation) map[string]any {
	switch op.Kind {
	case KindCreate:
		result, err := a.gateway.Create(ctx, op.StrategyName, op.TargetAddress)
		if err != nil {
			return map[string]any{"success": false, "message": err.Error()}
		}
		return map[string]any{
			"success":     result.Success,
			"strategy_id": result.StrategyID,
			"mode":        string(result.Mode),
			"tx_hash":     result.TxHash,
			"note":        result.Note,
			"message":     result.Message,
		}

	case KindCancel:
		result := a.gateway.Cancel(ctx, op.StrategyID)
		return map[string]any{
			"success": result.Success,
			"mode":    string(result.Mode),
			"note":    result.Note,
			"message": result.Message,
		}

	case KindList:
		active := a.store.ListActive()
		strategies := make([]map[string]any, 0, len(active))
		for _, s := range active {
			strategies = append(strategies, map[string]any{
				"id":             s.ID,
				"name":           s.Name,
				"target_address": s.TargetAddress,
				"mode":           string(s.Mode),
				"created_at":     s.CreatedAt.Format(time.RFC3339),
			})
		}
		return map[string]any{"success": true, "count": len(strategies), "strategies": strategies}

	case KindCheck:
		return a.checkStatus(ctx, op.StrategyID)

	case KindAnalytics:
		return a.analytics(op.Timeframe)

	default:
		return map[string]any{"success": false, "message": ErrUnknownOperation.Error()}
	}
}

// checkStatus evaluates one strategy, or every active one when no id is given.
func (a *Agent) checkStatus(ctx context.Context, strategyID string) map[string]any {
	if strategyID == "" {
		active := a.store.ListActive()
		reports := make([]map[string]any, 0, len(active))
		for _, s := range active {
			reports = append(reports, a.evaluateStrategy(ctx, s))
		}
		return map[string]any{"success": true, "count": len(reports), "strategies": reports}
	}

	strategy, err := a.store.Get(strategyID)
	if errors.Is(err, registry.ErrNotFound) {
		return map[string]any{"success": false, "message": "Strategy not found"}
	}
	report := a.evaluateStrategy(ctx, strategy)
	report["success"] = true
	return report
}

func (a *Agent) evaluateStrategy(ctx context.Context, s *entity.Strategy) map[string]any {
	balance, estimated := a.oracle.Balance(ctx, s.TargetAddress)
	report := health.Evaluate(s, balance)

	// an explicit status check counts as a monitoring pass for this record
	_ = a.store.Touch(s.ID, time.Now())

	return map[string]any{
		"id":                      s.ID,
		"name":                    s.Name,
		"active":                  s.Active,
		"mode":                    string(s.Mode),
		"balance":                 balance.String(),
		"balance_estimated":       estimated,
		"status":                  string(report.Status),
		"urgency":                 string(report.Urgency),
		"will_trigger":            report.WillTrigger,
		"recommendation":          report.Recommendation,
		"distance_from_threshold": report.Metrics.DistanceFromThreshold.String(),
		"percentage_of_threshold": report.Metrics.PercentageOfThreshold.StringFixed(1),
		"execution_count":         s.ExecutionCount,
		"success_rate":            s.SuccessRate,
		"total_transferred":       s.TotalTransferred.String(),
	}
}

// analytics summarizes the registry. The timeframe is echoed back untouched:
// all records live only within this process run.
func (a *Agent) analytics(timeframe string) map[string]any {
	all := a.store.ListAll()
	var active, simulated, executions int
	transferred := decimal.Zero
	for _, s := range all {
		if s.Active {
			active++
		}
		if s.Mode == entity.ModeSimulation {
			simulated++
		}
		executions += s.ExecutionCount
		transferred = transferred.Add(s.TotalTransferred)
	}
	result := map[string]any{
		"success":              true,
		"strategies_created":   a.store.Created(),
		"strategies_active":    active,
		"strategies_simulated": simulated,
		"topups_observed":      executions,
		"total_transferred":    transferred.String(),
	}
	if timeframe != "" {
		result["timeframe"] = timeframe
	}
	return result
}
