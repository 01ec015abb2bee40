package agent

import (
	"github.com/pkg/errors"
)

// ErrUnknownOperation marks a tool name outside the fixed operation set.
// It is fatal for that dispatch only, the conversation continues.
var ErrUnknownOperation = errors.New("unknown operation")

// Kind enumerates the closed set of operations the model may invoke.
type Kind int

const (
	KindCreate Kind = iota
	KindCancel
	KindList
	KindCheck
	KindAnalytics
)

// Operation is the parsed form of one tool call. The classifier's free-form
// output is converted into this variant at the boundary before any core
// logic runs.
type Operation struct {
	Kind          Kind
	StrategyName  string
	TargetAddress string
	StrategyID    string
	Timeframe     string
}

const (
	toolCreate    = "create_auto_topup_strategy"
	toolCancel    = "cancel_automation_strategy"
	toolList      = "list_active_strategies"
	toolCheck     = "check_strategy_status"
	toolAnalytics = "show_analytics"
)

// parseOperation validates a tool invocation against the fixed set.
// Unrecognized names are rejected, not crashed on.
func parseOperation(name string, args map[string]any) (Operation, error) {
	str := func(key string) string {
		v, _ := args[key].(string)
		return v
	}

	switch name {
	case toolCreate:
		op := Operation{Kind: KindCreate, StrategyName: str("strategyName"), TargetAddress: str("targetAddress")}
		if op.StrategyName == "" || op.TargetAddress == "" {
			return Operation{}, errors.New("strategyName and targetAddress are required")
		}
		return op, nil
	case toolCancel:
		op := Operation{Kind: KindCancel, StrategyID: str("strategyId")}
		if op.StrategyID == "" {
			return Operation{}, errors.New("strategyId is required")
		}
		return op, nil
	case toolList:
		return Operation{Kind: KindList}, nil
	case toolCheck:
		return Operation{Kind: KindCheck, StrategyID: str("strategyId")}, nil
	case toolAnalytics:
		return Operation{Kind: KindAnalytics, Timeframe: str("timeframe")}, nil
	default:
		return Operation{}, errors.Wrap(ErrUnknownOperation, name)
	}
}
