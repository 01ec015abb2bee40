package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Amounts are expressed in micro-units (1 SUPRA = 1_000_000 micro).
const (
	MicroPerUnit = 1_000_000

	// ThresholdMicro is the balance floor below which a top-up triggers.
	// Fixed system-wide in this version, not per-strategy configurable.
	ThresholdMicro = 600 * MicroPerUnit

	// TopupMicro is the amount transferred by the on-chain automation
	// to restore the balance above the threshold.
	TopupMicro = 50 * MicroPerUnit
)

// Threshold returns the fixed trigger threshold in micro-units.
func Threshold() decimal.Decimal {
	return decimal.NewFromInt(ThresholdMicro)
}

// TopupAmount returns the fixed top-up amount in micro-units.
func TopupAmount() decimal.Decimal {
	return decimal.NewFromInt(TopupMicro)
}

// Mode tells whether an operation reached the chain or was only simulated.
type Mode string

const (
	ModeReal       Mode = "REAL"
	ModeSimulation Mode = "SIMULATION"
)

// Strategy is one configured auto top-up automation bound to a target account.
type Strategy struct {
	ID            string
	Name          string
	TargetAddress string
	Threshold     decimal.Decimal
	TopupAmount   decimal.Decimal

	// RemoteTaskID references the registered on-chain job. Under
	// ModeSimulation it is synthesized locally and does not exist on chain.
	RemoteTaskID uint64
	Mode         Mode
	TxHash       string
	Note         string

	Active      bool
	CreatedAt   time.Time
	LastChecked time.Time

	// Execution statistics are fed by the monitor's best-effort observation
	// of top-ups (the automation itself runs on chain, outside this process).
	ExecutionCount   int
	SuccessRate      float64
	TotalTransferred decimal.Decimal
}

// NewStrategy builds an active record with zeroed statistics.
func NewStrategy(id, name, targetAddress string) *Strategy {
	return &Strategy{
		ID:               id,
		Name:             name,
		TargetAddress:    targetAddress,
		Threshold:        Threshold(),
		TopupAmount:      TopupAmount(),
		Active:           true,
		CreatedAt:        time.Now(),
		SuccessRate:      1.0,
		TotalTransferred: decimal.Zero,
	}
}

func (s *Strategy) String() string {
	return fmt.Sprintf("%s (%s, %s)", s.Name, s.ID, s.Mode)
}

// CreateResult is the structured outcome of a strategy creation request.
type CreateResult struct {
	Success    bool   `json:"success"`
	StrategyID string `json:"strategy_id,omitempty"`
	Mode       Mode   `json:"mode,omitempty"`
	TxHash     string `json:"tx_hash,omitempty"`
	Note       string `json:"note,omitempty"`
	Message    string `json:"message,omitempty"`
}

// CancelResult is the structured outcome of a cancellation request.
type CancelResult struct {
	Success bool   `json:"success"`
	Mode    Mode   `json:"mode,omitempty"`
	Note    string `json:"note,omitempty"`
	Message string `json:"message,omitempty"`
}
