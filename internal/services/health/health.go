// Package health classifies a strategy's balance against the fixed trigger
// threshold. Evaluate is pure: no I/O, deterministic given its inputs, shared
// by on-demand status checks and the monitor loop.
package health

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/refuel/internal/entity"
)

// Status is the three-tier balance classification.
type Status string

const (
	StatusBelowThreshold       Status = "below_threshold"
	StatusApproachingThreshold Status = "approaching_threshold"
	StatusHealthy              Status = "healthy"
)

// Urgency maps one-to-one onto Status.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// Metrics are derived figures for display and analytics.
type Metrics struct {
	// DistanceFromThreshold is balance - threshold; negative below the floor.
	DistanceFromThreshold decimal.Decimal
	// PercentageOfThreshold is balance / threshold * 100.
	PercentageOfThreshold decimal.Decimal
}

// Report is the full evaluation outcome for one strategy.
type Report struct {
	Status         Status
	Urgency        Urgency
	WillTrigger    bool
	Recommendation string
	Metrics        Metrics
}

// Evaluate classifies balance against the strategy's threshold.
// The comparison is strict: balance == threshold is approaching, not below.
func Evaluate(s *entity.Strategy, balance decimal.Decimal) Report {
	threshold := s.Threshold
	if threshold.IsZero() {
		threshold = entity.Threshold()
	}
	alertBand := threshold.Mul(decimal.NewFromInt(2))

	report := Report{
		WillTrigger: balance.LessThan(threshold),
		Metrics: Metrics{
			DistanceFromThreshold: balance.Sub(threshold),
			PercentageOfThreshold: balance.Div(threshold).Mul(decimal.NewFromInt(100)),
		},
	}

	switch {
	case balance.LessThan(threshold):
		report.Status = StatusBelowThreshold
		report.Urgency = UrgencyHigh
		report.Recommendation = fmt.Sprintf(
			"balance is below the %s threshold, the next automation pass will top up %s",
			formatUnits(threshold), formatUnits(s.TopupAmount))
	case balance.LessThan(alertBand):
		report.Status = StatusApproachingThreshold
		report.Urgency = UrgencyMedium
		report.Recommendation = fmt.Sprintf(
			"balance is within 2x of the %s threshold, a top-up is likely soon",
			formatUnits(threshold))
	default:
		report.Status = StatusHealthy
		report.Urgency = UrgencyLow
		report.Recommendation = "balance is comfortably above the threshold, no action needed"
	}
	return report
}

func formatUnits(micro decimal.Decimal) string {
	return micro.Div(decimal.NewFromInt(entity.MicroPerUnit)).String() + " SUPRA"
}
