package health

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/vadiminshakov/refuel/internal/entity"
)

func testStrategy() *entity.Strategy {
	return entity.NewStrategy("id-1", "test", "0x"+strings.Repeat("11", 32))
}

func TestEvaluate_Classification(t *testing.T) {
	tests := []struct {
		name        string
		balance     int64
		status      Status
		urgency     Urgency
		willTrigger bool
	}{
		{"below threshold", 500_000_000, StatusBelowThreshold, UrgencyHigh, true},
		{"approaching threshold", 900_000_000, StatusApproachingThreshold, UrgencyMedium, false},
		{"healthy", 1_300_000_000, StatusHealthy, UrgencyLow, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			report := Evaluate(testStrategy(), decimal.NewFromInt(tc.balance))
			assert.Equal(t, tc.status, report.Status)
			assert.Equal(t, tc.urgency, report.Urgency)
			assert.Equal(t, tc.willTrigger, report.WillTrigger)
			assert.NotEmpty(t, report.Recommendation)
		})
	}
}

func TestEvaluate_ExactThresholdIsApproaching(t *testing.T) {
	// the comparison is strict <, so balance == threshold is not below
	report := Evaluate(testStrategy(), decimal.NewFromInt(entity.ThresholdMicro))
	assert.Equal(t, StatusApproachingThreshold, report.Status)
	assert.False(t, report.WillTrigger)
	assert.True(t, report.Metrics.DistanceFromThreshold.IsZero())
	assert.True(t, report.Metrics.PercentageOfThreshold.Equal(decimal.NewFromInt(100)))
}

func TestEvaluate_Metrics(t *testing.T) {
	report := Evaluate(testStrategy(), decimal.NewFromInt(500_000_000))
	assert.True(t, report.Metrics.DistanceFromThreshold.Equal(decimal.NewFromInt(-100_000_000)),
		"distance may be negative below the floor, got %s", report.Metrics.DistanceFromThreshold)

	report = Evaluate(testStrategy(), decimal.NewFromInt(1_200_000_000))
	assert.True(t, report.Metrics.PercentageOfThreshold.Equal(decimal.NewFromInt(200)))
}

func TestEvaluate_IsPure(t *testing.T) {
	s := testStrategy()
	balance := decimal.NewFromInt(700_000_000)
	first := Evaluate(s, balance)
	second := Evaluate(s, balance)
	assert.Equal(t, first, second)
	assert.True(t, s.Active, "evaluation must not mutate the record")
}
