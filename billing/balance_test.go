package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wattle/billing-engine/billing"
)

// =============================================================================
// FULL CALCULATION
// =============================================================================

func TestCalculate_AssemblesPosition(t *testing.T) {
	// GIVEN: two days of usage and export in a March cycle with both fees set
	// WHEN: calculating mid-cycle
	// THEN: totals combine energy cost and fees; stats and projection agree

	today := date(2024, time.March, 3)
	day1 := date(2024, time.March, 1)
	day2 := date(2024, time.March, 2)

	pos, err := billing.Engine{}.Calculate(billing.CalculationInput{
		Intervals: []billing.IntervalRecord{
			usage(day1, 0, 10, "3.00"),
			export(day1, 30, 4, "-1.00"),
			usage(day2, 0, 8, "2.50"),
		},
		Today:    today,
		StartDay: 1,
		Fees:     schedule("100", "31"), // $1/day surcharge, $31/month subscription
	})
	require.NoError(t, err)

	assert.False(t, pos.Pending)
	require.Len(t, pos.Daily, 2)

	// Energy: 3.00 - 1.00 + 2.50 = 4.50
	assert.True(t, pos.Totals.EnergyCost.Equal(dollars("4.50")),
		"energy cost: %s", pos.Totals.EnergyCost)

	// Fees over Mar 1-3: surcharge 3 x $1; subscription 31 x 3/31 = $3.
	assert.True(t, pos.Totals.Surcharge.Equal(dollars("3")), "surcharge: %s", pos.Totals.Surcharge)
	assert.True(t, pos.Totals.Subscription.Equal(dollars("3")), "subscription: %s", pos.Totals.Subscription)
	assert.True(t, pos.Totals.Fees.Equal(dollars("6")), "fees: %s", pos.Totals.Fees)
	assert.True(t, pos.Totals.GrandTotal.Equal(dollars("10.50")), "grand total: %s", pos.Totals.GrandTotal)

	assert.Equal(t, 18.0, pos.Totals.ImportKWh)
	assert.Equal(t, 4.0, pos.Totals.ExportKWh)
	assert.Equal(t, 14.0, pos.Totals.NetKWh)

	// Projection: (4.50 + 6.00) x 31/3.
	want := dollars("10.50").Mul(dollars("31")).Div(dollars("3"))
	assert.True(t, pos.Projection.ProjectedTotal.Equal(want),
		"projection: %s", pos.Projection.ProjectedTotal)

	assert.Equal(t, 3, pos.Stats.DaysElapsed)
	assert.Equal(t, 28, pos.Stats.DaysRemaining)
}

func TestCalculate_Idempotent(t *testing.T) {
	// Calling twice with identical inputs yields a field-for-field identical
	// position. The engine keeps no state between calls.
	in := billing.CalculationInput{
		Intervals: []billing.IntervalRecord{
			usage(date(2024, time.March, 1), 0, 10, "3.00"),
			export(date(2024, time.March, 1), 30, 4, "-1.00"),
			usage(date(2024, time.March, 2), 0, 8, "2.50"),
		},
		Today:    date(2024, time.March, 5),
		StartDay: 1,
		Fees:     schedule("104.5", "12.50"),
	}

	first, err := billing.Engine{}.Calculate(in)
	require.NoError(t, err)
	second, err := billing.Engine{}.Calculate(in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCalculate_EmptyCycle_Pending(t *testing.T) {
	// GIVEN: a cycle that started 3 days ago with no interval data yet
	// THEN: the position is pending, never a zeroed $0.00 balance

	pos, err := billing.Engine{}.Calculate(billing.CalculationInput{
		Intervals: nil,
		Today:     date(2024, time.March, 3),
		StartDay:  1,
		Fees:      schedule("100", "31"),
	})
	require.NoError(t, err)

	assert.True(t, pos.Pending)
	assert.Empty(t, pos.Daily)
	assert.True(t, pos.Projection.InsufficientData)
	assert.Equal(t, 3, pos.Stats.DaysElapsed)
	assert.Equal(t, 28, pos.Stats.DaysRemaining)
}

func TestCalculate_InvalidStartDay_Fails(t *testing.T) {
	_, err := billing.Engine{}.Calculate(billing.CalculationInput{
		Today:    date(2024, time.March, 3),
		StartDay: 29,
		Fees:     schedule("0", "0"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, billing.ErrInvalidConfiguration)
}

func TestCalculate_FeesStopAtCycleEnd(t *testing.T) {
	// If today somehow extends past the cycle end (late recalculation), fees
	// accrue only through the cycle's final day.
	cycle, err := billing.ComputeCycle(date(2024, time.March, 31), 1)
	require.NoError(t, err)

	pos, err := billing.Engine{}.Calculate(billing.CalculationInput{
		Intervals: []billing.IntervalRecord{
			usage(date(2024, time.March, 1), 0, 1, "0.50"),
		},
		Today:    cycle.End,
		StartDay: 1,
		Fees:     schedule("100", "0"),
	})
	require.NoError(t, err)

	// 31 days x $1.
	assert.True(t, pos.Totals.Surcharge.Equal(dollars("31")),
		"surcharge: %s", pos.Totals.Surcharge)
}
