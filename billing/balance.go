/*
balance.go - The orchestrating engine

PURPOSE:
  Composes cycle computation, aggregation, fee accrual, and statistics into
  one calculation producing an immutable BalancePosition.

SEQUENCE:
  1. Compute the billing cycle for today and the configured start day
  2. Aggregate intervals into daily summaries, restricted to the cycle
  3. Accrue fees over [cycle start, min(today, cycle end)]
  4. Compute stats and projection
  5. Assemble totals (energy + fees) and return the position

PURITY:
  Calculate has no side effects and keeps no state. Calling it twice with
  identical inputs yields a value-equal BalancePosition. Re-entrancy and
  parallel invocation (one per site) are inherently safe.

ERROR CONTRACT:
  InvalidConfiguration is returned as an error. NoData from the statistics
  step is absorbed: the position comes back with Pending=true and the caller
  renders an awaiting-data state.

SEE ALSO:
  - cycle.go, aggregate.go, fees.go, stats.go: The composed steps
*/
package billing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// CalculationInput is everything one calculation needs, supplied fresh each
// time. The engine caches nothing.
type CalculationInput struct {
	Intervals []IntervalRecord
	Today     Date
	StartDay  int
	Fees      FeeSchedule
}

// Engine turns interval records into a BalancePosition. Stateless; the zero
// value is ready to use.
type Engine struct{}

// Calculate runs one full balance calculation.
func (Engine) Calculate(in CalculationInput) (BalancePosition, error) {
	cycle, err := ComputeCycle(in.Today, in.StartDay)
	if err != nil {
		return BalancePosition{}, err
	}

	summaries := Aggregate(in.Intervals, cycle)

	feeEnd := in.Today.Min(cycle.End)
	surcharge, err := AccruedSurcharge(in.Fees, cycle.Start, feeEnd)
	if err != nil {
		return BalancePosition{}, err
	}
	subscription, err := ProratedSubscription(in.Fees, cycle.Start, feeEnd)
	if err != nil {
		return BalancePosition{}, err
	}
	fees := surcharge.Add(subscription)

	stats, err := ComputeStats(summaries, cycle, in.Today)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			// Cycle started, nothing measured yet. Pending, not $0.00.
			return BalancePosition{
				Cycle: cycle,
				Stats: Stats{
					DaysElapsed:   cycle.DaysElapsed(in.Today),
					DaysRemaining: cycle.DaysRemaining(in.Today),
				},
				Projection: Projection{InsufficientData: true},
				Pending:    true,
			}, nil
		}
		return BalancePosition{}, err
	}

	totals := SumEnergy(summaries)
	totals.Surcharge = surcharge
	totals.Subscription = subscription
	totals.Fees = fees
	totals.GrandTotal = totals.EnergyCost.Add(fees)
	totals.AverageDailyCost = totals.GrandTotal.DivRound(
		decimal.NewFromInt(int64(len(summaries))), 4)

	return BalancePosition{
		Cycle:      cycle,
		Daily:      summaries,
		Totals:     totals,
		Projection: ProjectTotal(totals.EnergyCost.Add(fees), cycle, in.Today),
		Stats:      stats,
	}, nil
}
