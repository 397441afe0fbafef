/*
stats.go - Cycle-level totals, rankings, and projection

PURPOSE:
  Derives everything a user wants to know about the cycle so far from the
  ordered daily summaries:

  - elementwise totals (energy and money)
  - best day (lowest net cost), worst day (highest), most-average day
    (net cost closest to the mean), ties broken by earliest date
  - days in credit (net cost <= 0) vs days owing (> 0)
  - a projected end-of-cycle total, extrapolated linearly from the elapsed
    portion of the cycle

KEY INSIGHT:
  An empty summary list is NOT a zero balance. ComputeStats returns ErrNoData
  so callers can render "awaiting data" instead of a misleading $0.00.

SEE ALSO:
  - aggregate.go: Produces the summaries consumed here
  - balance.go:   Assembles Stats into the final BalancePosition
*/
package billing

import "github.com/shopspring/decimal"

// =============================================================================
// TOTALS
// =============================================================================

// SumEnergy computes the elementwise energy and money sums over summaries.
// Fee fields are left zero; the engine fills them in.
func SumEnergy(summaries []DailySummary) Totals {
	var t Totals
	for _, d := range summaries {
		t.ImportKWh += d.ImportKWh
		t.ExportKWh += d.ExportKWh
		t.ImportCost = t.ImportCost.Add(d.ImportCost)
		t.ExportCredit = t.ExportCredit.Add(d.ExportCredit)
	}
	t.NetKWh = t.ImportKWh - t.ExportKWh
	t.EnergyCost = t.ImportCost.Sub(t.ExportCredit)
	return t
}

// =============================================================================
// RANKING STATISTICS
// =============================================================================

// ComputeStats derives the ranking statistics for the cycle. summaries must
// be in ascending date order (as returned by Aggregate); the first of any
// tied days wins, which is the earliest by date.
//
// Returns ErrNoData when summaries is empty - a signal, not a crash.
func ComputeStats(summaries []DailySummary, cycle BillingCycle, today Date) (Stats, error) {
	if len(summaries) == 0 {
		return Stats{}, ErrNoData
	}

	stats := Stats{
		BestDay:       summaries[0],
		WorstDay:      summaries[0],
		DaysElapsed:   cycle.DaysElapsed(today),
		DaysRemaining: cycle.DaysRemaining(today),
	}

	sum := decimal.Zero
	for _, d := range summaries {
		net := d.NetCost()
		sum = sum.Add(net)

		if net.LessThan(stats.BestDay.NetCost()) {
			stats.BestDay = d
		}
		if net.GreaterThan(stats.WorstDay.NetCost()) {
			stats.WorstDay = d
		}
		if net.IsPositive() {
			stats.DaysOwing++
		} else {
			stats.DaysInCredit++
		}
	}

	mean := sum.Div(decimal.NewFromInt(int64(len(summaries))))
	stats.MostAverageDay = summaries[0]
	closest := summaries[0].NetCost().Sub(mean).Abs()
	for _, d := range summaries[1:] {
		dist := d.NetCost().Sub(mean).Abs()
		if dist.LessThan(closest) {
			closest = dist
			stats.MostAverageDay = d
		}
	}

	return stats, nil
}

// =============================================================================
// PROJECTION
// =============================================================================

// ProjectTotal extrapolates the elapsed cost (energy net cost plus fees
// accrued so far) across the full cycle length. On the cycle's final day the
// scaling factor is exactly 1 and the projection equals the elapsed cost.
func ProjectTotal(elapsedCost decimal.Decimal, cycle BillingCycle, today Date) Projection {
	elapsed := cycle.DaysElapsed(today)
	if elapsed <= 0 {
		return Projection{InsufficientData: true}
	}

	length := decimal.NewFromInt(int64(cycle.Length()))
	return Projection{
		ProjectedTotal: elapsedCost.Mul(length).Div(decimal.NewFromInt(int64(elapsed))),
	}
}
