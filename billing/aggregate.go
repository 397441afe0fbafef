/*
aggregate.go - Folding interval records into daily summaries

PURPOSE:
  Groups raw priced interval records by calendar date and sums energy and
  money separately for usage vs export, producing one DailySummary per date
  that has at least one contributing interval.

NUMERIC SEMANTICS:
  Monetary sums accumulate in decimal dollars so that hundreds of small
  interval amounts never drift; kWh sums accumulate in float64. Each day's
  monetary totals are rounded to whole cents (half up) once, after summing,
  matching how the retailer presents daily figures.

ORDER INDEPENDENCE:
  Aggregation is a fold over a set: shuffling the input sequence yields
  identical summaries. Tests rely on this.

SEE ALSO:
  - types.go: IntervalRecord and DailySummary
  - stats.go: Consumes the ordered summaries
*/
package billing

import "sort"

// Aggregate folds interval records into one DailySummary per calendar day,
// restricted to the cycle. Records dated outside [cycle.Start, cycle.End] are
// discarded. Summaries come back in ascending date order; dates with no data
// are simply absent.
func Aggregate(intervals []IntervalRecord, cycle BillingCycle) []DailySummary {
	byDate := make(map[Date]*DailySummary)

	for _, rec := range intervals {
		if !cycle.Contains(rec.Date) {
			continue
		}

		day, ok := byDate[rec.Date]
		if !ok {
			day = &DailySummary{Date: rec.Date}
			byDate[rec.Date] = day
		}

		switch rec.Kind {
		case KindExport:
			day.ExportKWh += rec.KWh
			// Export amounts arrive negative (a credit); store the credit
			// as a positive number so NetCost = ImportCost - ExportCredit.
			day.ExportCredit = day.ExportCredit.Sub(rec.Amount)
		default:
			day.ImportKWh += rec.KWh
			day.ImportCost = day.ImportCost.Add(rec.Amount)
		}
	}

	summaries := make([]DailySummary, 0, len(byDate))
	for _, day := range byDate {
		day.ImportCost = day.ImportCost.Round(2)
		day.ExportCredit = day.ExportCredit.Round(2)
		summaries = append(summaries, *day)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Date.Before(summaries[j].Date)
	})

	return summaries
}
