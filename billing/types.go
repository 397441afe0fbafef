/*
Package billing provides the core balance calculation engine.

PURPOSE:
  This package contains the pure types and algorithms that turn a stream of
  half-hourly usage/export interval records into a cycle-scoped billing
  position: daily summaries, cost totals, fee accruals, projections, and
  ranking statistics (best/worst/most-average day).

KEY CONCEPTS IN THIS FILE (types.go):
  - IntervalRecord: A single priced usage or export interval from the meter
  - DailySummary: One calendar day of aggregated energy and cost
  - FeeSchedule: The two configurable fee components (surcharge, subscription)
  - BalancePosition: The engine's single immutable output value

DESIGN PRINCIPLES:
  1. Purity: No I/O anywhere in this package. Same inputs, same output.
  2. Precision: Monetary values use decimal.Decimal, never float64, so many
     small interval amounts sum without rounding drift. Energy stays float64.
  3. Immutability: Every calculation builds a new BalancePosition; nothing
     is mutated in place.
  4. Flat data model: usage vs export is a two-variant tag on IntervalRecord,
     branched on explicitly. No interval class hierarchy.

USAGE:
  position, err := billing.Engine{}.Calculate(billing.CalculationInput{
      Intervals: intervals,
      Today:     billing.Today(loc),
      StartDay:  1,
      Fees:      schedule,
  })

SEE ALSO:
  - cycle.go:     Billing cycle date arithmetic
  - aggregate.go: Interval -> DailySummary folding
  - fees.go:      Surcharge accrual and subscription proration
  - stats.go:     Totals, rankings, and projection
  - balance.go:   The orchestrating Engine
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// INTERVAL RECORD - Raw priced meter data, one per sub-day interval
// =============================================================================

// IntervalKind tags an interval as grid import (usage) or grid export.
type IntervalKind string

const (
	KindUsage  IntervalKind = "usage"
	KindExport IntervalKind = "export"
)

// IntervalRecord is a single already-priced meter interval as supplied by the
// upstream data provider. Immutable; the engine only ever reads these.
//
// Amount is signed dollars: usage intervals carry a positive spend, export
// intervals carry a negative amount (a credit), following the provider's
// convention. Gaps in a day's intervals are tolerated and contribute zero.
type IntervalRecord struct {
	// Date is the record's local calendar date. Aggregation groups on this,
	// not on the raw timestamp, so a site's reporting timezone is honored.
	Date Date

	// Start is the beginning of the interval within the day.
	Start TimeOfDay

	Kind   IntervalKind
	KWh    float64
	Amount decimal.Decimal
}

// TimeOfDay locates an interval inside its date. Minutes from midnight.
type TimeOfDay int

// =============================================================================
// DAILY SUMMARY - One calendar day of aggregated energy and money
// =============================================================================

// DailySummary is the per-day rollup emitted by Aggregate. Only dates with at
// least one contributing interval produce a summary; "no summary" means "no
// data", never "zero cost".
type DailySummary struct {
	Date Date

	ImportKWh float64
	ExportKWh float64

	// ImportCost is positive spend; ExportCredit is a positive credit.
	ImportCost   decimal.Decimal
	ExportCredit decimal.Decimal
}

// NetKWh is grid import minus export for the day.
func (d DailySummary) NetKWh() float64 { return d.ImportKWh - d.ExportKWh }

// NetCost is what the day cost after export credits. Negative means the day
// ended in credit.
func (d DailySummary) NetCost() decimal.Decimal { return d.ImportCost.Sub(d.ExportCredit) }

// =============================================================================
// FEE SCHEDULE - Host-owned configuration, read-only per calculation
// =============================================================================

// FeeSchedule carries the two configurable fee components. The surrounding
// application owns and edits these values; the engine receives a snapshot per
// calculation and never caches it.
type FeeSchedule struct {
	// SurchargeCentsPerDay accrues once per elapsed day, in cents.
	SurchargeCentsPerDay decimal.Decimal

	// SubscriptionPerMonth is a monthly dollar amount, prorated by day.
	SubscriptionPerMonth decimal.Decimal
}

// =============================================================================
// BALANCE POSITION - The engine's single output value
// =============================================================================

// Totals are the cycle-to-date sums across all days with data, plus fees.
type Totals struct {
	ImportKWh float64
	ExportKWh float64
	NetKWh    float64

	ImportCost   decimal.Decimal
	ExportCredit decimal.Decimal

	// EnergyCost is the pre-fee position: ImportCost - ExportCredit.
	EnergyCost decimal.Decimal

	Surcharge    decimal.Decimal
	Subscription decimal.Decimal
	Fees         decimal.Decimal

	// GrandTotal = EnergyCost + Fees. The headline number.
	GrandTotal decimal.Decimal

	// AverageDailyCost = GrandTotal / number of days with data.
	AverageDailyCost decimal.Decimal
}

// Projection extrapolates the elapsed portion of the cycle to its full length.
type Projection struct {
	ProjectedTotal decimal.Decimal

	// InsufficientData is set instead of dividing by zero when the cycle has
	// not accumulated a single elapsed day yet.
	InsufficientData bool
}

// Stats are the cycle-level ranking statistics over days with data.
type Stats struct {
	BestDay        DailySummary // lowest net cost (cheapest / most in credit)
	WorstDay       DailySummary // highest net cost
	MostAverageDay DailySummary // net cost closest to the mean

	DaysInCredit int // days with net cost <= 0
	DaysOwing    int // days with net cost > 0

	DaysElapsed   int
	DaysRemaining int
}

// BalancePosition is the complete, immutable result of one calculation.
//
// When Pending is true the cycle has started but no interval data has arrived
// yet: Daily is empty and Totals/Stats carry zero values that must be rendered
// as "awaiting data", never as $0.00.
type BalancePosition struct {
	Cycle BillingCycle

	// Daily is chronological, one entry per day with data, from cycle start
	// through the latest day that has records.
	Daily []DailySummary

	Totals     Totals
	Projection Projection
	Stats      Stats

	Pending bool
}

// cents100 is the cents-to-dollars divisor.
var cents100 = decimal.NewFromInt(100)
