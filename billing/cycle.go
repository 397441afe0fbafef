/*
cycle.go - Billing cycle date arithmetic

PURPOSE:
  Determines the active billing cycle for a reference date and a configured
  start-day-of-month. A cycle runs from the most recent occurrence of the
  start day through the day before its next occurrence.

KEY INSIGHT:
  The start day is restricted to [1, 28] on purpose: advancing one calendar
  month and keeping the same day-of-month then never overflows a short month,
  so no clamping logic is ever needed.

EXAMPLES:
  startDay=1,  today=2024-03-15 -> [2024-03-01, 2024-03-31], elapsed 15, remaining 16
  startDay=20, today=2024-03-15 -> [2024-02-20, 2024-03-19]

SEE ALSO:
  - date.go:    Date arithmetic primitives
  - balance.go: Uses ComputeCycle as step one of every calculation
*/
package billing

// Start-day bounds. 28 keeps next-month arithmetic overflow-free.
const (
	MinStartDay = 1
	MaxStartDay = 28
)

// =============================================================================
// BILLING CYCLE - One start-day-to-start-day span of calendar days
// =============================================================================

// BillingCycle is an inclusive [Start, End] span of calendar days. Length is
// 28-31 days depending on which month boundary the cycle crosses.
type BillingCycle struct {
	Start    Date `json:"start"`
	End      Date `json:"end"`
	StartDay int  `json:"start_day"`
}

// Length returns the number of calendar days in the cycle.
func (c BillingCycle) Length() int {
	return DaysBetween(c.Start, c.End) + 1
}

// Contains reports whether the date falls inside the cycle.
func (c BillingCycle) Contains(d Date) bool {
	return d.AfterOrEqual(c.Start) && d.BeforeOrEqual(c.End)
}

// NextStart is the first day of the following cycle.
func (c BillingCycle) NextStart() Date {
	return c.End.AddDays(1)
}

// DaysElapsed counts days from cycle start through today inclusive.
// 1 on the start date itself.
func (c BillingCycle) DaysElapsed(today Date) int {
	return DaysBetween(c.Start, today) + 1
}

// DaysRemaining counts days after today through cycle end.
// 0 on the final day of the cycle.
func (c BillingCycle) DaysRemaining(today Date) int {
	return DaysBetween(today, c.End)
}

// =============================================================================
// CYCLE CALCULATOR
// =============================================================================

// ComputeCycle determines the billing cycle containing today.
//
// If today's day-of-month is on or after startDay the cycle began this month;
// otherwise it began last month. The end date is the day before startDay's
// next occurrence.
func ComputeCycle(today Date, startDay int) (BillingCycle, error) {
	if startDay < MinStartDay || startDay > MaxStartDay {
		return BillingCycle{}, &InvalidConfigurationError{
			Field:  "start_day",
			Value:  startDay,
			Reason: "must be between 1 and 28",
		}
	}

	var start Date
	if today.Day() >= startDay {
		start = NewDate(today.Year(), today.Month(), startDay)
	} else {
		prev := NewDate(today.Year(), today.Month(), 1).AddDays(-1)
		start = NewDate(prev.Year(), prev.Month(), startDay)
	}

	// startDay <= 28, so adding one month never lands on an invalid date.
	next := start.AddMonths(1)

	return BillingCycle{
		Start:    start,
		End:      next.AddDays(-1),
		StartDay: startDay,
	}, nil
}
