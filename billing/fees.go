/*
fees.go - Daily surcharge accrual and monthly subscription proration

PURPOSE:
  Computes the two fee components over an inclusive date range:

  AccruedSurcharge:     surchargeCentsPerDay / 100 x days in range
  ProratedSubscription: subscriptionPerMonth x days in range
                                             / days in fromDate's month

KNOWN APPROXIMATION:
  A cycle can span two months of different lengths. Proration uses the
  STARTING month's length as the denominator for the whole range rather than
  splitting at the month boundary. The difference is at most a few cents per
  cycle and the retailer's own statements do the same, so this is deliberate.

SEE ALSO:
  - types.go:   FeeSchedule
  - balance.go: Applies fees over [cycle start, min(today, cycle end)]
*/
package billing

import "github.com/shopspring/decimal"

// validateFeeRange rejects inverted ranges and negative rates.
func validateFeeRange(fs FeeSchedule, from, to Date) error {
	if to.Before(from) {
		return &InvalidConfigurationError{
			Field:  "fee_range",
			Value:  from.String() + ".." + to.String(),
			Reason: "to date before from date",
		}
	}
	if fs.SurchargeCentsPerDay.IsNegative() {
		return &InvalidConfigurationError{
			Field:  "surcharge_cents_per_day",
			Value:  fs.SurchargeCentsPerDay,
			Reason: "must not be negative",
		}
	}
	if fs.SubscriptionPerMonth.IsNegative() {
		return &InvalidConfigurationError{
			Field:  "subscription_per_month",
			Value:  fs.SubscriptionPerMonth,
			Reason: "must not be negative",
		}
	}
	return nil
}

// AccruedSurcharge returns the surcharge accrued over [from, to] inclusive,
// in dollars.
func AccruedSurcharge(fs FeeSchedule, from, to Date) (decimal.Decimal, error) {
	if err := validateFeeRange(fs, from, to); err != nil {
		return decimal.Zero, err
	}

	days := decimal.NewFromInt(int64(DaysBetween(from, to) + 1))
	return fs.SurchargeCentsPerDay.Div(cents100).Mul(days), nil
}

// ProratedSubscription returns the monthly subscription prorated over
// [from, to] inclusive, using from's calendar month as the denominator.
func ProratedSubscription(fs FeeSchedule, from, to Date) (decimal.Decimal, error) {
	if err := validateFeeRange(fs, from, to); err != nil {
		return decimal.Zero, err
	}

	days := decimal.NewFromInt(int64(DaysBetween(from, to) + 1))
	monthDays := decimal.NewFromInt(int64(DaysInMonth(from)))
	return fs.SubscriptionPerMonth.Mul(days).Div(monthDays), nil
}
