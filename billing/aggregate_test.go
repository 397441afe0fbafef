package billing_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/wattle/billing-engine/billing"
)

func usage(d billing.Date, start int, kwh float64, amount string) billing.IntervalRecord {
	return billing.IntervalRecord{
		Date:   d,
		Start:  billing.TimeOfDay(start),
		Kind:   billing.KindUsage,
		KWh:    kwh,
		Amount: dollars(amount),
	}
}

func export(d billing.Date, start int, kwh float64, amount string) billing.IntervalRecord {
	return billing.IntervalRecord{
		Date:   d,
		Start:  billing.TimeOfDay(start),
		Kind:   billing.KindExport,
		KWh:    kwh,
		Amount: dollars(amount),
	}
}

func marchCycle(t *testing.T) billing.BillingCycle {
	t.Helper()
	cycle, err := billing.ComputeCycle(date(2024, time.March, 15), 1)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	return cycle
}

// =============================================================================
// GROUPING AND SUMMING
// =============================================================================

func TestAggregate_GroupsByDay_SplitsUsageAndExport(t *testing.T) {
	// GIVEN: two usage intervals and one export interval on March 2, one
	//        usage interval on March 3
	// WHEN: aggregated
	// THEN: two summaries in date order with separate import/export sums

	cycle := marchCycle(t)
	day2 := date(2024, time.March, 2)
	day3 := date(2024, time.March, 3)

	summaries := billing.Aggregate([]billing.IntervalRecord{
		usage(day2, 0, 1.5, "0.42"),
		usage(day2, 30, 2.0, "0.58"),
		export(day2, 60, 3.0, "-0.25"), // credits arrive negative
		usage(day3, 0, 0.5, "0.10"),
	}, cycle)

	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	first := summaries[0]
	if !first.Date.Equal(day2) {
		t.Errorf("expected first summary for %s, got %s", day2, first.Date)
	}
	if first.ImportKWh != 3.5 {
		t.Errorf("expected 3.5 import kWh, got %v", first.ImportKWh)
	}
	if first.ExportKWh != 3.0 {
		t.Errorf("expected 3.0 export kWh, got %v", first.ExportKWh)
	}
	if !first.ImportCost.Equal(dollars("1.00")) {
		t.Errorf("expected import cost 1.00, got %s", first.ImportCost)
	}
	if !first.ExportCredit.Equal(dollars("0.25")) {
		t.Errorf("expected export credit 0.25, got %s", first.ExportCredit)
	}
	if !first.NetCost().Equal(dollars("0.75")) {
		t.Errorf("expected net cost 0.75, got %s", first.NetCost())
	}

	if !summaries[1].Date.Equal(day3) {
		t.Errorf("expected second summary for %s, got %s", day3, summaries[1].Date)
	}
}

func TestAggregate_DiscardsIntervalsOutsideCycle(t *testing.T) {
	cycle := marchCycle(t)

	summaries := billing.Aggregate([]billing.IntervalRecord{
		usage(date(2024, time.February, 29), 0, 1, "0.50"), // before cycle
		usage(date(2024, time.March, 10), 0, 1, "0.50"),
		usage(date(2024, time.April, 1), 0, 1, "0.50"), // after cycle
	}, cycle)

	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if !summaries[0].Date.Equal(date(2024, time.March, 10)) {
		t.Errorf("kept the wrong day: %s", summaries[0].Date)
	}
}

func TestAggregate_DaysWithoutData_NotEmitted(t *testing.T) {
	// Gaps stay gaps. A missing summary means "no data", never "zero cost".
	cycle := marchCycle(t)

	summaries := billing.Aggregate([]billing.IntervalRecord{
		usage(date(2024, time.March, 1), 0, 1, "0.50"),
		usage(date(2024, time.March, 5), 0, 1, "0.50"),
	}, cycle)

	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries (no zero-fill), got %d", len(summaries))
	}
}

func TestAggregate_RoundsDailyMoneyToCents(t *testing.T) {
	cycle := marchCycle(t)
	day := date(2024, time.March, 4)

	// Three thirds of a cent each; the daily total rounds once, after summing.
	summaries := billing.Aggregate([]billing.IntervalRecord{
		usage(day, 0, 0.1, "0.333"),
		usage(day, 30, 0.1, "0.333"),
		usage(day, 60, 0.1, "0.333"),
	}, cycle)

	if !summaries[0].ImportCost.Equal(dollars("1.00")) {
		t.Errorf("expected 0.999 to round to 1.00, got %s", summaries[0].ImportCost)
	}
}

// =============================================================================
// ORDER INDEPENDENCE
// =============================================================================

func TestAggregate_OrderIndependent(t *testing.T) {
	// Property: shuffling the input sequence yields identical summaries.
	cycle := marchCycle(t)

	var intervals []billing.IntervalRecord
	for day := 1; day <= 20; day++ {
		d := date(2024, time.March, day)
		for hh := 0; hh < 48; hh++ {
			intervals = append(intervals, usage(d, hh*30, 0.35, "0.11"))
			if hh%4 == 0 {
				intervals = append(intervals, export(d, hh*30, 0.8, "-0.07"))
			}
		}
	}

	want := billing.Aggregate(intervals, cycle)

	shuffled := make([]billing.IntervalRecord, len(intervals))
	copy(shuffled, intervals)
	rng := rand.New(rand.NewSource(42))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	got := billing.Aggregate(shuffled, cycle)

	if len(got) != len(want) {
		t.Fatalf("summary count changed after shuffle: %d vs %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Date.Equal(want[i].Date) ||
			got[i].ImportKWh != want[i].ImportKWh ||
			got[i].ExportKWh != want[i].ExportKWh ||
			!got[i].ImportCost.Equal(want[i].ImportCost) ||
			!got[i].ExportCredit.Equal(want[i].ExportCredit) {
			t.Errorf("summary %d differs after shuffle: %+v vs %+v", i, got[i], want[i])
		}
	}
}
