/* sqlite_test.go - SQLite store verification

PURPOSE:
  Round-trips every table through an in-memory database: exact decimal
  persistence, replace-by-day interval semantics, purge, and snapshot
  overwrite.
*/
package sqlite

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wattle/billing-engine/billing"
	"github.com/wattle/billing-engine/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func interval(d billing.Date, offset billing.TimeOfDay, kind billing.IntervalKind, kwh float64, amount string) billing.IntervalRecord {
	return billing.IntervalRecord{
		Date:   d,
		Start:  offset,
		Kind:   kind,
		KWh:    kwh,
		Amount: decimal.RequireFromString(amount),
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetSettings(ctx, "site-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	in := store.SiteSettings{
		SiteID:         "site-1",
		StartDay:       20,
		SurchargeCents: decimal.RequireFromString("104.5"),
		Subscription:   decimal.RequireFromString("12.95"),
	}
	require.NoError(t, s.SaveSettings(ctx, in))

	out, err := s.GetSettings(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, 20, out.StartDay)
	// Rates survive the round trip exactly, no float drift.
	assert.True(t, out.SurchargeCents.Equal(in.SurchargeCents))
	assert.True(t, out.Subscription.Equal(in.Subscription))
	assert.False(t, out.UpdatedAt.IsZero())
}

func TestSettingsUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := store.SiteSettings{SiteID: "site-1", StartDay: 1,
		SurchargeCents: decimal.Zero, Subscription: decimal.Zero}
	require.NoError(t, s.SaveSettings(ctx, first))

	second := first
	second.StartDay = 15
	second.SurchargeCents = decimal.RequireFromString("50")
	require.NoError(t, s.SaveSettings(ctx, second))

	out, err := s.GetSettings(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, 15, out.StartDay)
	assert.True(t, out.SurchargeCents.Equal(decimal.RequireFromString("50")))
}

func TestIntervalsSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d1 := billing.NewDate(2024, 3, 1)
	d2 := billing.NewDate(2024, 3, 2)
	require.NoError(t, s.SaveIntervals(ctx, "site-1", []billing.IntervalRecord{
		interval(d2, 0, billing.KindUsage, 1.2, "0.36"),
		interval(d1, 30, billing.KindExport, 2.0, "-0.15"),
		interval(d1, 0, billing.KindUsage, 0.8, "0.24"),
	}))

	out, err := s.LoadIntervals(ctx, "site-1", d1, d2)
	require.NoError(t, err)
	require.Len(t, out, 3)

	// Ordered by date, then start offset.
	assert.Equal(t, d1, out[0].Date)
	assert.Equal(t, billing.TimeOfDay(0), out[0].Start)
	assert.Equal(t, billing.TimeOfDay(30), out[1].Start)
	assert.Equal(t, d2, out[2].Date)

	assert.Equal(t, billing.KindExport, out[1].Kind)
	assert.True(t, out[1].Amount.Equal(decimal.RequireFromString("-0.15")))
	assert.Equal(t, 2.0, out[1].KWh)
}

func TestIntervalsReplaceByDay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d1 := billing.NewDate(2024, 3, 1)
	d2 := billing.NewDate(2024, 3, 2)
	require.NoError(t, s.SaveIntervals(ctx, "site-1", []billing.IntervalRecord{
		interval(d1, 0, billing.KindUsage, 1.0, "0.30"),
		interval(d1, 30, billing.KindUsage, 1.0, "0.30"),
		interval(d2, 0, billing.KindUsage, 1.0, "0.30"),
	}))

	// Re-fetching day 1 with different prices replaces both rows for that
	// day and leaves day 2 untouched.
	require.NoError(t, s.SaveIntervals(ctx, "site-1", []billing.IntervalRecord{
		interval(d1, 0, billing.KindUsage, 1.0, "0.45"),
	}))

	out, err := s.LoadIntervals(ctx, "site-1", d1, d2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].Amount.Equal(decimal.RequireFromString("0.45")))
	assert.Equal(t, d2, out[1].Date)
}

func TestIntervalsIsolatedBySite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := billing.NewDate(2024, 3, 1)
	require.NoError(t, s.SaveIntervals(ctx, "site-1", []billing.IntervalRecord{
		interval(d, 0, billing.KindUsage, 1.0, "0.30"),
	}))

	out, err := s.LoadIntervals(ctx, "site-2", d, d)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestLastIntervalDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LastIntervalDate(ctx, "site-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SaveIntervals(ctx, "site-1", []billing.IntervalRecord{
		interval(billing.NewDate(2024, 3, 5), 0, billing.KindUsage, 1.0, "0.30"),
		interval(billing.NewDate(2024, 3, 2), 0, billing.KindUsage, 1.0, "0.30"),
	}))

	last, err := s.LastIntervalDate(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, billing.NewDate(2024, 3, 5), last)
}

func TestPurgeIntervalsOutside(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for day := 1; day <= 10; day++ {
		require.NoError(t, s.SaveIntervals(ctx, "site-1", []billing.IntervalRecord{
			interval(billing.NewDate(2024, 3, day), 0, billing.KindUsage, 1.0, "0.30"),
		}))
	}

	from := billing.NewDate(2024, 3, 4)
	to := billing.NewDate(2024, 3, 7)
	require.NoError(t, s.PurgeIntervalsOutside(ctx, "site-1", from, to))

	out, err := s.LoadIntervals(ctx, "site-1", billing.NewDate(2024, 3, 1), billing.NewDate(2024, 3, 31))
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, from, out[0].Date)
	assert.Equal(t, to, out[3].Date)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetSnapshot(ctx, "site-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	first := store.PositionSnapshot{
		SiteID:     "site-1",
		CycleStart: billing.NewDate(2024, 3, 1),
		Payload:    []byte(`{"grand_total":10.5}`),
	}
	require.NoError(t, s.SaveSnapshot(ctx, first))

	out, err := s.GetSnapshot(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, first.CycleStart, out.CycleStart)
	assert.JSONEq(t, `{"grand_total":10.5}`, string(out.Payload))

	// Overwrite on the next refresh.
	second := first
	second.CycleStart = billing.NewDate(2024, 4, 1)
	second.Payload = []byte(`{"grand_total":2.0}`)
	require.NoError(t, s.SaveSnapshot(ctx, second))

	out, err = s.GetSnapshot(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, billing.NewDate(2024, 4, 1), out.CycleStart)
	assert.JSONEq(t, `{"grand_total":2.0}`, string(out.Payload))
}
