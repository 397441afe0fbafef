/*
Package amber is a client for the Amber Electric REST API.

PURPOSE:
  Supplies the two inputs the billing engine cannot compute for itself: raw
  priced half-hourly usage/export records, and site metadata for diagnostics.

  The engine is agnostic to this package. Fetch failures (auth, rate limits,
  unknown site) stay here; on failure the engine is simply not invoked and
  the previously computed position remains on display.

API SHAPE:
  GET /sites                                      site discovery + metadata
  GET /sites/{id}                                 one site
  GET /sites/{id}/usage?startDate=..&endDate=..   priced usage records

  The usage endpoint only accepts short ranges, so FetchUsage walks the
  requested span in 7-day chunks.

SEE ALSO:
  - client.go: HTTP plumbing
  - billing:   IntervalRecord, the type usage records convert into
*/
package amber

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wattle/billing-engine/billing"
)

// Site is the metadata Amber holds for a metering point.
type Site struct {
	ID         string    `json:"id"`
	NMI        string    `json:"nmi"`
	Network    string    `json:"network"`
	Status     string    `json:"status"`
	ActiveFrom string    `json:"activeFrom"`
	Channels   []Channel `json:"channels"`
}

// Channel is one register on the meter (general, controlledLoad, feedIn).
type Channel struct {
	Identifier string `json:"identifier"`
	Type       string `json:"type"`
	Tariff     string `json:"tariff"`
}

// ChannelSummary renders the channel list as one display string, the form
// the diagnostics endpoint exposes.
func (s Site) ChannelSummary() string {
	out := ""
	for i, ch := range s.Channels {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s: %s (%s)", ch.Identifier, ch.Type, ch.Tariff)
	}
	return out
}

// ChannelFeedIn marks export (solar feed-in) records.
const ChannelFeedIn = "feedIn"

// UsageRecord is one priced interval as returned by the usage endpoint.
// Cost is in cents and signed: feedIn records carry a negative cost (a
// credit), everything else a positive spend.
type UsageRecord struct {
	Type        string  `json:"type"`
	Date        string  `json:"date"`
	StartTime   string  `json:"startTime"`
	EndTime     string  `json:"endTime"`
	Duration    int     `json:"duration"`
	ChannelType string  `json:"channelType"`
	KWh         float64 `json:"kwh"`
	Cost        float64 `json:"cost"`
}

// Interval converts the record into the engine's flat interval type.
// feedIn becomes an export interval; Amber reports feed-in kWh negative, so
// energy is taken as magnitude. Cents become decimal dollars, keeping the
// provider's sign convention (credits negative).
func (r UsageRecord) Interval() (billing.IntervalRecord, error) {
	d, err := billing.ParseDate(r.Date)
	if err != nil {
		return billing.IntervalRecord{}, fmt.Errorf("usage record date %q: %w", r.Date, err)
	}

	kind := billing.KindUsage
	kwh := r.KWh
	if r.ChannelType == ChannelFeedIn {
		kind = billing.KindExport
		kwh = math.Abs(kwh)
	}

	return billing.IntervalRecord{
		Date:   d,
		Start:  startOfDayOffset(r.StartTime),
		Kind:   kind,
		KWh:    kwh,
		Amount: decimal.NewFromFloat(r.Cost).Div(decimal.NewFromInt(100)),
	}, nil
}

// startOfDayOffset pulls the local clock time out of an RFC 3339 timestamp
// like "2024-03-15T07:30:00+10:00". Records with no parseable start time
// land at midnight; the aggregator only groups by date, so the offset is
// informational.
func startOfDayOffset(startTime string) billing.TimeOfDay {
	t, err := time.Parse(time.RFC3339, startTime)
	if err != nil {
		return 0
	}
	return billing.TimeOfDay(t.Hour()*60 + t.Minute())
}

// Intervals converts a batch, skipping nothing: a malformed record fails the
// whole batch so a partial day never masquerades as a complete one.
func Intervals(records []UsageRecord) ([]billing.IntervalRecord, error) {
	out := make([]billing.IntervalRecord, 0, len(records))
	for _, r := range records {
		iv, err := r.Interval()
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, nil
}
