/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Internally money is decimal; over the wire it is a plain JSON number.
  Everything is rounded to cents before computing, so the float conversion
  at the boundary loses nothing a client can display.

SEE ALSO:
  - handlers.go: Uses these types
  - billing/types.go: The domain model these project
*/
package api

import (
	"time"

	"github.com/wattle/billing-engine/amber"
	"github.com/wattle/billing-engine/billing"
)

// =============================================================================
// SITE TYPES
// =============================================================================

// SiteDTO represents a site in API responses.
type SiteDTO struct {
	ID         string `json:"id"`
	NMI        string `json:"nmi"`
	Network    string `json:"network"`
	Status     string `json:"status"`
	ActiveFrom string `json:"active_from,omitempty"`
	Channels   string `json:"channels,omitempty"`
}

func toSiteDTO(s amber.Site) SiteDTO {
	return SiteDTO{
		ID:         s.ID,
		NMI:        s.NMI,
		Network:    s.Network,
		Status:     s.Status,
		ActiveFrom: s.ActiveFrom,
		Channels:   s.ChannelSummary(),
	}
}

// =============================================================================
// SETTINGS TYPES
// =============================================================================

// SettingsDTO represents per-site billing parameters.
type SettingsDTO struct {
	SiteID         string  `json:"site_id"`
	StartDay       int     `json:"start_day"`
	SurchargeCents float64 `json:"surcharge_cents"`
	Subscription   float64 `json:"subscription"`
	UpdatedAt      string  `json:"updated_at,omitempty"`
}

// UpdateSettingsRequest is the request to change billing parameters.
// Pointer fields distinguish "leave unchanged" from an explicit zero.
type UpdateSettingsRequest struct {
	StartDay       *int     `json:"start_day,omitempty"`
	SurchargeCents *float64 `json:"surcharge_cents,omitempty"`
	Subscription   *float64 `json:"subscription,omitempty"`
}

// =============================================================================
// POSITION TYPES
// =============================================================================

// DailyDTO is one day of the cycle in API responses.
type DailyDTO struct {
	Date         string  `json:"date"`
	ImportKWh    float64 `json:"import_kwh"`
	ExportKWh    float64 `json:"export_kwh"`
	NetKWh       float64 `json:"net_kwh"`
	ImportCost   float64 `json:"import_cost"`
	ExportCredit float64 `json:"export_credit"`
	NetCost      float64 `json:"net_cost"`
}

// CycleDTO describes the current billing cycle.
type CycleDTO struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	StartDay int    `json:"start_day"`
	Length   int    `json:"length"`
}

// TotalsDTO carries cycle-to-date totals.
type TotalsDTO struct {
	ImportKWh        float64 `json:"import_kwh"`
	ExportKWh        float64 `json:"export_kwh"`
	NetKWh           float64 `json:"net_kwh"`
	ImportCost       float64 `json:"import_cost"`
	ExportCredit     float64 `json:"export_credit"`
	EnergyCost       float64 `json:"energy_cost"`
	Surcharge        float64 `json:"surcharge"`
	Subscription     float64 `json:"subscription"`
	Fees             float64 `json:"fees"`
	GrandTotal       float64 `json:"grand_total"`
	AverageDailyCost float64 `json:"average_daily_cost"`
}

// StatsDTO carries per-cycle statistics.
type StatsDTO struct {
	BestDay        *DailyDTO `json:"best_day,omitempty"`
	WorstDay       *DailyDTO `json:"worst_day,omitempty"`
	MostAverageDay *DailyDTO `json:"most_average_day,omitempty"`
	DaysInCredit   int       `json:"days_in_credit"`
	DaysOwing      int       `json:"days_owing"`
	DaysElapsed    int       `json:"days_elapsed"`
	DaysRemaining  int       `json:"days_remaining"`
}

// ProjectionDTO carries the end-of-cycle forecast.
type ProjectionDTO struct {
	ProjectedTotal   float64 `json:"projected_total"`
	InsufficientData bool    `json:"insufficient_data"`
}

// PositionDTO is the full computed balance position for a site.
type PositionDTO struct {
	SiteID      string        `json:"site_id"`
	Pending     bool          `json:"pending"`
	Cycle       CycleDTO      `json:"cycle"`
	Totals      TotalsDTO     `json:"totals"`
	Projection  ProjectionDTO `json:"projection"`
	Stats       StatsDTO      `json:"stats"`
	RecentDaily []DailyDTO    `json:"recent_daily"`
	ComputedAt  string        `json:"computed_at,omitempty"`
}

// recentDays is how many trailing daily summaries ride along with the
// position. Clients wanting the full cycle use the daily endpoint.
const recentDays = 7

func toDailyDTO(d billing.DailySummary) DailyDTO {
	return DailyDTO{
		Date:         d.Date.String(),
		ImportKWh:    d.ImportKWh,
		ExportKWh:    d.ExportKWh,
		NetKWh:       d.NetKWh(),
		ImportCost:   d.ImportCost.InexactFloat64(),
		ExportCredit: d.ExportCredit.InexactFloat64(),
		NetCost:      d.NetCost().InexactFloat64(),
	}
}

func toDailyDTOs(days []billing.DailySummary) []DailyDTO {
	dtos := make([]DailyDTO, len(days))
	for i, d := range days {
		dtos[i] = toDailyDTO(d)
	}
	return dtos
}

func toPositionDTO(siteID string, pos billing.BalancePosition, computedAt time.Time) PositionDTO {
	dto := PositionDTO{
		SiteID:  siteID,
		Pending: pos.Pending,
		Cycle: CycleDTO{
			Start:    pos.Cycle.Start.String(),
			End:      pos.Cycle.End.String(),
			StartDay: pos.Cycle.StartDay,
			Length:   pos.Cycle.Length(),
		},
		Totals: TotalsDTO{
			ImportKWh:        pos.Totals.ImportKWh,
			ExportKWh:        pos.Totals.ExportKWh,
			NetKWh:           pos.Totals.NetKWh,
			ImportCost:       pos.Totals.ImportCost.InexactFloat64(),
			ExportCredit:     pos.Totals.ExportCredit.InexactFloat64(),
			EnergyCost:       pos.Totals.EnergyCost.InexactFloat64(),
			Surcharge:        pos.Totals.Surcharge.InexactFloat64(),
			Subscription:     pos.Totals.Subscription.InexactFloat64(),
			Fees:             pos.Totals.Fees.InexactFloat64(),
			GrandTotal:       pos.Totals.GrandTotal.InexactFloat64(),
			AverageDailyCost: pos.Totals.AverageDailyCost.InexactFloat64(),
		},
		Projection: ProjectionDTO{
			ProjectedTotal:   pos.Projection.ProjectedTotal.InexactFloat64(),
			InsufficientData: pos.Projection.InsufficientData,
		},
		Stats: StatsDTO{
			DaysInCredit:  pos.Stats.DaysInCredit,
			DaysOwing:     pos.Stats.DaysOwing,
			DaysElapsed:   pos.Stats.DaysElapsed,
			DaysRemaining: pos.Stats.DaysRemaining,
		},
	}

	if !pos.Pending {
		best := toDailyDTO(pos.Stats.BestDay)
		worst := toDailyDTO(pos.Stats.WorstDay)
		avg := toDailyDTO(pos.Stats.MostAverageDay)
		dto.Stats.BestDay = &best
		dto.Stats.WorstDay = &worst
		dto.Stats.MostAverageDay = &avg
	}

	daily := pos.Daily
	if len(daily) > recentDays {
		daily = daily[len(daily)-recentDays:]
	}
	dto.RecentDaily = toDailyDTOs(daily)

	if !computedAt.IsZero() {
		dto.ComputedAt = computedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
