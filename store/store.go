/*
Package store defines the persistence interfaces for the billing service.

PURPOSE:
  The engine itself is pure; everything stateful lives behind these
  interfaces. Three concerns:

  SettingsStore: per-site billing parameters (cycle start day, surcharge,
                 subscription). Mutated via the settings API.
  IntervalStore: the local cache of priced usage intervals. Lets a refresh
                 fetch only days newer than the cache instead of the whole
                 cycle every hour.
  SnapshotStore: the last successfully computed position per site. Served
                 while a refresh is in flight or after one fails.

IMPLEMENTATIONS:
  store/sqlite: production, WAL mode, auto-migrated schema
  store.Memory: tests and the refresher's unit tests

SEE ALSO:
  - sqlite/sqlite.go: SQLite implementation
  - memory.go:        in-memory implementation
  - api/refresher.go: the main consumer
*/
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wattle/billing-engine/billing"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("store: not found")

// SiteSettings holds the billing parameters a user can adjust per site.
type SiteSettings struct {
	SiteID         string
	StartDay       int
	SurchargeCents decimal.Decimal
	Subscription   decimal.Decimal
	UpdatedAt      time.Time
}

// FeeSchedule converts the stored rates into the engine's fee type.
func (s SiteSettings) FeeSchedule() billing.FeeSchedule {
	return billing.FeeSchedule{
		SurchargeCentsPerDay: s.SurchargeCents,
		SubscriptionPerMonth: s.Subscription,
	}
}

// PositionSnapshot is the serialized result of the last successful
// calculation for a site. Payload is the JSON-encoded position DTO.
type PositionSnapshot struct {
	SiteID     string
	CycleStart billing.Date
	Payload    []byte
	ComputedAt time.Time
}

// SettingsStore persists per-site billing parameters.
type SettingsStore interface {
	// GetSettings returns the settings for a site, or ErrNotFound.
	GetSettings(ctx context.Context, siteID string) (SiteSettings, error)

	// SaveSettings inserts or replaces the settings for a site.
	SaveSettings(ctx context.Context, s SiteSettings) error
}

// IntervalStore caches priced usage intervals keyed by site and date.
type IntervalStore interface {
	// SaveIntervals replaces all cached intervals for the days covered by
	// the batch. Replace-by-day keeps a re-fetched day from doubling up
	// with its stale copy.
	SaveIntervals(ctx context.Context, siteID string, intervals []billing.IntervalRecord) error

	// LoadIntervals returns cached intervals for [from, to] inclusive,
	// ordered by date then start offset.
	LoadIntervals(ctx context.Context, siteID string, from, to billing.Date) ([]billing.IntervalRecord, error)

	// LastIntervalDate returns the most recent cached day for a site, or
	// ErrNotFound when the cache is empty.
	LastIntervalDate(ctx context.Context, siteID string) (billing.Date, error)

	// PurgeIntervalsOutside drops cached intervals dated outside
	// [from, to]. Called when the cycle rolls over.
	PurgeIntervalsOutside(ctx context.Context, siteID string, from, to billing.Date) error
}

// SnapshotStore persists the last computed position per site.
type SnapshotStore interface {
	// GetSnapshot returns the stored snapshot, or ErrNotFound.
	GetSnapshot(ctx context.Context, siteID string) (PositionSnapshot, error)

	// SaveSnapshot inserts or replaces the snapshot for a site.
	SaveSnapshot(ctx context.Context, snap PositionSnapshot) error
}

// Store combines every persistence concern plus lifecycle.
type Store interface {
	SettingsStore
	IntervalStore
	SnapshotStore

	Close() error
}
