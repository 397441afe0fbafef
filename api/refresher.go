/*
refresher.go - Periodic balance refresh

PURPOSE:
  Keeps each site's computed position current. Every interval (default 1h)
  the refresher fetches any usage days newer than the local cache, runs the
  calculation, and stores the result as the site's snapshot.

DESIGN:
  - Runs a background goroutine with configurable refresh interval
  - Fetches incrementally: only days after the last cached day, with the
    last cached day itself re-fetched in case it was partial
  - Never fetches today; the provider only has complete days up to yesterday
  - On any fetch failure the previous snapshot stays in place, so the API
    keeps serving the last good position
  - Per-site locking so a manual refresh can't race the scheduled one

USAGE:
  ref := NewRefresher(store, client, sites, defaults, loc, logger)
  ref.Start()
  // ... later
  ref.Stop()

SEE ALSO:
  - handlers.go: POST /api/sites/{id}/refresh (manual trigger)
  - billing/balance.go: the engine this feeds
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wattle/billing-engine/billing"
	"github.com/wattle/billing-engine/metrics"
	"github.com/wattle/billing-engine/store"
)

// UsageSource supplies priced usage intervals for a site and date range.
// Satisfied by *amber.Client.
type UsageSource interface {
	FetchUsage(ctx context.Context, siteID string, from, to billing.Date) ([]billing.IntervalRecord, error)
}

// Refresher periodically recomputes every configured site's position.
type Refresher struct {
	Store    store.Store
	Source   UsageSource
	SiteIDs  []string
	Defaults store.SiteSettings
	Location *time.Location
	Interval time.Duration
	Log      zerolog.Logger

	// Now is the clock; nil means time.Now. Tests pin it.
	Now func() time.Time

	engine billing.Engine

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	siteMu   map[string]*sync.Mutex
	siteMuMu sync.Mutex
}

// NewRefresher creates a refresher with the default hourly interval.
func NewRefresher(st store.Store, source UsageSource, siteIDs []string, defaults store.SiteSettings, loc *time.Location, log zerolog.Logger) *Refresher {
	if loc == nil {
		loc = time.UTC
	}
	return &Refresher{
		Store:    st,
		Source:   source,
		SiteIDs:  siteIDs,
		Defaults: defaults,
		Location: loc,
		Interval: 1 * time.Hour,
		Log:      log.With().Str("component", "refresher").Logger(),
		stop:     make(chan struct{}),
		siteMu:   make(map[string]*sync.Mutex),
	}
}

// Start begins the refresh loop. The first pass runs immediately.
func (rf *Refresher) Start() {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	rf.ticker = time.NewTicker(rf.Interval)
	rf.wg.Add(1)

	go rf.run()

	rf.Log.Info().Dur("interval", rf.Interval).Msg("started")
}

// Stop halts the refresh loop and waits for an in-flight pass to finish.
func (rf *Refresher) Stop() {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.ticker != nil {
		rf.ticker.Stop()
		close(rf.stop)
		rf.wg.Wait()
		rf.Log.Info().Msg("stopped")
	}
}

func (rf *Refresher) run() {
	defer rf.wg.Done()

	rf.RefreshAll(context.Background())

	for {
		select {
		case <-rf.ticker.C:
			rf.RefreshAll(context.Background())
		case <-rf.stop:
			return
		}
	}
}

// RefreshAll refreshes every configured site. Failures are logged per site
// and do not stop the pass.
func (rf *Refresher) RefreshAll(ctx context.Context) {
	for _, siteID := range rf.SiteIDs {
		if err := rf.RefreshSite(ctx, siteID); err != nil {
			rf.Log.Error().Err(err).Str("site", siteID).Msg("refresh failed")
		}
	}
}

// RefreshSite fetches, recomputes, and snapshots one site's position.
// The previous snapshot is left untouched on any failure.
func (rf *Refresher) RefreshSite(ctx context.Context, siteID string) error {
	lock := rf.lockFor(siteID)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	err := rf.refreshLocked(ctx, siteID)

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveRefresh(siteID, result, time.Since(started))
	return err
}

func (rf *Refresher) refreshLocked(ctx context.Context, siteID string) error {
	settings := rf.settingsFor(ctx, siteID)

	today := billing.DateOf(rf.now().In(rf.Location))
	cycle, err := billing.ComputeCycle(today, settings.StartDay)
	if err != nil {
		return fmt.Errorf("compute cycle for %s: %w", siteID, err)
	}

	// The cycle rolled over; drop cached days from the previous cycle.
	if err := rf.Store.PurgeIntervalsOutside(ctx, siteID, cycle.Start, cycle.End); err != nil {
		return fmt.Errorf("purge cache for %s: %w", siteID, err)
	}

	// Complete data only exists through yesterday.
	fetchEnd := today.AddDays(-1).Min(cycle.End)
	if fetchEnd.Before(cycle.Start) {
		// First day of a new cycle: nothing complete to fetch yet. Keep
		// the previous snapshot if one exists so the display never blanks
		// out at midnight on cycle day one.
		if _, err := rf.Store.GetSnapshot(ctx, siteID); err == nil {
			rf.Log.Debug().Str("site", siteID).Msg("cycle day one, keeping previous snapshot")
			return nil
		}
		return rf.snapshotPosition(ctx, siteID, cycle, settings, today, nil)
	}

	fetchFrom := cycle.Start
	if last, err := rf.Store.LastIntervalDate(ctx, siteID); err == nil && last.AfterOrEqual(cycle.Start) {
		// Re-fetch the newest cached day too: it may have been fetched
		// mid-day and priced only partially.
		fetchFrom = last.Min(fetchEnd)
	}

	fetched, err := rf.Source.FetchUsage(ctx, siteID, fetchFrom, fetchEnd)
	if err != nil {
		return fmt.Errorf("fetch usage for %s: %w", siteID, err)
	}
	if err := rf.Store.SaveIntervals(ctx, siteID, fetched); err != nil {
		return fmt.Errorf("cache usage for %s: %w", siteID, err)
	}

	intervals, err := rf.Store.LoadIntervals(ctx, siteID, cycle.Start, fetchEnd)
	if err != nil {
		return fmt.Errorf("load cached usage for %s: %w", siteID, err)
	}

	return rf.snapshotPosition(ctx, siteID, cycle, settings, today, intervals)
}

func (rf *Refresher) snapshotPosition(ctx context.Context, siteID string, cycle billing.BillingCycle, settings store.SiteSettings, today billing.Date, intervals []billing.IntervalRecord) error {
	pos, err := rf.engine.Calculate(billing.CalculationInput{
		Intervals: intervals,
		Today:     today,
		StartDay:  settings.StartDay,
		Fees:      settings.FeeSchedule(),
	})
	if err != nil {
		return fmt.Errorf("calculate position for %s: %w", siteID, err)
	}

	now := rf.now()
	payload, err := json.Marshal(toPositionDTO(siteID, pos, now))
	if err != nil {
		return fmt.Errorf("encode position for %s: %w", siteID, err)
	}

	if err := rf.Store.SaveSnapshot(ctx, store.PositionSnapshot{
		SiteID:     siteID,
		CycleStart: cycle.Start,
		Payload:    payload,
		ComputedAt: now,
	}); err != nil {
		return fmt.Errorf("save snapshot for %s: %w", siteID, err)
	}

	metrics.SetPosition(siteID,
		pos.Totals.GrandTotal.InexactFloat64(),
		pos.Projection.ProjectedTotal.InexactFloat64(),
		pos.Stats.DaysElapsed,
	)

	rf.Log.Info().
		Str("site", siteID).
		Stringer("cycle_start", cycle.Start).
		Int("days_elapsed", pos.Stats.DaysElapsed).
		Bool("pending", pos.Pending).
		Str("grand_total", pos.Totals.GrandTotal.StringFixed(2)).
		Msg("position refreshed")
	return nil
}

// settingsFor returns the stored settings for a site, or the configured
// defaults when none have been saved yet.
func (rf *Refresher) settingsFor(ctx context.Context, siteID string) store.SiteSettings {
	settings, err := rf.Store.GetSettings(ctx, siteID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			rf.Log.Warn().Err(err).Str("site", siteID).Msg("settings lookup failed, using defaults")
		}
		settings = rf.Defaults
		settings.SiteID = siteID
	}
	return settings
}

func (rf *Refresher) now() time.Time {
	if rf.Now != nil {
		return rf.Now()
	}
	return time.Now()
}

func (rf *Refresher) lockFor(siteID string) *sync.Mutex {
	rf.siteMuMu.Lock()
	defer rf.siteMuMu.Unlock()

	if m, ok := rf.siteMu[siteID]; ok {
		return m
	}
	m := &sync.Mutex{}
	rf.siteMu[siteID] = m
	return m
}
