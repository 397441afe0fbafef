/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements store.Store using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  site_settings:      Per-site billing parameters
  intervals:          Cached priced usage intervals, one row per sub-day interval
  position_snapshots: Last successfully computed position per site

MONEY:
  Decimal amounts are stored as their canonical string form, never REAL.
  Parsing back through decimal keeps cents exact across round trips.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - store/store.go: Interface definitions
  - store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/wattle/billing-engine/billing"
	"github.com/wattle/billing-engine/store"
)

var _ store.Store = (*Store)(nil)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Per-site billing parameters
	CREATE TABLE IF NOT EXISTS site_settings (
		site_id TEXT PRIMARY KEY,
		start_day INTEGER NOT NULL,
		surcharge_cents TEXT NOT NULL,
		subscription TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Cached priced usage intervals
	CREATE TABLE IF NOT EXISTS intervals (
		site_id TEXT NOT NULL,
		date TEXT NOT NULL,
		start_offset INTEGER NOT NULL,
		kind TEXT NOT NULL,
		kwh REAL NOT NULL,
		amount TEXT NOT NULL,
		PRIMARY KEY (site_id, date, start_offset, kind)
	);

	-- Hot path: load an inclusive date range for one site
	CREATE INDEX IF NOT EXISTS idx_intervals_site_date
		ON intervals(site_id, date);

	-- Last computed position per site
	CREATE TABLE IF NOT EXISTS position_snapshots (
		site_id TEXT PRIMARY KEY,
		cycle_start TEXT NOT NULL,
		payload BLOB NOT NULL,
		computed_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SETTINGS STORE (store.SettingsStore interface)
// =============================================================================

// GetSettings returns the settings for a site, or store.ErrNotFound.
func (s *Store) GetSettings(ctx context.Context, siteID string) (store.SiteSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		out        store.SiteSettings
		surcharge  string
		subMonthly string
		updatedAt  string
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT site_id, start_day, surcharge_cents, subscription, updated_at FROM site_settings WHERE site_id = ?",
		siteID,
	).Scan(&out.SiteID, &out.StartDay, &surcharge, &subMonthly, &updatedAt)

	if err == sql.ErrNoRows {
		return store.SiteSettings{}, store.ErrNotFound
	}
	if err != nil {
		return store.SiteSettings{}, fmt.Errorf("failed to query settings: %w", err)
	}

	if out.SurchargeCents, err = decimal.NewFromString(surcharge); err != nil {
		return store.SiteSettings{}, fmt.Errorf("corrupt surcharge %q: %w", surcharge, err)
	}
	if out.Subscription, err = decimal.NewFromString(subMonthly); err != nil {
		return store.SiteSettings{}, fmt.Errorf("corrupt subscription %q: %w", subMonthly, err)
	}
	out.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return out, nil
}

// SaveSettings inserts or replaces the settings for a site.
func (s *Store) SaveSettings(ctx context.Context, set store.SiteSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO site_settings (site_id, start_day, surcharge_cents, subscription, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(site_id) DO UPDATE SET
			start_day = excluded.start_day,
			surcharge_cents = excluded.surcharge_cents,
			subscription = excluded.subscription,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		set.SiteID,
		set.StartDay,
		set.SurchargeCents.String(),
		set.Subscription.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// =============================================================================
// INTERVAL STORE (store.IntervalStore interface)
// =============================================================================

// SaveIntervals replaces all cached intervals for the days covered by the
// batch. Delete-then-insert inside one transaction so a partially fetched
// day never coexists with its stale copy.
func (s *Store) SaveIntervals(ctx context.Context, siteID string, intervals []billing.IntervalRecord) error {
	if len(intervals) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	days := make(map[string]bool, len(intervals))
	for _, iv := range intervals {
		days[iv.Date.String()] = true
	}
	for day := range days {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM intervals WHERE site_id = ? AND date = ?", siteID, day); err != nil {
			return fmt.Errorf("failed to clear day %s: %w", day, err)
		}
	}

	insert := `
		INSERT INTO intervals (site_id, date, start_offset, kind, kwh, amount)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for _, iv := range intervals {
		if _, err := tx.ExecContext(ctx, insert,
			siteID,
			iv.Date.String(),
			int(iv.Start),
			string(iv.Kind),
			iv.KWh,
			iv.Amount.String(),
		); err != nil {
			return fmt.Errorf("failed to insert interval: %w", err)
		}
	}

	return tx.Commit()
}

// LoadIntervals returns cached intervals for [from, to] inclusive.
func (s *Store) LoadIntervals(ctx context.Context, siteID string, from, to billing.Date) ([]billing.IntervalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT date, start_offset, kind, kwh, amount
		FROM intervals
		WHERE site_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, start_offset ASC
	`

	rows, err := s.db.QueryContext(ctx, query, siteID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query intervals: %w", err)
	}
	defer rows.Close()

	var intervals []billing.IntervalRecord
	for rows.Next() {
		iv, err := scanInterval(rows)
		if err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

// LastIntervalDate returns the most recent cached day for a site.
func (s *Store) LastIntervalDate(ctx context.Context, siteID string) (billing.Date, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// MAX over zero rows yields one NULL row, not ErrNoRows.
	var day sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(date) FROM intervals WHERE site_id = ?", siteID,
	).Scan(&day)

	if err != nil {
		return billing.Date{}, fmt.Errorf("failed to query last interval date: %w", err)
	}
	if !day.Valid {
		return billing.Date{}, store.ErrNotFound
	}
	return billing.ParseDate(day.String)
}

// PurgeIntervalsOutside drops cached intervals dated outside [from, to].
func (s *Store) PurgeIntervalsOutside(ctx context.Context, siteID string, from, to billing.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM intervals WHERE site_id = ? AND (date < ? OR date > ?)",
		siteID, from.String(), to.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to purge intervals: %w", err)
	}
	return nil
}

func scanInterval(rows *sql.Rows) (billing.IntervalRecord, error) {
	var (
		iv     billing.IntervalRecord
		day    string
		offset int
		kind   string
		amount string
	)

	if err := rows.Scan(&day, &offset, &kind, &iv.KWh, &amount); err != nil {
		return iv, fmt.Errorf("failed to scan interval: %w", err)
	}

	d, err := billing.ParseDate(day)
	if err != nil {
		return iv, fmt.Errorf("corrupt interval date %q: %w", day, err)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return iv, fmt.Errorf("corrupt interval amount %q: %w", amount, err)
	}

	iv.Date = d
	iv.Start = billing.TimeOfDay(offset)
	iv.Kind = billing.IntervalKind(kind)
	iv.Amount = amt
	return iv, nil
}

// =============================================================================
// SNAPSHOT STORE (store.SnapshotStore interface)
// =============================================================================

// GetSnapshot returns the stored snapshot, or store.ErrNotFound.
func (s *Store) GetSnapshot(ctx context.Context, siteID string) (store.PositionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		snap       store.PositionSnapshot
		cycleStart string
		computedAt string
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT site_id, cycle_start, payload, computed_at FROM position_snapshots WHERE site_id = ?",
		siteID,
	).Scan(&snap.SiteID, &cycleStart, &snap.Payload, &computedAt)

	if err == sql.ErrNoRows {
		return store.PositionSnapshot{}, store.ErrNotFound
	}
	if err != nil {
		return store.PositionSnapshot{}, fmt.Errorf("failed to query snapshot: %w", err)
	}

	if snap.CycleStart, err = billing.ParseDate(cycleStart); err != nil {
		return store.PositionSnapshot{}, fmt.Errorf("corrupt cycle start %q: %w", cycleStart, err)
	}
	snap.ComputedAt, _ = time.Parse(time.RFC3339, computedAt)
	return snap, nil
}

// SaveSnapshot inserts or replaces the snapshot for a site.
func (s *Store) SaveSnapshot(ctx context.Context, snap store.PositionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO position_snapshots (site_id, cycle_start, payload, computed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(site_id) DO UPDATE SET
			cycle_start = excluded.cycle_start,
			payload = excluded.payload,
			computed_at = excluded.computed_at
	`

	_, err := s.db.ExecContext(ctx, query,
		snap.SiteID,
		snap.CycleStart.String(),
		snap.Payload,
		snap.ComputedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}
