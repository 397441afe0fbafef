package store

import (
	"context"
	"sort"
	"sync"

	"github.com/wattle/billing-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

var _ Store = (*Memory)(nil)

type Memory struct {
	mu        sync.RWMutex
	settings  map[string]SiteSettings
	intervals map[string][]billing.IntervalRecord
	snapshots map[string]PositionSnapshot
}

func NewMemory() *Memory {
	return &Memory{
		settings:  make(map[string]SiteSettings),
		intervals: make(map[string][]billing.IntervalRecord),
		snapshots: make(map[string]PositionSnapshot),
	}
}

func (m *Memory) GetSettings(_ context.Context, siteID string) (SiteSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.settings[siteID]
	if !ok {
		return SiteSettings{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) SaveSettings(_ context.Context, s SiteSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings[s.SiteID] = s
	return nil
}

// SaveIntervals replaces cached intervals day-by-day: every day present in
// the batch is cleared before the batch is merged in.
func (m *Memory) SaveIntervals(_ context.Context, siteID string, intervals []billing.IntervalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	replaced := make(map[billing.Date]bool, len(intervals))
	for _, iv := range intervals {
		replaced[iv.Date] = true
	}

	kept := m.intervals[siteID][:0:0]
	for _, iv := range m.intervals[siteID] {
		if !replaced[iv.Date] {
			kept = append(kept, iv)
		}
	}
	kept = append(kept, intervals...)
	sortIntervals(kept)
	m.intervals[siteID] = kept
	return nil
}

func (m *Memory) LoadIntervals(_ context.Context, siteID string, from, to billing.Date) ([]billing.IntervalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []billing.IntervalRecord
	for _, iv := range m.intervals[siteID] {
		if iv.Date.AfterOrEqual(from) && iv.Date.BeforeOrEqual(to) {
			out = append(out, iv)
		}
	}
	return out, nil
}

func (m *Memory) LastIntervalDate(_ context.Context, siteID string) (billing.Date, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ivs := m.intervals[siteID]
	if len(ivs) == 0 {
		return billing.Date{}, ErrNotFound
	}
	return ivs[len(ivs)-1].Date, nil
}

func (m *Memory) PurgeIntervalsOutside(_ context.Context, siteID string, from, to billing.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.intervals[siteID][:0:0]
	for _, iv := range m.intervals[siteID] {
		if iv.Date.AfterOrEqual(from) && iv.Date.BeforeOrEqual(to) {
			kept = append(kept, iv)
		}
	}
	m.intervals[siteID] = kept
	return nil
}

func (m *Memory) GetSnapshot(_ context.Context, siteID string) (PositionSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[siteID]
	if !ok {
		return PositionSnapshot{}, ErrNotFound
	}
	return snap, nil
}

func (m *Memory) SaveSnapshot(_ context.Context, snap PositionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots[snap.SiteID] = snap
	return nil
}

func (m *Memory) Close() error { return nil }

func sortIntervals(ivs []billing.IntervalRecord) {
	sort.Slice(ivs, func(i, j int) bool {
		if !ivs[i].Date.Equal(ivs[j].Date) {
			return ivs[i].Date.Before(ivs[j].Date)
		}
		return ivs[i].Start < ivs[j].Start
	})
}
