package config

import (
	"time"

	"github.com/entrhq/htmlblock/pkg/logging"
	"github.com/entrhq/htmlblock/pkg/types"
)

// StatsStore maintains the removal counters in the local area.
//
// Increments are read-modify-write cycles against the latest file content.
// Two instances incrementing at the same moment can still lose one of the
// increments; the counters are an approximation.
type StatsStore struct {
	store  Store
	logger *logging.Logger
	now    func() time.Time
}

// NewStatsStore creates a statistics store on top of the local area.
func NewStatsStore(store Store, logger *logging.Logger) *StatsStore {
	if logger == nil {
		logger = logging.Nop()
	}
	return &StatsStore{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (s *StatsStore) zero() types.BlockingStats {
	return types.BlockingStats{
		SiteStats: make(map[string]int),
		LastReset: s.now().UnixMilli(),
	}
}

// GetStats returns the stored counters, or zeroed counters when absent or unreadable.
func (s *StatsStore) GetStats() types.BlockingStats {
	var stats types.BlockingStats

	found, err := s.store.Get(StatsKey, &stats)
	if err != nil {
		s.logger.Errorf("Error getting stats: %v", err)
		return s.zero()
	}
	if !found {
		return s.zero()
	}
	if stats.SiteStats == nil {
		stats.SiteStats = make(map[string]int)
	}
	return stats
}

// IncrementBlockedCount adds count removals to siteID and to the total.
// Failures are logged and returned; callers are free to ignore them.
func (s *StatsStore) IncrementBlockedCount(siteID string, count int) error {
	if count <= 0 {
		return nil
	}

	var stats types.BlockingStats
	err := s.store.Update(StatsKey, &stats, func(found bool) error {
		if !found {
			stats = s.zero()
		}
		if stats.SiteStats == nil {
			stats.SiteStats = make(map[string]int)
		}
		stats.TotalBlocked += count
		stats.SiteStats[siteID] += count
		return nil
	})
	if err != nil {
		s.logger.Errorf("Error incrementing blocked count: %v", err)
		return &StoreError{Op: "increment blocked count", Err: err}
	}
	return nil
}

// ResetStats zeroes every counter and records the reset time.
func (s *StatsStore) ResetStats() error {
	if err := s.store.Set(StatsKey, s.zero()); err != nil {
		s.logger.Errorf("Error resetting stats: %v", err)
		return &StoreError{Op: "reset stats", Err: err}
	}
	return nil
}

// Subscribe calls fn whenever the statistics record changes.
func (s *StatsStore) Subscribe(fn func()) (unsubscribe func()) {
	return s.store.Subscribe(func(e ChangeEvent) {
		if e.Area == AreaLocal && e.Has(StatsKey) {
			fn()
		}
	})
}
