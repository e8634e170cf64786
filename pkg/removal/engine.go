// Package removal deletes the elements matching a selector from a document.
package removal

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/htmlblock/pkg/dom"
	"github.com/entrhq/htmlblock/pkg/logging"
)

// StatsRecorder receives removal counts per site.
type StatsRecorder interface {
	IncrementBlockedCount(siteID string, count int) error
}

// Engine runs removal passes and reports their counts to a StatsRecorder.
// Reporting happens in the background: its outcome never affects the pass.
type Engine struct {
	stats  StatsRecorder
	logger *logging.Logger
	wg     sync.WaitGroup
}

// NewEngine creates an engine. stats and logger may be nil.
func NewEngine(stats StatsRecorder, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{
		stats:  stats,
		logger: logger,
	}
}

// RemoveMatching removes every element of doc matching selector at the time
// of the call and returns how many were removed. When siteID is set and
// something was removed, the count is reported to the stats recorder.
//
// A malformed selector removes nothing and returns an *dom.InvalidSelectorError.
func (e *Engine) RemoveMatching(doc dom.Document, selector, siteID string) (int, error) {
	start := time.Now()

	elements, err := doc.QuerySelectorAll(selector)
	if err != nil {
		var invalid *dom.InvalidSelectorError
		if errors.As(err, &invalid) {
			return 0, err
		}
		return 0, fmt.Errorf("selector query failed: %w", err)
	}
	if len(elements) == 0 {
		return 0, nil
	}

	e.logger.Infof("Removing %d element(s) matching %q", len(elements), selector)

	removed := 0
	for _, el := range elements {
		if err := el.Remove(); err != nil {
			e.logger.Warnf("Failed to remove element matching %q: %v", selector, err)
			continue
		}
		removed++
	}

	e.logger.Debugf("Removal pass for %q took %s", selector, time.Since(start))

	if removed > 0 && siteID != "" {
		e.report(siteID, removed)
	}
	return removed, nil
}

// Wait blocks until every pending stats report has completed.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) report(siteID string, count int) {
	if e.stats == nil {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.stats.IncrementBlockedCount(siteID, count); err != nil {
			e.logger.Warnf("Failed to record %d removal(s) for site %s: %v", count, siteID, err)
		}
	}()
}
