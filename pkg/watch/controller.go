// Package watch keeps a page free of the elements selected by its site rule.
//
// A Controller owns at most one live observation of the page. It converges
// to the site resolved from the latest configuration read whenever it is
// initialized, and re-runs the removal pass on every mutation batch. A
// Runner feeds it the host events of one page.
package watch

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/entrhq/htmlblock/pkg/config"
	"github.com/entrhq/htmlblock/pkg/dom"
	"github.com/entrhq/htmlblock/pkg/logging"
	"github.com/entrhq/htmlblock/pkg/resolver"
	"github.com/entrhq/htmlblock/pkg/types"
)

// ConfigSource provides the current configuration. Reads never fail.
type ConfigSource interface {
	GetConfig() types.ExtensionConfig
}

// Remover runs one removal pass over a document.
type Remover interface {
	RemoveMatching(doc dom.Document, selector, siteID string) (int, error)
}

// State is the controller state.
type State int

const (
	// Idle means no observation is running
	Idle State = iota

	// Watching means one observation is bound to a (selector, site id) pair
	Watching
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Watching:
		return "watching"
	default:
		return "unknown"
	}
}

// EventSink receives the mutation batch events produced by observations.
type EventSink func(*types.WatchEvent)

// Controller is the per-page watch state machine.
type Controller struct {
	doc      dom.Document
	configs  ConfigSource
	remover  Remover
	resolver *resolver.Resolver
	logger   *logging.Logger
	sink     EventSink

	mu          sync.Mutex
	gen         uint64
	state       State
	selector    string
	siteID      string
	observation dom.Observation
	obsID       uint64
	closed      bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithEventSink routes mutation batches to sink instead of dispatching
// them directly on the delivering goroutine.
func WithEventSink(sink EventSink) ControllerOption {
	return func(c *Controller) {
		c.sink = sink
	}
}

// WithResolver sets the site resolver, sharing its matcher cache.
func WithResolver(r *resolver.Resolver) ControllerOption {
	return func(c *Controller) {
		c.resolver = r
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *logging.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates an idle controller for doc.
func NewController(doc dom.Document, configs ConfigSource, remover Remover, opts ...ControllerOption) *Controller {
	c := &Controller{
		doc:     doc,
		configs: configs,
		remover: remover,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logging.Nop()
	}
	if c.resolver == nil {
		c.resolver = resolver.New(c.logger)
	}
	if c.sink == nil {
		c.sink = func(ev *types.WatchEvent) {
			_ = c.Dispatch(context.Background(), ev)
		}
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Selector returns the bound selector, or "" when idle.
func (c *Controller) Selector() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selector
}

// SiteID returns the bound site id, or "" when idle.
func (c *Controller) SiteID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.siteID
}

// Initialize reads the configuration and converges to the site it resolves
// for the current URL. When the resolved (selector, site id) pair differs
// from the bound one, it disconnects the running observation, performs one
// removal pass and starts observing for the new selector.
//
// Overlapping calls are tolerated: only the most recent call acts on its
// configuration read, older reads are discarded once they complete.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	cfg := c.configs.GetConfig()
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.closed {
		c.logger.Debugf("Discarding stale configuration read (generation %d, current %d)", gen, c.gen)
		return nil
	}

	if !cfg.Enabled {
		c.logger.Warnf("Extension is disabled globally")
		c.stopLocked()
		return nil
	}

	url := c.doc.URL()
	site := c.resolver.Resolve(url, cfg.Sites)
	if site == nil {
		c.logger.Warnf("No matching configuration for: %s", url)
		c.stopLocked()
		return nil
	}

	c.logger.Infof("Active for: %s with selector: %s", url, site.Selector)

	if c.state == Watching && c.selector == site.Selector && c.siteID == site.ID {
		return nil
	}

	c.stopLocked()

	if _, err := c.remover.RemoveMatching(c.doc, site.Selector, site.ID); err != nil {
		var invalid *dom.InvalidSelectorError
		if errors.As(err, &invalid) {
			c.logger.Errorf("Invalid selector for site %s: %v", site.ID, err)
			return nil
		}
		c.logger.Errorf("Removal pass failed for site %s: %v", site.ID, err)
	}

	c.obsID++
	obsID := c.obsID
	sink := c.sink
	observation, err := c.doc.Observe(func(records int) {
		sink(types.NewMutationBatchEvent(obsID, records))
	})
	if err != nil {
		c.logger.Errorf("Failed to observe document: %v", err)
		return nil
	}

	c.observation = observation
	c.state = Watching
	c.selector = site.Selector
	c.siteID = site.ID
	c.logger.Infof("Observer started for selector: %s", site.Selector)
	return nil
}

// Stop disconnects the running observation and returns to Idle. Configuration
// reads still in flight are discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.stopLocked()
}

// Close stops the controller for good; later calls are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.closed = true
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.observation != nil {
		c.observation.Disconnect()
		c.observation = nil
		c.logger.Infof("Observer stopped")
	}
	c.state = Idle
	c.selector = ""
	c.siteID = ""
}

// Dispatch handles one host event.
func (c *Controller) Dispatch(ctx context.Context, ev *types.WatchEvent) error {
	if ev == nil {
		return nil
	}

	switch ev.Type {
	case types.EventTypeConfigChanged:
		if len(ev.Keys) > 0 && !slices.Contains(ev.Keys, config.ConfigKey) {
			return nil
		}
		c.logger.Infof("Configuration changed, reinitializing...")
		return c.Initialize(ctx)

	case types.EventTypeVisibilityChanged:
		if ev.Hidden {
			c.Stop()
			return nil
		}
		return c.Initialize(ctx)

	case types.EventTypeMutationBatch:
		if ev.Batch != nil {
			c.handleMutations(ev.Batch)
		}
		return nil

	default:
		c.logger.Warnf("Ignoring unknown watch event %q", ev.Type)
		return nil
	}
}

// handleMutations re-runs the removal pass for the bound selector. Batches
// from an observation that has since been disconnected are dropped.
func (c *Controller) handleMutations(batch *types.MutationBatch) {
	c.mu.Lock()
	if c.state != Watching || batch.ObservationID != c.obsID {
		c.mu.Unlock()
		return
	}
	selector, siteID := c.selector, c.siteID
	c.mu.Unlock()

	if _, err := c.remover.RemoveMatching(c.doc, selector, siteID); err != nil {
		c.logger.Errorf("Removal pass failed for site %s: %v", siteID, err)
	}
}
