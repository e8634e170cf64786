package watch

import (
	"context"
	"fmt"
	"sync"

	"github.com/entrhq/htmlblock/pkg/config"
	"github.com/entrhq/htmlblock/pkg/dom"
	"github.com/entrhq/htmlblock/pkg/logging"
	"github.com/entrhq/htmlblock/pkg/resolver"
	"github.com/entrhq/htmlblock/pkg/types"
)

// Source is a configuration source that reports changes.
type Source interface {
	ConfigSource
	Subscribe(fn func()) (unsubscribe func())
}

// routed is an event addressed to one controller. A nil target means the
// controller current at dispatch time.
type routed struct {
	target *Controller
	event  *types.WatchEvent
}

// Runner serializes the host events of one page through a single event loop.
// Every page load gets a fresh Controller; events emitted by the previous
// page's observations are dropped.
type Runner struct {
	doc        dom.Document
	configs    Source
	remover    Remover
	resolver   *resolver.Resolver
	logger     *logging.Logger
	bufferSize int

	events      chan routed
	navigations chan string
	shutdown    chan struct{}
	done        chan struct{}
	stopOnce    sync.Once

	running bool
	runMu   sync.Mutex

	ctrlMu     sync.Mutex
	controller *Controller
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the logger shared by the runner and its controllers.
func WithRunnerLogger(logger *logging.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithBufferSize sets the event channel buffer size.
func WithBufferSize(size int) RunnerOption {
	return func(r *Runner) {
		r.bufferSize = size
	}
}

// NewRunner creates a runner for doc.
func NewRunner(doc dom.Document, configs Source, remover Remover, opts ...RunnerOption) *Runner {
	r := &Runner{
		doc:        doc,
		configs:    configs,
		remover:    remover,
		bufferSize: 64,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = logging.Nop()
	}
	r.resolver = resolver.New(r.logger)

	r.events = make(chan routed, r.bufferSize)
	r.navigations = make(chan string, 1)
	r.shutdown = make(chan struct{})
	r.done = make(chan struct{})
	return r
}

// Controller returns the controller of the current page.
func (r *Runner) Controller() *Controller {
	r.ctrlMu.Lock()
	defer r.ctrlMu.Unlock()
	return r.controller
}

// Done is closed once the event loop has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Start subscribes to the host events and begins the event loop.
func (r *Runner) Start(ctx context.Context) error {
	r.runMu.Lock()
	if r.running {
		r.runMu.Unlock()
		return fmt.Errorf("runner is already running")
	}
	r.running = true
	r.runMu.Unlock()

	r.setController(r.newController())
	cancels := r.subscribe()

	go r.eventLoop(ctx, cancels)
	return nil
}

// Run starts the runner and blocks until ctx is canceled or Shutdown is called.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	<-r.done
	return nil
}

// Shutdown stops the event loop and tears down the current controller.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.stopOnce.Do(func() {
		close(r.shutdown)
	})

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) newController() *Controller {
	var c *Controller
	c = NewController(r.doc, r.configs, r.remover,
		WithLogger(r.logger),
		WithResolver(r.resolver),
		WithEventSink(func(ev *types.WatchEvent) {
			r.post(routed{target: c, event: ev})
		}),
	)
	return c
}

func (r *Runner) setController(c *Controller) {
	r.ctrlMu.Lock()
	defer r.ctrlMu.Unlock()
	r.controller = c
}

func (r *Runner) subscribe() []func() {
	cancels := []func(){
		r.configs.Subscribe(func() {
			r.post(routed{event: types.NewConfigChangedEvent(config.ConfigKey)})
		}),
	}

	if vs, ok := r.doc.(dom.VisibilitySource); ok {
		cancels = append(cancels, vs.OnVisibilityChange(func(hidden bool) {
			r.post(routed{event: types.NewVisibilityChangedEvent(hidden)})
		}))
	}

	if ns, ok := r.doc.(dom.NavigationSource); ok {
		cancels = append(cancels, ns.OnNavigate(func(url string) {
			select {
			case r.navigations <- url:
			case <-r.done:
			}
		}))
	}
	return cancels
}

// post queues an event for the loop. It never blocks once the loop has exited.
func (r *Runner) post(ev routed) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

func (r *Runner) eventLoop(ctx context.Context, cancels []func()) {
	defer close(r.done)
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
		r.Controller().Close()

		r.runMu.Lock()
		r.running = false
		r.runMu.Unlock()
	}()

	r.initialize(ctx, r.Controller())

	for {
		select {
		case <-ctx.Done():
			return

		case <-r.shutdown:
			return

		case url := <-r.navigations:
			r.logger.Infof("Page loaded: %s", url)
			r.Controller().Close()
			c := r.newController()
			r.setController(c)
			r.initialize(ctx, c)

		case ev := <-r.events:
			current := r.Controller()
			if ev.target != nil && ev.target != current {
				continue
			}
			if err := current.Dispatch(ctx, ev.event); err != nil {
				r.logger.Errorf("Initialization error: %v", err)
			}
		}
	}
}

func (r *Runner) initialize(ctx context.Context, c *Controller) {
	if err := c.Initialize(ctx); err != nil {
		r.logger.Errorf("Initialization error: %v", err)
	}
}
