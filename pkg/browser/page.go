// Package browser runs the removal runtime against live pages driven by Playwright.
package browser

import (
	"errors"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/htmlblock/pkg/dom"
	"github.com/entrhq/htmlblock/pkg/logging"
)

// Page is a live browser page seen as a dom.Document. Mutation batches,
// visibility transitions and page loads are bridged from the page through
// exposed functions and delivered on a dedicated goroutine, never on the
// Playwright dispatcher.
type Page struct {
	page   playwright.Page
	logger *logging.Logger
	queue  *callbackQueue

	mu         sync.Mutex
	nextID     uint64
	observers  map[uint64]dom.MutationFunc
	visibility map[uint64]func(bool)
	navigation map[uint64]func(string)
	closed     bool
}

// NewPage wraps page. It must be called before the first navigation so the
// visibility bridge is installed in every loaded document.
func NewPage(page playwright.Page, logger *logging.Logger) (*Page, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	p := &Page{
		page:       page,
		logger:     logger,
		queue:      newCallbackQueue(256),
		observers:  make(map[uint64]dom.MutationFunc),
		visibility: make(map[uint64]func(bool)),
		navigation: make(map[uint64]func(string)),
	}

	if err := page.ExposeFunction(mutationBinding, p.onMutations); err != nil {
		p.queue.close()
		return nil, fmt.Errorf("failed to expose mutation bridge: %w", err)
	}
	if err := page.ExposeFunction(visibilityBinding, p.onVisibility); err != nil {
		p.queue.close()
		return nil, fmt.Errorf("failed to expose visibility bridge: %w", err)
	}

	script := visibilityScript
	if err := page.AddInitScript(playwright.Script{Content: &script}); err != nil {
		p.queue.close()
		return nil, fmt.Errorf("failed to install visibility listener: %w", err)
	}

	page.OnLoad(func(loaded playwright.Page) {
		p.onLoad(loaded.URL())
	})

	return p, nil
}

// URL returns the current page URL.
func (p *Page) URL() string {
	return p.page.URL()
}

// QuerySelectorAll returns handles to the elements matching selector.
// The selector is validated by the page's own engine first.
func (p *Page) QuerySelectorAll(selector string) ([]dom.Element, error) {
	if err := p.validate(selector); err != nil {
		return nil, err
	}

	handles, err := p.page.QuerySelectorAll("css=" + selector)
	if err != nil {
		return nil, fmt.Errorf("selector query failed: %w", err)
	}

	elements := make([]dom.Element, 0, len(handles))
	for _, h := range handles {
		elements = append(elements, &pageElement{handle: h})
	}
	return elements, nil
}

func (p *Page) validate(selector string) error {
	if selector == "" {
		return &dom.InvalidSelectorError{Selector: selector, Err: errors.New("empty selector")}
	}

	result, err := p.page.Evaluate(validateSelectorScript, selector)
	if err != nil {
		return fmt.Errorf("selector validation failed: %w", err)
	}
	if msg, ok := result.(string); ok && msg != "" {
		return &dom.InvalidSelectorError{Selector: selector, Err: errors.New(msg)}
	}
	return nil
}

// Observe starts a MutationObserver in the page bound to fn.
func (p *Page) Observe(fn dom.MutationFunc) (dom.Observation, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("page is closed")
	}
	p.nextID++
	id := p.nextID
	p.observers[id] = fn
	p.mu.Unlock()

	if _, err := p.page.Evaluate(observeScript, int(id)); err != nil {
		p.mu.Lock()
		delete(p.observers, id)
		p.mu.Unlock()
		return nil, fmt.Errorf("failed to start mutation observer: %w", err)
	}
	return &pageObservation{page: p, id: id}, nil
}

// Observers returns the number of connected observations.
func (p *Page) Observers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.observers)
}

// OnVisibilityChange registers fn for visibility transitions.
func (p *Page) OnVisibilityChange(fn func(hidden bool)) (cancel func()) {
	return register(p, p.visibility, fn)
}

// OnNavigate registers fn for page loads.
func (p *Page) OnNavigate(fn func(url string)) (cancel func()) {
	return register(p, p.navigation, fn)
}

func register[F any](p *Page, m map[uint64]F, fn F) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	m[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(m, id)
	}
}

// Close stops callback delivery. The Playwright page itself is closed too.
func (p *Page) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.observers = make(map[uint64]dom.MutationFunc)
	p.mu.Unlock()

	p.queue.close()
	_ = p.page.Close()
}

// onMutations is called by the page as __htmlblockMutations(id, records).
func (p *Page) onMutations(args ...interface{}) interface{} {
	if len(args) < 2 {
		return nil
	}
	id, ok := toUint64(args[0])
	if !ok {
		return nil
	}
	records, _ := toUint64(args[1])

	p.queue.push(func() {
		p.mu.Lock()
		fn := p.observers[id]
		p.mu.Unlock()

		if fn != nil {
			fn(int(records))
		}
	})
	return nil
}

// onVisibility is called by the page as __htmlblockVisibility(hidden).
func (p *Page) onVisibility(args ...interface{}) interface{} {
	if len(args) < 1 {
		return nil
	}
	hidden, _ := args[0].(bool)

	p.queue.push(func() {
		p.mu.Lock()
		listeners := sortedFuncs(p.visibility)
		p.mu.Unlock()

		for _, fn := range listeners {
			fn(hidden)
		}
	})
	return nil
}

func (p *Page) onLoad(url string) {
	p.queue.push(func() {
		p.mu.Lock()
		listeners := sortedFuncs(p.navigation)
		p.mu.Unlock()

		p.logger.Debugf("Page loaded: %s", url)
		for _, fn := range listeners {
			fn(url)
		}
	})
}

type pageObservation struct {
	page *Page
	id   uint64
	once sync.Once
}

func (o *pageObservation) Disconnect() {
	o.once.Do(func() {
		o.page.mu.Lock()
		delete(o.page.observers, o.id)
		closed := o.page.closed
		o.page.mu.Unlock()

		if closed {
			return
		}
		// The observer may already be gone after a navigation.
		if _, err := o.page.page.Evaluate(disconnectScript, int(o.id)); err != nil {
			o.page.logger.Debugf("Failed to disconnect mutation observer %d: %v", o.id, err)
		}
	})
}

type pageElement struct {
	handle playwright.ElementHandle
}

func (e *pageElement) Remove() error {
	defer e.handle.Dispose()

	if _, err := e.handle.Evaluate(removeScript); err != nil {
		return fmt.Errorf("failed to remove element: %w", err)
	}
	return nil
}

// toUint64 converts a number received from the page.
func toUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case uint64:
		return n, true
	default:
		return 0, false
	}
}
