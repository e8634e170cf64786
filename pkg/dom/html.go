package dom

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// maxFlushRounds bounds Flush when observers keep mutating the document.
const maxFlushRounds = 64

// HTMLDocument is an in-memory document parsed with golang.org/x/net/html.
//
// Mutations (insertions and removals) are queued and delivered to observers
// by Flush, the way a browser delivers MutationObserver records after the
// current task. Observers may mutate the document from their callback; the
// resulting records are delivered in the next round of the same Flush.
type HTMLDocument struct {
	mu         sync.Mutex
	root       *html.Node
	url        string
	hidden     bool
	nextID     uint64
	observers  map[uint64]*htmlObserver
	visibility map[uint64]func(bool)
}

// ParseHTML parses r into a document located at url.
func ParseHTML(r io.Reader, url string) (*HTMLDocument, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return &HTMLDocument{
		root:       root,
		url:        url,
		observers:  make(map[uint64]*htmlObserver),
		visibility: make(map[uint64]func(bool)),
	}, nil
}

// ParseHTMLString parses an HTML string into a document located at url.
func ParseHTMLString(s, url string) (*HTMLDocument, error) {
	return ParseHTML(strings.NewReader(s), url)
}

// URL returns the document URL.
func (d *HTMLDocument) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// SetURL changes the document URL.
func (d *HTMLDocument) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

// Hidden reports the current visibility state.
func (d *HTMLDocument) Hidden() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hidden
}

// SetHidden changes the visibility state and notifies listeners on a transition.
func (d *HTMLDocument) SetHidden(hidden bool) {
	d.mu.Lock()
	if d.hidden == hidden {
		d.mu.Unlock()
		return
	}
	d.hidden = hidden
	listeners := sortedFuncs(d.visibility)
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(hidden)
	}
}

// OnVisibilityChange registers fn for visibility transitions.
func (d *HTMLDocument) OnVisibilityChange(fn func(hidden bool)) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.visibility[id] = fn

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.visibility, id)
	}
}

// QuerySelectorAll returns the elements currently matching selector, in document order.
func (d *HTMLDocument) QuerySelectorAll(selector string) ([]Element, error) {
	sel, err := compileSelector(selector)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	nodes := sel.MatchAll(d.root)
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &htmlElement{doc: d, node: n})
	}
	return elements, nil
}

// Count returns the number of elements currently matching selector.
func (d *HTMLDocument) Count(selector string) (int, error) {
	elements, err := d.QuerySelectorAll(selector)
	if err != nil {
		return 0, err
	}
	return len(elements), nil
}

// AppendHTML parses fragment and appends its nodes to the first element
// matching parentSelector, queuing one mutation record per inserted node.
func (d *HTMLDocument) AppendHTML(parentSelector, fragment string) error {
	sel, err := compileSelector(parentSelector)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	parent := sel.MatchFirst(d.root)
	if parent == nil {
		return fmt.Errorf("no element found matching selector: %s", parentSelector)
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return fmt.Errorf("failed to parse fragment: %w", err)
	}

	for _, n := range nodes {
		parent.AppendChild(n)
	}
	d.queueLocked(len(nodes))
	return nil
}

// Observe subscribes fn to mutation batches delivered by Flush.
func (d *HTMLDocument) Observe(fn MutationFunc) (Observation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.observers[id] = &htmlObserver{fn: fn}
	return &htmlObservation{doc: d, id: id}, nil
}

// queueLocked adds records to every connected observer. Callers hold mu.
func (d *HTMLDocument) queueLocked(records int) {
	for _, o := range d.observers {
		o.pending += records
	}
}

// Observers returns the number of connected observations.
func (d *HTMLDocument) Observers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.observers)
}

// Flush delivers queued mutation records to every connected observer until
// no records remain, and returns the number of delivery rounds. An observer
// only receives records queued after it connected; records queued while
// nobody observes are dropped.
func (d *HTMLDocument) Flush() int {
	type delivery struct {
		fn      MutationFunc
		records int
	}

	rounds := 0
	for round := 0; round < maxFlushRounds; round++ {
		d.mu.Lock()
		var deliveries []delivery
		for _, o := range sortedFuncs(d.observers) {
			if o.pending > 0 {
				deliveries = append(deliveries, delivery{fn: o.fn, records: o.pending})
				o.pending = 0
			}
		}
		d.mu.Unlock()

		if len(deliveries) == 0 {
			break
		}

		for _, dl := range deliveries {
			dl.fn(dl.records)
		}
		rounds++
	}
	return rounds
}

// Render writes the document as HTML.
func (d *HTMLDocument) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// String returns the rendered document.
func (d *HTMLDocument) String() string {
	var b strings.Builder
	if err := d.Render(&b); err != nil {
		return ""
	}
	return b.String()
}

type htmlElement struct {
	doc  *HTMLDocument
	node *html.Node
}

func (e *htmlElement) Remove() error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if e.node.Parent == nil {
		return nil
	}
	e.node.Parent.RemoveChild(e.node)
	e.doc.queueLocked(1)
	return nil
}

type htmlObserver struct {
	fn      MutationFunc
	pending int
}

type htmlObservation struct {
	doc *HTMLDocument
	id  uint64
}

func (o *htmlObservation) Disconnect() {
	o.doc.mu.Lock()
	defer o.doc.mu.Unlock()
	delete(o.doc.observers, o.id)
}

// sortedFuncs returns the registered values in registration order.
func sortedFuncs[F any](m map[uint64]F) []F {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]F, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}
