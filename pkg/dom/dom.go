// Package dom abstracts the host document the removal runtime operates on.
//
// A Document answers selector queries with a snapshot of matching elements,
// removes elements, and reports subtree mutations to observers in batches.
// HTMLDocument is an in-memory implementation over golang.org/x/net/html;
// package browser provides one over a live Playwright page.
package dom

import (
	"fmt"

	"github.com/andybalholm/cascadia"
)

// Element is a node matched by a selector query.
type Element interface {
	// Remove detaches the element from the document. Removing an element
	// that is already detached is a no-op.
	Remove() error
}

// MutationFunc receives the number of mutation records in a delivered batch.
type MutationFunc func(records int)

// Observation is a standing subscription to subtree mutations.
type Observation interface {
	// Disconnect stops delivery. It is safe to call more than once.
	Disconnect()
}

// Document is the host page seen by the removal runtime.
type Document interface {
	// URL returns the current page URL.
	URL() string

	// QuerySelectorAll returns a snapshot of the elements matching selector.
	// A malformed selector yields an *InvalidSelectorError.
	QuerySelectorAll(selector string) ([]Element, error)

	// Observe subscribes fn to subtree mutation batches.
	Observe(fn MutationFunc) (Observation, error)
}

// VisibilitySource is implemented by documents that report visibility transitions.
type VisibilitySource interface {
	OnVisibilityChange(fn func(hidden bool)) (cancel func())
}

// NavigationSource is implemented by documents that report page loads.
type NavigationSource interface {
	OnNavigate(fn func(url string)) (cancel func())
}

// InvalidSelectorError reports a selector the document's engine rejects.
type InvalidSelectorError struct {
	Selector string
	Err      error
}

func (e *InvalidSelectorError) Error() string {
	return fmt.Sprintf("invalid selector %q: %v", e.Selector, e.Err)
}

func (e *InvalidSelectorError) Unwrap() error {
	return e.Err
}

// ValidateSelector checks selector against the CSS selector grammar.
func ValidateSelector(selector string) error {
	_, err := compileSelector(selector)
	return err
}

func compileSelector(selector string) (cascadia.Selector, error) {
	if selector == "" {
		return nil, &InvalidSelectorError{Selector: selector, Err: fmt.Errorf("empty selector")}
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, &InvalidSelectorError{Selector: selector, Err: err}
	}
	return sel, nil
}
