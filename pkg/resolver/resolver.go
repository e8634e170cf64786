// Package resolver selects the site rule that applies to a page URL.
package resolver

import (
	"sync"

	"github.com/entrhq/htmlblock/pkg/logging"
	"github.com/entrhq/htmlblock/pkg/pattern"
	"github.com/entrhq/htmlblock/pkg/types"
)

// Resolver picks the first enabled site whose pattern matches a URL.
// Compiled matchers are cached by pattern, including failed compilations,
// so a malformed rule is only reported once.
type Resolver struct {
	mu       sync.Mutex
	matchers map[string]compiled
	logger   *logging.Logger
}

type compiled struct {
	matcher *pattern.Matcher
	err     error
}

// New creates a resolver. A nil logger discards failure reports.
func New(logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Resolver{
		matchers: make(map[string]compiled),
		logger:   logger,
	}
}

// Resolve returns the first enabled site in list order whose pattern matches
// url, or nil when none does. Sites with malformed patterns are skipped.
func (r *Resolver) Resolve(url string, sites []types.SiteConfig) *types.SiteConfig {
	for i := range sites {
		site := &sites[i]
		if !site.Enabled {
			continue
		}

		m, err := r.matcher(site.URLPattern)
		if err != nil {
			continue
		}

		if m.Test(url) {
			resolved := *site
			return &resolved
		}
	}
	return nil
}

// Errors returns the compilation failure for each malformed pattern seen so far.
func (r *Resolver) Errors() map[string]error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errs := make(map[string]error)
	for p, c := range r.matchers {
		if c.err != nil {
			errs[p] = c.err
		}
	}
	return errs
}

func (r *Resolver) matcher(p string) (*pattern.Matcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.matchers[p]; ok {
		return c.matcher, c.err
	}

	m, err := pattern.Compile(p)
	if err != nil {
		r.logger.Errorf("Invalid pattern: %s: %v", p, err)
	}
	r.matchers[p] = compiled{matcher: m, err: err}
	return m, err
}

// Resolve is a convenience wrapper using a throwaway resolver.
func Resolve(url string, sites []types.SiteConfig) *types.SiteConfig {
	return New(nil).Resolve(url, sites)
}
