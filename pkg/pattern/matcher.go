// Package pattern compiles the URL patterns of site rules into matchers.
//
// A pattern is a glob where * matches any run of characters, including none.
// Every other character is literal. A leading *:// is narrowed to the http and
// https schemes, so "*://example.com/*" never matches ftp:// or file:// URLs.
package pattern

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

const (
	// Wildcard is the only meta character recognized in URL patterns.
	Wildcard = "*"

	schemeWildcard = Wildcard + "://"
	httpSchemes    = "{http,https}://"
)

// InvalidPatternError reports a URL pattern that cannot be turned into a matcher.
type InvalidPatternError struct {
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid URL pattern %q", e.Pattern)
	}
	return fmt.Sprintf("invalid URL pattern %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error {
	return e.Err
}

// Matcher tests URLs against a compiled pattern.
type Matcher struct {
	pattern string
	glob    glob.Glob
}

// Compile converts a URL pattern into a Matcher anchored on the whole URL.
func Compile(pattern string) (*Matcher, error) {
	if pattern == "" {
		return nil, &InvalidPatternError{Pattern: pattern}
	}

	g, err := glob.Compile(translate(pattern))
	if err != nil {
		return nil, &InvalidPatternError{Pattern: pattern, Err: err}
	}

	return &Matcher{pattern: pattern, glob: g}, nil
}

// Test reports whether url matches the pattern in its entirety.
func (m *Matcher) Test(url string) bool {
	return m.glob.Match(url)
}

// Pattern returns the source pattern.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// translate quotes every literal segment of pattern and keeps the wildcards.
func translate(pattern string) string {
	var b strings.Builder

	rest := pattern
	if strings.HasPrefix(rest, schemeWildcard) {
		b.WriteString(httpSchemes)
		rest = strings.TrimPrefix(rest, schemeWildcard)
	}

	for i, segment := range strings.Split(rest, Wildcard) {
		if i > 0 {
			b.WriteString(Wildcard)
		}
		b.WriteString(glob.QuoteMeta(segment))
	}

	return b.String()
}
