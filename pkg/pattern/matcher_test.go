package pattern

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileExactPattern(t *testing.T) {
	const exact = "https://example.com/path?q=1"

	m, err := Compile(exact)
	require.NoError(t, err)

	assert.True(t, m.Test(exact))
	assert.False(t, m.Test(exact+"&x=2"))
	assert.False(t, m.Test("https://example.com/path?q=2"))
	assert.False(t, m.Test("xhttps://example.com/path?q=1"), "match is anchored at the start")
	assert.Equal(t, exact, m.Pattern())
}

func TestCompileSchemeWildcard(t *testing.T) {
	m, err := Compile("*://a.com/*")
	require.NoError(t, err)

	tests := []struct {
		url  string
		want bool
	}{
		{"https://a.com/x", true},
		{"http://a.com/", true},
		{"http://a.com/deep/path?x=1#frag", true},
		{"https://b.com/x", false},
		{"https://a.com", false},
		// A leading scheme wildcard only ever stands for http or https.
		{"ftp://a.com/x", false},
		{"file://a.com/x", false},
		{"wss://a.com/x", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Test(tt.url))
		})
	}
}

func TestCompileMetaCharactersAreLiteral(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		match   string
		noMatch string
	}{
		{"dot", "https://a.com/*", "https://a.com/x", "https://aXcom/x"},
		{"question mark", "https://a.com/search?q=*", "https://a.com/search?q=go", "https://a.com/searchXq=go"},
		{"brackets", "https://a.com/[id]/*", "https://a.com/[id]/1", "https://a.com/i/1"},
		{"braces", "https://a.com/{a,b}", "https://a.com/{a,b}", "https://a.com/a"},
		{"plus and parens", "https://a.com/(x+y)", "https://a.com/(x+y)", "https://a.com/xxy"},
		{"backslash", `https://a.com/\d`, `https://a.com/\d`, "https://a.com/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Compile(tt.pattern)
			require.NoError(t, err)
			assert.True(t, m.Test(tt.match), "expected %q to match %q", tt.pattern, tt.match)
			assert.False(t, m.Test(tt.noMatch), "expected %q not to match %q", tt.pattern, tt.noMatch)
		})
	}
}

func TestCompileWildcardPositions(t *testing.T) {
	m, err := Compile("https://*.example.com/*/video")
	require.NoError(t, err)

	assert.True(t, m.Test("https://www.example.com/tv/video"))
	assert.True(t, m.Test("https://.example.com//video"), "wildcards match empty runs")
	assert.True(t, m.Test("https://a.b.example.com/x/y/video"))
	assert.False(t, m.Test("https://www.example.com/tv/video/extra"))
}

func TestCompileOnlySchemeWildcardIsNarrowed(t *testing.T) {
	m, err := Compile("https://*://x")
	require.NoError(t, err)

	assert.True(t, m.Test("https://ftp://x"), "a non-leading *:// is an ordinary wildcard")
}

func TestCompileEmptyPattern(t *testing.T) {
	m, err := Compile("")
	assert.Nil(t, m)

	var invalid *InvalidPatternError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "", invalid.Pattern)
	assert.Contains(t, err.Error(), "invalid URL pattern")
}
