package resolver

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/htmlblock/pkg/logging"
	"github.com/entrhq/htmlblock/pkg/pattern"
	"github.com/entrhq/htmlblock/pkg/types"
)

func site(id, urlPattern string, enabled bool) types.SiteConfig {
	return types.SiteConfig{ID: id, URLPattern: urlPattern, Selector: ".modal", Enabled: enabled}
}

func TestResolveFirstEnabledMatch(t *testing.T) {
	const url = "https://a.com/tv/live"

	tests := []struct {
		name   string
		sites  []types.SiteConfig
		wantID string
	}{
		{
			name:   "disabled match is skipped",
			sites:  []types.SiteConfig{site("A", "*://a.com/*", false), site("B", "*://a.com/*", true)},
			wantID: "B",
		},
		{
			name:   "first of two enabled matches wins",
			sites:  []types.SiteConfig{site("A", "*://a.com/*", true), site("B", "*://a.com/tv/*", true)},
			wantID: "A",
		},
		{
			name:   "non-matching entries are passed over",
			sites:  []types.SiteConfig{site("A", "*://b.com/*", true), site("B", "https://a.com/tv/live", true)},
			wantID: "B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(nil).Resolve(url, tt.sites)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestResolveNoMatch(t *testing.T) {
	r := New(nil)

	assert.Nil(t, r.Resolve("https://a.com/", nil))
	assert.Nil(t, r.Resolve("https://a.com/", []types.SiteConfig{}))
	assert.Nil(t, r.Resolve("https://a.com/", []types.SiteConfig{site("A", "*://b.com/*", true)}))
	assert.Nil(t, r.Resolve("https://a.com/", []types.SiteConfig{site("A", "*://a.com/*", false)}))
}

func TestResolveSkipsMalformedPattern(t *testing.T) {
	var buf bytes.Buffer
	r := New(logging.NewWriterLogger("resolver", &buf))

	sites := []types.SiteConfig{site("bad", "", true), site("good", "*://a.com/*", true)}

	got := r.Resolve("https://a.com/x", sites)
	require.NotNil(t, got)
	assert.Equal(t, "good", got.ID)

	errs := r.Errors()
	require.Contains(t, errs, "")
	var invalid *pattern.InvalidPatternError
	assert.True(t, errors.As(errs[""], &invalid))
	assert.Contains(t, buf.String(), "Invalid pattern")

	// The failure is cached and only reported once.
	r.Resolve("https://a.com/x", sites)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("Invalid pattern")))
}

func TestResolveReturnsCopy(t *testing.T) {
	sites := []types.SiteConfig{site("A", "*://a.com/*", true)}

	got := Resolve("https://a.com/", sites)
	require.NotNil(t, got)
	got.Selector = "changed"

	assert.Equal(t, ".modal", sites[0].Selector)
}
