package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/htmlblock/pkg/types"
)

func TestLoadRulesFile(t *testing.T) {
	t.Run("defaults enabled to true", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		content := `sites:
  - name: Example
    urlPattern: "*://example.com/*"
    selector: ".overlay"
  - urlPattern: "https://other.example/*"
    selector: "#ad"
    enabled: false
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		rules, err := LoadRulesFile(path)
		require.NoError(t, err)
		require.Len(t, rules.Sites, 2)
		assert.Nil(t, rules.Enabled)
		assert.True(t, rules.Sites[0].Site().Enabled)
		assert.False(t, rules.Sites[1].Site().Enabled)
		assert.Equal(t, "Example", rules.Sites[0].Site().Name)
	})

	t.Run("rejects invalid rules", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		content := `sites:
  - urlPattern: "example.com"
    selector: ".x"
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		_, err := LoadRulesFile(path)
		var invalid *ValidationError
		require.ErrorAs(t, err, &invalid)
		assert.Contains(t, err.Error(), "rule 1")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRulesFile(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestRulesRoundTrip(t *testing.T) {
	cfg := types.ExtensionConfig{
		Enabled: true,
		Sites: []types.SiteConfig{
			{ID: "a", Name: "A", URLPattern: "*://a.example/*", Selector: ".a", Enabled: true},
			{ID: "b", URLPattern: "*://b.example/*", Selector: ".b", Enabled: false},
		},
	}

	path := filepath.Join(t.TempDir(), "out", "rules.yaml")
	require.NoError(t, WriteRulesFile(path, RulesFromConfig(cfg)))

	rules, err := LoadRulesFile(path)
	require.NoError(t, err)

	store, _ := newTestConfigStore(t)
	added, updated, err := store.ImportRules(rules, true)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Zero(t, updated)
	assert.Equal(t, cfg, store.GetConfig())
}

func TestConfigStore_ImportRulesMerge(t *testing.T) {
	store, _ := newTestConfigStore(t)
	existing, err := store.AddSite(types.SiteConfig{URLPattern: "*://a.example/*", Selector: ".a", Enabled: true})
	require.NoError(t, err)

	rules := RulesFile{Sites: []RuleEntry{
		{ID: existing.ID, URLPattern: "*://a.example/*", Selector: ".changed"},
		{URLPattern: "*://new.example/*", Selector: ".new"},
	}}

	added, updated, err := store.ImportRules(rules, false)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, updated)

	cfg := store.GetConfig()
	require.Len(t, cfg.Sites, 3)
	assert.Equal(t, ".changed", cfg.Sites[cfg.FindSite(existing.ID)].Selector)
	assert.NotEmpty(t, cfg.Sites[2].ID)
	assert.True(t, cfg.Sites[2].Enabled)
}
