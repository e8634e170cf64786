package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/htmlblock/pkg/types"
)

func TestOpen(t *testing.T) {
	t.Run("creates the data directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "data")

		stores, err := Open(dir, nil)
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())

		assert.Equal(t, filepath.Join(dir, SyncFile), stores.Sync.Path())
		assert.Equal(t, filepath.Join(dir, LocalFile), stores.Local.Path())
		assert.Equal(t, AreaSync, stores.Sync.Area())
		assert.Equal(t, AreaLocal, stores.Local.Area())
	})

	t.Run("keeps config and stats in separate files", func(t *testing.T) {
		dir := t.TempDir()

		stores, err := Open(dir, nil)
		require.NoError(t, err)

		_, err = stores.Configs.EnsureDefault()
		require.NoError(t, err)
		require.NoError(t, stores.Stats.IncrementBlockedCount("site", 1))

		reopened, err := Open(dir, nil)
		require.NoError(t, err)
		assert.Equal(t, stores.Configs.GetConfig(), reopened.Configs.GetConfig())
		assert.Equal(t, 1, reopened.Stats.GetStats().TotalBlocked)

		var cfg map[string]any
		found, err := reopened.Local.Get(ConfigKey, &cfg)
		require.NoError(t, err)
		assert.False(t, found, "config must not leak into the local area")
	})

	t.Run("falls back to defaults on a corrupt store", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, SyncFile), []byte("{not json"), 0600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, LocalFile), []byte("{"), 0600))

		stores, err := Open(dir, nil)
		require.NoError(t, err)
		assert.Error(t, stores.Sync.LoadError())
		cfg := stores.Configs.GetConfig()
		assert.True(t, cfg.Enabled)
		require.Len(t, cfg.Sites, 1)
		assert.Equal(t, types.DefaultSitePattern, cfg.Sites[0].URLPattern)
		assert.Equal(t, types.DefaultSiteSelector, cfg.Sites[0].Selector)
		assert.Equal(t, 0, stores.Stats.GetStats().TotalBlocked)

		data, err := os.ReadFile(filepath.Join(dir, SyncFile))
		require.NoError(t, err)
		assert.Equal(t, "{not json", string(data), "reads leave the corrupt file in place")

		_, err = stores.Configs.EnsureDefault()
		require.NoError(t, err)
		assert.NoError(t, stores.Sync.LoadError())
	})
}
