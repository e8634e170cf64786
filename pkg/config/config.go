package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/entrhq/htmlblock/pkg/logging"
)

// Store file names inside the data directory
const (
	SyncFile  = "sync.json"
	LocalFile = "local.json"
)

// Stores groups the two persisted areas and the typed stores built on them.
type Stores struct {
	Sync    *FileStore
	Local   *FileStore
	Configs *ConfigStore
	Stats   *StatsStore
}

// Open opens (creating if needed) the stores kept in dataDir.
// This should be called once per process.
func Open(dataDir string, logger *logging.Logger) (*Stores, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	syncStore, err := NewFileStore(filepath.Join(dataDir, SyncFile), AreaSync)
	if err != nil {
		return nil, err
	}

	localStore, err := NewFileStore(filepath.Join(dataDir, LocalFile), AreaLocal)
	if err != nil {
		return nil, err
	}

	for _, store := range []*FileStore{syncStore, localStore} {
		if err := store.LoadError(); err != nil {
			logger.Warnf("Unreadable %s store %s, using defaults: %v", store.Area(), store.Path(), err)
		}
	}

	return &Stores{
		Sync:    syncStore,
		Local:   localStore,
		Configs: NewConfigStore(syncStore, logger.Named("config")),
		Stats:   NewStatsStore(localStore, logger.Named("stats")),
	}, nil
}
