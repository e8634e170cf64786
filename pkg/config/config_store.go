package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/entrhq/htmlblock/pkg/logging"
	"github.com/entrhq/htmlblock/pkg/types"
)

// ConfigStore reads and mutates the extension configuration record.
//
// Reads never fail: a missing or unreadable record yields the default
// configuration. Mutations return a *StoreError (or a *ValidationError for
// rejected site rules) so the caller can show the failure to the user.
type ConfigStore struct {
	store  Store
	logger *logging.Logger

	defaultOnce sync.Once
	defaults    types.ExtensionConfig
}

// NewConfigStore creates a configuration store on top of the sync area.
func NewConfigStore(store Store, logger *logging.Logger) *ConfigStore {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ConfigStore{
		store:  store,
		logger: logger,
	}
}

// defaultConfig returns the seeded default. Its site id is stable for the
// lifetime of the store, so repeated reads of an absent record agree.
func (c *ConfigStore) defaultConfig() types.ExtensionConfig {
	c.defaultOnce.Do(func() {
		c.defaults = types.DefaultConfig()
	})
	return c.defaults.Clone()
}

// GetConfig returns the stored configuration, or the default one.
func (c *ConfigStore) GetConfig() types.ExtensionConfig {
	var cfg types.ExtensionConfig

	found, err := c.store.Get(ConfigKey, &cfg)
	if err != nil {
		c.logger.Errorf("Error getting config: %v", err)
		return c.defaultConfig()
	}
	if !found {
		return c.defaultConfig()
	}
	return cfg
}

// SaveConfig replaces the whole configuration record.
func (c *ConfigStore) SaveConfig(cfg types.ExtensionConfig) error {
	if err := c.store.Set(ConfigKey, cfg); err != nil {
		c.logger.Errorf("Error saving config: %v", err)
		return &StoreError{Op: "save config", Err: err}
	}
	return nil
}

// UpdateConfig applies a partial update to the configuration.
func (c *ConfigStore) UpdateConfig(update types.ConfigUpdate) error {
	return c.modify("update config", func(cfg *types.ExtensionConfig) error {
		if update.Enabled != nil {
			cfg.Enabled = *update.Enabled
		}
		if update.Sites != nil {
			cfg.Sites = update.Sites
		}
		return nil
	})
}

// SetEnabled flips the global kill switch.
func (c *ConfigStore) SetEnabled(enabled bool) error {
	return c.UpdateConfig(types.ConfigUpdate{Enabled: &enabled})
}

// AddSite validates site, assigns it a fresh id and appends it to the list.
func (c *ConfigStore) AddSite(site types.SiteConfig) (types.SiteConfig, error) {
	site = NormalizeSite(site)
	if err := ValidateSite(site); err != nil {
		return types.SiteConfig{}, err
	}
	site.ID = uuid.New().String()

	err := c.modify("add site", func(cfg *types.ExtensionConfig) error {
		cfg.Sites = append(cfg.Sites, site)
		return nil
	})
	if err != nil {
		return types.SiteConfig{}, err
	}
	return site, nil
}

// UpdateSite applies a partial update to the site with the given id.
func (c *ConfigStore) UpdateSite(id string, update types.SiteUpdate) error {
	return c.modify("update site", func(cfg *types.ExtensionConfig) error {
		i := cfg.FindSite(id)
		if i < 0 {
			return fmt.Errorf("site with id %s: %w", id, ErrSiteNotFound)
		}

		site := NormalizeSite(update.Apply(cfg.Sites[i]))
		if err := ValidateSite(site); err != nil {
			return err
		}
		cfg.Sites[i] = site
		return nil
	})
}

// ToggleSite enables or disables a single site.
func (c *ConfigStore) ToggleSite(id string, enabled bool) error {
	return c.UpdateSite(id, types.SiteUpdate{Enabled: &enabled})
}

// DeleteSite removes the site with the given id. Unknown ids are ignored.
func (c *ConfigStore) DeleteSite(id string) error {
	return c.modify("delete site", func(cfg *types.ExtensionConfig) error {
		sites := cfg.Sites[:0]
		for _, site := range cfg.Sites {
			if site.ID != id {
				sites = append(sites, site)
			}
		}
		cfg.Sites = sites
		return nil
	})
}

// EnsureDefault seeds the default configuration when no record exists or
// the record has no sites, and reports whether it did.
func (c *ConfigStore) EnsureDefault() (bool, error) {
	seeded := false
	var cfg types.ExtensionConfig

	err := c.store.Update(ConfigKey, &cfg, func(found bool) error {
		if found && len(cfg.Sites) > 0 {
			return nil
		}
		c.logger.Infof("Initializing default configuration")
		cfg = c.defaultConfig()
		seeded = true
		return nil
	})
	if err != nil {
		c.logger.Errorf("Error seeding default config: %v", err)
		return false, &StoreError{Op: "seed default config", Err: err}
	}
	return seeded, nil
}

// Subscribe calls fn whenever the configuration record changes, whichever
// instance wrote it.
func (c *ConfigStore) Subscribe(fn func()) (unsubscribe func()) {
	return c.store.Subscribe(func(e ChangeEvent) {
		if e.Area == AreaSync && e.Has(ConfigKey) {
			fn()
		}
	})
}

// modify runs a read-modify-write of the configuration, starting from the
// default when no record exists yet.
func (c *ConfigStore) modify(op string, fn func(cfg *types.ExtensionConfig) error) error {
	var cfg types.ExtensionConfig

	err := c.store.Update(ConfigKey, &cfg, func(found bool) error {
		if !found {
			cfg = c.defaultConfig()
		}
		return fn(&cfg)
	})
	if err == nil {
		return nil
	}

	var invalid *ValidationError
	if errors.As(err, &invalid) {
		return err
	}

	c.logger.Errorf("Error during %s: %v", op, err)
	return &StoreError{Op: op, Err: err}
}
