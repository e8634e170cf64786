package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/entrhq/htmlblock/pkg/types"
)

// RulesFile is the YAML document used to import and export site rules.
type RulesFile struct {
	Enabled *bool       `yaml:"enabled,omitempty"`
	Sites   []RuleEntry `yaml:"sites"`
}

// RuleEntry is one site rule in a rules file. Enabled defaults to true.
type RuleEntry struct {
	ID         string `yaml:"id,omitempty"`
	Name       string `yaml:"name,omitempty"`
	URLPattern string `yaml:"urlPattern"`
	Selector   string `yaml:"selector"`
	Enabled    *bool  `yaml:"enabled,omitempty"`
}

// Site converts the entry into a site rule. The id is kept as-is.
func (r RuleEntry) Site() types.SiteConfig {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return NormalizeSite(types.SiteConfig{
		ID:         r.ID,
		Name:       r.Name,
		URLPattern: r.URLPattern,
		Selector:   r.Selector,
		Enabled:    enabled,
	})
}

// RulesFromConfig builds a rules file describing cfg.
func RulesFromConfig(cfg types.ExtensionConfig) RulesFile {
	enabled := cfg.Enabled
	rules := RulesFile{
		Enabled: &enabled,
		Sites:   make([]RuleEntry, 0, len(cfg.Sites)),
	}
	for _, site := range cfg.Sites {
		siteEnabled := site.Enabled
		rules.Sites = append(rules.Sites, RuleEntry{
			ID:         site.ID,
			Name:       site.Name,
			URLPattern: site.URLPattern,
			Selector:   site.Selector,
			Enabled:    &siteEnabled,
		})
	}
	return rules
}

// LoadRulesFile reads and validates a rules file.
func LoadRulesFile(path string) (RulesFile, error) {
	var rules RulesFile

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read rules file: %w", err)
	}

	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("failed to parse rules file: %w", err)
	}

	for i, entry := range rules.Sites {
		if err := ValidateSite(entry.Site()); err != nil {
			return rules, fmt.Errorf("rule %d: %w", i+1, err)
		}
	}
	return rules, nil
}

// WriteRulesFile writes rules to path as YAML.
func WriteRulesFile(path string, rules RulesFile) error {
	data, err := yaml.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create rules directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write rules file: %w", err)
	}
	return nil
}

// ImportRules merges rules into the configuration. With replace set, the
// existing sites are dropped first. Entries whose id already exists are
// updated in place; the others are appended with a fresh id when missing.
// Returns the number of sites added and updated.
func (c *ConfigStore) ImportRules(rules RulesFile, replace bool) (added, updated int, err error) {
	for i, entry := range rules.Sites {
		if err := ValidateSite(entry.Site()); err != nil {
			return 0, 0, fmt.Errorf("rule %d: %w", i+1, err)
		}
	}

	err = c.modify("import rules", func(cfg *types.ExtensionConfig) error {
		added, updated = 0, 0
		if replace {
			cfg.Sites = nil
		}
		if rules.Enabled != nil {
			cfg.Enabled = *rules.Enabled
		}

		for _, entry := range rules.Sites {
			site := entry.Site()
			if site.ID != "" {
				if i := cfg.FindSite(site.ID); i >= 0 {
					cfg.Sites[i] = site
					updated++
					continue
				}
			} else {
				site.ID = uuid.New().String()
			}
			cfg.Sites = append(cfg.Sites, site)
			added++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return added, updated, nil
}

// ExportRules returns the current configuration as a rules file.
func (c *ConfigStore) ExportRules() RulesFile {
	return RulesFromConfig(c.GetConfig())
}
