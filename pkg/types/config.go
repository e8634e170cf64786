package types

import (
	"github.com/google/uuid"
)

// SiteConfig is a single user-defined removal rule.
type SiteConfig struct {
	// ID is an opaque unique identifier, immutable after creation
	ID string `json:"id"`

	// URLPattern is a glob using * as wildcard, e.g. *://www.example.com/tv/*
	URLPattern string `json:"urlPattern"`

	// Selector is a CSS selector identifying the elements to remove
	Selector string `json:"selector"`

	// Enabled controls whether the rule is considered at all
	Enabled bool `json:"enabled"`

	// Name is an optional display label with no effect on matching
	Name string `json:"name,omitempty"`
}

// DisplayName returns the site name or "Unnamed" when none is set.
func (s SiteConfig) DisplayName() string {
	if s.Name == "" {
		return "Unnamed"
	}
	return s.Name
}

// SiteUpdate is a partial update of a SiteConfig. Nil fields are left untouched.
type SiteUpdate struct {
	Name       *string
	URLPattern *string
	Selector   *string
	Enabled    *bool
}

// Apply returns a copy of site with the update applied. The id never changes.
func (u SiteUpdate) Apply(site SiteConfig) SiteConfig {
	if u.Name != nil {
		site.Name = *u.Name
	}
	if u.URLPattern != nil {
		site.URLPattern = *u.URLPattern
	}
	if u.Selector != nil {
		site.Selector = *u.Selector
	}
	if u.Enabled != nil {
		site.Enabled = *u.Enabled
	}
	return site
}

// ExtensionConfig is the process-wide configuration record.
type ExtensionConfig struct {
	// Enabled is the global kill switch
	Enabled bool `json:"enabled"`

	// Sites is ordered by match priority, first match wins
	Sites []SiteConfig `json:"sites"`
}

// Clone returns a deep copy of the configuration.
func (c ExtensionConfig) Clone() ExtensionConfig {
	out := ExtensionConfig{Enabled: c.Enabled}
	if c.Sites != nil {
		out.Sites = make([]SiteConfig, len(c.Sites))
		copy(out.Sites, c.Sites)
	}
	return out
}

// FindSite returns the index of the site with the given id, or -1.
func (c ExtensionConfig) FindSite(id string) int {
	for i, site := range c.Sites {
		if site.ID == id {
			return i
		}
	}
	return -1
}

// ConfigUpdate is a partial update of the top-level configuration.
type ConfigUpdate struct {
	Enabled *bool
	Sites   []SiteConfig
}

// Default rule seeded on first install.
const (
	DefaultSitePattern  = "*://www.lequipe.fr/tv/*"
	DefaultSiteSelector = `div.Modal[data-modal="amsBlock"]`
	DefaultSiteName     = "L'Équipe TV"
)

// DefaultConfig returns the configuration seeded on first install.
// Every call generates a fresh site id.
func DefaultConfig() ExtensionConfig {
	return ExtensionConfig{
		Enabled: true,
		Sites: []SiteConfig{
			{
				ID:         uuid.New().String(),
				URLPattern: DefaultSitePattern,
				Selector:   DefaultSiteSelector,
				Enabled:    true,
				Name:       DefaultSiteName,
			},
		},
	}
}

// BlockingStats holds removal counters. It is derived data and safe to reset.
type BlockingStats struct {
	// TotalBlocked is the sum of all SiteStats values
	TotalBlocked int `json:"totalBlocked"`

	// SiteStats maps site id to the number of elements removed for it
	SiteStats map[string]int `json:"siteStats"`

	// LastReset is the epoch milliseconds of the last reset
	LastReset int64 `json:"lastReset,omitempty"`
}

// SiteCount returns the number of removals recorded for a site.
func (s BlockingStats) SiteCount(siteID string) int {
	return s.SiteStats[siteID]
}
