package config

import (
	"strings"

	"github.com/entrhq/htmlblock/pkg/dom"
	"github.com/entrhq/htmlblock/pkg/types"
)

// schemeSeparator must appear in every URL pattern.
const schemeSeparator = "://"

// NormalizeSite trims the user-editable fields of a site rule.
func NormalizeSite(site types.SiteConfig) types.SiteConfig {
	site.Name = strings.TrimSpace(site.Name)
	site.URLPattern = strings.TrimSpace(site.URLPattern)
	site.Selector = strings.TrimSpace(site.Selector)
	return site
}

// ValidateSite checks a normalized site rule: the pattern must be non-empty
// and contain a scheme separator, the selector must be a valid CSS selector.
func ValidateSite(site types.SiteConfig) error {
	if err := ValidateURLPattern(site.URLPattern); err != nil {
		return err
	}
	return validateSelector(site.Selector)
}

// ValidateURLPattern checks a URL pattern before it is stored.
func ValidateURLPattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" || !strings.Contains(pattern, schemeSeparator) {
		return &ValidationError{
			Field:   "urlPattern",
			Message: "Invalid URL pattern. Must contain :// (e.g., *://example.com/*)",
		}
	}
	return nil
}

func validateSelector(selector string) error {
	if strings.TrimSpace(selector) == "" || dom.ValidateSelector(selector) != nil {
		return &ValidationError{Field: "selector", Message: "Invalid CSS selector."}
	}
	return nil
}
