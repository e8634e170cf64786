package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/htmlblock/pkg/types"
)

// Badge colors
var (
	onColor    = lipgloss.Color("#4CAF50")
	offColor   = lipgloss.Color("#F44336")
	mutedColor = lipgloss.Color("245")
)

// badgeText is the status badge label.
func badgeText(enabled bool) string {
	if enabled {
		return "ON"
	}
	return "OFF"
}

func renderBadge(enabled bool) string {
	color := offColor
	if enabled {
		color = onColor
	}

	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(color).
		Padding(0, 1).
		Render(badgeText(enabled))
}

func renderStatus(cfg types.ExtensionConfig, stats types.BlockingStats) string {
	var b strings.Builder
	b.WriteString(renderBadge(cfg.Enabled))
	b.WriteString(fmt.Sprintf(" %d site(s), %d element(s) blocked\n", len(cfg.Sites), stats.TotalBlocked))
	return b.String()
}

// renderSite renders one site rule as a card, the way the popup lists them.
func renderSite(site types.SiteConfig, blocked int) string {
	borderColor := offColor
	if site.Enabled {
		borderColor = onColor
	}

	muted := lipgloss.NewStyle().Foreground(mutedColor)

	var content strings.Builder
	content.WriteString(lipgloss.NewStyle().Bold(true).Render(site.DisplayName()))
	content.WriteString(" ")
	content.WriteString(muted.Render(site.ID))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("Pattern:  %s\n", site.URLPattern))
	content.WriteString(fmt.Sprintf("Selector: %s\n", site.Selector))
	content.WriteString(fmt.Sprintf("Enabled:  %s   Blocked: %d", badgeText(site.Enabled), blocked))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Render(content.String())
}

func renderSites(cfg types.ExtensionConfig, stats types.BlockingStats) string {
	if len(cfg.Sites) == 0 {
		return "No sites configured\n"
	}

	cards := make([]string, 0, len(cfg.Sites))
	for _, site := range cfg.Sites {
		cards = append(cards, renderSite(site, stats.SiteCount(site.ID)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...) + "\n"
}

func renderStats(cfg types.ExtensionConfig, stats types.BlockingStats) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Total blocked: %d\n", stats.TotalBlocked))

	for _, site := range cfg.Sites {
		b.WriteString(fmt.Sprintf("  %-30s %d\n", site.DisplayName(), stats.SiteCount(site.ID)))
	}

	if stats.LastReset > 0 {
		reset := time.UnixMilli(stats.LastReset).Format(time.RFC3339)
		b.WriteString(lipgloss.NewStyle().Foreground(mutedColor).Render("Last reset: "+reset) + "\n")
	}
	return b.String()
}
