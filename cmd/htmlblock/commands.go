package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/entrhq/htmlblock/pkg/config"
	"github.com/entrhq/htmlblock/pkg/dom"
	"github.com/entrhq/htmlblock/pkg/removal"
	"github.com/entrhq/htmlblock/pkg/resolver"
	"github.com/entrhq/htmlblock/pkg/types"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// seed seeds the default configuration, like the background coordinator
// does on install.
func (a *app) seed() error {
	seeded, err := a.configs.EnsureDefault()
	if err != nil {
		return err
	}

	if seeded {
		a.printf("Default configuration created\n")
	} else {
		a.printf("Configuration already present\n")
	}
	return a.status()
}

func (a *app) status() error {
	a.printf("%s", renderStatus(a.configs.GetConfig(), a.stats.GetStats()))
	return nil
}

func (a *app) setEnabled(enabled bool) error {
	if err := a.configs.SetEnabled(enabled); err != nil {
		return err
	}
	return a.status()
}

func (a *app) sites(args []string) error {
	if len(args) == 0 {
		return a.listSites()
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "list":
		return a.listSites()
	case "add":
		return a.addSite(rest)
	case "update":
		return a.updateSite(rest)
	case "toggle":
		return a.toggleSite(rest)
	case "delete":
		return a.deleteSite(rest)
	default:
		return fmt.Errorf("unknown sites command %q", cmd)
	}
}

func (a *app) listSites() error {
	a.printf("%s", renderSites(a.configs.GetConfig(), a.stats.GetStats()))
	return nil
}

func (a *app) addSite(args []string) error {
	fs := newFlagSet("sites add")
	name := fs.String("name", "", "Display name")
	pattern := fs.String("pattern", "", "URL pattern, e.g. *://example.com/*")
	selector := fs.String("selector", "", "CSS selector of the elements to remove")
	disabled := fs.Bool("disabled", false, "Add the rule disabled")
	if err := fs.Parse(args); err != nil {
		return err
	}

	site, err := a.configs.AddSite(types.SiteConfig{
		Name:       *name,
		URLPattern: *pattern,
		Selector:   *selector,
		Enabled:    !*disabled,
	})
	if err != nil {
		return err
	}

	a.printf("Added site %s\n", site.ID)
	a.printf("%s\n", renderSite(site, 0))
	return nil
}

func (a *app) updateSite(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: sites update <id> [-name N] [-pattern P] [-selector S] [-enabled=true|false]")
	}
	id := args[0]

	fs := newFlagSet("sites update")
	name := fs.String("name", "", "Display name")
	pattern := fs.String("pattern", "", "URL pattern")
	selector := fs.String("selector", "", "CSS selector")
	enabled := fs.Bool("enabled", true, "Whether the rule is enabled")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	var update types.SiteUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			update.Name = name
		case "pattern":
			update.URLPattern = pattern
		case "selector":
			update.Selector = selector
		case "enabled":
			update.Enabled = enabled
		}
	})

	if err := a.configs.UpdateSite(id, update); err != nil {
		return err
	}
	a.printf("Updated site %s\n", id)
	return nil
}

func (a *app) toggleSite(args []string) error {
	if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
		return errors.New("usage: sites toggle <id> on|off")
	}

	enabled := args[1] == "on"
	if err := a.configs.ToggleSite(args[0], enabled); err != nil {
		return err
	}
	a.printf("Site %s is %s\n", args[0], badgeText(enabled))
	return nil
}

func (a *app) deleteSite(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: sites delete <id>")
	}

	id := args[0]
	if a.configs.GetConfig().FindSite(id) < 0 {
		return fmt.Errorf("site with id %s: %w", id, config.ErrSiteNotFound)
	}
	if err := a.configs.DeleteSite(id); err != nil {
		return err
	}
	a.printf("Deleted site %s\n", id)
	return nil
}

func (a *app) statsCmd(args []string) error {
	if len(args) > 0 {
		if args[0] != "reset" {
			return fmt.Errorf("unknown stats command %q", args[0])
		}
		if err := a.stats.ResetStats(); err != nil {
			return err
		}
		a.printf("Statistics reset\n")
	}

	a.printf("%s", renderStats(a.configs.GetConfig(), a.stats.GetStats()))
	return nil
}

func (a *app) importRules(args []string) error {
	fs := newFlagSet("import")
	replace := fs.Bool("replace", false, "Replace the existing sites instead of merging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: import [-replace] <file.yaml>")
	}

	rules, err := config.LoadRulesFile(fs.Arg(0))
	if err != nil {
		return err
	}

	added, updated, err := a.configs.ImportRules(rules, *replace)
	if err != nil {
		return err
	}
	a.printf("Imported %d new and %d updated site(s)\n", added, updated)
	return nil
}

func (a *app) exportRules(args []string) error {
	rules := a.configs.ExportRules()

	if len(args) == 0 || args[0] == "-" {
		return writeRules(a.out, rules)
	}

	if err := config.WriteRulesFile(args[0], rules); err != nil {
		return err
	}
	a.printf("Exported %d site(s) to %s\n", len(rules.Sites), args[0])
	return nil
}

// clean applies the rule matching -url to a static HTML file once.
func (a *app) clean(args []string) error {
	fs := newFlagSet("clean")
	url := fs.String("url", "", "URL the document was served from")
	in := fs.String("in", "", "Input HTML file")
	out := fs.String("out", "", "Output HTML file (stdout by default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *url == "" || *in == "" {
		return errors.New("usage: clean -url U -in file.html [-out file.html]")
	}

	file, err := os.Open(*in)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	doc, err := dom.ParseHTML(file, *url)
	file.Close()
	if err != nil {
		return err
	}

	cfg := a.configs.GetConfig()
	removed := 0
	var site *types.SiteConfig

	if !cfg.Enabled {
		a.logger.Warnf("Extension is disabled globally")
	} else if site = resolver.New(a.logger.Named("resolver")).Resolve(*url, cfg.Sites); site == nil {
		a.logger.Warnf("No matching configuration for: %s", *url)
	} else {
		engine := removal.NewEngine(a.stats, a.logger.Named("removal"))
		removed, err = engine.RemoveMatching(doc, site.Selector, site.ID)
		engine.Wait()
		if err != nil {
			return err
		}
	}

	if *out == "" {
		if err := doc.Render(a.out); err != nil {
			return fmt.Errorf("failed to render document: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(*out, []byte(doc.String()), 0600); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if site != nil {
		a.printf("Removed %d element(s) for %s\n", removed, site.DisplayName())
	} else {
		a.printf("No rule applies to %s\n", *url)
	}
	return nil
}
