package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/htmlblock/pkg/browser"
	"github.com/entrhq/htmlblock/pkg/removal"
	"github.com/entrhq/htmlblock/pkg/watch"
)

const watchSession = "watch"

// watch opens url in a browser and keeps it clean until interrupted.
// Rule changes made by other htmlblock processes are picked up live.
func (a *app) watch(ctx context.Context, args []string) error {
	fs := newFlagSet("watch")
	url := fs.String("url", "", "Page to open")
	headless := fs.Bool("headless", true, "Run the browser without a window")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *url == "" {
		return errors.New("usage: watch -url U [-headless=false]")
	}

	if _, err := a.configs.EnsureDefault(); err != nil {
		a.logger.Warnf("Failed to seed default configuration: %v", err)
	}

	manager := browser.NewSessionManager(a.logger.Named("browser"))
	if err := manager.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			a.logger.Errorf("Browser shutdown failed: %v", err)
		}
	}()

	session, err := manager.StartSession(watchSession, browser.SessionOptions{Headless: *headless})
	if err != nil {
		return err
	}
	if err := session.Navigate(*url, browser.NavigateOptions{WaitUntil: "domcontentloaded"}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ready := make(chan struct{})
	go func() {
		if err := a.syncStore.Watch(ctx, ready); err != nil {
			a.logger.Errorf("Configuration watcher stopped: %v", err)
		}
	}()

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		a.logger.Warnf("Configuration watcher did not start; changes from other processes will be missed")
	}

	engine := removal.NewEngine(a.stats, a.logger.Named("removal"))
	runner := watch.NewRunner(session.Page, a.configs, engine, watch.WithRunnerLogger(a.logger.Named("watch")))

	a.printf("%s watching %s (Ctrl+C to stop)\n", renderBadge(a.configs.GetConfig().Enabled), *url)

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	engine.Wait()

	stats := a.stats.GetStats()
	a.printf("Stopped. %d element(s) blocked in total\n", stats.TotalBlocked)
	return nil
}
