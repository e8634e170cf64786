package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/htmlblock/pkg/dom"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

// navigatingDoc adds page loads to an in-memory document.
type navigatingDoc struct {
	*dom.HTMLDocument

	mu        sync.Mutex
	listeners []func(string)
}

func (d *navigatingDoc) OnNavigate(fn func(url string)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
	return func() {}
}

func (d *navigatingDoc) navigate(url string) {
	d.SetURL(url)
	d.mu.Lock()
	listeners := append([]func(string){}, d.listeners...)
	d.mu.Unlock()
	for _, fn := range listeners {
		fn(url)
	}
}

func startRunner(t *testing.T, doc dom.Document, configs Source) *Runner {
	t.Helper()
	r := NewRunner(doc, configs, newCountingRemover())
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = r.Shutdown(ctx)
	})
	return r
}

func watching(r *Runner, selector string) func() bool {
	return func() bool {
		c := r.Controller()
		return c.State() == Watching && c.Selector() == selector
	}
}

func TestRunner_InitializesOnStart(t *testing.T) {
	doc := newPage(t)
	configs := newStaticConfig(configWith(siteConfig("id1", "*://news.example/*", ".x")))

	r := startRunner(t, doc, configs)

	assert.Eventually(t, watching(r, ".x"), waitFor, tick)
	assert.Equal(t, 0, count(t, doc, ".x"))
	assert.Error(t, r.Start(context.Background()), "second start should fail")
}

func TestRunner_ReactsToConfigChanges(t *testing.T) {
	doc := newPage(t)
	configs := newStaticConfig(configWith(siteConfig("id1", "*://news.example/*", ".x")))

	r := startRunner(t, doc, configs)
	require.Eventually(t, watching(r, ".x"), waitFor, tick)

	configs.set(configWith(siteConfig("id2", "*://news.example/*", ".y")))

	assert.Eventually(t, watching(r, ".y"), waitFor, tick)
	assert.Eventually(t, func() bool { return count(t, doc, ".y") == 0 }, waitFor, tick)
	assert.Equal(t, 1, doc.Observers())
}

func TestRunner_ReactsToVisibility(t *testing.T) {
	doc := newPage(t)
	configs := newStaticConfig(configWith(siteConfig("id1", "*://news.example/*", ".x")))

	r := startRunner(t, doc, configs)
	require.Eventually(t, watching(r, ".x"), waitFor, tick)

	doc.SetHidden(true)
	assert.Eventually(t, func() bool { return r.Controller().State() == Idle }, waitFor, tick)
	assert.Eventually(t, func() bool { return doc.Observers() == 0 }, waitFor, tick)

	doc.SetHidden(false)
	assert.Eventually(t, watching(r, ".x"), waitFor, tick)
	assert.Equal(t, 1, doc.Observers())
}

func TestRunner_RemovesInsertedElements(t *testing.T) {
	doc := newPage(t)
	configs := newStaticConfig(configWith(siteConfig("id1", "*://news.example/*", ".x")))

	r := startRunner(t, doc, configs)
	require.Eventually(t, watching(r, ".x"), waitFor, tick)

	require.NoError(t, doc.AppendHTML("#root", `<div class="x">late</div>`))
	doc.Flush()

	assert.Eventually(t, func() bool { return count(t, doc, ".x") == 0 }, waitFor, tick)
}

func TestRunner_NavigationCreatesFreshController(t *testing.T) {
	page := newPage(t)
	doc := &navigatingDoc{HTMLDocument: page}
	configs := newStaticConfig(configWith(
		siteConfig("tv", "*://news.example/tv/*", ".x"),
		siteConfig("home", "*://news.example/", ".y"),
	))

	r := startRunner(t, doc, configs)
	require.Eventually(t, watching(r, ".x"), waitFor, tick)
	first := r.Controller()

	doc.navigate("https://news.example/")

	assert.Eventually(t, func() bool {
		c := r.Controller()
		return c != first && c.State() == Watching && c.SiteID() == "home"
	}, waitFor, tick)
	assert.Equal(t, Idle, first.State())
	assert.Equal(t, 1, page.Observers())
}

func TestRunner_Shutdown(t *testing.T) {
	doc := newPage(t)
	configs := newStaticConfig(configWith(siteConfig("id1", "*://news.example/*", ".x")))

	r := NewRunner(doc, configs, newCountingRemover())
	require.NoError(t, r.Start(context.Background()))
	require.Eventually(t, watching(r, ".x"), waitFor, tick)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
	require.NoError(t, r.Shutdown(ctx), "shutdown is idempotent")

	select {
	case <-r.Done():
	default:
		t.Fatal("Done should be closed after shutdown")
	}
	assert.Equal(t, Idle, r.Controller().State())
	assert.Equal(t, 0, doc.Observers())
}

func TestRunner_RunStopsWithContext(t *testing.T) {
	doc := newPage(t)
	configs := newStaticConfig(configWith(siteConfig("id1", "*://news.example/*", ".x")))
	r := NewRunner(doc, configs, newCountingRemover())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		c := r.Controller()
		return c != nil && c.State() == Watching
	}, waitFor, tick)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return after cancel")
	}
}
