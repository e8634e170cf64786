package removal

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/htmlblock/pkg/dom"
	"github.com/entrhq/htmlblock/pkg/logging"
)

type recordedIncrement struct {
	siteID string
	count  int
}

type fakeStats struct {
	mu    sync.Mutex
	calls []recordedIncrement
	err   error
}

func (f *fakeStats) IncrementBlockedCount(siteID string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedIncrement{siteID: siteID, count: count})
	return f.err
}

func (f *fakeStats) recorded() []recordedIncrement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedIncrement(nil), f.calls...)
}

func newDoc(t *testing.T) *dom.HTMLDocument {
	t.Helper()
	doc, err := dom.ParseHTMLString(`<html><body>
		<div class="modal">1</div>
		<div class="modal">2</div>
		<p><span class="modal">3</span></p>
		<div class="content">keep</div>
	</body></html>`, "https://a.com/")
	require.NoError(t, err)
	return doc
}

func TestRemoveMatchingIsIdempotent(t *testing.T) {
	doc := newDoc(t)
	stats := &fakeStats{}
	engine := NewEngine(stats, nil)

	n, err := engine.RemoveMatching(doc, ".modal", "site-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	left, err := doc.Count(".modal")
	require.NoError(t, err)
	assert.Zero(t, left)

	n, err = engine.RemoveMatching(doc, ".modal", "site-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	engine.Wait()
	assert.Equal(t, []recordedIncrement{{siteID: "site-1", count: 3}}, stats.recorded(), "empty passes are not reported")

	kept, err := doc.Count(".content")
	require.NoError(t, err)
	assert.Equal(t, 1, kept)
}

func TestRemoveMatchingWithoutSite(t *testing.T) {
	doc := newDoc(t)
	stats := &fakeStats{}
	engine := NewEngine(stats, nil)

	n, err := engine.RemoveMatching(doc, ".modal", "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	engine.Wait()
	assert.Empty(t, stats.recorded())
}

func TestRemoveMatchingInvalidSelector(t *testing.T) {
	doc := newDoc(t)
	engine := NewEngine(&fakeStats{}, nil)

	n, err := engine.RemoveMatching(doc, "div[", "site-1")
	assert.Zero(t, n)

	var invalid *dom.InvalidSelectorError
	require.True(t, errors.As(err, &invalid))

	left, err := doc.Count(".modal")
	require.NoError(t, err)
	assert.Equal(t, 3, left, "nothing is removed")
}

func TestRemoveMatchingStatsFailureDoesNotAffectRemoval(t *testing.T) {
	var buf bytes.Buffer
	doc := newDoc(t)
	stats := &fakeStats{err: errors.New("quota exceeded")}
	engine := NewEngine(stats, logging.NewWriterLogger("removal", &buf))

	n, err := engine.RemoveMatching(doc, ".modal", "site-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	engine.Wait()
	assert.Len(t, stats.recorded(), 1)
	assert.Contains(t, buf.String(), "quota exceeded")
	assert.Contains(t, buf.String(), `Removing 3 element(s) matching ".modal"`)
}

func TestRemoveMatchingNilStats(t *testing.T) {
	doc := newDoc(t)
	engine := NewEngine(nil, nil)

	n, err := engine.RemoveMatching(doc, ".modal", "site-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	engine.Wait()
}

type failingDoc struct {
	dom.Document
}

func (failingDoc) QuerySelectorAll(string) ([]dom.Element, error) {
	return nil, errors.New("page crashed")
}

func TestRemoveMatchingQueryFailure(t *testing.T) {
	engine := NewEngine(nil, nil)

	n, err := engine.RemoveMatching(failingDoc{}, ".modal", "site-1")
	assert.Zero(t, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page crashed")
}
