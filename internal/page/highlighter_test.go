package page

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paintCall struct {
	op        string
	selectors []string
}

type fakePainter struct {
	mu    sync.Mutex
	calls []paintCall
}

func (p *fakePainter) record(op string, sel ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, paintCall{op: op, selectors: sel})
	return nil
}

func (p *fakePainter) Highlight(ctx context.Context, selector string) error {
	return p.record("highlight", selector)
}

func (p *fakePainter) HighlightAll(ctx context.Context, selectors []string) error {
	return p.record("highlight-all", selectors...)
}

func (p *fakePainter) Unpulse(ctx context.Context, selector string) error {
	return p.record("unpulse", selector)
}

func (p *fakePainter) Clear(ctx context.Context) error {
	return p.record("clear")
}

func (p *fakePainter) ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, c := range p.calls {
		out = append(out, c.op)
	}
	return out
}

func (p *fakePainter) has(op string) bool {
	for _, o := range p.ops() {
		if o == op {
			return true
		}
	}
	return false
}

func TestHighlightExactMatch(t *testing.T) {
	doc := parse(t, loadFixture(t, "create_bucket.html"))
	painter := &fakePainter{}
	h := NewHighlighter(painter, nil)

	res := h.Highlight(context.Background(), doc, []string{"", "#missing", "button:has-text('x')", "#create-bucket"})
	require.True(t, res.Found)
	assert.Equal(t, MatchExact, res.Method)
	assert.Equal(t, "#create-bucket", res.Selector)
	assert.Equal(t, "Create bucket", res.Text)
	assert.Equal(t, "#create-bucket", h.Current())
	assert.Equal(t, []string{"clear", "highlight"}, painter.ops())
}

func TestHighlightSkipsInvisibleMatches(t *testing.T) {
	doc := parse(t, loadFixture(t, "create_bucket.html"))
	h := NewHighlighter(nil, nil)

	res := h.Highlight(context.Background(), doc, []string{`button:contains("Hidden action")`, `[data-testid="upload-trigger"]`})
	require.True(t, res.Found)
	assert.Equal(t, MatchExact, res.Method)
	assert.Equal(t, "Upload", res.Text)
}

func TestHighlightSmartMatch(t *testing.T) {
	doc := parse(t, loadFixture(t, "create_bucket.html"))
	h := NewHighlighter(nil, nil)

	res := h.Highlight(context.Background(), doc, []string{"button[aria-label='Upload files']"})
	require.True(t, res.Found)
	assert.Equal(t, MatchSmart, res.Method)
	assert.Equal(t, "Upload", res.Text)

	m, ok := Compile(res.Selector)
	require.True(t, ok)
	assert.Equal(t, 1, doc.FindMatcher(m).Length())
}

func TestHighlightMostLikely(t *testing.T) {
	doc := parse(t, loadFixture(t, "create_bucket.html"))
	h := NewHighlighter(nil, nil)

	res := h.Highlight(context.Background(), doc, []string{"#zz9"})
	require.True(t, res.Found)
	assert.Equal(t, MatchMostLikely, res.Method)
	assert.Equal(t, "Create bucket", res.Text)
}

func TestHighlightNothingUsable(t *testing.T) {
	doc := parse(t, loadFixture(t, "create_bucket.html"))
	painter := &fakePainter{}
	h := NewHighlighter(painter, nil)

	for _, sels := range [][]string{nil, {}, {"", "   "}, {"###", "[[", "button:has-text('Create')"}} {
		res := h.Highlight(context.Background(), doc, sels)
		assert.False(t, res.Found, "%q", sels)
	}
	assert.False(t, painter.has("highlight"))
	assert.Empty(t, h.Current())

	assert.False(t, h.Highlight(context.Background(), nil, []string{"#create-bucket"}).Found)
}

func TestHighlightReplacesPrevious(t *testing.T) {
	doc := parse(t, loadFixture(t, "create_bucket.html"))
	painter := &fakePainter{}
	h := NewHighlighter(painter, nil)

	require.True(t, h.Highlight(context.Background(), doc, []string{"#create-bucket"}).Found)
	second := h.Highlight(context.Background(), doc, []string{`[data-testid="upload-trigger"]`})
	require.True(t, second.Found)

	assert.Equal(t, []string{"clear", "highlight", "clear", "highlight"}, painter.ops())
	assert.Equal(t, second.Selector, h.Current())
}

func TestPulseClearsAfterDuration(t *testing.T) {
	doc := parse(t, loadFixture(t, "create_bucket.html"))
	painter := &fakePainter{}
	h := NewHighlighter(painter, nil)
	h.PulseDuration = 10 * time.Millisecond

	require.True(t, h.Highlight(context.Background(), doc, []string{"#create-bucket"}).Found)
	assert.Eventually(t, func() bool { return painter.has("unpulse") }, time.Second, 5*time.Millisecond)
}

func TestInteractionClearsAndReports(t *testing.T) {
	doc := parse(t, loadFixture(t, "create_bucket.html"))
	painter := &fakePainter{}
	h := NewHighlighter(painter, nil)
	h.InteractionDelay = 5 * time.Millisecond

	got := make(chan string, 1)
	h.OnInteract(func(text string) { got <- text })

	require.True(t, h.Highlight(context.Background(), doc, []string{"#create-bucket"}).Found)
	h.Interacted("#other")
	h.Interacted("#create-bucket")

	select {
	case text := <-got:
		assert.Equal(t, "Create bucket", text)
	case <-time.After(time.Second):
		t.Fatal("interaction was not reported")
	}
	assert.Empty(t, h.Current())
}

func TestHighlightMultiple(t *testing.T) {
	doc := parse(t, loadFixture(t, "create_bucket.html"))
	painter := &fakePainter{}
	h := NewHighlighter(painter, nil)

	assert.True(t, h.HighlightMultiple(context.Background(), doc, []string{"#bucket-name", "#nope", "[[", "#create-bucket"}))
	require.Len(t, painter.calls, 2)
	assert.Equal(t, paintCall{op: "highlight-all", selectors: []string{"#bucket-name", "#create-bucket"}}, painter.calls[1])

	assert.False(t, h.HighlightMultiple(context.Background(), doc, []string{"#nope"}))
	assert.False(t, h.HighlightMultiple(context.Background(), doc, nil))
}

func TestKeywords(t *testing.T) {
	got := Keywords([]string{`button[aria-label="Create bucket"]`, "#go"})
	assert.Equal(t, []string{"create bucket", "button", "aria", "label", "create", "bucket"}, got)
}
