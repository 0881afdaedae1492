package page

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	DefaultPulseDuration    = 3 * time.Second
	DefaultInteractionDelay = 500 * time.Millisecond

	smartMatchSelector = `button, a, input, select, textarea, [role="button"], [data-testid], label, ` +
		`div[class*="button"], span[class*="button"]`
)

// Prominent elements tried in order when nothing else matched.
var mostLikelySelectors = []string{
	`button[class*="primary"], .awsui-button-primary, [role="button"][class*="primary"]`,
	`button[type="submit"], input[type="submit"]`,
	buttonSelector,
}

var (
	quotedRe = regexp.MustCompile(`['"](.*?)['"]`)
	wordRe   = regexp.MustCompile(`\b\w{3,}\b`)
)

// Painter mirrors highlight changes onto the live page. Selectors passed to
// it come from PathTo and address exactly one element.
type Painter interface {
	Highlight(ctx context.Context, selector string) error
	HighlightAll(ctx context.Context, selectors []string) error
	Unpulse(ctx context.Context, selector string) error
	Clear(ctx context.Context) error
}

// Match methods.
const (
	MatchExact      = "exact"
	MatchSmart      = "smart-match"
	MatchMostLikely = "fallback"
)

// HighlightResult describes the element that was marked, if any.
type HighlightResult struct {
	Found    bool
	Method   string
	Selector string
	Text     string
}

type mark struct {
	selector string
	text     string
}

// Highlighter keeps at most one element highlighted at a time.
type Highlighter struct {
	PulseDuration    time.Duration
	InteractionDelay time.Duration

	mu         sync.Mutex
	painter    Painter
	current    *mark
	pulse      *time.Timer
	onInteract func(text string)
	logger     *zap.Logger
}

func NewHighlighter(painter Painter, logger *zap.Logger) *Highlighter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Highlighter{
		PulseDuration:    DefaultPulseDuration,
		InteractionDelay: DefaultInteractionDelay,
		painter:          painter,
		logger:           logger,
	}
}

// OnInteract registers the callback fired after the user interacted with the
// highlighted element and its marker was removed.
func (h *Highlighter) OnInteract(fn func(text string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onInteract = fn
}

// Current returns the selector of the highlighted element, or "".
func (h *Highlighter) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return ""
	}
	return h.current.selector
}

// Highlight marks the first element matching the candidate selectors. When no
// selector matches a visible element exactly, it falls back to a keyword
// search and then to the most prominent button. A list with no valid
// selector never matches. Failures are reported through Found only.
func (h *Highlighter) Highlight(ctx context.Context, doc *goquery.Document, selectors []string) HighlightResult {
	h.Clear(ctx, doc)
	if doc == nil {
		return HighlightResult{}
	}

	el, method := h.find(doc, selectors)
	if el == nil {
		h.logger.Debug("no element found for highlight", zap.Strings("selectors", selectors))
		return HighlightResult{}
	}

	res := HighlightResult{Found: true, Method: method, Selector: PathTo(el), Text: text(el)}

	h.mu.Lock()
	h.current = &mark{selector: res.Selector, text: res.Text}
	h.mu.Unlock()

	if h.painter != nil {
		if err := h.painter.Highlight(ctx, res.Selector); err != nil {
			h.logger.Warn("paint highlight", zap.String("selector", res.Selector), zap.Error(err))
		}
	}
	h.startPulse(res.Selector)
	return res
}

// HighlightMultiple marks every selector's first visible exact match.
func (h *Highlighter) HighlightMultiple(ctx context.Context, doc *goquery.Document, selectors []string) bool {
	h.Clear(ctx, doc)
	if doc == nil {
		return false
	}
	var paths []string
	for _, sel := range selectors {
		if el := firstVisible(doc, sel); el != nil {
			paths = append(paths, PathTo(el))
		}
	}
	if len(paths) == 0 {
		return false
	}
	if h.painter != nil {
		if err := h.painter.HighlightAll(ctx, paths); err != nil {
			h.logger.Warn("paint highlights", zap.Strings("selectors", paths), zap.Error(err))
		}
	}
	return true
}

// Clear removes the current marker and any orphaned ones left in doc.
func (h *Highlighter) Clear(ctx context.Context, doc *goquery.Document) {
	h.mu.Lock()
	h.current = nil
	if h.pulse != nil {
		h.pulse.Stop()
		h.pulse = nil
	}
	h.mu.Unlock()

	if doc != nil {
		if n := doc.Find("." + HighlightClass).Length(); n > 0 {
			h.logger.Debug("clearing highlight markers", zap.Int("count", n))
		}
	}
	if h.painter != nil {
		if err := h.painter.Clear(ctx); err != nil {
			h.logger.Warn("clear highlight", zap.Error(err))
		}
	}
}

// Interacted is called when the user clicked the highlighted element. After
// InteractionDelay the marker is removed and the interaction reported.
func (h *Highlighter) Interacted(selector string) {
	h.mu.Lock()
	cur := h.current
	delay := h.InteractionDelay
	h.mu.Unlock()
	if cur == nil || (selector != "" && selector != cur.selector) {
		return
	}

	time.AfterFunc(delay, func() {
		h.mu.Lock()
		if h.current != cur {
			h.mu.Unlock()
			return
		}
		fn := h.onInteract
		h.mu.Unlock()

		h.Clear(context.Background(), nil)
		if fn != nil {
			fn(cur.text)
		}
	})
}

func (h *Highlighter) startPulse(selector string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pulse = time.AfterFunc(h.PulseDuration, func() {
		if h.painter == nil {
			return
		}
		if err := h.painter.Unpulse(context.Background(), selector); err != nil {
			h.logger.Debug("remove pulse", zap.Error(err))
		}
	})
}

func (h *Highlighter) find(doc *goquery.Document, selectors []string) (*goquery.Selection, string) {
	valid := false
	for _, sel := range selectors {
		m, ok := Compile(sel)
		if !ok {
			if strings.TrimSpace(sel) != "" {
				h.logger.Debug("invalid selector", zap.String("selector", sel))
			}
			continue
		}
		valid = true
		if el := firstVisibleMatch(doc.FindMatcher(m)); el != nil {
			return el, MatchExact
		}
	}
	if !valid {
		return nil, ""
	}
	if el := SmartMatch(doc, selectors); el != nil {
		return el, MatchSmart
	}
	if el := MostLikely(doc); el != nil {
		return el, MatchMostLikely
	}
	return nil, ""
}

// Keywords extracts the quoted substrings and the words of three or more
// characters from selectors, lowercased.
func Keywords(selectors []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, sel := range selectors {
		for _, m := range quotedRe.FindAllStringSubmatch(sel, -1) {
			if t := strings.ToLower(m[1]); len([]rune(t)) > 2 {
				add(t)
			}
		}
		for _, w := range wordRe.FindAllString(strings.ToLower(sel), -1) {
			add(w)
		}
	}
	return out
}

// SmartMatch scores every visible interactive element against the selector
// keywords (text 3, aria-label 2, class 1, placeholder 2, plus one each for
// being a button and for looking like a submit). The best scoring element
// with at least one keyword hit wins; ties go to the earliest in the document.
func SmartMatch(doc *goquery.Document, selectors []string) *goquery.Selection {
	keywords := Keywords(selectors)
	if len(keywords) == 0 {
		return nil
	}

	var (
		best      *goquery.Selection
		bestScore int
	)
	doc.Find(smartMatchSelector).Each(func(_ int, el *goquery.Selection) {
		if !IsVisible(el) {
			return
		}
		content := strings.ToLower(el.Text())
		aria := strings.ToLower(el.AttrOr("aria-label", ""))
		class := strings.ToLower(el.AttrOr("class", ""))
		placeholder := strings.ToLower(el.AttrOr("placeholder", ""))

		score := 0
		for _, k := range keywords {
			if strings.Contains(content, k) {
				score += 3
			}
			if strings.Contains(aria, k) {
				score += 2
			}
			if strings.Contains(class, k) {
				score++
			}
			if strings.Contains(placeholder, k) {
				score += 2
			}
		}
		if score == 0 {
			return
		}
		if goquery.NodeName(el) == "button" || el.AttrOr("role", "") == "button" {
			score++
		}
		if strings.EqualFold(el.AttrOr("type", ""), "submit") || strings.Contains(class, "primary") {
			score++
		}
		if score > bestScore {
			best, bestScore = el, score
		}
	})
	return best
}

// MostLikely returns the most prominent visible action: a primary button, then
// a submit button, then any enabled button with text.
func MostLikely(doc *goquery.Document) *goquery.Selection {
	for i, sel := range mostLikelySelectors {
		var found *goquery.Selection
		doc.Find(sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if !IsVisible(el) {
				return true
			}
			if i == len(mostLikelySelectors)-1 && text(el) == "" {
				return true
			}
			found = el
			return false
		})
		if found != nil {
			return found
		}
	}
	return nil
}

func firstVisible(doc *goquery.Document, sel string) *goquery.Selection {
	m, ok := Compile(sel)
	if !ok {
		return nil
	}
	return firstVisibleMatch(doc.FindMatcher(m))
}

func firstVisibleMatch(matches *goquery.Selection) *goquery.Selection {
	var found *goquery.Selection
	matches.EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if IsVisible(el) {
			found = el
			return false
		}
		return true
	})
	return found
}
