package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/dom"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/rahul/consolenano/internal/page"
)

// tabSource drives one tab. It is the observer's Source, Painter and
// InteractionSource at once.
type tabSource struct {
	ctx context.Context
}

var (
	_ page.Source            = (*tabSource)(nil)
	_ page.Painter           = (*tabSource)(nil)
	_ page.InteractionSource = (*tabSource)(nil)
)

// run executes actions in the tab. The call is bounded by both the tab's
// lifetime and ctx.
func (s *tabSource) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, actionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *tabSource) Document(ctx context.Context) (page.Document, error) {
	var doc page.Document
	err := s.run(ctx,
		chromedp.Location(&doc.URL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			doc.HTML, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return page.Document{}, fmt.Errorf("read document: %w", err)
	}
	return doc, nil
}

func (s *tabSource) Highlight(ctx context.Context, selector string) error {
	return s.paint(ctx, highlightScript([]string{selector}))
}

func (s *tabSource) HighlightAll(ctx context.Context, selectors []string) error {
	return s.paint(ctx, highlightScript(selectors))
}

func (s *tabSource) Unpulse(ctx context.Context, selector string) error {
	return s.paint(ctx, unpulseScript(selector))
}

func (s *tabSource) Clear(ctx context.Context) error {
	return s.paint(ctx, clearScript())
}

func (s *tabSource) paint(ctx context.Context, script string) error {
	var found bool
	if err := s.run(ctx, chromedp.Evaluate(installScript, nil), chromedp.Evaluate(script, &found)); err != nil {
		return fmt.Errorf("paint: %w", err)
	}
	return nil
}

// TakeInteraction reports whether a highlighted element was clicked since
// the last call.
func (s *tabSource) TakeInteraction(ctx context.Context) (string, bool, error) {
	var clicks int
	if err := s.run(ctx, chromedp.Evaluate(takeClicksScript, &clicks)); err != nil {
		return "", false, err
	}
	return "", clicks > 0, nil
}

func bringToFront() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return cdppage.BringToFront().Do(ctx)
	})
}

// installScript adds the highlight styles and the click counter once per
// document.
var installScript = fmt.Sprintf(`(() => {
	if (window.__consoleNano) return;
	window.__consoleNano = {clicks: 0};
	const style = document.createElement('style');
	style.textContent = '.%[1]s { outline: 3px solid #ff9900 !important; outline-offset: 2px; }' +
		' .%[2]s { animation: console-nano-pulse 1.2s ease-in-out infinite; }' +
		' @keyframes console-nano-pulse { 50%% { outline-color: rgba(255,153,0,0.3); } }';
	document.head.appendChild(style);
	document.addEventListener('click', (e) => {
		if (e.target instanceof Element && e.target.closest('.%[1]s')) window.__consoleNano.clicks++;
	}, true);
})()`, page.HighlightClass, page.PulseClass)

const takeClicksScript = `(() => {
	const n = window.__consoleNano ? window.__consoleNano.clicks : 0;
	if (window.__consoleNano) window.__consoleNano.clicks = 0;
	return n;
})()`

// highlightScript marks every element matching one of selectors and scrolls
// the first into view. It evaluates to whether anything matched.
func highlightScript(selectors []string) string {
	list, _ := json.Marshal(selectors)
	return fmt.Sprintf(`(() => {
	let first = null;
	for (const sel of %s) {
		let nodes = [];
		try { nodes = document.querySelectorAll(sel); } catch (e) { continue; }
		for (const el of nodes) {
			el.classList.add(%q, %q);
			if (!first) first = el;
		}
	}
	if (first) first.scrollIntoView({behavior: 'smooth', block: 'center'});
	return first !== null;
})()`, list, page.HighlightClass, page.PulseClass)
}

func unpulseScript(selector string) string {
	sel, _ := json.Marshal(selector)
	return fmt.Sprintf(`(() => {
	let nodes = [];
	try { nodes = document.querySelectorAll(%s); } catch (e) { return false; }
	nodes.forEach((el) => el.classList.remove(%q));
	return nodes.length > 0;
})()`, sel, page.PulseClass)
}

func clearScript() string {
	return fmt.Sprintf(`(() => {
	document.querySelectorAll('.%[1]s, .%[2]s').forEach((el) => el.classList.remove(%[1]q, %[2]q));
	return true;
})()`, page.HighlightClass, page.PulseClass)
}
