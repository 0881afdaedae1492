package panel

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rahul/consolenano/internal/bridge"
)

// scheduleHighlight arms one highlight attempt per HighlightDelays entry for
// the active step. Earlier attempts for another step are cancelled.
func (p *Panel) scheduleHighlight() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopHighlights()
	s, ok := p.plan.Step(p.step)
	if !ok || len(s.Element) == 0 {
		return
	}
	selectors := append([]string(nil), s.Element...)
	for _, d := range p.HighlightDelays {
		p.highlights = append(p.highlights, time.AfterFunc(d, func() {
			p.highlight(p.ctx, selectors)
		}))
	}
}

// rehighlight tries the active step again after the page changed.
func (p *Panel) rehighlight() {
	p.mu.Lock()
	s, ok := p.plan.Step(p.step)
	p.mu.Unlock()
	if ok && len(s.Element) > 0 {
		p.highlight(p.ctx, s.Element)
	}
}

// stopHighlights cancels pending attempts. Callers hold mu.
func (p *Panel) stopHighlights() {
	for _, t := range p.highlights {
		t.Stop()
	}
	p.highlights = nil
}

// highlight asks the active tab to mark the first matching selector. Every
// failure is silent.
func (p *Panel) highlight(ctx context.Context, selectors []string) {
	if ctx.Err() != nil || p.Tabs == nil {
		return
	}
	tab, err := p.Tabs.Active(ctx)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	endpoint := bridge.TabEndpoint(tab.ID)
	var found bool
	if len(selectors) > 1 {
		var resp bridge.HighlightMultipleResponse
		err = p.Bus.Call(ctx, endpoint, bridge.NewMessage(bridge.HighlightMultiple, bridge.HighlightMultipleRequest{Selectors: selectors}), &resp)
		found = resp.ElementsFound
	} else {
		var resp bridge.HighlightResponse
		err = p.Bus.Call(ctx, endpoint, bridge.NewMessage(bridge.HighlightElement, bridge.HighlightRequest{Selector: selectors}), &resp)
		found = resp.ElementFound
	}
	if err != nil {
		p.Logger.Debug("highlight not delivered", zap.String("tab", tab.ID), zap.Error(err))
		return
	}
	p.Logger.LogHighlight(tab.ID, selectors, found)
}

func (p *Panel) clearHighlight(ctx context.Context) {
	if p.Tabs == nil {
		return
	}
	tab, err := p.Tabs.Active(ctx)
	if err != nil {
		return
	}
	if err := p.Bus.Call(ctx, bridge.TabEndpoint(tab.ID), bridge.NewMessage(bridge.ClearHighlight, nil), nil); err != nil {
		p.Logger.Debug("could not clear highlights", zap.Error(err))
	}
}
