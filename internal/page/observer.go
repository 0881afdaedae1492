package page

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/rahul/consolenano/internal/bridge"
)

// Notifier delivers advisory messages to another endpoint.
type Notifier interface {
	Notify(ctx context.Context, endpoint string, msg bridge.Message) error
}

// Observer is the page-side endpoint of one tab. It answers context and
// highlight requests and watches the document for changes and errors.
type Observer struct {
	tabID       string
	source      Source
	detector    *Detector
	highlighter *Highlighter
	changes     *ChangeMonitor
	errors      *ErrorMonitor
	notifier    Notifier
	logger      *zap.Logger
}

func NewObserver(tabID string, source Source, painter Painter, notifier Notifier, logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("tab", tabID))
	o := &Observer{
		tabID:       tabID,
		source:      source,
		detector:    NewDetector(logger),
		highlighter: NewHighlighter(painter, logger),
		notifier:    notifier,
		logger:      logger,
	}
	o.changes = NewChangeMonitor(o.pageChanged, func() {
		o.highlighter.Clear(context.Background(), nil)
	})
	o.errors = NewErrorMonitor(o.errorDetected)
	o.highlighter.OnInteract(o.elementInteracted)
	return o
}

// Highlighter exposes the tab's highlighter, mainly for timing overrides.
func (o *Observer) Highlighter() *Highlighter { return o.highlighter }

// Changes exposes the tab's change monitor.
func (o *Observer) Changes() *ChangeMonitor { return o.changes }

// HandleMessage implements bridge.Handler.
func (o *Observer) HandleMessage(ctx context.Context, msg bridge.Message) (resp any) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("message handler panicked", zap.String("type", string(msg.Type)), zap.Any("panic", r))
			resp = bridge.Fail(fmt.Errorf("%v", r))
		}
	}()

	switch msg.Type {
	case bridge.GetPageContext:
		snap, err := o.Snapshot(ctx)
		if err != nil {
			return bridge.Fail(err)
		}
		return ContextResponse{Status: bridge.OK(), Context: &snap}

	case bridge.HighlightElement:
		var req bridge.HighlightRequest
		if err := msg.Decode(&req); err != nil {
			o.logger.Debug("bad highlight request", zap.Error(err))
			return bridge.HighlightResponse{Status: bridge.OK()}
		}
		doc, _ := o.document(ctx)
		res := o.highlighter.Highlight(ctx, doc, req.Selector)
		o.logger.Debug("highlight", zap.Bool("found", res.Found), zap.String("method", res.Method), zap.String("selector", res.Selector))
		return bridge.HighlightResponse{Status: bridge.OK(), ElementFound: res.Found}

	case bridge.HighlightMultiple:
		var req bridge.HighlightMultipleRequest
		if err := msg.Decode(&req); err != nil {
			return bridge.HighlightMultipleResponse{Status: bridge.OK()}
		}
		doc, _ := o.document(ctx)
		return bridge.HighlightMultipleResponse{
			Status:        bridge.OK(),
			ElementsFound: o.highlighter.HighlightMultiple(ctx, doc, req.Selectors),
		}

	case bridge.ClearHighlight:
		doc, _ := o.document(ctx)
		o.highlighter.Clear(ctx, doc)
		return bridge.OK()

	case bridge.Ping:
		return bridge.PingResponse{Status: bridge.OK(), Loaded: true}
	}
	return bridge.Unknown()
}

// Snapshot reads the current document and describes it.
func (o *Observer) Snapshot(ctx context.Context) (Snapshot, error) {
	d, err := o.source.Document(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read document: %w", err)
	}
	doc, err := d.Parse()
	if err != nil {
		o.logger.Warn("parse document", zap.Error(err))
		return EmptySnapshot(d.URL, ""), nil
	}
	return o.detector.Detect(doc, d.URL), nil
}

// Poll takes one observation: it feeds the change and error monitors and
// forwards a pending click on the highlighted element.
func (o *Observer) Poll(ctx context.Context) error {
	d, err := o.source.Document(ctx)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	doc, err := d.Parse()
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	snap := o.detector.Detect(doc, d.URL)
	o.changes.Observe(d, snap.Elements)
	o.errors.Check(snap.Errors)

	if is, ok := o.source.(InteractionSource); ok {
		sel, clicked, err := is.TakeInteraction(ctx)
		if err != nil {
			o.logger.Debug("read interaction", zap.Error(err))
		} else if clicked {
			o.highlighter.Interacted(sel)
		}
	}
	return nil
}

// Watch polls the document every interval until ctx is done.
func (o *Observer) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer o.changes.Stop()

	if err := o.Poll(ctx); err != nil {
		o.logger.Debug("initial poll", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.Poll(ctx); err != nil {
				o.logger.Debug("poll", zap.Error(err))
			}
		}
	}
}

func (o *Observer) document(ctx context.Context) (*goquery.Document, error) {
	d, err := o.source.Document(ctx)
	if err != nil {
		o.logger.Debug("read document", zap.Error(err))
		return nil, err
	}
	doc, err := d.Parse()
	if err != nil {
		o.logger.Debug("parse document", zap.Error(err))
		return nil, err
	}
	return doc, nil
}

func (o *Observer) send(msg bridge.Message) {
	if o.notifier == nil {
		return
	}
	msg.TabID = o.tabID
	if err := o.notifier.Notify(context.Background(), bridge.Background, msg); err != nil {
		o.logger.Debug("message send failed", zap.String("type", string(msg.Type)), zap.Error(err))
	}
}

func (o *Observer) pageChanged(ev bridge.PageChangedEvent) {
	o.send(bridge.NewMessage(bridge.PageChanged, ev))
}

func (o *Observer) errorDetected(ev bridge.ErrorEvent) {
	o.logger.Info("error detected", zap.String("type", ev.Type), zap.String("message", ev.Message))
	o.send(bridge.NewMessage(bridge.ErrorDetected, ev))
}

func (o *Observer) elementInteracted(text string) {
	o.send(bridge.NewMessage(bridge.ElementInteracted, bridge.ElementInteractedEvent{ElementText: text}))
}
