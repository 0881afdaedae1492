// Package browser connects the assistant to a real Chrome over the DevTools
// protocol. Console tabs get a page observer on the bus, and the engine's tab
// operations (list, reload, activate) run against the live browser.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/rahul/consolenano/internal/background"
	"github.com/rahul/consolenano/internal/bridge"
	"github.com/rahul/consolenano/internal/page"
	"github.com/rahul/consolenano/pkg/config"
)

var (
	errNoBrowser  = errors.New("browser: set debugger_url or enable launch")
	errNotStarted = errors.New("browser: not started")
	errNoTab      = errors.New("browser: no open tab")
)

const actionTimeout = 15 * time.Second

type tab struct {
	id         target.ID
	ctx        context.Context
	cancel     context.CancelFunc
	observer   *page.Observer
	unregister func()
	stopWatch  context.CancelFunc
}

// Host owns the Chrome connection and one chromedp context per tab.
type Host struct {
	Bus    *bridge.Bus
	Config config.BrowserConfig
	Logger *zap.Logger

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	tabs          map[target.ID]*tab
	active        target.ID
	wg            sync.WaitGroup
}

var (
	_ background.Tabs = (*Host)(nil)
	_ page.Source     = (*Host)(nil)
)

func NewHost(bus *bridge.Bus, cfg config.BrowserConfig, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Host{
		Bus:    bus,
		Config: cfg,
		Logger: logger.Named("browser"),
		tabs:   make(map[target.ID]*tab),
	}
}

// Start connects to Chrome, or launches it, and opens the start page.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.browserCtx != nil {
		return nil
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	switch {
	case h.Config.DebuggerURL != "":
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), h.Config.DebuggerURL)
	case h.Config.Launch:
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", h.Config.Headless),
			chromedp.Flag("no-first-run", true),
			chromedp.Flag("no-default-browser-check", true),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	default:
		return errNoBrowser
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("start browser: %w", err)
	}
	if h.Config.StartURL != "" {
		if err := chromedp.Run(browserCtx, chromedp.Navigate(h.Config.StartURL)); err != nil {
			h.Logger.Warn("could not open start page", zap.String("url", h.Config.StartURL), zap.Error(err))
		}
	}

	h.allocCancel, h.browserCtx, h.browserCancel = allocCancel, browserCtx, browserCancel
	if c := chromedp.FromContext(browserCtx); c != nil && c.Target != nil {
		// the first tab is driven by the browser context itself
		h.tabs[c.Target.TargetID] = &tab{id: c.Target.TargetID, ctx: browserCtx}
		h.active = c.Target.TargetID
	}
	h.Logger.Info("browser connected")
	return nil
}

// Run keeps the set of observed tabs in step with the browser until ctx is
// done, then detaches every observer.
func (h *Host) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.Config.PollInterval)
	defer ticker.Stop()
	defer h.Close()

	for {
		if err := h.sync(ctx); err != nil {
			h.Logger.Debug("sync tabs", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Close detaches all observers and disconnects from Chrome.
func (h *Host) Close() {
	h.mu.Lock()
	for id, t := range h.tabs {
		h.detach(t)
		if t.cancel != nil {
			t.cancel()
		}
		delete(h.tabs, id)
	}
	if h.browserCancel != nil {
		h.browserCancel()
		h.allocCancel()
	}
	h.browserCtx, h.browserCancel, h.allocCancel = nil, nil, nil
	h.mu.Unlock()
	h.wg.Wait()
}

// sync observes console tabs and forgets closed ones.
func (h *Host) sync(ctx context.Context) error {
	infos, err := h.targets()
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[target.ID]bool, len(infos))
	for _, info := range infos {
		seen[info.TargetID] = true
		t := h.tabLocked(info.TargetID)
		switch aws := background.IsAWS(info.URL); {
		case aws && t.observer == nil:
			h.attach(ctx, t)
		case !aws && t.observer != nil:
			h.detach(t)
		}
	}
	for id, t := range h.tabs {
		if seen[id] {
			continue
		}
		h.detach(t)
		if t.cancel != nil {
			t.cancel()
		}
		delete(h.tabs, id)
		if h.active == id {
			h.active = ""
		}
	}
	return nil
}

// attach registers an observer for t and starts watching it. Callers hold mu.
func (h *Host) attach(ctx context.Context, t *tab) {
	src := &tabSource{ctx: t.ctx}
	t.observer = page.NewObserver(string(t.id), src, src, h.Bus, h.Logger)
	t.unregister = h.Bus.Register(bridge.TabEndpoint(string(t.id)), t.observer)

	watchCtx, cancel := context.WithCancel(ctx)
	t.stopWatch = cancel
	obs := t.observer
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		obs.Watch(watchCtx, h.Config.PollInterval)
	}()
	h.Logger.Debug("observing tab", zap.String("tab", string(t.id)))
}

// detach stops observing t. Callers hold mu.
func (h *Host) detach(t *tab) {
	if t.observer == nil {
		return
	}
	t.stopWatch()
	t.unregister()
	t.observer = nil
}

// tabLocked returns the tab for id, creating its chromedp context on first use.
func (h *Host) tabLocked(id target.ID) *tab {
	if t, ok := h.tabs[id]; ok {
		return t
	}
	ctx, cancel := chromedp.NewContext(h.browserCtx, chromedp.WithTargetID(id))
	t := &tab{id: id, ctx: ctx, cancel: cancel}
	h.tabs[id] = t
	return t
}

func (h *Host) targets() ([]*target.Info, error) {
	h.mu.Lock()
	bctx := h.browserCtx
	h.mu.Unlock()
	if bctx == nil {
		return nil, errNotStarted
	}
	infos, err := chromedp.Targets(bctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return pageTargets(infos), nil
}

func (h *Host) tab(id string) (*tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.browserCtx == nil {
		return nil, errNotStarted
	}
	return h.tabLocked(target.ID(id)), nil
}

// List implements background.Tabs.
func (h *Host) List(ctx context.Context) ([]background.Tab, error) {
	infos, err := h.targets()
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	active := h.active
	h.mu.Unlock()
	return toTabs(infos, active), nil
}

// Active returns the tab last brought to front, or else the first visible one.
func (h *Host) Active(ctx context.Context) (background.Tab, error) {
	infos, err := h.targets()
	if err != nil {
		return background.Tab{}, err
	}
	if len(infos) == 0 {
		return background.Tab{}, errNoTab
	}

	h.mu.Lock()
	active := h.active
	h.mu.Unlock()
	for _, info := range infos {
		if info.TargetID == active {
			return toTab(info, true), nil
		}
	}

	pick := infos[0]
	for _, info := range infos {
		t, err := h.tab(string(info.TargetID))
		if err != nil {
			return background.Tab{}, err
		}
		var state string
		src := &tabSource{ctx: t.ctx}
		if err := src.run(ctx, chromedp.Evaluate(`document.visibilityState`, &state)); err == nil && state == "visible" {
			pick = info
			break
		}
	}
	h.mu.Lock()
	h.active = pick.TargetID
	h.mu.Unlock()
	return toTab(pick, true), nil
}

func (h *Host) Reload(ctx context.Context, id string) error {
	t, err := h.tab(id)
	if err != nil {
		return err
	}
	return (&tabSource{ctx: t.ctx}).run(ctx, chromedp.Reload())
}

func (h *Host) Activate(ctx context.Context, id string) error {
	t, err := h.tab(id)
	if err != nil {
		return err
	}
	if err := (&tabSource{ctx: t.ctx}).run(ctx, bringToFront()); err != nil {
		return fmt.Errorf("activate %s: %w", id, err)
	}
	h.mu.Lock()
	h.active = target.ID(id)
	h.mu.Unlock()
	return nil
}

// Document reads the active tab, so the host can back the page tool.
func (h *Host) Document(ctx context.Context) (page.Document, error) {
	active, err := h.Active(ctx)
	if err != nil {
		return page.Document{}, err
	}
	t, err := h.tab(active.ID)
	if err != nil {
		return page.Document{}, err
	}
	return (&tabSource{ctx: t.ctx}).Document(ctx)
}

func pageTargets(infos []*target.Info) []*target.Info {
	out := make([]*target.Info, 0, len(infos))
	for _, info := range infos {
		if info != nil && info.Type == "page" {
			out = append(out, info)
		}
	}
	return out
}

func toTab(info *target.Info, active bool) background.Tab {
	return background.Tab{ID: string(info.TargetID), Title: info.Title, URL: info.URL, Active: active}
}

func toTabs(infos []*target.Info, active target.ID) []background.Tab {
	out := make([]background.Tab, 0, len(infos))
	for _, info := range infos {
		out = append(out, toTab(info, info.TargetID == active))
	}
	return out
}
