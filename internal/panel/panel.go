// Package panel is the user-facing side of the assistant: it turns input into
// engine requests, keeps the view of the current task and drives highlighting
// in the active tab.
package panel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rahul/consolenano/internal/background"
	"github.com/rahul/consolenano/internal/bridge"
	"github.com/rahul/consolenano/internal/governance"
	"github.com/rahul/consolenano/internal/observability"
	"github.com/rahul/consolenano/internal/oracle"
	"github.com/rahul/consolenano/internal/page"
	"github.com/rahul/consolenano/internal/plan"
	"github.com/rahul/consolenano/internal/tools"
	"github.com/rahul/consolenano/pkg/config"
)

// Banner texts.
const (
	msgAdapted     = "Plan adapted to current page state. Continuing with updated steps."
	msgNavigate    = "Please navigate to AWS Console first, then try your request again."
	msgRefresh     = "Please refresh this page (F5 or Ctrl+R) to activate Console Nano, then try again."
	msgTabSwitched = "Switched to your AWS Console tab. Please try your request again."
	msgQuestionErr = "Failed to process question. Please try again."
	msgPlanErr     = "Failed to generate task plan"
	msgStepErr     = "Failed to complete step"
)

// DefaultHighlightDelays are the attempts made to highlight the active step,
// measured from the moment it is shown.
var DefaultHighlightDelays = []time.Duration{200 * time.Millisecond, time.Second, 3 * time.Second}

// ActiveTab finds the tab the user is looking at.
type ActiveTab interface {
	Active(ctx context.Context) (background.Tab, error)
}

type Panel struct {
	Bus     *bridge.Bus
	Tabs    ActiveTab
	Display Display
	Logger  *observability.Logger
	Config  config.PanelConfig

	HighlightDelays []time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	view        View
	prompt      string
	plan        *plan.TaskPlan
	step        int
	bannerTimer *time.Timer
	highlights  []*time.Timer

	renderMu sync.Mutex
}

func New(bus *bridge.Bus, tabs ActiveTab, display Display, cfg config.PanelConfig, logger *observability.Logger) *Panel {
	if logger == nil {
		logger = observability.NewNop()
	}
	defaults := config.DefaultConfig().Panel
	if cfg.ContextPollInterval <= 0 {
		cfg.ContextPollInterval = defaults.ContextPollInterval
	}
	if cfg.ErrorBanner <= 0 {
		cfg.ErrorBanner = defaults.ErrorBanner
	}
	if cfg.InfoBanner <= 0 {
		cfg.InfoBanner = defaults.InfoBanner
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Panel{
		Bus:             bus,
		Tabs:            tabs,
		Display:         display,
		Logger:          logger,
		Config:          cfg,
		HighlightDelays: DefaultHighlightDelays,
		ctx:             ctx,
		cancel:          cancel,
		view:            View{Screen: ScreenWelcome},
	}
}

// Register serves the panel endpoint on the bus.
func (p *Panel) Register() func() {
	return p.Bus.Register(bridge.Panel, p)
}

// View returns a copy of what is currently displayed.
func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// Run loads the session state and keeps the context indicator fresh until
// ctx is done.
func (p *Panel) Run(ctx context.Context) error {
	defer p.Stop()
	if err := p.Load(ctx); err != nil {
		p.Logger.Warn("could not load panel state", zap.Error(err))
	}
	p.UpdateContext(ctx)

	ticker := time.NewTicker(p.Config.ContextPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.UpdateContext(ctx)
		}
	}
}

// Stop cancels pending highlight and banner timers.
func (p *Panel) Stop() {
	p.cancel()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopHighlights()
	if p.bannerTimer != nil {
		p.bannerTimer.Stop()
		p.bannerTimer = nil
	}
}

// HandleMessage receives what the engine pushes to the panel.
func (p *Panel) HandleMessage(ctx context.Context, msg bridge.Message) any {
	switch msg.Type {
	case bridge.ErrorDetected:
		var ev bridge.ErrorEvent
		if err := msg.Decode(&ev); err == nil {
			p.ShowBanner(BannerError, ev.Message)
		}
	case bridge.DisplayErrorFix:
		var fix background.ErrorFixResponse
		if err := msg.Decode(&fix); err != nil || fix.FixPlan == nil {
			return bridge.Fail(err)
		}
		prompt := "Fix the error"
		if fix.ErrorInfo != nil {
			prompt = "Fix: " + fix.ErrorInfo.Message
		}
		p.mu.Lock()
		p.setTask(prompt, *fix.FixPlan, 0)
		p.mu.Unlock()
		p.render()
	case bridge.PageChanged:
		p.UpdateContext(ctx)
		p.rehighlight()
	case bridge.ElementInteracted:
		p.Logger.Debug("user interacted with the highlighted element")
	default:
		return bridge.Unknown()
	}
	return bridge.OK()
}

// HandleInput routes free text to the question or the task path.
func (p *Panel) HandleInput(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if governance.IsQuestion(text) {
		return p.Ask(ctx, text)
	}
	return p.StartTask(ctx, text)
}

func (p *Panel) call(ctx context.Context, t bridge.Type, data any, out any) error {
	return p.Bus.Call(ctx, bridge.Background, bridge.NewMessage(t, data), out)
}

// Load restores the current task from the engine.
func (p *Panel) Load(ctx context.Context) error {
	var resp background.StateResponse
	if err := p.call(ctx, bridge.GetCurrentState, nil, &resp); err != nil {
		return err
	}
	if !resp.Success || resp.State == nil {
		return errors.New(resp.Error)
	}
	p.mu.Lock()
	if t := resp.State.CurrentTask; t != nil {
		p.setTask(t.UserPrompt, t.Plan, resp.State.CurrentStep)
	} else {
		p.clearTask()
	}
	p.view.Tasks = resp.State.CompletedTasks
	p.mu.Unlock()
	p.refreshQuestions(ctx)
	p.render()
	return nil
}

func (p *Panel) StartTask(ctx context.Context, prompt string) error {
	var resp background.NewTaskResponse
	if err := p.call(ctx, bridge.StartNewTask, bridge.PromptRequest{UserPrompt: prompt}, &resp); err != nil {
		p.ShowBanner(BannerError, "Failed to communicate with the assistant: "+err.Error())
		return err
	}
	if !resp.Success || resp.Plan == nil {
		msg := resp.Error
		if msg == "" {
			msg = msgPlanErr
		}
		p.ShowBanner(BannerError, msg)
		return nil
	}

	p.mu.Lock()
	p.setTask(prompt, *resp.Plan, 0)
	p.view.UsingMockAI = resp.UsingMockAI
	if resp.Context != nil {
		p.view.Service = resp.Context.Service
	}
	p.mu.Unlock()

	switch {
	case resp.NeedsNavigation:
		p.ShowBanner(BannerInfo, msgNavigate)
	case resp.NeedsRefresh:
		p.ShowBanner(BannerInfo, msgRefresh)
	case resp.NeedsTabSwitch:
		p.ShowBanner(BannerSuccess, msgTabSwitched)
	case resp.NeedsTabChoice:
		p.ShowBanner(BannerInfo, tabChoiceMessage(resp.AWSTabs))
	default:
		p.render()
	}
	p.scheduleHighlight()
	return nil
}

// CompleteStep confirms the active step.
func (p *Panel) CompleteStep(ctx context.Context) error {
	p.mu.Lock()
	if p.plan == nil {
		p.mu.Unlock()
		return nil
	}
	step := p.step
	p.mu.Unlock()

	var resp background.StepResponse
	if err := p.call(ctx, bridge.CompleteStep, bridge.StepRequest{Step: step}, &resp); err != nil {
		p.ShowBanner(BannerError, "Communication error while completing step")
		return err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = msgStepErr
		}
		p.ShowBanner(BannerError, msg)
		return nil
	}

	if resp.TaskComplete {
		p.mu.Lock()
		p.stopHighlights()
		p.plan = nil
		p.view.Screen = ScreenComplete
		p.view.Completed = resp.CompletedTask
		p.view.Question, p.view.Answer = "", ""
		p.view.Steps = nil
		p.view.NextTasks = sanitizeAll(resp.NextTasks)
		p.mu.Unlock()
		p.refreshTasks(ctx)
		p.render()
		return nil
	}

	p.mu.Lock()
	if p.plan == nil {
		// another confirmation finished the task while this one was in flight
		p.mu.Unlock()
		p.Logger.Debug("step confirmed after the task finished", zap.Int("step", resp.NewStep))
		return nil
	}
	cur := *p.plan
	if resp.PlanAdapted && resp.Plan != nil {
		cur = *resp.Plan
	}
	p.setTask(p.prompt, cur, resp.NewStep)
	p.mu.Unlock()

	if resp.PlanAdapted {
		p.ShowBanner(BannerInfo, msgAdapted)
	} else {
		p.render()
	}
	p.scheduleHighlight()
	return nil
}

// Ask answers a question, falling back to the built-in answers when the
// engine cannot.
func (p *Panel) Ask(ctx context.Context, question string) error {
	var st bridge.Status
	if err := p.call(ctx, bridge.AddQuestionHistory, bridge.QuestionRequest{Question: question}, &st); err != nil {
		p.Logger.Debug("could not record question", zap.Error(err))
	}

	var resp background.AnswerResponse
	if err := p.call(ctx, bridge.AnswerQuestion, bridge.QuestionRequest{Question: question}, &resp); err != nil {
		p.ShowBanner(BannerError, msgQuestionErr)
		return err
	}
	answer := tools.Sanitize(resp.Answer)
	if !resp.Success || strings.TrimSpace(answer) == "" {
		answer = oracle.BasicAnswer(question)
	}

	p.mu.Lock()
	p.stopHighlights()
	p.view.Screen = ScreenComplete
	p.view.Question = question
	p.view.Answer = answer
	p.view.Completed = ""
	p.view.NextTasks = nil
	p.mu.Unlock()
	p.refreshQuestions(ctx)
	p.render()
	return nil
}

// Reset goes back to the first step of the current task.
func (p *Panel) Reset(ctx context.Context) error {
	var st bridge.Status
	if err := p.call(ctx, bridge.ResetTask, nil, &st); err != nil {
		return err
	}
	p.clearHighlight(ctx)

	p.mu.Lock()
	if p.plan != nil {
		p.setTask(p.prompt, *p.plan, 0)
	} else {
		p.clearTask()
	}
	hasTask := p.plan != nil
	p.mu.Unlock()
	p.render()
	if hasTask {
		p.scheduleHighlight()
	}
	return nil
}

// Home drops the session and shows the welcome screen.
func (p *Panel) Home(ctx context.Context) error {
	var st bridge.Status
	err := p.call(ctx, bridge.ClearSession, nil, &st)
	p.clearHighlight(ctx)

	p.mu.Lock()
	p.clearTask()
	p.view.Banner = nil
	if p.bannerTimer != nil {
		p.bannerTimer.Stop()
		p.bannerTimer = nil
	}
	p.mu.Unlock()
	p.render()
	return err
}

// UpdateContext refreshes the service indicator and surfaces the first page
// error. Failures are ignored.
func (p *Panel) UpdateContext(ctx context.Context) {
	var resp page.ContextResponse
	if err := p.call(ctx, bridge.GetPageContext, nil, &resp); err != nil || !resp.Success || resp.Context == nil {
		return
	}
	p.mu.Lock()
	changed := p.view.Service != resp.Context.Service
	p.view.Service = resp.Context.Service
	shown := p.view.Banner
	p.mu.Unlock()

	if errs := resp.Context.Errors; len(errs) > 0 && (shown == nil || shown.Text != errs[0].Message) {
		p.ShowBanner(BannerError, errs[0].Message)
		return
	}
	if changed {
		p.render()
	}
}

// ShowBanner displays text until it expires or is dismissed.
func (p *Panel) ShowBanner(kind BannerKind, text string) {
	d := p.Config.InfoBanner
	if kind == BannerError {
		d = p.Config.ErrorBanner
	}
	p.mu.Lock()
	b := &Banner{Kind: kind, Text: text}
	p.view.Banner = b
	if p.bannerTimer != nil {
		p.bannerTimer.Stop()
	}
	p.bannerTimer = time.AfterFunc(d, func() {
		p.mu.Lock()
		if p.view.Banner != b {
			p.mu.Unlock()
			return
		}
		p.view.Banner = nil
		p.mu.Unlock()
		p.render()
	})
	p.mu.Unlock()
	p.render()
}

func (p *Panel) Dismiss() {
	p.mu.Lock()
	p.view.Banner = nil
	if p.bannerTimer != nil {
		p.bannerTimer.Stop()
		p.bannerTimer = nil
	}
	p.mu.Unlock()
	p.render()
}

func (p *Panel) render() {
	if p.Display == nil {
		return
	}
	p.renderMu.Lock()
	defer p.renderMu.Unlock()
	if err := p.Display.Render(p.View()); err != nil {
		p.Logger.Warn("render failed", zap.Error(err))
	}
}

// setTask shows pl at step. Callers hold mu.
func (p *Panel) setTask(prompt string, pl plan.TaskPlan, step int) {
	pl = sanitizePlan(pl)
	p.prompt = prompt
	p.plan = &pl
	p.step = step
	p.view.Screen = ScreenTask
	p.view.Title = prompt
	p.view.Steps = StepViews(&pl, step)
	p.view.ExternalActions = pl.ExternalActions
	p.view.NextTasks = pl.NextTasks
	p.view.Completed, p.view.Question, p.view.Answer = "", "", ""
}

// clearTask shows the welcome screen. Callers hold mu.
func (p *Panel) clearTask() {
	p.stopHighlights()
	p.prompt = ""
	p.plan = nil
	p.step = 0
	p.view = View{Screen: ScreenWelcome, Service: p.view.Service, Banner: p.view.Banner, UsingMockAI: p.view.UsingMockAI, Tasks: p.view.Tasks, Questions: p.view.Questions}
}

func (p *Panel) refreshTasks(ctx context.Context) {
	var resp background.StateResponse
	if err := p.call(ctx, bridge.GetCurrentState, nil, &resp); err != nil || !resp.Success || resp.State == nil {
		return
	}
	p.mu.Lock()
	p.view.Tasks = resp.State.CompletedTasks
	p.mu.Unlock()
}

func (p *Panel) refreshQuestions(ctx context.Context) {
	var resp background.QuestionsResponse
	if err := p.call(ctx, bridge.GetQuestionHistory, nil, &resp); err != nil || !resp.Success {
		return
	}
	p.mu.Lock()
	p.view.Questions = resp.Questions
	p.mu.Unlock()
}

func tabChoiceMessage(tabs []background.Tab) string {
	lines := make([]string, len(tabs))
	for i, t := range tabs {
		title := t.Title
		if title == "" {
			title = "Console"
			if u, err := url.Parse(t.URL); err == nil {
				if seg := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")[0]; seg != "" {
					title = seg
				}
			}
		}
		lines[i] = fmt.Sprintf("%d. %s", i+1, title)
	}
	return "Multiple AWS tabs found:\n" + strings.Join(lines, "\n") + "\n\nPlease click on the tab you want to use, then try your request again."
}

func sanitizePlan(pl plan.TaskPlan) plan.TaskPlan {
	pl = pl.Clone()
	for i := range pl.Steps {
		s := &pl.Steps[i]
		s.Description = tools.Sanitize(s.Description)
		s.Details = tools.Sanitize(s.Details)
		s.ButtonName = tools.Sanitize(s.ButtonName)
		s.ExecutionSteps = sanitizeAll(s.ExecutionSteps)
	}
	for i := range pl.ExternalActions {
		pl.ExternalActions[i].Description = tools.Sanitize(pl.ExternalActions[i].Description)
	}
	pl.NextTasks = sanitizeAll(pl.NextTasks)
	return pl
}

func sanitizeAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = tools.Sanitize(s)
	}
	return out
}
