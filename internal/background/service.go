// Package background hosts the engine endpoint: it owns the session state,
// talks to page observers over the bus and answers the panel.
package background

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rahul/consolenano/internal/agent"
	"github.com/rahul/consolenano/internal/bridge"
	"github.com/rahul/consolenano/internal/observability"
	"github.com/rahul/consolenano/internal/page"
	"github.com/rahul/consolenano/internal/store"
)

var (
	errNoActiveTab   = errors.New("No active tab found. Please open an AWS Console page.")
	errNoPageContext = errors.New("Failed to get page context. Is the tab open and on an AWS page?")
	errAnswer        = errors.New("Failed to generate answer")
)

// Tabs is the browser surface the engine needs besides the page observers.
type Tabs interface {
	Active(ctx context.Context) (Tab, error)
	List(ctx context.Context) ([]Tab, error)
	Reload(ctx context.Context, id string) error
	Activate(ctx context.Context, id string) error
}

// Service handles every message addressed to bridge.Background.
type Service struct {
	Bus       *bridge.Bus
	Tabs      Tabs
	Engine    *agent.Engine
	Store     *store.SessionStore
	Logger    *observability.Logger
	UsingMock bool

	// ReloadWait is how long a reloaded tab gets before it is asked again.
	ReloadWait time.Duration
	// RetryWait separates the two context requests after a completed step.
	RetryWait time.Duration
}

func NewService(bus *bridge.Bus, tabs Tabs, engine *agent.Engine, st *store.SessionStore, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewNop()
	}
	return &Service{
		Bus:        bus,
		Tabs:       tabs,
		Engine:     engine,
		Store:      st,
		Logger:     logger,
		ReloadWait: 2 * time.Second,
		RetryWait:  500 * time.Millisecond,
	}
}

// Register serves the background endpoint on the bus.
func (s *Service) Register() func() {
	return s.Bus.Register(bridge.Background, s)
}

func (s *Service) HandleMessage(ctx context.Context, msg bridge.Message) any {
	switch msg.Type {
	case bridge.StartNewTask:
		return s.startNewTask(ctx, msg)
	case bridge.CompleteStep:
		return s.completeStep(ctx, msg)
	case bridge.ErrorDetected:
		return s.errorDetected(ctx, msg)
	case bridge.GetPageContext:
		return s.pageContext(ctx, msg)
	case bridge.PageChanged:
		return s.pageChanged(ctx, msg)
	case bridge.ElementInteracted:
		s.forward(ctx, msg)
		return bridge.OK()
	case bridge.AdaptPlan:
		return s.adaptPlan(ctx, msg)
	case bridge.ResetTask:
		return s.resetTask(ctx)
	case bridge.ClearSession:
		observability.SetStatus(observability.PhaseIdle, "")
		return status(s.Store.ClearCurrent(ctx))
	case bridge.GetCurrentState:
		return s.currentState(ctx)
	case bridge.AnswerQuestion:
		return s.answerQuestion(ctx, msg)
	case bridge.AddQuestionHistory:
		var req bridge.QuestionRequest
		if err := msg.Decode(&req); err != nil {
			return bridge.Fail(err)
		}
		return status(s.Store.AddQuestion(ctx, req.Question))
	case bridge.GetQuestionHistory:
		qs, err := s.Store.Questions(ctx)
		if err != nil {
			return bridge.Fail(err)
		}
		return QuestionsResponse{Status: bridge.OK(), Questions: qs}
	case bridge.DeleteQuestion:
		var req bridge.IndexRequest
		if err := msg.Decode(&req); err != nil {
			return bridge.Fail(err)
		}
		return status(s.Store.DeleteQuestion(ctx, req.Index))
	case bridge.ClearQuestionHistory:
		return status(s.Store.ClearQuestions(ctx))
	case bridge.ClearTaskHistory:
		return status(s.Store.ClearTaskHistory(ctx))
	case bridge.DeleteCompletedTask:
		var req bridge.IndexRequest
		if err := msg.Decode(&req); err != nil {
			return bridge.Fail(err)
		}
		return status(s.Store.DeleteCompletedTask(ctx, req.Index))
	}
	return bridge.Unknown()
}

func status(err error) bridge.Status {
	if err != nil {
		return bridge.Fail(err)
	}
	return bridge.OK()
}

// snapshot asks the observer in tabID for the page context.
func (s *Service) snapshot(ctx context.Context, tabID string) (*page.Snapshot, error) {
	var resp page.ContextResponse
	if err := s.Bus.Call(ctx, bridge.TabEndpoint(tabID), bridge.NewMessage(bridge.GetPageContext, nil), &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Context == nil {
		if resp.Error != "" {
			return nil, errors.New(resp.Error)
		}
		return nil, errNoPageContext
	}
	return resp.Context, nil
}

// reach pings the observer before asking for the context.
func (s *Service) reach(ctx context.Context, tabID string) (*page.Snapshot, error) {
	var pong bridge.PingResponse
	if err := s.Bus.Call(ctx, bridge.TabEndpoint(tabID), bridge.NewMessage(bridge.Ping, nil), &pong); err != nil {
		return nil, err
	}
	return s.snapshot(ctx, tabID)
}

// activeSnapshot observes the active tab, or the sender when tabID is set.
func (s *Service) activeSnapshot(ctx context.Context, tabID string) (*page.Snapshot, error) {
	if tabID == "" {
		tab, err := s.Tabs.Active(ctx)
		if err != nil {
			return nil, errNoActiveTab
		}
		tabID = tab.ID
	}
	return s.snapshot(ctx, tabID)
}

func (s *Service) pageContext(ctx context.Context, msg bridge.Message) any {
	snap, err := s.activeSnapshot(ctx, msg.TabID)
	if err != nil {
		return page.ContextResponse{Status: bridge.Fail(errNoPageContext)}
	}
	return page.ContextResponse{Status: bridge.OK(), Context: snap}
}

func (s *Service) forward(ctx context.Context, msg bridge.Message) {
	if err := s.Bus.Notify(ctx, bridge.Panel, msg); err != nil && !errors.Is(err, bridge.ErrNoReceiver) {
		s.Logger.Warn("forward to panel failed", zap.String("type", string(msg.Type)), zap.Error(err))
	}
}

func (s *Service) currentState(ctx context.Context) any {
	task, err := s.Store.CurrentTask(ctx)
	if err != nil {
		return bridge.Fail(err)
	}
	step, err := s.Store.CurrentStep(ctx)
	if err != nil {
		return bridge.Fail(err)
	}
	done, err := s.Store.CompletedTasks(ctx)
	if err != nil {
		return bridge.Fail(err)
	}
	return StateResponse{Status: bridge.OK(), State: &State{CurrentTask: task, CurrentStep: step, CompletedTasks: done}}
}

func (s *Service) resetTask(ctx context.Context) any {
	err := s.Store.SetCurrentStep(ctx, 0)
	if errors.Is(err, store.ErrNoActiveTask) {
		return bridge.OK()
	}
	observability.SetStatus(observability.PhaseIdle, "")
	return status(err)
}

func (s *Service) errorDetected(ctx context.Context, msg bridge.Message) any {
	var ev bridge.ErrorEvent
	if err := msg.Decode(&ev); err != nil {
		return bridge.Fail(err)
	}
	snap, err := s.activeSnapshot(ctx, msg.TabID)
	if err != nil {
		s.Logger.Debug("error fix without page context", zap.Error(err))
	}
	fix, err := s.Engine.GenerateErrorFix(ctx, page.ErrorDescriptor{Type: ev.Type, Message: ev.Message}, snap)
	if err != nil {
		return bridge.Fail(fmt.Errorf("generate error fix: %w", err))
	}
	resp := ErrorFixResponse{Status: bridge.OK(), FixPlan: &fix, ErrorInfo: &ev}
	s.forward(ctx, bridge.NewMessage(bridge.DisplayErrorFix, resp))
	return resp
}

func (s *Service) answerQuestion(ctx context.Context, msg bridge.Message) any {
	var req bridge.QuestionRequest
	if err := msg.Decode(&req); err != nil {
		return bridge.Fail(err)
	}
	if strings.TrimSpace(req.Question) == "" {
		return bridge.Fail(errAnswer)
	}
	snap, _ := s.activeSnapshot(ctx, "")
	answer, err := s.Engine.AnswerQuestion(ctx, req.Question, snap)
	if err != nil {
		s.Logger.Warn("answer failed", zap.Error(err))
		return AnswerResponse{Status: bridge.Fail(errAnswer)}
	}
	return AnswerResponse{Status: bridge.OK(), Answer: answer}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
