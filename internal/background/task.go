package background

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rahul/consolenano/internal/agent"
	"github.com/rahul/consolenano/internal/bridge"
	"github.com/rahul/consolenano/internal/observability"
	"github.com/rahul/consolenano/internal/page"
	"github.com/rahul/consolenano/internal/plan"
	"github.com/rahul/consolenano/internal/store"
)

var errEmptyPrompt = errors.New("userPrompt is required")

// IsAWS reports whether rawURL belongs to the AWS console or site.
func IsAWS(rawURL string) bool {
	return strings.Contains(rawURL, "console.aws.amazon.com") || strings.Contains(rawURL, "aws.amazon.com")
}

func (s *Service) startNewTask(ctx context.Context, msg bridge.Message) any {
	var req bridge.PromptRequest
	if err := msg.Decode(&req); err != nil {
		return bridge.Fail(err)
	}
	prompt := strings.TrimSpace(req.UserPrompt)
	if prompt == "" {
		return bridge.Fail(errEmptyPrompt)
	}

	active, err := s.Tabs.Active(ctx)
	if err != nil {
		return bridge.Fail(errNoActiveTab)
	}

	snap, err := s.reach(ctx, active.ID)
	if err != nil {
		s.Logger.Info("page observer unreachable, checking tabs", zap.String("tab", active.ID), zap.Error(err))
		var resp *NewTaskResponse
		snap, resp, err = s.recoverTab(ctx, prompt, active)
		if err != nil {
			return bridge.Fail(err)
		}
		if resp != nil {
			return *resp
		}
	}

	observability.SetStatus(observability.PhasePlanning, prompt)
	p, err := s.Engine.GeneratePlan(ctx, prompt, snap)
	if err != nil {
		observability.SetStatus(observability.PhaseIdle, "")
		return bridge.Fail(fmt.Errorf("generate plan: %w", err))
	}

	task := store.Task{
		ID:               uuid.NewString(),
		UserPrompt:       prompt,
		Plan:             p,
		OriginalContext:  snap,
		CurrentContext:   snap,
		CompletedSteps:   []int{},
		CreatedResources: []string{},
		TaskType:         agent.TaskType(prompt),
		CreatedAt:        time.Now(),
	}
	if err := s.Store.SetCurrentTask(ctx, task); err != nil {
		return bridge.Fail(err)
	}
	if err := s.Store.SetCurrentStep(ctx, 0); err != nil {
		return bridge.Fail(err)
	}

	observability.SetStatus(observability.PhaseGuiding, prompt)
	s.Logger.Info("task started", zap.String("task_id", task.ID), zap.String("type", task.TaskType))
	return NewTaskResponse{Status: bridge.OK(), Plan: &p, Context: snap, UsingMockAI: s.UsingMock}
}

// recoverTab handles a tab without a reachable observer. It either returns a
// snapshot (the reloaded tab answered) or a finished recovery response.
func (s *Service) recoverTab(ctx context.Context, prompt string, active Tab) (*page.Snapshot, *NewTaskResponse, error) {
	all, err := s.Tabs.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list tabs: %w", err)
	}
	var aws []Tab
	for _, t := range all {
		if IsAWS(t.URL) {
			aws = append(aws, t)
		}
	}

	recovery := func(p plan.TaskPlan, service, title, url string) *NewTaskResponse {
		ctxSnap := page.EmptySnapshot(url, title)
		ctxSnap.Service = service
		return &NewTaskResponse{Status: bridge.OK(), Plan: &p, Context: &ctxSnap, UsingMockAI: s.UsingMock}
	}

	switch {
	case len(aws) == 0:
		resp := recovery(plan.NavigationToAWSPlan(prompt, active.URL), "Navigation", "Navigate to AWS", active.URL)
		resp.NeedsNavigation = true
		return nil, resp, nil

	case len(aws) == 1 && aws[0].ID == active.ID:
		if err := s.Tabs.Reload(ctx, active.ID); err != nil {
			s.Logger.Warn("reload failed", zap.String("tab", active.ID), zap.Error(err))
		}
		if err := sleep(ctx, s.ReloadWait); err != nil {
			return nil, nil, err
		}
		if snap, err := s.reach(ctx, active.ID); err == nil {
			return snap, nil, nil
		}
		resp := recovery(plan.RefreshPlan(prompt), "AWS Console", "Refresh Required", aws[0].URL)
		resp.NeedsRefresh = true
		return nil, resp, nil

	case len(aws) == 1:
		if err := s.Tabs.Activate(ctx, aws[0].ID); err != nil {
			return nil, nil, fmt.Errorf("activate tab: %w", err)
		}
		resp := recovery(plan.TabSwitchPlan(prompt), "AWS Console", "Tab Switched", aws[0].URL)
		resp.NeedsTabSwitch = true
		return nil, resp, nil
	}

	choices := make([]string, len(aws))
	for i, t := range aws {
		choices[i] = plan.TabChoice(i+1, t.Title, t.URL)
	}
	resp := recovery(plan.TabChoicePlan(prompt, choices), "AWS Console", "Multiple Tabs", active.URL)
	resp.NeedsTabChoice = true
	resp.AWSTabs = aws
	return nil, resp, nil
}

// freshSnapshot observes the active tab, asking a second time after
// RetryWait. A nil snapshot means the step advances without a context update.
func (s *Service) freshSnapshot(ctx context.Context) *page.Snapshot {
	snap, err := s.activeSnapshot(ctx, "")
	if err == nil {
		return snap
	}
	if err := sleep(ctx, s.RetryWait); err != nil {
		return nil
	}
	snap, err = s.activeSnapshot(ctx, "")
	if err != nil {
		s.Logger.Debug("could not get fresh context", zap.Error(err))
		return nil
	}
	return snap
}

func (s *Service) completeStep(ctx context.Context, msg bridge.Message) any {
	task, err := s.Store.CurrentTask(ctx)
	if err != nil {
		return bridge.Fail(err)
	}
	if task == nil {
		return bridge.Fail(store.ErrNoActiveTask)
	}
	step, err := s.Store.CurrentStep(ctx)
	if err != nil {
		return bridge.Fail(err)
	}
	if current, ok := task.Plan.Step(step); ok {
		s.Logger.LogStep(task.ID, step+1, task.Plan.Len(), current.Description)
	}

	snap := s.freshSnapshot(ctx)
	task.CompletedSteps = append(task.CompletedSteps, step)
	next := step + 1

	if next >= task.Plan.Len() {
		suggestions := task.Plan.NextTasks
		if snap != nil {
			suggestions = s.Engine.GenerateNextTasks(ctx, task.UserPrompt, *snap)
			task.CurrentContext = snap
		}
		if suggestions == nil {
			suggestions = []string{}
		}
		if _, err := s.Store.ArchiveTask(ctx, *task); err != nil {
			return bridge.Fail(err)
		}
		if err := s.Store.SetCurrentTask(ctx, *task); err != nil {
			return bridge.Fail(err)
		}
		if err := s.Store.SetCurrentStep(ctx, 0); err != nil {
			return bridge.Fail(err)
		}
		observability.SetStatus(observability.PhaseIdle, "")
		return StepResponse{Status: bridge.OK(), TaskComplete: true, NextTasks: suggestions, CompletedTask: task.UserPrompt}
	}

	resp := StepResponse{Status: bridge.OK(), NewStep: next, ContextUpdated: snap != nil}
	if snap != nil {
		needs, reason := agent.NeedsAdaptation(task.UserPrompt, task.CurrentContext, *snap)
		if needs {
			adapted, err := s.Engine.AdaptPlan(ctx, *task, next, *snap)
			switch {
			case err != nil:
				s.Logger.Warn("plan adaptation failed", zap.String("task", task.ID), zap.Error(err))
			case adapted.Len() <= next:
				s.Logger.Info("adapted plan has no remaining steps, keeping the old one", zap.String("task", task.ID))
			default:
				task.Plan = adapted
				resp.PlanAdapted = true
				resp.Plan = &adapted
			}
		}
		s.Logger.LogAdaptation(task.ID, next, resp.PlanAdapted, reason)
		task.CurrentContext = snap
	}

	if err := s.Store.SetCurrentTask(ctx, *task); err != nil {
		return bridge.Fail(err)
	}
	if err := s.Store.SetCurrentStep(ctx, next); err != nil {
		return bridge.Fail(err)
	}
	return resp
}

func (s *Service) pageChanged(ctx context.Context, msg bridge.Message) any {
	var ev bridge.PageChangedEvent
	if err := msg.Decode(&ev); err != nil {
		return bridge.Fail(err)
	}
	snap, err := s.activeSnapshot(ctx, msg.TabID)
	if err != nil {
		return PageChangedResponse{Status: bridge.OK()}
	}
	task, err := s.Store.CurrentTask(ctx)
	if err != nil {
		return bridge.Fail(err)
	}
	if task != nil {
		task.CurrentContext = snap
		if err := s.Store.SetCurrentTask(ctx, *task); err != nil {
			return bridge.Fail(err)
		}
	}
	// the plan is never regenerated from here
	return PageChangedResponse{Status: bridge.OK(), ContextUpdated: false}
}

func (s *Service) adaptPlan(ctx context.Context, msg bridge.Message) any {
	var req AdaptRequest
	if err := msg.Decode(&req); err != nil {
		return bridge.Fail(err)
	}
	task, err := s.Store.CurrentTask(ctx)
	if err != nil {
		return bridge.Fail(err)
	}
	if task == nil {
		return bridge.Fail(store.ErrNoActiveTask)
	}

	step := 0
	if req.CurrentStep != nil {
		step = *req.CurrentStep
	} else if step, err = s.Store.CurrentStep(ctx); err != nil {
		return bridge.Fail(err)
	}

	snap := req.FreshContext
	if snap == nil {
		if snap, err = s.activeSnapshot(ctx, msg.TabID); err != nil {
			return bridge.Fail(errNoPageContext)
		}
	}

	adapted, err := s.Engine.AdaptPlan(ctx, *task, step, *snap)
	if err != nil {
		return bridge.Fail(fmt.Errorf("adapt plan: %w", err))
	}
	task.Plan = adapted
	task.CurrentContext = snap
	if err := s.Store.SetCurrentTask(ctx, *task); err != nil {
		return bridge.Fail(err)
	}
	return PlanResponse{Status: bridge.OK(), Plan: &adapted}
}
