// Package agent turns user requests and page snapshots into guided plans,
// answers and follow-up suggestions through an oracle.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rahul/consolenano/internal/governance"
	"github.com/rahul/consolenano/internal/observability"
	"github.com/rahul/consolenano/internal/oracle"
	"github.com/rahul/consolenano/internal/page"
	"github.com/rahul/consolenano/internal/plan"
	"github.com/rahul/consolenano/internal/store"
	"github.com/rahul/consolenano/internal/tools"
)

const maxNextTasks = 5

var errEmptyAnswer = errors.New("empty answer")

// Engine is the planning side of the assistant. Researcher and Excerpter are
// optional and only enrich question answers.
type Engine struct {
	Oracle     oracle.Oracle
	Prompts    *PromptManager
	Policy     governance.PolicyEngine
	Logger     *observability.Logger
	Researcher *Researcher
	Excerpter  tools.Tool
}

func NewEngine(o oracle.Oracle, prompts *PromptManager, policy governance.PolicyEngine, logger *observability.Logger) *Engine {
	if policy == nil {
		policy = governance.NewDefaultPolicyEngine()
	}
	if logger == nil {
		logger = observability.NewNop()
	}
	return &Engine{Oracle: o, Prompts: prompts, Policy: policy, Logger: logger}
}

type planData struct {
	Prompt   string
	Snapshot page.Snapshot
}

type continuationData struct {
	Prompt    string
	Completed []string
	Remaining []string
	Buttons   []string
	Inputs    []string
	Snapshot  page.Snapshot
}

type errorFixData struct {
	Error    page.ErrorDescriptor
	Snapshot page.Snapshot
}

type questionData struct {
	Question string
	Snapshot *page.Snapshot
	Excerpt  string
	Research string
}

func snapshotOrEmpty(snap *page.Snapshot) page.Snapshot {
	if snap == nil {
		return page.EmptySnapshot("", "Unknown")
	}
	return *snap
}

// GeneratePlan plans userPrompt against the page in snap. Unclear requests
// get the clarification plan without an oracle round-trip.
func (e *Engine) GeneratePlan(ctx context.Context, userPrompt string, snap *page.Snapshot) (plan.TaskPlan, error) {
	res, err := e.Policy.Evaluate(ctx, governance.Request{Prompt: userPrompt, Service: snapshotOrEmpty(snap).Service})
	if err != nil {
		return plan.TaskPlan{}, fmt.Errorf("evaluate request: %w", err)
	}
	if res.Effect == governance.EffectClarify {
		e.Logger.LogPlan("", userPrompt, 1, "clarification")
		return plan.ClarificationPlan(), nil
	}

	prompt, err := e.Prompts.Render(PlanPrompt, planData{Prompt: userPrompt, Snapshot: snapshotOrEmpty(snap)})
	if err != nil {
		return plan.TaskPlan{}, err
	}
	return e.planFrom(ctx, "plan", userPrompt, prompt)
}

func (e *Engine) planFrom(ctx context.Context, kind, userPrompt, prompt string) (plan.TaskPlan, error) {
	out, err := e.Oracle.Prompt(ctx, e.Prompts.SystemPrompt(), prompt)
	e.Logger.LogLLM(kind, prompt, out, err)
	if err != nil {
		return plan.TaskPlan{}, err
	}
	res := plan.ParseResponse(out)
	if res.Err != nil {
		e.Logger.Debug("plan response unparseable", zap.String("kind", kind), zap.Error(res.Err))
	}
	e.Logger.LogPlan("", userPrompt, res.Plan.Len(), string(res.Tier))
	return res.Plan, nil
}

// AdaptPlan regenerates the steps from stepIndex on for the page in snap.
// Steps before stepIndex are kept as they are.
func (e *Engine) AdaptPlan(ctx context.Context, task store.Task, stepIndex int, snap page.Snapshot) (plan.TaskPlan, error) {
	stepIndex = min(max(stepIndex, 0), task.Plan.Len())

	var completed []string
	for _, i := range task.CompletedSteps {
		if s, ok := task.Plan.Step(i); ok {
			completed = append(completed, s.Description)
		} else {
			completed = append(completed, "Unknown step")
		}
	}
	if len(completed) > 3 {
		completed = completed[len(completed)-3:]
	}

	data := continuationData{
		Prompt:    task.UserPrompt,
		Completed: completed,
		Remaining: task.Plan.Descriptions(stepIndex, task.Plan.Len()),
		Snapshot:  snap,
	}
	for _, b := range snap.Elements.Buttons {
		data.Buttons = append(data.Buttons, b.Text)
	}
	for _, in := range snap.Elements.Inputs {
		data.Inputs = append(data.Inputs, in.Label)
	}

	prompt, err := e.Prompts.Render(ContinuationPrompt, data)
	if err != nil {
		return plan.TaskPlan{}, err
	}
	remaining, err := e.planFrom(ctx, "adaptation", task.UserPrompt, prompt)
	if err != nil {
		return plan.TaskPlan{}, err
	}

	out := task.Plan.Clone()
	out.Steps = out.Steps[:stepIndex]
	for i, s := range remaining.Steps {
		s.ID = stepIndex + i + 1
		out.Steps = append(out.Steps, s)
	}
	out.ExternalActions = remaining.ExternalActions
	out.NextTasks = remaining.NextTasks
	e.Logger.LogAdaptation(task.ID, stepIndex, true, fmt.Sprintf("%d steps replaced by %d", task.Plan.Len()-stepIndex, len(remaining.Steps)))
	return out, nil
}

// GenerateErrorFix plans the recovery from an error shown on the page.
func (e *Engine) GenerateErrorFix(ctx context.Context, errInfo page.ErrorDescriptor, snap *page.Snapshot) (plan.TaskPlan, error) {
	prompt, err := e.Prompts.Render(ErrorFixPrompt, errorFixData{Error: errInfo, Snapshot: snapshotOrEmpty(snap)})
	if err != nil {
		return plan.TaskPlan{}, err
	}
	return e.planFrom(ctx, "error_fix", errInfo.Message, prompt)
}

// AnswerQuestion answers in plain text. The page excerpt and research notes
// are best effort; their failures only cost context.
func (e *Engine) AnswerQuestion(ctx context.Context, question string, snap *page.Snapshot) (string, error) {
	data := questionData{Question: question, Snapshot: snap}
	if e.Excerpter != nil && snap != nil {
		if text, err := e.Excerpter.Execute(ctx, "{}"); err == nil {
			data.Excerpt = text
		} else {
			e.Logger.Debug("page excerpt unavailable", zap.Error(err))
		}
	}
	if e.Researcher != nil {
		if notes, err := e.Researcher.Research(ctx, question); err == nil {
			data.Research = notes
		} else {
			e.Logger.Warn("research failed", zap.Error(err))
		}
	}

	prompt, err := e.Prompts.Render(QuestionPrompt, data)
	if err != nil {
		return "", err
	}
	observability.SetStatus(observability.PhaseAnswering, question)
	defer observability.SetStatus(observability.PhaseIdle, "")

	out, err := e.Oracle.Prompt(ctx, "", prompt)
	e.Logger.LogLLM("question", prompt, out, err)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errEmptyAnswer
	}
	return out, nil
}

// GenerateNextTasks suggests up to five follow-ups for a finished request.
// Any failure yields the generic list.
func (e *Engine) GenerateNextTasks(ctx context.Context, userPrompt string, snap page.Snapshot) []string {
	prompt, err := e.Prompts.Render(NextTasksPrompt, planData{Prompt: userPrompt, Snapshot: snap})
	if err != nil {
		e.Logger.Warn("render next tasks", zap.Error(err))
		return plan.GenericNextTasks()
	}
	out, err := e.Oracle.Prompt(ctx, "", prompt)
	e.Logger.LogLLM("next_tasks", prompt, out, err)
	if err != nil {
		return plan.GenericNextTasks()
	}
	tasks, err := plan.ParseStringList(out)
	if err != nil || len(tasks) == 0 {
		return plan.GenericNextTasks()
	}
	if len(tasks) > maxNextTasks {
		tasks = tasks[:maxNextTasks]
	}
	return tasks
}
