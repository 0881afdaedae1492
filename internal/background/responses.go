package background

import (
	"github.com/rahul/consolenano/internal/bridge"
	"github.com/rahul/consolenano/internal/page"
	"github.com/rahul/consolenano/internal/plan"
	"github.com/rahul/consolenano/internal/store"
)

// Tab is a browser tab as seen by the engine.
type Tab struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

// NewTaskResponse answers START_NEW_TASK. At most one of the Needs* flags is
// set, and only when the page could not be observed.
type NewTaskResponse struct {
	bridge.Status
	Plan            *plan.TaskPlan `json:"plan,omitempty"`
	Context         *page.Snapshot `json:"context,omitempty"`
	UsingMockAI     bool           `json:"usingMockAI"`
	NeedsNavigation bool           `json:"needsNavigation,omitempty"`
	NeedsRefresh    bool           `json:"needsRefresh,omitempty"`
	NeedsTabSwitch  bool           `json:"needsTabSwitch,omitempty"`
	NeedsTabChoice  bool           `json:"needsTabChoice,omitempty"`
	AWSTabs         []Tab          `json:"awsTabs,omitempty"`
}

// StepResponse answers COMPLETE_STEP.
type StepResponse struct {
	bridge.Status
	TaskComplete   bool           `json:"taskComplete"`
	NewStep        int            `json:"newStep,omitempty"`
	NextTasks      []string       `json:"nextTasks,omitempty"`
	CompletedTask  string         `json:"completedTask,omitempty"`
	PlanAdapted    bool           `json:"planAdapted"`
	Plan           *plan.TaskPlan `json:"plan,omitempty"`
	ContextUpdated bool           `json:"contextUpdated"`
}

// ErrorFixResponse answers ERROR_DETECTED and is pushed to the panel as
// DISPLAY_ERROR_FIX.
type ErrorFixResponse struct {
	bridge.Status
	FixPlan   *plan.TaskPlan     `json:"fixPlan,omitempty"`
	ErrorInfo *bridge.ErrorEvent `json:"errorInfo,omitempty"`
}

type PlanResponse struct {
	bridge.Status
	Plan *plan.TaskPlan `json:"plan,omitempty"`
}

type PageChangedResponse struct {
	bridge.Status
	ContextUpdated bool `json:"contextUpdated"`
}

type State struct {
	CurrentTask    *store.Task           `json:"currentTask"`
	CurrentStep    int                   `json:"currentStep"`
	CompletedTasks []store.CompletedTask `json:"completedTasks"`
}

type StateResponse struct {
	bridge.Status
	State *State `json:"state,omitempty"`
}

type AnswerResponse struct {
	bridge.Status
	Answer string `json:"answer,omitempty"`
}

type QuestionsResponse struct {
	bridge.Status
	Questions []store.Question `json:"questions"`
}

// AdaptRequest is the ADAPT_PLAN payload. Both fields are optional.
type AdaptRequest struct {
	CurrentStep  *int           `json:"currentStep,omitempty"`
	FreshContext *page.Snapshot `json:"freshContext,omitempty"`
}
