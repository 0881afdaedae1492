package store

import (
	"strings"
	"time"

	"github.com/rahul/consolenano/internal/page"
	"github.com/rahul/consolenano/internal/plan"
)

const (
	MaxCompletedTasks = 10
	MaxQuestions      = 20

	summaryLimit = 50
)

// Task is the instruction currently being guided.
type Task struct {
	ID               string         `json:"id"`
	UserPrompt       string         `json:"userPrompt"`
	Plan             plan.TaskPlan  `json:"plan"`
	OriginalContext  *page.Snapshot `json:"originalContext,omitempty"`
	CurrentContext   *page.Snapshot `json:"currentContext,omitempty"`
	CompletedSteps   []int          `json:"completedSteps"`
	CreatedResources []string       `json:"createdResources"`
	TaskType         string         `json:"taskType"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// CompletedTask is the archived summary of a finished Task.
type CompletedTask struct {
	Prompt           string         `json:"prompt"`
	CompletedAt      time.Time      `json:"completedAt"`
	StepCount        int            `json:"stepCount"`
	Service          string         `json:"service"`
	Action           string         `json:"action"`
	Summary          string         `json:"summary"`
	CreatedResources []string       `json:"createdResources"`
	FinalContext     *page.Snapshot `json:"finalContext,omitempty"`
}

type Question struct {
	Question string    `json:"question"`
	AskedAt  time.Time `json:"askedAt"`
}

// Summarize builds the archive entry for t.
func Summarize(t Task, now time.Time) CompletedTask {
	service := "AWS"
	if t.CurrentContext != nil && t.CurrentContext.Service != "" {
		service = t.CurrentContext.Service
	}
	summary := t.UserPrompt
	if r := []rune(summary); len(r) > summaryLimit {
		summary = string(r[:summaryLimit]) + "..."
	}
	resources := t.CreatedResources
	if resources == nil {
		resources = []string{}
	}
	return CompletedTask{
		Prompt:           t.UserPrompt,
		CompletedAt:      now,
		StepCount:        t.Plan.Len(),
		Service:          service,
		Action:           ActionVerb(t.UserPrompt),
		Summary:          summary,
		CreatedResources: resources,
		FinalContext:     t.CurrentContext,
	}
}

var actionVerbs = []string{"create", "launch", "deploy", "configure", "delete", "update"}

// ActionVerb returns the first known verb found in prompt, else "manage".
func ActionVerb(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, v := range actionVerbs {
		if strings.Contains(lower, v) {
			return v
		}
	}
	return "manage"
}
