package panel

import (
	"github.com/rahul/consolenano/internal/plan"
	"github.com/rahul/consolenano/internal/store"
)

// Screen is the main area of the panel.
type Screen string

const (
	ScreenWelcome  Screen = "welcome"
	ScreenTask     Screen = "task"
	ScreenComplete Screen = "complete"
)

type StepStatus string

const (
	StepDone    StepStatus = "done"
	StepActive  StepStatus = "active"
	StepPending StepStatus = "pending"
)

// Step actions offered on the active step.
const (
	ActionDone     = "Done"
	ActionContinue = "Continue"
)

type StepView struct {
	Number         int
	Type           plan.StepType
	Description    string
	Details        string
	ButtonName     string
	ExecutionSteps []string
	Status         StepStatus
	// Action is set on the active step only.
	Action string
}

type BannerKind string

const (
	BannerError   BannerKind = "error"
	BannerInfo    BannerKind = "info"
	BannerSuccess BannerKind = "success"
)

type Banner struct {
	Kind BannerKind
	Text string
}

// View is everything a Display needs to draw the panel.
type View struct {
	Screen Screen

	// task screen
	Title           string
	Steps           []StepView
	ExternalActions []plan.ExternalAction
	NextTasks       []string

	// completion screen, for finished tasks and answered questions
	Completed string
	Question  string
	Answer    string

	Service     string
	Banner      *Banner
	UsingMockAI bool

	Tasks     []store.CompletedTask
	Questions []store.Question
}

// StepViews lays out the steps of p around the active index.
func StepViews(p *plan.TaskPlan, active int) []StepView {
	out := make([]StepView, 0, p.Len())
	for i := 0; i < p.Len(); i++ {
		s, _ := p.Step(i)
		v := StepView{
			Number:         i + 1,
			Type:           s.Type,
			Description:    s.Description,
			Details:        s.Details,
			ButtonName:     s.ButtonName,
			ExecutionSteps: s.ExecutionSteps,
			Status:         StepPending,
		}
		switch {
		case i < active:
			v.Status = StepDone
		case i == active:
			v.Status = StepActive
			v.Action = stepAction(s.Type)
		}
		out = append(out, v)
	}
	return out
}

func stepAction(t plan.StepType) string {
	switch t {
	case plan.Verification:
		return ActionContinue
	case plan.Navigation, plan.FormField, plan.Instruction, plan.AwaitUserAction:
		return ActionDone
	}
	return ""
}
