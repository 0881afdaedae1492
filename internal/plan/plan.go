package plan

// StepType is the closed set of step kinds the panel knows how to render.
type StepType string

const (
	Verification    StepType = "verification"
	Navigation      StepType = "navigation"
	FormField       StepType = "form_field"
	Instruction     StepType = "instruction"
	AwaitUserAction StepType = "await_user_action"
)

// Step is a single guided action inside a plan.
type Step struct {
	ID             int      `json:"id"`
	Type           StepType `json:"type"`
	Description    string   `json:"description"`
	Details        string   `json:"details,omitempty"`
	Element        []string `json:"element"`
	ButtonName     string   `json:"buttonName,omitempty"`
	ExecutionSteps []string `json:"executionSteps,omitempty"`
}

// ExternalAction is work the user has to do outside the console page
// (a CLI command, an IAM policy, a file, a cost note).
type ExternalAction struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Content     string `json:"content,omitempty"`
}

// TaskPlan is the normalized oracle output.
type TaskPlan struct {
	Steps           []Step           `json:"steps"`
	ExternalActions []ExternalAction `json:"externalActions"`
	NextTasks       []string         `json:"nextTasks"`
}

// Len returns the number of steps.
func (p *TaskPlan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Steps)
}

// Step returns the step at index i, or false when i is out of range.
func (p *TaskPlan) Step(i int) (Step, bool) {
	if p == nil || i < 0 || i >= len(p.Steps) {
		return Step{}, false
	}
	return p.Steps[i], true
}

// Descriptions returns the descriptions of steps in [from, to).
func (p *TaskPlan) Descriptions(from, to int) []string {
	if p == nil {
		return nil
	}
	from = max(from, 0)
	to = min(to, len(p.Steps))
	var out []string
	for i := from; i < to; i++ {
		out = append(out, p.Steps[i].Description)
	}
	return out
}

// Clone returns a deep copy of the plan.
func (p TaskPlan) Clone() TaskPlan {
	out := TaskPlan{
		Steps:           make([]Step, len(p.Steps)),
		ExternalActions: append([]ExternalAction{}, p.ExternalActions...),
		NextTasks:       append([]string{}, p.NextTasks...),
	}
	for i, s := range p.Steps {
		s.Element = append([]string{}, s.Element...)
		s.ExecutionSteps = append([]string(nil), s.ExecutionSteps...)
		out.Steps[i] = s
	}
	return out
}
