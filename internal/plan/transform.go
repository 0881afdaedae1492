package plan

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultDescription   = "No description"
	defaultButtonName    = "Action Button"
	defaultExecutionStep = "Complete this step"
)

// MapStepType folds a free-form step label onto the closed StepType set.
// Navigation is checked first so that every member of the set maps to itself.
func MapStepType(label string) StepType {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "navigation"):
		return Navigation
	case containsAny(l, "input", "form", "config", "selection"):
		return FormField
	case containsAny(l, "action", "click", "create", "initiated_action"):
		return AwaitUserAction
	case containsAny(l, "verify", "verification", "success"):
		return Verification
	default:
		// review, follow_up, cleanup, monitoring and anything unknown
		return Instruction
	}
}

// Transform normalizes a decoded oracle response into a TaskPlan. Entries
// without a type are dropped, only the first navigation step is kept, and
// every list field comes back as a list.
func Transform(raw map[string]any) TaskPlan {
	out := TaskPlan{
		Steps:           []Step{},
		ExternalActions: []ExternalAction{},
		NextTasks:       []string{},
	}
	if raw == nil {
		return out
	}

	if steps, ok := raw["steps"].([]any); ok {
		seenNavigation := false
		for _, entry := range steps {
			obj, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			label := stringField(obj, "type")
			if label == "" {
				continue
			}
			step := transformStep(obj, label, len(out.Steps))
			if step.Type == Navigation {
				if seenNavigation {
					continue
				}
				seenNavigation = true
			}
			out.Steps = append(out.Steps, step)
		}
	}

	if actions, ok := raw["externalActions"].([]any); ok {
		for _, entry := range actions {
			if a, ok := externalAction(entry); ok {
				out.ExternalActions = append(out.ExternalActions, a)
			}
		}
	}

	next, ok := raw["nextTasks"].([]any)
	if !ok {
		next, _ = raw["next_tasks"].([]any)
	}
	for _, entry := range next {
		if text := nextTaskText(entry); text != "" {
			out.NextTasks = append(out.NextTasks, text)
		}
	}
	return out
}

func transformStep(obj map[string]any, label string, index int) Step {
	step := Step{
		ID:             intField(obj, "id"),
		Type:           MapStepType(label),
		Description:    stringField(obj, "description"),
		Details:        stringField(obj, "details"),
		ButtonName:     stringField(obj, "buttonName"),
		ExecutionSteps: stringList(obj["executionSteps"]),
	}
	if step.ID <= 0 {
		step.ID = intField(obj, "step_number")
	}
	if step.ID <= 0 {
		step.ID = index + 1
	}
	if step.Description == "" {
		step.Description = defaultDescription
	}
	if step.ButtonName == "" {
		step.ButtonName = defaultButtonName
	}
	if len(step.ExecutionSteps) == 0 {
		step.ExecutionSteps = []string{defaultExecutionStep}
	}

	if form, ok := obj["formField"].(map[string]any); ok {
		if step.Details == "" {
			step.Details = stringField(form, "recommendation")
		}
		if label := stringField(form, "label"); label != "" && !strings.Contains(step.Description, label) {
			step.Description = fmt.Sprintf("%s (Field: %s)", step.Description, label)
		}
	}

	step.Element = stringList(obj["element"])
	if actions, ok := obj["actions"].([]any); ok && len(actions) > 0 {
		if first, ok := actions[0].(map[string]any); ok {
			if len(step.Element) == 0 {
				for _, key := range []string{"css_selector", "locator", "element"} {
					if sel := stringList(first[key]); len(sel) > 0 {
						step.Element = sel
						break
					}
				}
			}
			switch stringField(first, "action_type") {
			case "":
			case "click":
				step.Type = AwaitUserAction
			default:
				step.Type = Instruction
			}
			if details := stringField(first, "details"); details != "" {
				step.Details = details
			}
		}
	}
	if step.Element == nil {
		step.Element = []string{}
	}
	return step
}

func externalAction(entry any) (ExternalAction, bool) {
	switch v := entry.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return ExternalAction{}, false
		}
		return ExternalAction{Description: v}, true
	case map[string]any:
		a := ExternalAction{
			Type:        stringField(v, "type"),
			Description: stringField(v, "description"),
		}
		switch c := v["content"].(type) {
		case nil:
		case string:
			a.Content = c
		default:
			if b, err := json.Marshal(c); err == nil {
				a.Content = string(b)
			}
		}
		if a.Type == "" && a.Description == "" && a.Content == "" {
			return ExternalAction{}, false
		}
		return a, true
	}
	return ExternalAction{}, false
}

func nextTaskText(entry any) string {
	switch v := entry.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		for _, key := range []string{"description", "title", "name", "summary"} {
			if s := stringField(v, key); s != "" {
				return s
			}
		}
	}
	return ""
}

// ToMap converts a plan back into the generic decoded form accepted by Transform.
func ToMap(p TaskPlan) map[string]any {
	b, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func intField(obj map[string]any, key string) int {
	switch v := obj[key].(type) {
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	return 0
}

// stringList accepts a string or a list and keeps the non-empty strings.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
