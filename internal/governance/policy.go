package governance

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow   Effect = "allow"
	EffectClarify Effect = "clarify"
)

// ContinuationMarker flags prompts that resume an in-progress plan. Such
// prompts are built by the engine itself and are always allowed.
const ContinuationMarker = "CONTINUE FROM WHERE WE LEFT OFF"

// Request is a user instruction about to be planned.
type Request struct {
	Prompt  string
	Service string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine decides whether a request is clear enough to plan.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine classifies greetings, vague phrases, single words and
// off-topic requests as unclear.
type DefaultPolicyEngine struct {
	Vague     map[string]bool
	MinLength int
	Unclear   []*regexp.Regexp
}

var defaultVague = []string{
	"hi", "hello", "hey", "good morning", "help", "help me", "do something",
	"aws", "test", "show me", "fix this", "make it work",
}

var defaultUnclear = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(weather|news|joke|lottery)\b`),
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	e := &DefaultPolicyEngine{
		Vague:     make(map[string]bool),
		MinLength: 3,
		Unclear:   append([]*regexp.Regexp(nil), defaultUnclear...),
	}
	for _, v := range defaultVague {
		e.Vague[v] = true
	}
	return e
}

// AddVague marks a whole request (case-insensitive) as too vague to plan.
func (e *DefaultPolicyEngine) AddVague(phrase string) {
	e.Vague[normalize(phrase)] = true
}

func (e *DefaultPolicyEngine) ClarifyPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.Unclear = append(e.Unclear, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if strings.Contains(req.Prompt, ContinuationMarker) {
		return Result{Effect: EffectAllow, Reason: "continuation of an existing plan"}, nil
	}

	p := normalize(req.Prompt)
	switch {
	case p == "":
		return Result{Effect: EffectClarify, Reason: "empty request"}, nil
	case e.Vague[p]:
		return Result{Effect: EffectClarify, Reason: fmt.Sprintf("'%s' is too vague to plan", p)}, nil
	case len([]rune(p)) < e.MinLength:
		return Result{Effect: EffectClarify, Reason: "request is too short"}, nil
	case !strings.Contains(p, " "):
		return Result{Effect: EffectClarify, Reason: "single-word request"}, nil
	}

	for _, re := range e.Unclear {
		if re.MatchString(p) {
			return Result{
				Effect: EffectClarify,
				Reason: fmt.Sprintf("request matches non-AWS pattern: %s", re.String()),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}

// normalize lowercases, trims and collapses inner whitespace. Trailing
// punctuation is dropped so "Hello!" reads as a greeting.
func normalize(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimRight(s, "!.?,")
}
