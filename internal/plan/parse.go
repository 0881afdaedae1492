package plan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tier records which stage of ParseResponse produced the plan.
type Tier string

const (
	TierClean      Tier = "clean"
	TierRepaired   Tier = "repaired"
	TierAggressive Tier = "aggressive"
	TierFallback   Tier = "fallback"
)

// Result is the outcome of parsing an oracle response.
type Result struct {
	Plan TaskPlan
	Tier Tier
	// Err is the last parse error seen before falling back, if any.
	Err error
}

// ParseResponse turns free oracle text into a TaskPlan. It never fails: when
// neither repair pass yields an object, a fallback plan is synthesized from
// keywords in the text.
func ParseResponse(response string) Result {
	candidate := NormalizeWhitespace(Extract(response))

	if raw, err := decodeObject(candidate); err == nil {
		return Result{Plan: Transform(raw), Tier: TierClean}
	}

	raw, err := decodeObject(Run(candidate, CommonRepairs))
	if err == nil {
		return Result{Plan: Transform(raw), Tier: TierRepaired}
	}

	raw, err = decodeObject(Run(NormalizeWhitespace(response), AggressiveRepairs))
	if err == nil {
		return Result{Plan: Transform(raw), Tier: TierAggressive}
	}

	return Result{Plan: FallbackPlan(response), Tier: TierFallback, Err: err}
}

func decodeObject(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty response")
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("decode plan: not an object")
	}
	return raw, nil
}

// ParseStringList extracts a JSON array of strings from free oracle text,
// used for follow-up task suggestions.
func ParseStringList(response string) ([]string, error) {
	s := NormalizeWhitespace(response)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no array in response")
	}
	s = removeTrailingCommas(repairSingleQuotes(s[start : end+1]))

	var items []any
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("decode task list: %w", err)
	}
	var out []string
	for _, item := range items {
		if text := nextTaskText(item); text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}
