package agent

import (
	"strings"

	"github.com/rahul/consolenano/internal/page"
)

// progression is an expected title change inside one service's create flow.
// It matches when the old title has any From word, the new title any To word
// and the user's request any Intent word.
type progression struct {
	From   []string
	To     []string
	Intent []string
}

var progressions = []progression{
	{From: []string{"s3", "buckets"}, To: []string{"create", "bucket"}, Intent: []string{"bucket", "s3"}},
	{From: []string{"ec2", "instances"}, To: []string{"launch", "instance"}, Intent: []string{"instance", "ec2"}},
	{From: []string{"rds", "databases"}, To: []string{"create", "database"}, Intent: []string{"database", "rds"}},
	{From: []string{"lambda", "functions"}, To: []string{"create", "function"}, Intent: []string{"function", "lambda"}},
	{From: []string{"iam"}, To: []string{"create", "user", "role", "policy"}, Intent: []string{"user", "role", "policy", "iam"}},
}

// Adaptation reasons.
const (
	ReasonNoContext      = "no prior context"
	ReasonServiceChanged = "service changed"
	ReasonURLChanged     = "url changed"
	ReasonProgression    = "expected progression"
	ReasonNewError       = "new error on page"
)

// NeedsAdaptation decides whether the remaining steps must be regenerated
// after the page moved from prev to cur. Title changes outside the
// progression table, form edits and re-renders of the same path never
// adapt; only the stored context is refreshed for those.
func NeedsAdaptation(userPrompt string, prev *page.Snapshot, cur page.Snapshot) (bool, string) {
	if prev == nil {
		return true, ReasonNoContext
	}

	if prev.Service != "" && cur.Service != "" && prev.Service != cur.Service {
		return true, ReasonServiceChanged
	}

	if cur.URL != "" && prev.URL != cur.URL {
		if !strings.Contains(prev.URL, stripQuery(cur.URL)) && !strings.Contains(cur.URL, stripQuery(prev.URL)) {
			return true, ReasonURLChanged
		}
	}

	if cur.PageTitle != "" && prev.PageTitle != cur.PageTitle && expectedProgression(prev.PageTitle, cur.PageTitle, userPrompt) {
		return true, ReasonProgression
	}

	if newCriticalError(prev.Errors, cur.Errors) {
		return true, ReasonNewError
	}
	return false, ""
}

func expectedProgression(oldTitle, newTitle, userPrompt string) bool {
	oldTitle = strings.ToLower(oldTitle)
	newTitle = strings.ToLower(newTitle)
	userPrompt = strings.ToLower(userPrompt)
	for _, p := range progressions {
		if anyIn(oldTitle, p.From) && anyIn(newTitle, p.To) && anyIn(userPrompt, p.Intent) {
			return true
		}
	}
	return false
}

// newCriticalError reports a hard error in cur that prev did not already show.
func newCriticalError(prev, cur []page.ErrorDescriptor) bool {
	seen := make(map[string]bool, len(prev))
	for _, e := range prev {
		seen[e.Message] = true
	}
	for _, e := range cur {
		if e.Type != "error" || strings.Contains(strings.ToLower(e.Message), "warning") {
			continue
		}
		if !seen[e.Message] {
			return true
		}
	}
	return false
}

func stripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}

func anyIn(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
