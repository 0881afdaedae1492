package governance

import "strings"

var questionIndicators = []string{
	"what is", "what are", "how does", "how do", "why does", "why do",
	"explain", "tell me about", "describe", "define", "difference between",
	"best practices", "recommend", "suggest", "which is better",
	"pros and cons", "advantages", "disadvantages", "when should",
	"what happens if", "how much does", "pricing", "cost",
}

// IsQuestion reports whether input asks for information rather than
// describing a task to perform.
func IsQuestion(input string) bool {
	if strings.HasSuffix(strings.TrimSpace(input), "?") {
		return true
	}
	lower := strings.ToLower(input)
	for _, ind := range questionIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}
