package agent

import "regexp"

var taskTypes = []struct {
	re   *regexp.Regexp
	kind string
}{
	{regexp.MustCompile(`(?i)create|new`), "create"},
	{regexp.MustCompile(`(?i)launch|start`), "launch"},
	{regexp.MustCompile(`(?i)deploy|upload`), "deploy"},
	{regexp.MustCompile(`(?i)configure|setup|set up`), "configure"},
	{regexp.MustCompile(`(?i)delete|remove`), "delete"},
	{regexp.MustCompile(`(?i)update|modify`), "update"},
	{regexp.MustCompile(`(?i)monitor|watch`), "monitor"},
}

// TaskType classifies a request by its first matching action keyword.
func TaskType(prompt string) string {
	for _, t := range taskTypes {
		if t.re.MatchString(prompt) {
			return t.kind
		}
	}
	return "manage"
}
