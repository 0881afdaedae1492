package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/consolenano/internal/oracle"
	"github.com/rahul/consolenano/internal/page"
)

func bucketSnapshot() page.Snapshot {
	s := page.EmptySnapshot("https://s3.console.aws.amazon.com/s3/bucket/create?region=us-east-1", "Create bucket")
	s.Service = "S3"
	s.Breadcrumbs = []string{"Amazon S3", "Buckets", "Create bucket"}
	s.Elements.Inputs = []page.InputDescriptor{
		{Label: "Bucket name", HasValue: true, Value: "my-logs", Selector: []string{"#bucket-name", "input[name='bucketName']"}},
		{Label: "Tag key", Selector: []string{"#tag-key"}},
	}
	s.Elements.Buttons = []page.ButtonDescriptor{
		{Text: "Create bucket", IsPrimary: true, Selector: []string{"#create-bucket"}},
		{Text: "Cancel", Selector: []string{"#cancel"}},
	}
	s.Elements.Dropdowns = []page.DropdownDescriptor{
		{Label: "AWS Region", SelectedText: "US East (N. Virginia)", Selector: []string{"#region"}},
	}
	return s
}

func TestPromptManagerEmbeddedDefaults(t *testing.T) {
	pm, err := NewPromptManager("")
	require.NoError(t, err)
	assert.Contains(t, pm.SystemPrompt(), "AWS Console assistant")

	out, err := pm.Render(PlanPrompt, planData{Prompt: "create an s3 bucket", Snapshot: bucketSnapshot()})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, `USER REQUEST: "create an s3 bucket"`))
	for _, want := range []string{
		"Current AWS Console State:",
		"Service: S3",
		"Page Title: Create bucket",
		"Navigation: Amazon S3 > Buckets > Create bucket",
		"Input Fields (2):",
		`  - Bucket name (value: "my-logs") (selectors: #bucket-name OR input[name='bucketName'])`,
		"  - Tag key (empty) (selectors: #tag-key)",
		"Buttons (2):",
		`  - "Create bucket" [PRIMARY] (selectors: #create-bucket)`,
		`  - "Cancel" (selectors: #cancel)`,
		"Dropdowns (1):",
		`  - AWS Region (selected: "US East (N. Virginia)", selectors: #region)`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestPromptMarkersMatchOracle(t *testing.T) {
	pm, err := NewPromptManager("")
	require.NoError(t, err)
	snap := bucketSnapshot()

	cont, err := pm.Render(ContinuationPrompt, continuationData{Prompt: "create bucket", Snapshot: snap})
	require.NoError(t, err)
	assert.Contains(t, cont, oracle.MarkerContinuation)
	assert.Contains(t, cont, oracle.MarkerRequest)
	assert.Contains(t, cont, "COMPLETED STEPS: None")

	fix, err := pm.Render(ErrorFixPrompt, errorFixData{Error: page.ErrorDescriptor{Type: "error", Message: "Bucket name already exists"}, Snapshot: snap})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fix, oracle.MarkerErrorFix))
	assert.Contains(t, fix, "Page Context: S3 - Create bucket")

	next, err := pm.Render(NextTasksPrompt, planData{Prompt: "create bucket", Snapshot: snap})
	require.NoError(t, err)
	assert.Contains(t, next, oracle.MarkerNextTasks)

	q, err := pm.Render(QuestionPrompt, questionData{Question: "what is s3?"})
	require.NoError(t, err)
	assert.Contains(t, q, oracle.MarkerQuestion+` "what is s3?"`)
	assert.NotContains(t, q, "The user is on")
}

func TestPromptManagerDirectoryOverrides(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"system.md":     "Identity Content",
		"guidance.md":   "Guidance Content",
		"question.tmpl": `Q: {{.Question}}`,
		"notes.txt":     "ignored",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	pm, err := NewPromptManager(dir)
	require.NoError(t, err)

	sys := pm.SystemPrompt()
	assert.True(t, strings.HasPrefix(sys, "Identity Content"))
	assert.Contains(t, sys, "Guidance Content")
	assert.NotContains(t, sys, "ignored")

	out, err := pm.Render(QuestionPrompt, questionData{Question: "why"})
	require.NoError(t, err)
	assert.Equal(t, "Q: why", out)

	// untouched templates keep the embedded text
	out, err = pm.Render(NextTasksPrompt, planData{Prompt: "x", Snapshot: bucketSnapshot()})
	require.NoError(t, err)
	assert.Contains(t, out, oracle.MarkerNextTasks)
}

func TestPromptManagerMissingDirectoryUsesDefaults(t *testing.T) {
	pm, err := NewPromptManager(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.NotEmpty(t, pm.SystemPrompt())
}

func TestPromptManagerRejectsBrokenTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plan.tmpl"), []byte("{{.Prompt"), 0o644))
	_, err := NewPromptManager(dir)
	assert.Error(t, err)
}
