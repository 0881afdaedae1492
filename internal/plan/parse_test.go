package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponseClean(t *testing.T) {
	raw := "```json\n{\"steps\": [{\"type\": \"verification\", \"description\": \"Check the bucket\"}], \"nextTasks\": [\"Enable versioning\"]}\n```"
	res := ParseResponse(raw)
	assert.Equal(t, TierClean, res.Tier)
	require.Len(t, res.Plan.Steps, 1)
	assert.Equal(t, Verification, res.Plan.Steps[0].Type)
	assert.Equal(t, []string{"Enable versioning"}, res.Plan.NextTasks)
}

func TestParseResponseTrailingComma(t *testing.T) {
	raw := `{"steps": [{"id": 1, "type": "instruction", "description": "Open S3",},], "nextTasks": ["a", "b",],}`
	res := ParseResponse(raw)
	assert.Equal(t, TierRepaired, res.Tier)
	require.Len(t, res.Plan.Steps, 1)
	assert.Equal(t, "Open S3", res.Plan.Steps[0].Description)
	assert.Equal(t, []string{"a", "b"}, res.Plan.NextTasks)
}

func TestParseResponseAggressive(t *testing.T) {
	raw := `Sure! {"steps": [{"id": 1, "type": "click_action", "description": "Create", "element": ["[name='bucket']}"]`
	res := ParseResponse(raw)
	assert.Equal(t, TierAggressive, res.Tier)
	require.Len(t, res.Plan.Steps, 1)
	assert.Equal(t, AwaitUserAction, res.Plan.Steps[0].Type)
	assert.Equal(t, []string{"[name='bucket']"}, res.Plan.Steps[0].Element)
}

func TestParseResponseFallback(t *testing.T) {
	res := ParseResponse("I cannot help with Lambda today.")
	assert.Equal(t, TierFallback, res.Tier)
	assert.Error(t, res.Err)
	require.Len(t, res.Plan.Steps, 2)
	for _, s := range res.Plan.Steps {
		assert.Equal(t, Instruction, s.Type)
	}
	assert.Contains(t, res.Plan.Steps[0].Description, "Lambda")
	assert.Equal(t, []string{"Navigate to Lambda service", "Try a simpler request", "Ask for help with specific steps"}, res.Plan.NextTasks)

	empty := ParseResponse("")
	assert.Equal(t, TierFallback, empty.Tier)
	assert.Contains(t, empty.Plan.Steps[0].Description, "AWS service")
}

func TestParseStringList(t *testing.T) {
	got, err := ParseStringList("```json\n[\"Enable versioning\", {\"title\": \"Add lifecycle rule\"},]\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"Enable versioning", "Add lifecycle rule"}, got)

	_, err = ParseStringList("no list here")
	assert.Error(t, err)
}

func TestGuessService(t *testing.T) {
	assert.Equal(t, "S3", GuessService("create an s3 bucket"))
	assert.Equal(t, "Lambda", GuessService("Lambda and S3"))
	assert.Equal(t, "AWS service", GuessService("something else"))
}

func TestClarificationPlan(t *testing.T) {
	p := ClarificationPlan()
	require.Len(t, p.Steps, 1)
	assert.Equal(t, Instruction, p.Steps[0].Type)
	assert.Contains(t, p.Steps[0].Description, "specify")
	assert.Empty(t, p.NextTasks)
}

func TestRecoveryPlans(t *testing.T) {
	nav := NavigationToAWSPlan("create bucket", "https://www.google.com/search?q=aws")
	require.Len(t, nav.Steps, 3)
	assert.Equal(t, "Navigate to AWS Console from your current search page", nav.Steps[0].Description)
	assert.Equal(t, []string{"create bucket"}, nav.NextTasks)

	blank := NavigationToAWSPlan("create bucket", "")
	assert.Equal(t, "Navigate to AWS Console", blank.Steps[0].Description)

	other := NavigationToAWSPlan("create bucket", "https://example.com/docs")
	assert.Equal(t, "Open AWS Console in a new tab", other.Steps[0].Description)

	choice := TabChoicePlan("create bucket", []string{
		TabChoice(1, "S3 Management Console", "https://s3.console.aws.amazon.com/s3/home"),
		TabChoice(2, "", "https://console.aws.amazon.com/ec2/home"),
	})
	require.Len(t, choice.Steps, 1)
	assert.Contains(t, choice.Steps[0].Details, "1. S3 Management Console (s3.console.aws.amazon.com)")
	assert.Contains(t, choice.Steps[0].Details, "2. ec2 (console.aws.amazon.com)")

	refresh := RefreshPlan("x")
	assert.Equal(t, 1, refresh.Len())
	tabSwitch := TabSwitchPlan("x")
	assert.Equal(t, 1, tabSwitch.Len())
}
