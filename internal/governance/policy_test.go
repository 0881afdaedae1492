package governance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyEngine_Evaluate(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	ctx := context.Background()

	cases := []struct {
		prompt string
		want   Effect
	}{
		{"create an S3 bucket", EffectAllow},
		{"launch EC2 instance", EffectAllow},
		{"", EffectClarify},
		{"   ", EffectClarify},
		{"hi", EffectClarify},
		{"Hello!", EffectClarify},
		{"help", EffectClarify},
		{"help me", EffectClarify},
		{"Do   Something", EffectClarify},
		{"create", EffectClarify},
		{"s3", EffectClarify},
		{"what's the weather today", EffectClarify},
		{"CONTINUE FROM WHERE WE LEFT OFF\nhi", EffectAllow},
	}
	for _, tc := range cases {
		res, err := engine.Evaluate(ctx, Request{Prompt: tc.prompt})
		require.NoError(t, err)
		assert.Equal(t, tc.want, res.Effect, "prompt %q", tc.prompt)
		assert.NotEmpty(t, res.Reason)
	}
}

func TestPolicyExtension(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	ctx := context.Background()

	engine.AddVague("Make It So")
	res, err := engine.Evaluate(ctx, Request{Prompt: "make it so"})
	require.NoError(t, err)
	assert.Equal(t, EffectClarify, res.Effect)

	require.Error(t, engine.ClarifyPattern("("))
	require.NoError(t, engine.ClarifyPattern(`(?i)\bpizza\b`))
	res, err = engine.Evaluate(ctx, Request{Prompt: "order a pizza"})
	require.NoError(t, err)
	assert.Equal(t, EffectClarify, res.Effect)

	// rules added to one engine stay out of the next
	fresh := NewDefaultPolicyEngine()
	assert.Len(t, fresh.Unclear, 1)
	res, err = fresh.Evaluate(ctx, Request{Prompt: "order a pizza"})
	require.NoError(t, err)
	assert.Equal(t, EffectAllow, res.Effect)
	res, err = fresh.Evaluate(ctx, Request{Prompt: "tell me a joke"})
	require.NoError(t, err)
	assert.Equal(t, EffectClarify, res.Effect)
}

func TestIsQuestion(t *testing.T) {
	for _, q := range []string{
		"What is DynamoDB",
		"explain VPC peering",
		"difference between S3 and EFS",
		"How much does RDS cost",
		"can I resize a volume?",
		"is this right?  ",
	} {
		assert.True(t, IsQuestion(q), q)
	}
	for _, task := range []string{"create S3 bucket", "launch an EC2 instance", "delete the old lambda"} {
		assert.False(t, IsQuestion(task), task)
	}
}
