package plan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairStringArrays(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"missing comma", `["#a" "#b"]`, `["#a", "#b"]`},
		{"newline separator", "[\"#a\"\n  \"#b\"]", `["#a", "#b"]`},
		{"stray brace", `["#a"}, "#b"]`, `["#a", "#b"]`},
		{"trailing brace", `["#a", "#b"}]`, `["#a", "#b"]`},
		{"escaped quote kept", `["say \"hi\"" "x"]`, `["say \"hi\"", "x"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repairStringArrays(tt.in))
		})
	}
}

func TestRepairElementArrays(t *testing.T) {
	assert.Equal(t, `{"element": ["#a", "#b"]}`, repairElementArrays(`{"element": [["#a", "#b"]]}`))
	assert.Equal(t, `{"element": ["#a"], "type": "x"}`, repairElementArrays(`{"element": ["#a"]], "type": "x"}`))
}

func TestRepairSingleQuotes(t *testing.T) {
	in := `{'type': 'instruction', "description": "it's fine"}`
	assert.Equal(t, `{"type": "instruction", "description": "it's fine"}`, repairSingleQuotes(in))

	assert.Equal(t, `{"a": "say \"x\""}`, repairSingleQuotes(`{"a": 'say "x"'}`))
}

func TestRepairNestedNextTasks(t *testing.T) {
	assert.Equal(t, `{"nextTasks": []}`,
		repairNestedNextTasks(`{"nextTasks": [{"title": "A", "nextTasks": ["B"]}]}`))
	assert.Equal(t, `{"nextTasks": []}`,
		repairNestedNextTasks(`{"nextTasks": [{"task": {"name": "A"}}]}`))

	flat := `{"nextTasks": [{"title": "A"}, "B"]}`
	assert.Equal(t, flat, repairNestedNextTasks(flat))
}

func TestRemoveInvalidSteps(t *testing.T) {
	in := `{"steps": [{"id": 1, "type": "nextTasks", "description": "x"}, {"id": 2, "type": "instruction"}]}`
	out := Run(in, CommonRepairs)
	require.True(t, json.Valid([]byte(out)), out)

	var got struct {
		Steps []map[string]any `json:"steps"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "instruction", got.Steps[0]["type"])
}

func TestRemoveDoubleAndTrailingCommas(t *testing.T) {
	assert.Equal(t, `{"a": 1, "b": 2}`, removeDoubleCommas(`{"a": 1,, "b": 2}`))
	assert.Equal(t, `{"a": [1, 2]}`, removeTrailingCommas(`{"a": [1, 2,]}`))
	assert.Equal(t, `{"a": "x,}"}`, removeTrailingCommas(`{"a": "x,}",}`))
}

func TestCommonRepairsLeaveValidJSONAlone(t *testing.T) {
	valid := `{"steps":[{"id":1,"type":"navigation","description":"Open S3",` +
		`"element":["#a","[aria-label='Create bucket']"],"formField":{"label":"Name"},"executionSteps":["Click"]}],` +
		`"externalActions":[],"nextTasks":["Enable versioning",{"title":"Add policy"}]}`

	var want any
	require.NoError(t, json.Unmarshal([]byte(valid), &want))
	for _, r := range CommonRepairs {
		t.Run(r.Name, func(t *testing.T) {
			var got any
			require.NoError(t, json.Unmarshal([]byte(r.Apply(valid)), &got))
			assert.Equal(t, want, got)
		})
	}
}

func TestBalanceBrackets(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a": [1, 2`, `{"a": [1, 2]}`},
		{`{"a": [1]]}`, `{"a": [1]}`},
		{`{"a": "unterminated`, `{"a": "unterminated"}`},
		{`{"a": "]"}`, `{"a": "]"}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, balanceBrackets(tt.in))
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "{\"steps\":\u00a0[] ,\ufeff\"nextTasks\":\t[]}"
	out := NormalizeWhitespace(in)
	assert.Equal(t, "{\"steps\": [] , \"nextTasks\":\t[]}", out)
	assert.True(t, json.Valid([]byte(out)))
}

func TestExtract(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, Extract("Here you go:\n```json\n{\"a\": 1}\n```\nEnjoy"))
	assert.Equal(t, `{"a": {"b": 2}}`, Extract(`The plan is {"a": {"b": 2}} as requested.`))
	assert.Equal(t, "no json", Extract("no json"))
}
