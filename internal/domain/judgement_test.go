package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRating_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantText string
		wantJSON string
		wantErr  bool
	}{
		{name: "quoted number stays a string", input: `"70"`, wantText: "70", wantJSON: `"70"`},
		{name: "bare integer", input: `85`, wantText: "85", wantJSON: `85`},
		{name: "bare float", input: `72.5`, wantText: "72.5", wantJSON: `72.5`},
		{name: "empty string stays a string", input: `""`, wantText: "", wantJSON: `""`},
		{name: "null rejected", input: `null`, wantErr: true},
		{name: "object rejected", input: `{"v":1}`, wantErr: true},
		{name: "bool rejected", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Rating
			err := json.Unmarshal([]byte(tt.input), &r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, r.String())

			out, err := json.Marshal(r)
			require.NoError(t, err)
			assert.Equal(t, tt.wantJSON, string(out))
		})
	}
}

func TestRating_Float(t *testing.T) {
	v, err := NewRating("70", true).Float()
	require.NoError(t, err)
	assert.InDelta(t, 70.0, v, 0.0001)

	_, err = NewRating("excellent", true).Float()
	assert.Error(t, err)
}

func TestRating_MarshalYAML(t *testing.T) {
	out, err := yaml.Marshal(map[string]Rating{
		"quoted": NewRating("70", true),
		"number": NewRating("85", false),
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), `quoted: "70"`)
	assert.Contains(t, string(out), "number: 85")
}

func TestRating_SetVersusUnset(t *testing.T) {
	var unset Rating
	empty := NewRating("", true)

	assert.True(t, unset.IsZero())
	assert.False(t, empty.IsZero())

	out, err := json.Marshal(map[string]Rating{"unset": unset, "empty": empty})
	require.NoError(t, err)
	assert.JSONEq(t, `{"unset":null,"empty":""}`, string(out))

	y, err := yaml.Marshal(map[string]Rating{"unset": unset, "empty": empty})
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(y, &doc))
	assert.Nil(t, doc["unset"])
	assert.Equal(t, "", doc["empty"])
}

func TestJudgement_Decode(t *testing.T) {
	var j Judgement
	raw := `{"evaluation":"clear","total_rating":"70","feedback":"add examples"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &j))

	assert.Equal(t, "clear", j.Evaluation)
	assert.Equal(t, "70", j.TotalRating.String())
	assert.Equal(t, "add examples", j.Feedback)
}

func TestNewResult_WorkDurationIsSum(t *testing.T) {
	r := NewResult(nil, nil, 1500*time.Millisecond, 2250*time.Millisecond)

	assert.Equal(t, 3750*time.Millisecond, r.WorkDuration)
	assert.Equal(t, r.MessageDuration+r.JudgeDuration, r.WorkDuration)
}

func TestResult_MarshalJSON(t *testing.T) {
	r := NewResult(
		Transcript{UserMessage("hi"), AssistantMessage("hello")},
		[]Judgement{{Evaluation: "ok", TotalRating: NewRating("70", true), Feedback: "none"}},
		time.Second, 500*time.Millisecond,
	)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"messages": [{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}],
		"judgements": [{"evaluation":"ok","total_rating":"70","feedback":"none"}],
		"message_duration": 1,
		"judge_duration": 0.5,
		"work_duration": 1.5
	}`, string(out))
}

func TestResult_MeanRating(t *testing.T) {
	r := NewResult(nil, []Judgement{
		{TotalRating: NewRating("60", true)},
		{TotalRating: NewRating("80", false)},
		{TotalRating: NewRating("n/a", true)},
	}, 0, 0)

	mean, ok := r.MeanRating()
	assert.True(t, ok)
	assert.InDelta(t, 70.0, mean, 0.0001)

	_, ok = NewResult(nil, nil, 0, 0).MeanRating()
	assert.False(t, ok)
}

func TestTask_String(t *testing.T) {
	assert.Equal(t, "replay#3", Task{Index: 3, QuestionID: ReplayQuestionID, Replay: true}.String())
	assert.Equal(t, "question:81", Task{QuestionID: "81"}.String())
}
