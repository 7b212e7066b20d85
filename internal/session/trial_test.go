package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"therapyctl/internal/api"
)

func TestNormalize_NilPropagates(t *testing.T) {
	trial, sentinel := Normalize(nil)
	assert.Nil(t, trial)
	assert.Nil(t, sentinel)
}

func TestNormalize_DefaultsForMissingFields(t *testing.T) {
	trial, sentinel := Normalize(&api.RawTrial{ID: "t1"})
	require.Nil(t, sentinel)
	require.NotNil(t, trial)

	assert.Equal(t, api.ID("t1"), trial.ID)
	assert.Equal(t, "", trial.Prompt)
	assert.NotNil(t, trial.Options)
	assert.Len(t, trial.Options, 0)
	assert.Equal(t, 1, trial.Level)
	assert.Equal(t, DefaultTimeLimit, trial.TimeLimit)
}

func TestNormalize_CarriesServerValues(t *testing.T) {
	trial, sentinel := Normalize(&api.RawTrial{
		ID:          "t2",
		Game:        "matching",
		Level:       3,
		Prompt:      "Find the dog!",
		PromptAudio: "Can you point to the dog?",
		Highlight:   "dog",
		TimeLimitMS: 6000,
	})
	require.Nil(t, sentinel)
	assert.Equal(t, 3, trial.Level)
	assert.Equal(t, 6*time.Second, trial.TimeLimit)
	assert.Equal(t, "dog", trial.Highlight)
	assert.Equal(t, "Can you point to the dog?", trial.NarrationText())
}

func TestNormalize_NarrationFallsBackToPrompt(t *testing.T) {
	trial, _ := Normalize(&api.RawTrial{ID: "t1", Prompt: "Find the star!"})
	assert.Equal(t, "Find the star!", trial.NarrationText())
}

func TestNormalize_OptionCoercion(t *testing.T) {
	var opts []api.RawOption
	payload := `[ "cat", {"id":"dog"}, {"label":"Fish"}, {"id":"bird","label":"Bird","image":"bird.png"}, {} ]`
	require.NoError(t, json.Unmarshal([]byte(payload), &opts))

	trial, _ := Normalize(&api.RawTrial{ID: "t1", Options: opts})
	require.Len(t, trial.Options, 4) // the fully empty option is dropped

	assert.Equal(t, Option{ID: "cat", Label: "cat"}, trial.Options[0])
	assert.Equal(t, Option{ID: "dog", Label: "dog"}, trial.Options[1])
	assert.Equal(t, Option{ID: "Fish", Label: "Fish"}, trial.Options[2])
	assert.Equal(t, Option{ID: "bird", Label: "Bird", Image: "bird.png"}, trial.Options[3])
}

func TestNormalize_SentinelCaseInsensitive(t *testing.T) {
	for _, detail := range []string{
		"No more planned trials",
		"no more",
		"NO MORE PLANNED TRIALS",
		"No More Planned Trials",
	} {
		trial, sentinel := Normalize(&api.RawTrial{Detail: detail})
		require.Nil(t, trial, detail)
		require.NotNil(t, sentinel, detail)
		assert.True(t, sentinel.EndOfSession(), detail)
	}
}

func TestNormalize_SentinelWithInlineSummary(t *testing.T) {
	sum := &api.Summary{TotalTrials: 5, Correct: 4}
	trial, sentinel := Normalize(&api.RawTrial{Detail: "No more planned trials", Summary: sum})
	require.Nil(t, trial)
	require.NotNil(t, sentinel)
	assert.Same(t, sum, sentinel.Summary)
}

func TestNormalize_OtherDetailIsSentinelButNotEndMarker(t *testing.T) {
	_, sentinel := Normalize(&api.RawTrial{Detail: "Session already completed"})
	require.NotNil(t, sentinel)
	assert.False(t, sentinel.EndOfSession())
}

func TestID_AcceptsNumbersAndStrings(t *testing.T) {
	var raw api.RawTrial
	require.NoError(t, json.Unmarshal([]byte(`{"trial_id": 42}`), &raw))
	assert.Equal(t, api.ID("42"), raw.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"trial_id": "t-42"}`), &raw))
	assert.Equal(t, api.ID("t-42"), raw.ID)
}
