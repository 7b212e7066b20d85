package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"therapyctl/internal/api"
)

func TestNoopNarrator(t *testing.T) {
	var n Narrator = NoopNarrator{}
	n.Speak("Can you find the dog?")
	n.Stop()
}

func TestDetectNarratorNeverNil(t *testing.T) {
	n := DetectNarrator()
	assert.NotNil(t, n)
	// Whatever was detected must survive being driven immediately.
	n.Stop()
	n.Speak("")
	n.Stop()
}

func TestCommandNarrator_MissingBinaryIsSilent(t *testing.T) {
	n := &CommandNarrator{path: "/nonexistent/tts-binary"}
	n.Speak("hello")
	n.Stop()
	n.Stop()
}

type recordingNarrator struct {
	spoken  []string
	stopped int
}

func (r *recordingNarrator) Speak(text string) { r.spoken = append(r.spoken, text) }
func (r *recordingNarrator) Stop()             { r.stopped++ }

func TestController_NarratesEachTrial(t *testing.T) {
	first := rawTrial("t1", "cat", "dog")
	first.PromptAudio = "Can you point to the dog?"
	second := rawTrial("t2", "sun", "moon")
	second.Prompt = "Find the sun!"

	f := &fakeGameAPI{
		startResp: startResp(first),
		nextQueue: []*api.RawTrial{second},
		summary:   &api.Summary{SessionID: "s1"},
	}
	narr := &recordingNarrator{}
	c := NewController(f, "matching", narr, nil)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx, "child-1", 2, 10000))
	require.NoError(t, c.Submit(ctx, "dog"))
	require.NoError(t, c.Submit(ctx, "sun"))

	assert.Equal(t, []string{"Can you point to the dog?", "Find the sun!"}, narr.spoken)
	assert.GreaterOrEqual(t, narr.stopped, 1, "completion must stop narration")
}
