package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"therapyctl/internal/api"
)

// fakeRecorder hands back a canned blob.
type fakeRecorder struct {
	recording bool
	stopErr   error
}

func (r *fakeRecorder) Supported() bool { return true }

func (r *fakeRecorder) Start() error {
	r.recording = true
	return nil
}

func (r *fakeRecorder) Stop() ([]byte, time.Duration, error) {
	if !r.recording {
		return nil, 0, ErrNotRecording
	}
	r.recording = false
	if r.stopErr != nil {
		return nil, 0, r.stopErr
	}
	return []byte("RIFFfake"), 1500 * time.Millisecond, nil
}

func speechStart(trials ...string) *api.SpeechStartResponse {
	resp := &api.SpeechStartResponse{SessionID: "sp1", TrialsPlanned: len(trials)}
	for i, prompt := range trials {
		resp.Trials = append(resp.Trials, api.SpeechTrial{
			TrialID:     api.ID("st" + string(rune('1'+i))),
			TrialNumber: i + 1,
			Prompt:      prompt,
			TargetText:  prompt,
		})
	}
	return resp
}

func newTestFlow(f *fakeSpeechAPI) *SpeechFlow {
	flow := NewSpeechFlow(f, &fakeRecorder{}, NoopNarrator{}, nil)
	flow.pollInterval = time.Millisecond
	flow.pollAttempts = 3
	return flow
}

func TestSpeechFlow_FullTrialCycle(t *testing.T) {
	f := &fakeSpeechAPI{
		startResp: speechStart("say ball", "say cat"),
		analyses: []analysisStep{
			{analysis: &api.Analysis{ProcessingStatus: api.AnalysisDone, Transcript: "ball", Similarity: 0.95}},
			{analysis: &api.Analysis{ProcessingStatus: api.AnalysisDone, Transcript: "cat", Similarity: 0.9}},
		},
		scoreResps: []*api.ScoreResponse{
			{TrialID: "st1", Score: "success", RemainingTrials: 1},
			{TrialID: "st2", Score: "partial", SessionComplete: true},
		},
		summary: &api.Summary{SessionID: "sp1", TotalTrials: 2, Completed: 2},
	}
	flow := newTestFlow(f)
	ctx := context.Background()

	require.NoError(t, flow.Start(ctx, "child-1", "act-1", 2))
	require.Equal(t, SpeechIdle, flow.Phase())
	require.Equal(t, api.ID("st1"), flow.Current().TrialID)
	assert.True(t, flow.CanRecord())

	// Trial 1: record, upload+analyze, score.
	require.NoError(t, flow.Record())
	assert.Equal(t, SpeechRecording, flow.Phase())
	require.NoError(t, flow.StopAndUpload(ctx))
	assert.Equal(t, SpeechAwaitingScore, flow.Phase())
	require.NotNil(t, flow.Analysis())
	assert.Equal(t, "ball", flow.Analysis().Transcript)

	require.NoError(t, flow.Score(ctx, "success", ""))
	assert.Equal(t, SpeechIdle, flow.Phase())
	require.Equal(t, api.ID("st2"), flow.Current().TrialID)
	assert.Nil(t, flow.Analysis(), "analysis does not leak across trials")

	// Trial 2 completes the session.
	require.NoError(t, flow.Record())
	require.NoError(t, flow.StopAndUpload(ctx))
	require.NoError(t, flow.Score(ctx, "partial", "close"))

	assert.Equal(t, SpeechSessionDone, flow.Phase())
	require.NotNil(t, flow.Summary())
	assert.Equal(t, 2, flow.Summary().Completed)

	require.Len(t, f.scores, 2)
	assert.Equal(t, "success", f.scores[0].Score)
	assert.Equal(t, "partial", f.scores[1].Score)
	assert.Equal(t, "close", f.scores[1].Notes)
	assert.Equal(t, 2, f.uploads)
}

func TestSpeechFlow_StartRequiresChild(t *testing.T) {
	flow := newTestFlow(&fakeSpeechAPI{})
	err := flow.Start(context.Background(), "", "", 2)
	assert.ErrorIs(t, err, ErrNoChildSelected)
}

func TestSpeechFlow_StartWithZeroTrialsFinishes(t *testing.T) {
	f := &fakeSpeechAPI{
		startResp: speechStart(),
		summary:   &api.Summary{SessionID: "sp1", TotalTrials: 0},
	}
	flow := newTestFlow(f)

	require.NoError(t, flow.Start(context.Background(), "child-1", "", 0))
	assert.Equal(t, SpeechSessionDone, flow.Phase())
	assert.Nil(t, flow.Current())
}

func TestSpeechFlow_UploadFailureReArmsTrial(t *testing.T) {
	f := &fakeSpeechAPI{
		startResp: speechStart("say ball"),
		uploadErr: errors.New("broken pipe"),
	}
	flow := newTestFlow(f)
	ctx := context.Background()

	require.NoError(t, flow.Start(ctx, "child-1", "", 1))
	require.NoError(t, flow.Record())
	require.Error(t, flow.StopAndUpload(ctx))

	// Another take is possible for the same trial.
	assert.Equal(t, SpeechIdle, flow.Phase())
	assert.Equal(t, api.ID("st1"), flow.Current().TrialID)
	assert.Contains(t, flow.Status(), "upload failed")
	assert.True(t, flow.CanRecord())
}

func TestSpeechFlow_ExhaustedAnalysisStillScorable(t *testing.T) {
	f := &fakeSpeechAPI{startResp: speechStart("say ball")} // analysis never finishes
	flow := newTestFlow(f)
	ctx := context.Background()

	require.NoError(t, flow.Start(ctx, "child-1", "", 1))
	require.NoError(t, flow.Record())
	require.NoError(t, flow.StopAndUpload(ctx))

	assert.Equal(t, SpeechAwaitingScore, flow.Phase())
	assert.Nil(t, flow.Analysis())
	assert.Contains(t, flow.Status(), "still processing")
}

func TestSpeechFlow_ScoreOutOfPhaseRejected(t *testing.T) {
	f := &fakeSpeechAPI{startResp: speechStart("say ball")}
	flow := newTestFlow(f)
	ctx := context.Background()

	require.NoError(t, flow.Start(ctx, "child-1", "", 1))
	assert.Error(t, flow.Score(ctx, "success", ""), "scoring before upload must be rejected")
	assert.Error(t, flow.StopAndUpload(ctx), "stop without record must be rejected")
}

// blockingSpeechAPI parks UploadAudio until released, signalling entry so a
// test can act while the upload is in flight.
type blockingSpeechAPI struct {
	*fakeSpeechAPI
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSpeechAPI) UploadAudio(ctx context.Context, trialID api.ID, blob []byte, durationMS int) (*api.UploadResponse, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.fakeSpeechAPI.UploadAudio(ctx, trialID, blob, durationMS)
}

func TestSpeechFlow_PhaseResponsiveDuringUpload(t *testing.T) {
	base := &fakeSpeechAPI{
		startResp: speechStart("say ball"),
		analyses: []analysisStep{
			{analysis: &api.Analysis{ProcessingStatus: api.AnalysisDone}},
		},
	}
	f := &blockingSpeechAPI{fakeSpeechAPI: base, entered: make(chan struct{}), release: make(chan struct{})}
	flow := NewSpeechFlow(f, &fakeRecorder{}, NoopNarrator{}, nil)
	flow.pollInterval = time.Millisecond
	flow.pollAttempts = 3
	ctx := context.Background()

	require.NoError(t, flow.Start(ctx, "child-1", "", 1))
	require.NoError(t, flow.Record())

	done := make(chan struct{})
	go func() {
		_ = flow.StopAndUpload(ctx)
		close(done)
	}()
	<-f.entered

	// The upload is on the wire; the render path must still see the phase.
	phases := make(chan SpeechPhase, 1)
	go func() { phases <- flow.Phase() }()
	select {
	case p := <-phases:
		assert.Equal(t, SpeechUploading, p)
	case <-time.After(time.Second):
		t.Fatal("Phase blocked while the upload was in flight")
	}

	close(f.release)
	<-done
	assert.Equal(t, SpeechAwaitingScore, flow.Phase())
}

func TestSpeechFlow_PhaseReadableWhilePolling(t *testing.T) {
	f := &fakeSpeechAPI{startResp: speechStart("say ball")} // analysis never finishes
	flow := NewSpeechFlow(f, &fakeRecorder{}, NoopNarrator{}, nil)
	flow.pollInterval = 20 * time.Millisecond
	flow.pollAttempts = 10
	ctx := context.Background()

	require.NoError(t, flow.Start(ctx, "child-1", "", 1))
	require.NoError(t, flow.Record())

	done := make(chan struct{})
	go func() {
		_ = flow.StopAndUpload(ctx)
		close(done)
	}()

	// While the bounded poll runs, Phase must stay readable and show the
	// analyzing state instead of blocking until the poll ends.
	sawAnalyzing := false
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if flow.Phase() == SpeechAnalyzing {
			sawAnalyzing = true
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.True(t, sawAnalyzing, "analyzing phase never became observable during the poll")
	<-done
	assert.Equal(t, SpeechAwaitingScore, flow.Phase())
}

func TestSpeechFlow_ResetDuringUploadDropsReply(t *testing.T) {
	base := &fakeSpeechAPI{startResp: speechStart("say ball")}
	f := &blockingSpeechAPI{fakeSpeechAPI: base, entered: make(chan struct{}), release: make(chan struct{})}
	flow := NewSpeechFlow(f, &fakeRecorder{}, NoopNarrator{}, nil)
	flow.pollInterval = time.Millisecond
	flow.pollAttempts = 3
	ctx := context.Background()

	require.NoError(t, flow.Start(ctx, "child-1", "", 1))
	require.NoError(t, flow.Record())

	done := make(chan struct{})
	go func() {
		_ = flow.StopAndUpload(ctx)
		close(done)
	}()
	<-f.entered
	flow.Reset()
	close(f.release)
	<-done

	assert.Equal(t, SpeechIdle, flow.Phase())
	assert.Nil(t, flow.Current())
	assert.Empty(t, flow.Status())
}

func TestSpeechFlow_Reset(t *testing.T) {
	f := &fakeSpeechAPI{startResp: speechStart("say ball")}
	flow := newTestFlow(f)
	ctx := context.Background()

	require.NoError(t, flow.Start(ctx, "child-1", "", 1))
	require.NoError(t, flow.Record())
	flow.Reset()

	assert.Equal(t, SpeechIdle, flow.Phase())
	assert.Nil(t, flow.Current())
	assert.Empty(t, flow.Status())
	_, total := flow.TrialNumber()
	assert.Equal(t, 0, total)
}
