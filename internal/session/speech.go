package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"therapyctl/internal/api"
)

// SpeechPhase is the per-trial position in the bifurcated speech lifecycle.
// Upload and scoring are separate, strictly sequential steps: analysis only
// informs the therapist, the score call is what completes the trial.
type SpeechPhase int

const (
	SpeechIdle SpeechPhase = iota
	SpeechRecording
	SpeechUploading
	SpeechAnalyzing
	SpeechAwaitingScore
	SpeechScored
	SpeechSessionDone
)

func (p SpeechPhase) String() string {
	switch p {
	case SpeechIdle:
		return "idle"
	case SpeechRecording:
		return "recording"
	case SpeechUploading:
		return "uploading"
	case SpeechAnalyzing:
		return "analyzing"
	case SpeechAwaitingScore:
		return "awaiting_score"
	case SpeechScored:
		return "scored"
	case SpeechSessionDone:
		return "session_done"
	}
	return "unknown"
}

// SpeechSessionAPI extends the trial-level SpeechAPI with session calls.
type SpeechSessionAPI interface {
	SpeechAPI
	StartSpeechSession(ctx context.Context, req api.SpeechStartRequest) (*api.SpeechStartResponse, error)
	SpeechSummary(ctx context.Context, sessionID api.ID) (*api.Summary, error)
}

// SpeechFlow drives one speech-therapy session: the backend plans all trials
// up front, and each trial cycles record → upload → analyze → score.
type SpeechFlow struct {
	api      SpeechSessionAPI
	recorder Recorder
	narrator Narrator
	log      *zap.Logger

	pollInterval time.Duration
	pollAttempts int

	// mu guards the fields below and is never held across a transport
	// call or the analysis poll; accessors stay responsive while an
	// upload or poll runs. Stale completions are dropped by the epoch.
	mu        sync.Mutex
	phase     SpeechPhase
	sessionID api.ID
	trials    []api.SpeechTrial
	index     int
	analysis  *api.Analysis
	summary   *api.Summary
	status    string
	epoch     int
}

func NewSpeechFlow(speechAPI SpeechSessionAPI, recorder Recorder, narrator Narrator, log *zap.Logger) *SpeechFlow {
	if recorder == nil {
		recorder = NoopRecorder{}
	}
	if narrator == nil {
		narrator = NoopNarrator{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SpeechFlow{
		api:          speechAPI,
		recorder:     recorder,
		narrator:     narrator,
		log:          log,
		pollInterval: defaultPollInterval,
		pollAttempts: defaultPollAttempts,
		phase:        SpeechIdle,
	}
}

func (f *SpeechFlow) Phase() SpeechPhase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

func (f *SpeechFlow) Status() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *SpeechFlow) Summary() *api.Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summary
}

func (f *SpeechFlow) Analysis() *api.Analysis {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analysis
}

// Current returns the trial in play, or nil after the session finished.
func (f *SpeechFlow) Current() *api.SpeechTrial {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentLocked()
}

func (f *SpeechFlow) currentLocked() *api.SpeechTrial {
	if f.index >= len(f.trials) {
		return nil
	}
	t := f.trials[f.index]
	return &t
}

func (f *SpeechFlow) TrialNumber() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.index + 1, len(f.trials)
}

func (f *SpeechFlow) CanRecord() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recorder.Supported() && f.phase == SpeechIdle && f.currentLocked() != nil
}

// Start creates the session and installs the first planned trial.
func (f *SpeechFlow) Start(ctx context.Context, childID, activityID api.ID, trials int) error {
	f.mu.Lock()
	if childID == "" {
		f.status = ErrNoChildSelected.Error()
		f.mu.Unlock()
		return ErrNoChildSelected
	}
	f.epoch++
	epoch := f.epoch
	f.phase = SpeechIdle
	f.status = ""
	f.mu.Unlock()

	resp, err := f.api.StartSpeechSession(ctx, api.SpeechStartRequest{
		ChildID:       childID,
		ActivityID:    activityID,
		TrialsPlanned: trials,
	})

	f.mu.Lock()
	if f.epoch != epoch {
		f.mu.Unlock()
		return nil
	}
	if err != nil {
		f.status = fmt.Sprintf("could not start speech session: %v", err)
		f.mu.Unlock()
		return err
	}
	f.sessionID = resp.SessionID
	f.trials = resp.Trials
	f.index = 0
	if len(f.trials) == 0 {
		f.mu.Unlock()
		return f.finish(ctx, epoch)
	}
	f.narrator.Speak(f.trials[0].Prompt)
	f.log.Info("speech session started",
		zap.String("session_id", f.sessionID.String()),
		zap.Int("trials", len(f.trials)),
	)
	f.mu.Unlock()
	return nil
}

// Record begins microphone capture for the current trial.
func (f *SpeechFlow) Record() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase != SpeechIdle || f.currentLocked() == nil {
		return fmt.Errorf("cannot record in phase %s", f.phase)
	}
	if !f.recorder.Supported() {
		// Degrade silently: the view hides the affordance, this is a
		// guard against programmatic misuse only.
		return errors.New("audio capture unsupported")
	}
	if err := f.recorder.Start(); err != nil {
		f.status = fmt.Sprintf("recording failed: %v", err)
		return err
	}
	f.phase = SpeechRecording
	return nil
}

// StopAndUpload ends capture, uploads the blob, then waits for analysis via
// the bounded poller. On success the flow parks in AwaitingScore.
func (f *SpeechFlow) StopAndUpload(ctx context.Context) error {
	f.mu.Lock()
	if f.phase != SpeechRecording {
		f.mu.Unlock()
		return ErrNotRecording
	}
	trial := f.currentLocked()
	blob, duration, err := f.recorder.Stop()
	if err != nil {
		f.phase = SpeechIdle
		f.status = fmt.Sprintf("recording failed: %v", err)
		f.mu.Unlock()
		return err
	}
	f.phase = SpeechUploading
	epoch := f.epoch
	interval, attempts := f.pollInterval, f.pollAttempts
	f.mu.Unlock()

	if _, err := f.api.UploadAudio(ctx, trial.TrialID, blob, int(duration/time.Millisecond)); err != nil {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.epoch != epoch {
			return nil
		}
		// The recording is lost but the trial is not: re-arm for another take.
		f.phase = SpeechIdle
		f.status = fmt.Sprintf("upload failed: %v", err)
		return err
	}

	f.mu.Lock()
	if f.epoch != epoch {
		f.mu.Unlock()
		return nil
	}
	f.phase = SpeechAnalyzing
	f.mu.Unlock()

	outcome, analysis := PollAnalysis(ctx, f.api, trial.TrialID, interval, attempts)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch || outcome == PollCancelled {
		return nil
	}
	switch outcome {
	case PollDone:
		f.analysis = analysis
	case PollFailed:
		f.analysis = analysis
		f.status = "analysis failed; score manually"
	case PollExhausted:
		f.analysis = nil
		f.status = "analysis still processing; score manually or re-check"
	}
	// Scoring stays available regardless: therapist judgment, not the
	// pipeline, decides the trial.
	f.phase = SpeechAwaitingScore
	return nil
}

// Score files the therapist's judgment for the current trial and advances
// to the next planned trial, or finishes the session after the last one.
func (f *SpeechFlow) Score(ctx context.Context, score, notes string) error {
	f.mu.Lock()
	if f.phase != SpeechAwaitingScore {
		f.mu.Unlock()
		return fmt.Errorf("cannot score in phase %s", f.phase)
	}
	trial := f.currentLocked()
	f.phase = SpeechScored
	epoch := f.epoch
	f.mu.Unlock()

	resp, err := f.api.ScoreTrial(ctx, trial.TrialID, api.ScoreRequest{Score: score, Notes: notes})

	f.mu.Lock()
	if f.epoch != epoch {
		f.mu.Unlock()
		return nil
	}
	if err != nil {
		f.phase = SpeechAwaitingScore
		f.status = fmt.Sprintf("scoring failed: %v", err)
		f.mu.Unlock()
		return err
	}
	f.log.Info("speech trial scored",
		zap.String("trial_id", trial.TrialID.String()),
		zap.String("score", resp.Score),
	)

	f.analysis = nil
	f.status = ""
	f.index++
	if resp.SessionComplete || f.currentLocked() == nil {
		f.mu.Unlock()
		return f.finish(ctx, epoch)
	}
	f.phase = SpeechIdle
	f.narrator.Speak(f.currentLocked().Prompt)
	f.mu.Unlock()
	return nil
}

// finish is called without the lock held.
func (f *SpeechFlow) finish(ctx context.Context, epoch int) error {
	f.mu.Lock()
	sessionID := f.sessionID
	f.mu.Unlock()

	sum, err := f.api.SpeechSummary(ctx, sessionID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		return nil
	}
	if err != nil {
		f.status = fmt.Sprintf("could not fetch summary: %v", err)
	} else {
		f.summary = sum
	}
	f.phase = SpeechSessionDone
	f.narrator.Stop()
	return err
}

// Reset discards all session state, cancelling any pending recording.
func (f *SpeechFlow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.epoch++
	if f.phase == SpeechRecording {
		_, _, _ = f.recorder.Stop()
	}
	f.phase = SpeechIdle
	f.sessionID = ""
	f.trials = nil
	f.index = 0
	f.analysis = nil
	f.summary = nil
	f.status = ""
	f.narrator.Stop()
}
