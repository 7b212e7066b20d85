package session

import (
	"context"
	"time"

	"therapyctl/internal/api"
)

// PollOutcome is the discriminated result of waiting for an analysis.
type PollOutcome int

const (
	// PollDone: processing finished and the analysis is usable.
	PollDone PollOutcome = iota
	// PollFailed: the pipeline reported a failure for this recording.
	PollFailed
	// PollExhausted: still pending after the attempt budget; the caller
	// may offer a manual re-check but must not keep polling.
	PollExhausted
	// PollCancelled: the surrounding view was torn down or a new session
	// started; no state may be touched from this result.
	PollCancelled
)

// SpeechAPI is the analysis slice of the transport used by the poller and
// the speech flow.
type SpeechAPI interface {
	UploadAudio(ctx context.Context, trialID api.ID, blob []byte, durationMS int) (*api.UploadResponse, error)
	TrialAnalysis(ctx context.Context, trialID api.ID) (*api.Analysis, error)
	ScoreTrial(ctx context.Context, trialID api.ID, req api.ScoreRequest) (*api.ScoreResponse, error)
}

const (
	defaultPollInterval = 2 * time.Second
	defaultPollAttempts = 15
)

// PollAnalysis checks the trial's analysis at a fixed interval until it is
// done, failed, the attempt budget runs out, or ctx is cancelled. Transport
// errors count against the attempt budget rather than aborting, since a
// pending analysis briefly 404s before the first record is written.
func PollAnalysis(ctx context.Context, speech SpeechAPI, trialID api.ID, interval time.Duration, maxAttempts int) (PollOutcome, *api.Analysis) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultPollAttempts
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		analysis, err := speech.TrialAnalysis(ctx, trialID)
		if err == nil {
			switch analysis.ProcessingStatus {
			case api.AnalysisDone:
				return PollDone, analysis
			case api.AnalysisFailed:
				return PollFailed, analysis
			}
		} else if ctx.Err() != nil {
			return PollCancelled, nil
		}

		select {
		case <-ctx.Done():
			return PollCancelled, nil
		case <-ticker.C:
		}
	}
	return PollExhausted, nil
}
