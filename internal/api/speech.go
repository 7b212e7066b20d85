package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// Speech therapy endpoints. Unlike the generic games, a speech trial is
// scored in two steps: the recording is uploaded and analysed
// asynchronously, then the therapist files the final score.

type AnalysisStatus string

const (
	AnalysisQueued  AnalysisStatus = "queued"
	AnalysisRunning AnalysisStatus = "running"
	AnalysisDone    AnalysisStatus = "done"
	AnalysisFailed  AnalysisStatus = "failed"
)

type SpeechStartRequest struct {
	ChildID       ID  `json:"child_id"`
	ActivityID    ID  `json:"activity_id"`
	TrialsPlanned int `json:"trials_planned"`
	PromptLevel   int `json:"prompt_level,omitempty"`
}

type SpeechTrial struct {
	TrialID     ID     `json:"trial_id"`
	TrialNumber int    `json:"trial_number"`
	Prompt      string `json:"prompt"`
	TargetText  string `json:"target_text"`
	Status      string `json:"status"`
}

type SpeechStartResponse struct {
	SessionID     ID            `json:"session_id"`
	TrialsPlanned int           `json:"trials_planned"`
	Trials        []SpeechTrial `json:"trials"`
	PromptLevel   int           `json:"prompt_level"`
}

type UploadResponse struct {
	AnalysisID       ID             `json:"analysis_id"`
	ProcessingStatus AnalysisStatus `json:"processing_status"`
	Message          string         `json:"message"`
}

type Analysis struct {
	ProcessingStatus AnalysisStatus `json:"processing_status"`
	Transcript       string         `json:"transcript"`
	Similarity       float64        `json:"similarity"`
	Feedback         string         `json:"feedback"`
	ErrorMessage     string         `json:"error_message"`
}

type analysisReply struct {
	Analysis Analysis `json:"analysis"`
}

type ScoreRequest struct {
	Score string `json:"score"` // success | partial | fail
	Notes string `json:"notes,omitempty"`
}

type ScoreResponse struct {
	TrialID         ID     `json:"trial_id"`
	Score           string `json:"score"`
	SessionComplete bool   `json:"session_complete"`
	RemainingTrials int    `json:"remaining_trials"`
}

// SpeechActivity is one selectable speech exercise from the catalog.
type SpeechActivity struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Difficulty  int    `json:"difficulty"`
}

func (c *Client) ListSpeechActivities(ctx context.Context) ([]SpeechActivity, error) {
	var out []SpeechActivity
	if err := c.do(ctx, http.MethodGet, "api/v1/speech/activities", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) StartSpeechSession(ctx context.Context, req SpeechStartRequest) (*SpeechStartResponse, error) {
	var out SpeechStartResponse
	if err := c.do(ctx, http.MethodPost, "api/v1/speech/sessions/start", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadAudio posts the recorded blob for a trial and enqueues analysis.
func (c *Client) UploadAudio(ctx context.Context, trialID ID, blob []byte, durationMS int) (*UploadResponse, error) {
	var out UploadResponse
	path := fmt.Sprintf("api/v1/speech/trials/%s/upload-audio", trialID)
	extra := map[string]string{"duration_ms": strconv.Itoa(durationMS)}
	if err := c.upload(ctx, path, "file", "recording.wav", blob, extra, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TrialAnalysis(ctx context.Context, trialID ID) (*Analysis, error) {
	var out analysisReply
	path := fmt.Sprintf("api/v1/speech/trials/%s/analysis", trialID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out.Analysis, nil
}

func (c *Client) ScoreTrial(ctx context.Context, trialID ID, req ScoreRequest) (*ScoreResponse, error) {
	var out ScoreResponse
	path := fmt.Sprintf("api/v1/speech/trials/%s/score", trialID)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SpeechSummary(ctx context.Context, sessionID ID) (*Summary, error) {
	var out Summary
	path := fmt.Sprintf("api/v1/speech/sessions/%s/summary", sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
