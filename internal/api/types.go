package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an opaque server identifier. The backend emits numeric ids today but
// the contract treats them as opaque tokens, so we accept numbers or strings
// on the wire and carry them as strings.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	// Round-trip numeric ids back as numbers so the backend's integer
	// path parameters and serializers keep working.
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// RawOption is one selectable option as delivered by the server. Plugins emit
// either bare strings or {id,label,...} objects depending on the game.
type RawOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Image string `json:"image,omitempty"`
}

func (o *RawOption) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		o.ID = s
		o.Label = s
		return nil
	}
	type plain RawOption
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = RawOption(p)
	return nil
}

// RawTrial is the untyped trial payload from next/start. A populated Detail
// field marks a sentinel ("No more planned trials", "Session already
// completed") rather than a playable trial.
type RawTrial struct {
	ID          ID              `json:"trial_id"`
	Game        string          `json:"game"`
	TrialType   string          `json:"trial_type"`
	Level       int             `json:"level"`
	Prompt      string          `json:"prompt"`
	PromptAudio string          `json:"prompt_audio"`
	Options     []RawOption     `json:"options"`
	Highlight   string          `json:"highlight"`
	Target      string          `json:"target"`
	TimeLimitMS int             `json:"time_limit_ms"`
	AIHint      string          `json:"ai_hint"`
	AIReason    string          `json:"ai_reason"`
	Extra       json.RawMessage `json:"extra"`

	Detail  string   `json:"detail"`
	Summary *Summary `json:"summary"`
}

// Summary is the terminal aggregate for a session. Accuracy is
// server-computed and rendered verbatim; the client never recomputes it.
type Summary struct {
	SessionID     ID      `json:"session_id"`
	Game          string  `json:"game"`
	Status        string  `json:"status"`
	TotalTrials   int     `json:"total_trials"`
	Completed     int     `json:"completed_trials"`
	Correct       int     `json:"correct"`
	Accuracy      float64 `json:"accuracy"`
	AvgResponseMS *int    `json:"avg_response_time_ms"`
	CurrentLevel  int     `json:"current_level"`
	Suggestion    string  `json:"suggestion"`
}

type StartSessionRequest struct {
	ChildID       ID     `json:"child_id"`
	TrialsPlanned int    `json:"trials_planned,omitempty"`
	TimeLimitMS   int    `json:"time_limit_ms,omitempty"`
	SessionTitle  string `json:"session_title,omitempty"`
}

type SessionInfo struct {
	SessionID     ID  `json:"session_id"`
	TrialsPlanned int `json:"trials_planned"`
	TimeLimitMS   int `json:"time_limit_ms"`
}

type StartSessionResponse struct {
	Session    SessionInfo `json:"session"`
	FirstTrial *RawTrial   `json:"first_trial"`
	Summary    *Summary    `json:"summary"`
}

type SubmitRequest struct {
	Clicked        string `json:"clicked"`
	ResponseTimeMS int    `json:"response_time_ms"`
	TimedOut       bool   `json:"timed_out"`
}

type SubmitResponse struct {
	TrialID          ID       `json:"trial_id"`
	Success          bool     `json:"success"`
	Score            int      `json:"score"`
	Feedback         string   `json:"feedback"`
	AIRecommendation string   `json:"ai_recommendation"`
	AIReason         string   `json:"ai_reason"`
	SessionCompleted bool     `json:"session_completed"`
	Summary          *Summary `json:"summary"`
}

// Child is one entry in the therapist's roster.
type Child struct {
	ID        ID     `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Nickname  string `json:"nickname"`
	AgeYears  int    `json:"age_years"`
}

type DashboardStats struct {
	TotalSessions    int     `json:"total_sessions"`
	SessionsThisWeek int     `json:"sessions_this_week"`
	ActiveChildren   int     `json:"active_children"`
	AvgAccuracy      float64 `json:"avg_accuracy"`
}

type SessionHistoryEntry struct {
	SessionID ID     `json:"session_id"`
	ChildID   ID     `json:"child_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Date      string `json:"session_date"`
	Correct   int    `json:"correct"`
	Total     int    `json:"total_trials"`
}

type ChildProgress struct {
	ChildID  ID                    `json:"child_id"`
	Sessions []SessionHistoryEntry `json:"sessions"`
	Trend    []float64             `json:"accuracy_trend"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type Account struct {
	ID       ID       `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}
