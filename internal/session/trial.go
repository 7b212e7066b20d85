package session

import (
	"encoding/json"
	"strings"
	"time"

	"therapyctl/internal/api"
)

// DefaultTimeLimit applies when the server omits a trial time limit.
const DefaultTimeLimit = 10 * time.Second

// Option is one selectable answer. Both ID and Label are always populated:
// when the server sends a bare string both carry it, and when one half of an
// object option is missing it falls back to the other.
type Option struct {
	ID    string
	Label string
	Image string
}

// Trial is the canonical, fully-defaulted trial shape every game view
// renders. Rendering code never branches on a missing field.
type Trial struct {
	ID          api.ID
	Game        string
	TrialType   string
	Level       int
	Prompt      string
	PromptAudio string
	Options     []Option
	Highlight   string
	TimeLimit   time.Duration
	AIHint      string
	Extra       json.RawMessage
}

// Sentinel is a trial-shaped "no further trials" reply. It may carry the
// session summary inline; when it does not, the caller fetches it.
type Sentinel struct {
	Detail  string
	Summary *api.Summary
}

// EndOfSession reports whether the detail text is the planned-trials-
// exhausted marker, matched case-insensitively.
func (s *Sentinel) EndOfSession() bool {
	return strings.Contains(strings.ToLower(s.Detail), "no more")
}

// Normalize coerces a raw server payload into exactly one of a playable
// Trial or a terminal Sentinel. A nil payload propagates as (nil, nil).
func Normalize(raw *api.RawTrial) (*Trial, *Sentinel) {
	if raw == nil {
		return nil, nil
	}
	if raw.Detail != "" {
		return nil, &Sentinel{Detail: raw.Detail, Summary: raw.Summary}
	}

	t := &Trial{
		ID:          raw.ID,
		Game:        raw.Game,
		TrialType:   raw.TrialType,
		Level:       raw.Level,
		Prompt:      raw.Prompt,
		PromptAudio: raw.PromptAudio,
		Highlight:   raw.Highlight,
		AIHint:      raw.AIHint,
		Extra:       raw.Extra,
		Options:     make([]Option, 0, len(raw.Options)),
		TimeLimit:   time.Duration(raw.TimeLimitMS) * time.Millisecond,
	}
	if t.Level < 1 {
		t.Level = 1
	}
	if t.TimeLimit <= 0 {
		t.TimeLimit = DefaultTimeLimit
	}
	for _, o := range raw.Options {
		id, label := o.ID, o.Label
		if id == "" {
			id = label
		}
		if label == "" {
			label = id
		}
		if id == "" && label == "" {
			continue
		}
		t.Options = append(t.Options, Option{ID: id, Label: label, Image: o.Image})
	}
	return t, nil
}

// NarrationText is what the narrator should speak for a trial: the dedicated
// narration line when present, the prompt otherwise.
func (t *Trial) NarrationText() string {
	if t.PromptAudio != "" {
		return t.PromptAudio
	}
	return t.Prompt
}
