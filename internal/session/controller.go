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

// State is the controller's lifecycle position. Completed is terminal until
// an explicit Reset.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateAwaitingResponse
	StateSubmitting
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

// ErrNoChildSelected is the fast local validation failure for Start.
var ErrNoChildSelected = errors.New("select a child before starting a session")

// GameAPI is the slice of the transport the controller drives.
type GameAPI interface {
	StartSession(ctx context.Context, game string, req api.StartSessionRequest) (*api.StartSessionResponse, error)
	NextTrial(ctx context.Context, game string, sessionID api.ID) (*api.RawTrial, error)
	SubmitTrial(ctx context.Context, game string, trialID api.ID, req api.SubmitRequest) (*api.SubmitResponse, error)
	SessionSummary(ctx context.Context, game string, sessionID api.ID) (*api.Summary, error)
	EndSession(ctx context.Context, sessionID api.ID) error
}

// Controller owns one game session at a time and drives the
// start → trial → submit → next/complete cycle. All mutation goes through
// its methods; the TUI reads snapshots via View.
type Controller struct {
	api      GameAPI
	narrator Narrator
	log      *zap.Logger
	now      func() time.Time

	// mu guards the fields below. It is never held across a transport
	// call: operations mark their in-flight state, release the lock for
	// the call, then re-acquire and apply the result gated on the epoch.
	// View and the other accessors therefore stay responsive while a
	// request is on the wire.
	mu sync.Mutex

	game string

	state     State
	sessionID api.ID
	trial     *Trial
	summary   *api.Summary
	feedback  string
	status    string

	shownAt  time.Time
	resolved bool // current trial already submitted (timeout or click, whichever won)
	epoch    int  // bumped on Reset/Start so stale replies are dropped
}

// NewController builds a controller for one game code. narrator may be nil.
func NewController(gameAPI GameAPI, game string, narrator Narrator, log *zap.Logger) *Controller {
	if narrator == nil {
		narrator = NoopNarrator{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		api:      gameAPI,
		narrator: narrator,
		log:      log,
		now:      time.Now,
		game:     game,
		state:    StateIdle,
	}
}

// View is an immutable snapshot for rendering.
type View struct {
	State     State
	SessionID api.ID
	Trial     *Trial
	Summary   *api.Summary
	Feedback  string
	Status    string
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		State:     c.state,
		SessionID: c.sessionID,
		Trial:     c.trial,
		Summary:   c.summary,
		Feedback:  c.feedback,
		Status:    c.status,
	}
}

func (c *Controller) State() State          { return c.View().State }
func (c *Controller) Trial() *Trial         { return c.View().Trial }
func (c *Controller) Summary() *api.Summary { return c.View().Summary }
func (c *Controller) SessionID() api.ID     { return c.View().SessionID }
func (c *Controller) Feedback() string      { return c.View().Feedback }
func (c *Controller) Status() string        { return c.View().Status }
func (c *Controller) Game() string          { return c.game }

func (c *Controller) canSubmitLocked() bool {
	return c.state == StateAwaitingResponse && c.trial != nil && !c.resolved
}

// Start creates a session for childID and installs the first trial. The
// three server outcomes are handled distinctly: an inline summary (zero
// eligible trials), a sentinel first trial, or a normal first trial. On
// transport failure the controller returns to Idle with nothing retained.
func (c *Controller) Start(ctx context.Context, childID api.ID, trials, timeLimitMS int) error {
	c.mu.Lock()
	if childID == "" {
		c.status = ErrNoChildSelected.Error()
		c.mu.Unlock()
		return ErrNoChildSelected
	}
	if c.state != StateIdle {
		c.resetLocked()
	}
	c.state = StateStarting
	c.status = ""
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	resp, err := c.api.StartSession(ctx, c.game, api.StartSessionRequest{
		ChildID:       childID,
		TrialsPlanned: trials,
		TimeLimitMS:   timeLimitMS,
	})

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil // reset while in flight
	}
	if err != nil {
		c.state = StateIdle
		c.status = fmt.Sprintf("could not start session: %v", err)
		c.mu.Unlock()
		c.log.Warn("session start failed", zap.String("game", c.game), zap.Error(err))
		return err
	}

	c.sessionID = resp.Session.SessionID
	c.log.Info("session started",
		zap.String("game", c.game),
		zap.String("session_id", c.sessionID.String()),
		zap.Int("trials_planned", resp.Session.TrialsPlanned),
	)

	// Zero eligible trials: the start reply already carries the summary.
	if resp.Summary != nil {
		c.completeLocked(resp.Summary)
		c.mu.Unlock()
		return nil
	}

	trial, sentinel := Normalize(resp.FirstTrial)
	switch {
	case sentinel != nil && sentinel.Summary != nil:
		c.completeLocked(sentinel.Summary)
		c.mu.Unlock()
		return nil
	case sentinel != nil:
		c.mu.Unlock()
		return c.fetchSummary(ctx, epoch)
	case trial != nil:
		c.installLocked(trial)
		c.mu.Unlock()
		return nil
	default:
		// No first trial and no summary; treat like an exhausted session.
		c.mu.Unlock()
		return c.fetchSummary(ctx, epoch)
	}
}

// CanSubmit gates every submission attempt: a current trial must exist, it
// must not have been resolved yet, and no submission may be in flight.
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canSubmitLocked()
}

// Submit sends the collected response value for the current trial.
func (c *Controller) Submit(ctx context.Context, value string) error {
	return c.submit(ctx, "", value, false)
}

// SubmitFor is Submit pinned to the trial the response was collected for.
// If that trial is no longer current (a timeout or an earlier click already
// resolved it), the call is a no-op instead of hitting the next trial.
func (c *Controller) SubmitFor(ctx context.Context, trialID api.ID, value string) error {
	return c.submit(ctx, trialID, value, false)
}

// SubmitTimeout records the expiry of the trial's time window. It funnels
// through the same path as Submit, so feedback, next-trial and completion
// handling are identical. If a manual submission already won, it is a no-op.
func (c *Controller) SubmitTimeout(ctx context.Context) error {
	return c.submit(ctx, "", "", true)
}

// SubmitTimeoutFor is SubmitTimeout pinned to one trial, for externally
// scheduled timers that may fire after the trial has moved on.
func (c *Controller) SubmitTimeoutFor(ctx context.Context, trialID api.ID) error {
	return c.submit(ctx, trialID, "", true)
}

func (c *Controller) submit(ctx context.Context, trialID api.ID, value string, forced bool) error {
	c.mu.Lock()
	if !c.canSubmitLocked() {
		c.mu.Unlock()
		return nil
	}
	if trialID != "" && c.trial.ID != trialID {
		c.mu.Unlock()
		return nil
	}
	trial := c.trial
	elapsed := c.now().Sub(c.shownAt)
	timedOut := forced || elapsed > trial.TimeLimit

	// Resolving the trial before the lock drops means a racing second
	// submission sees canSubmitLocked false and no-ops.
	c.resolved = true
	c.state = StateSubmitting
	epoch := c.epoch
	c.mu.Unlock()

	resp, err := c.api.SubmitTrial(ctx, c.game, trial.ID, api.SubmitRequest{
		Clicked:        value,
		ResponseTimeMS: int(elapsed / time.Millisecond),
		TimedOut:       timedOut,
	})

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			// The trial is gone server-side; retrying the same value
			// cannot succeed, so drop the session.
			c.resetLocked()
			c.status = fmt.Sprintf("trial no longer exists: %v", err)
			c.mu.Unlock()
			return err
		}
		// Keep the same trial current so the user can retry.
		c.resolved = false
		c.state = StateAwaitingResponse
		c.status = fmt.Sprintf("submit failed: %v", err)
		c.mu.Unlock()
		c.log.Warn("submit failed", zap.String("trial_id", trial.ID.String()), zap.Error(err))
		return err
	}

	c.feedback = resp.Feedback
	c.log.Info("trial submitted",
		zap.String("trial_id", trial.ID.String()),
		zap.Bool("success", resp.Success),
		zap.Bool("timed_out", timedOut),
		zap.Duration("elapsed", elapsed),
	)

	if resp.SessionCompleted {
		if resp.Summary != nil {
			c.completeLocked(resp.Summary)
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
		return c.fetchSummary(ctx, epoch)
	}
	c.mu.Unlock()
	return c.advance(ctx, epoch)
}

// advance fetches the next trial. Called without the lock held. The fetch
// may come back as a sentinel when the session ended exactly on this
// boundary.
func (c *Controller) advance(ctx context.Context, epoch int) error {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()

	raw, err := c.api.NextTrial(ctx, c.game, sessionID)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.state = StateIdle
		c.trial = nil
		c.status = fmt.Sprintf("could not fetch next trial: %v", err)
		c.mu.Unlock()
		return err
	}
	trial, sentinel := Normalize(raw)
	if sentinel != nil {
		if sentinel.Summary != nil {
			c.completeLocked(sentinel.Summary)
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
		return c.fetchSummary(ctx, epoch)
	}
	c.installLocked(trial)
	c.mu.Unlock()
	return nil
}

// RequestSummaryEarly abandons the trial flow and jumps to the summary, the
// "give up and show results" affordance. Requires an existing session.
func (c *Controller) RequestSummaryEarly(ctx context.Context) error {
	c.mu.Lock()
	if c.sessionID == "" {
		c.status = "no session in progress"
		c.mu.Unlock()
		return errors.New("no session in progress")
	}
	c.trial = nil
	c.narrator.Stop()
	epoch := c.epoch
	c.mu.Unlock()
	return c.fetchSummary(ctx, epoch)
}

// Abandon ends the session server-side and resets. Best effort: a failed
// end call still resets local state.
func (c *Controller) Abandon(ctx context.Context) error {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()

	var err error
	if sessionID != "" {
		err = c.api.EndSession(ctx, sessionID)
	}
	c.Reset()
	return err
}

// Reset returns to Idle from any state, discarding session, trial, summary
// and narration. Safe to call at any time, including mid-flight: in-flight
// replies from before the reset are dropped by the epoch check.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Controller) resetLocked() {
	c.epoch++
	c.state = StateIdle
	c.sessionID = ""
	c.trial = nil
	c.summary = nil
	c.feedback = ""
	c.status = ""
	c.resolved = false
	c.narrator.Stop()
}

func (c *Controller) installLocked(t *Trial) {
	c.trial = t
	c.shownAt = c.now()
	c.resolved = false
	c.state = StateAwaitingResponse
	c.narrator.Speak(t.NarrationText())
	c.log.Debug("trial installed",
		zap.String("trial_id", t.ID.String()),
		zap.Int("level", t.Level),
		zap.Duration("time_limit", t.TimeLimit),
	)
}

// fetchSummary is called without the lock held.
func (c *Controller) fetchSummary(ctx context.Context, epoch int) error {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()

	sum, err := c.api.SessionSummary(ctx, c.game, sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return nil
	}
	if err != nil {
		c.state = StateIdle
		c.trial = nil
		c.status = fmt.Sprintf("could not fetch summary: %v", err)
		return err
	}
	c.completeLocked(sum)
	return nil
}

func (c *Controller) completeLocked(sum *api.Summary) {
	c.summary = sum
	c.trial = nil
	c.state = StateCompleted
	c.narrator.Stop()
	c.log.Info("session completed",
		zap.String("session_id", c.sessionID.String()),
		zap.Int("correct", sum.Correct),
		zap.Int("completed", sum.Completed),
	)
}
