package session

import (
	"os/exec"
	"sync"
)

// Narrator speaks trial prompts out loud. It is strictly best-effort: every
// implementation swallows platform errors, and absence of any speech
// capability degrades to the no-op.
type Narrator interface {
	Speak(text string)
	Stop()
}

// NoopNarrator is used when narration is disabled or unsupported.
type NoopNarrator struct{}

func (NoopNarrator) Speak(string) {}
func (NoopNarrator) Stop()        {}

// speechCommands are tried in order when detecting a speech binary.
var speechCommands = [][]string{
	{"say"},
	{"espeak"},
	{"spd-say"},
	{"flite", "-t"},
}

// DetectNarrator returns a command-backed narrator when a known
// text-to-speech binary is on PATH, and the no-op otherwise.
func DetectNarrator() Narrator {
	for _, cmd := range speechCommands {
		if path, err := exec.LookPath(cmd[0]); err == nil {
			return &CommandNarrator{path: path, args: cmd[1:]}
		}
	}
	return NoopNarrator{}
}

// CommandNarrator shells out to a local text-to-speech binary. A new
// utterance cancels any in-flight one so speech never overlaps.
type CommandNarrator struct {
	path string
	args []string

	mu      sync.Mutex
	current *exec.Cmd
}

func (n *CommandNarrator) Speak(text string) {
	if text == "" {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()

	args := append(append([]string{}, n.args...), text)
	cmd := exec.Command(n.path, args...)
	if err := cmd.Start(); err != nil {
		return
	}
	n.current = cmd
	go func() { _ = cmd.Wait() }()
}

func (n *CommandNarrator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
}

func (n *CommandNarrator) stopLocked() {
	if n.current != nil && n.current.Process != nil {
		_ = n.current.Process.Kill()
	}
	n.current = nil
}
