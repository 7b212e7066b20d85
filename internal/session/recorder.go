package session

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// Recorder captures microphone audio for a speech trial. Missing capture
// capability is not an error condition: the caller checks Supported and
// silently hides the recording affordance.
type Recorder interface {
	Supported() bool
	Start() error
	// Stop ends the capture and returns the recorded blob plus its duration.
	Stop() ([]byte, time.Duration, error)
}

var ErrNotRecording = errors.New("no recording in progress")

// NoopRecorder is used when no capture binary exists.
type NoopRecorder struct{}

func (NoopRecorder) Supported() bool { return false }
func (NoopRecorder) Start() error    { return errors.New("audio capture unsupported") }
func (NoopRecorder) Stop() ([]byte, time.Duration, error) {
	return nil, 0, ErrNotRecording
}

// DetectRecorder returns an arecord/sox-backed recorder when available.
func DetectRecorder() Recorder {
	if path, err := exec.LookPath("arecord"); err == nil {
		return &CommandRecorder{path: path, args: []string{"-f", "cd", "-t", "wav"}}
	}
	if path, err := exec.LookPath("rec"); err == nil {
		return &CommandRecorder{path: path, args: []string{"-t", "wav"}}
	}
	return NoopRecorder{}
}

// CommandRecorder records by running a capture binary writing WAV to a temp
// file until Stop kills it.
type CommandRecorder struct {
	path string
	args []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	file    string
	started time.Time
}

func (r *CommandRecorder) Supported() bool { return true }

func (r *CommandRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return errors.New("recording already in progress")
	}
	file := filepath.Join(os.TempDir(), "therapyctl-recording.wav")
	args := append(append([]string{}, r.args...), file)
	cmd := exec.Command(r.path, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	r.cmd = cmd
	r.file = file
	r.started = time.Now()
	return nil
}

func (r *CommandRecorder) Stop() ([]byte, time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return nil, 0, ErrNotRecording
	}
	duration := time.Since(r.started)
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	_ = r.cmd.Wait()
	r.cmd = nil

	blob, err := os.ReadFile(r.file)
	_ = os.Remove(r.file)
	if err != nil {
		return nil, 0, err
	}
	return blob, duration, nil
}
