package session

import (
	"errors"
	"strings"
)

// InputMode tags how a game variant turns user interaction into the one
// submission value the controller sends. The set is closed; game code picks
// the mode at construction time instead of branching per variant downstream.
type InputMode int

const (
	SingleSelect InputMode = iota
	MultiSelect
	PairedMatch
	FreeText
	AudioCapture
)

// ModeForGame maps the platform's registered game codes to input modes.
// Unknown codes get single-select, which every option-based plugin supports.
func ModeForGame(code string) InputMode {
	switch code {
	case "memory_match":
		return PairedMatch
	case "scene_description":
		return FreeText
	case "speech", "speech_therapy":
		return AudioCapture
	case "object_discovery_multi":
		return MultiSelect
	default:
		// matching, object_discovery, problem_solving
		return SingleSelect
	}
}

var (
	ErrEmptySelection = errors.New("select at least one option before confirming")
	ErrEmptyText      = errors.New("enter a description before submitting")
)

// Picker holds a multi-select toggle set. Confirmation is explicit and is
// rejected while the set is empty. The submission value joins the selected
// option ids with commas in click order.
type Picker struct {
	order  []string
	chosen map[string]bool
}

func NewPicker() *Picker {
	return &Picker{chosen: make(map[string]bool)}
}

// Toggle flips membership for one option id.
func (p *Picker) Toggle(id string) {
	if p.chosen[id] {
		delete(p.chosen, id)
		for i, v := range p.order {
			if v == id {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
		return
	}
	p.chosen[id] = true
	p.order = append(p.order, id)
}

func (p *Picker) Selected(id string) bool { return p.chosen[id] }

func (p *Picker) Count() int { return len(p.order) }

func (p *Picker) CanConfirm() bool { return len(p.order) > 0 }

// Value is the canonical multi-select submission: ids comma-joined in the
// order they were clicked.
func (p *Picker) Value() (string, error) {
	if !p.CanConfirm() {
		return "", ErrEmptySelection
	}
	return strings.Join(p.order, ","), nil
}

func (p *Picker) Clear() {
	p.order = nil
	p.chosen = make(map[string]bool)
}

// TextValue validates a free-text submission. Whitespace-only input never
// reaches the transport.
func TextValue(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyText
	}
	return trimmed, nil
}
