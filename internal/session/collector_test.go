package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeForGame(t *testing.T) {
	assert.Equal(t, PairedMatch, ModeForGame("memory_match"))
	assert.Equal(t, FreeText, ModeForGame("scene_description"))
	assert.Equal(t, AudioCapture, ModeForGame("speech"))
	assert.Equal(t, AudioCapture, ModeForGame("speech_therapy"))
	assert.Equal(t, MultiSelect, ModeForGame("object_discovery_multi"))
	assert.Equal(t, SingleSelect, ModeForGame("matching"))
	assert.Equal(t, SingleSelect, ModeForGame("some_future_game"))
}

func TestPicker_ValueInClickOrder(t *testing.T) {
	p := NewPicker()
	p.Toggle("dog")
	p.Toggle("cat")

	v, err := p.Value()
	require.NoError(t, err)
	assert.Equal(t, "dog,cat", v)
}

func TestPicker_ToggleOffRemovesFromOrder(t *testing.T) {
	p := NewPicker()
	p.Toggle("dog")
	p.Toggle("cat")
	p.Toggle("fish")
	p.Toggle("cat")

	assert.False(t, p.Selected("cat"))
	assert.Equal(t, 2, p.Count())

	v, err := p.Value()
	require.NoError(t, err)
	assert.Equal(t, "dog,fish", v)

	// Re-selecting appends at the end, not at the old position.
	p.Toggle("cat")
	v, err = p.Value()
	require.NoError(t, err)
	assert.Equal(t, "dog,fish,cat", v)
}

func TestPicker_EmptyConfirmRejected(t *testing.T) {
	p := NewPicker()
	assert.False(t, p.CanConfirm())

	_, err := p.Value()
	assert.ErrorIs(t, err, ErrEmptySelection)

	p.Toggle("dog")
	p.Toggle("dog")
	_, err = p.Value()
	assert.ErrorIs(t, err, ErrEmptySelection)
}

func TestPicker_Clear(t *testing.T) {
	p := NewPicker()
	p.Toggle("dog")
	p.Clear()
	assert.Equal(t, 0, p.Count())
	assert.False(t, p.Selected("dog"))
}

func TestTextValue(t *testing.T) {
	v, err := TextValue("  the dog is chasing a ball  ")
	require.NoError(t, err)
	assert.Equal(t, "the dog is chasing a ball", v)

	_, err = TextValue("   ")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = TextValue("")
	assert.ErrorIs(t, err, ErrEmptyText)
}
