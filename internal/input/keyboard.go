package input

import (
	"strings"
	"unicode"

	"github.com/cbegin/fmsynth-go/internal/fm"
)

const (
	MinOctave = -3
	MaxOctave = 3

	// KeyboardVelocity is the fixed velocity of computer-keyboard notes.
	KeyboardVelocity = 100

	baseNote = 60
)

// keyLayout maps a row of letter keys to consecutive semitones from middle C,
// white keys on the home row and black keys above them.
const keyLayout = "awsedftgyhujkol"

// Keyboard turns computer-keyboard presses into control messages. It tracks
// the note each key started so that releasing it after an octave change stops
// the right note.
type Keyboard struct {
	octave int
	held   map[rune]int
}

func NewKeyboard() *Keyboard {
	return &Keyboard{held: make(map[rune]int)}
}

func (k *Keyboard) Octave() int { return k.octave }

// ShiftOctave moves the octave by delta, staying within MinOctave..MaxOctave.
func (k *Keyboard) ShiftOctave(delta int) int {
	k.octave += delta
	if k.octave < MinOctave {
		k.octave = MinOctave
	}
	if k.octave > MaxOctave {
		k.octave = MaxOctave
	}
	return k.octave
}

// Note returns the note a key plays at the current octave.
func (k *Keyboard) Note(key rune) (int, bool) {
	i := strings.IndexRune(keyLayout, unicode.ToLower(key))
	if i < 0 {
		return 0, false
	}
	return baseNote + i + 12*k.octave, true
}

// IsNoteKey reports whether key plays a note.
func IsNoteKey(key rune) bool {
	return strings.ContainsRune(keyLayout, unicode.ToLower(key))
}

// KeyDown handles a key press. z and x shift the octave. A key that is already
// down produces nothing, so auto-repeat does not retrigger.
func (k *Keyboard) KeyDown(key rune) (fm.Message, bool) {
	key = unicode.ToLower(key)
	switch key {
	case 'z':
		k.ShiftOctave(-1)
		return fm.Message{}, false
	case 'x':
		k.ShiftOctave(1)
		return fm.Message{}, false
	}
	if _, down := k.held[key]; down {
		return fm.Message{}, false
	}
	note, ok := k.Note(key)
	if !ok {
		return fm.Message{}, false
	}
	k.held[key] = note
	return fm.NoteOn(note, KeyboardVelocity), true
}

// KeyUp releases the note started by key.
func (k *Keyboard) KeyUp(key rune) (fm.Message, bool) {
	key = unicode.ToLower(key)
	note, down := k.held[key]
	if !down {
		return fm.Message{}, false
	}
	delete(k.held, key)
	return fm.NoteOff(note), true
}

// ReleaseAll releases every held key.
func (k *Keyboard) ReleaseAll() []fm.Message {
	msgs := make([]fm.Message, 0, len(k.held))
	for key, note := range k.held {
		msgs = append(msgs, fm.NoteOff(note))
		delete(k.held, key)
	}
	return msgs
}
