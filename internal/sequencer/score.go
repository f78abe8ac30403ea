package sequencer

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/cbegin/fmsynth-go/internal/fm"
	"gopkg.in/yaml.v2"
)

const (
	DefaultSampleRate = 48000
	DefaultBlockSize  = 128

	// MaxEventTime is the latest event time a score may use, in seconds.
	MaxEventTime = 24 * 60 * 60
)

// Event is a control message scheduled At seconds from the start.
type Event struct {
	At      float64
	Message fm.Message
}

// Score is a timed list of control messages.
type Score struct {
	SampleRate int
	BlockSize  int
	Events     []Event
}

// Duration returns the time of the last event in seconds.
func (s *Score) Duration() float64 {
	var d float64
	for _, ev := range s.Events {
		if ev.At > d {
			d = ev.At
		}
	}
	return d
}

type scoreFile struct {
	SampleRate int         `yaml:"sample_rate"`
	BlockSize  int         `yaml:"block_size"`
	Events     []eventFile `yaml:"events"`
}

type eventFile struct {
	At       float64 `yaml:"at"`
	Type     string  `yaml:"type"`
	Note     int     `yaml:"note,omitempty"`
	Velocity *int    `yaml:"velocity,omitempty"`
	Voices   int     `yaml:"voices,omitempty"`
	Down     bool    `yaml:"down,omitempty"`
}

// ParseScore decodes a YAML score. Missing sample rate and block size fall
// back to the defaults, a note-on without a velocity plays at 100, and events
// of unknown type are kept and later ignored by the engine.
func ParseScore(data []byte) (*Score, error) {
	var f scoreFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse score: %w", err)
	}
	s := &Score{
		SampleRate: f.SampleRate,
		BlockSize:  f.BlockSize,
		Events:     make([]Event, 0, len(f.Events)),
	}
	if s.SampleRate == 0 {
		s.SampleRate = DefaultSampleRate
	}
	if s.BlockSize == 0 {
		s.BlockSize = DefaultBlockSize
	}
	if s.SampleRate < 0 || s.BlockSize < 0 {
		return nil, errors.New("parse score: sample_rate and block_size must be positive")
	}
	for i, ef := range f.Events {
		if ef.At < 0 || ef.At > MaxEventTime || math.IsNaN(ef.At) || math.IsInf(ef.At, 0) {
			return nil, fmt.Errorf("parse score: event %d: invalid time %v", i, ef.At)
		}
		msg := fm.Message{
			Kind:   fm.ParseMessageKind(ef.Type),
			Note:   ef.Note,
			Voices: ef.Voices,
			Down:   ef.Down,
		}
		if msg.Kind == fm.MessageNoteOn {
			msg.Velocity = 100
		}
		if ef.Velocity != nil {
			msg.Velocity = *ef.Velocity
		}
		s.Events = append(s.Events, Event{At: ef.At, Message: msg})
	}
	sort.SliceStable(s.Events, func(i, j int) bool { return s.Events[i].At < s.Events[j].At })
	return s, nil
}

func LoadScore(r io.Reader) (*Score, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseScore(data)
}

func LoadScoreFile(path string) (*Score, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadScore(f)
}

// Marshal encodes the score back to YAML.
func (s *Score) Marshal() ([]byte, error) {
	f := scoreFile{
		SampleRate: s.SampleRate,
		BlockSize:  s.BlockSize,
		Events:     make([]eventFile, 0, len(s.Events)),
	}
	for _, ev := range s.Events {
		ef := eventFile{At: ev.At, Type: ev.Message.Kind.String()}
		switch ev.Message.Kind {
		case fm.MessageNoteOn:
			v := ev.Message.Velocity
			ef.Note, ef.Velocity = ev.Message.Note, &v
		case fm.MessageNoteOff:
			ef.Note = ev.Message.Note
		case fm.MessageVoices:
			ef.Voices = ev.Message.Voices
		case fm.MessageSustain:
			ef.Down = ev.Message.Down
		}
		f.Events = append(f.Events, ef)
	}
	return yaml.Marshal(&f)
}
