package sequencer

import (
	"math"

	"github.com/cbegin/fmsynth-go/internal/fm"
)

// VoiceEngine is what a Sequencer drives: something that accepts control
// messages between blocks and renders interleaved stereo.
type VoiceEngine interface {
	ApplyMessage(msg fm.Message)
	Process(dst []float32)
	// ActiveVoiceCount returns the number of voices still sounding.
	// Used to detect when playback has fully ended including release tails.
	ActiveVoiceCount() int
}

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventPlaybackEnded EventKind = iota
)

type Options struct {
	OnEvent           func(EventKind)
	ReleaseTailFrames int // extra frames to render after last voice ends (0 = use 0.5s default)
}

type scheduled struct {
	frame int64
	msg   fm.Message
}

// Sequencer plays a Score into a VoiceEngine. Events are applied at block
// boundaries: an event lands on the first block that starts at or after its
// frame.
type Sequencer struct {
	engine             VoiceEngine
	events             []scheduled
	next               int
	frame              int64
	blockSize          int
	onEvent            func(EventKind)
	releaseTailFrames  int
	playbackEndedFired bool
}

func New(score *Score, engine VoiceEngine) *Sequencer {
	return NewWithOptions(score, engine, Options{})
}

func NewWithOptions(score *Score, engine VoiceEngine, opts Options) *Sequencer {
	sampleRate := score.SampleRate
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	blockSize := score.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	tailFrames := opts.ReleaseTailFrames
	if tailFrames <= 0 {
		tailFrames = sampleRate / 2
	}
	s := &Sequencer{
		engine:            engine,
		events:            make([]scheduled, len(score.Events)),
		blockSize:         blockSize,
		onEvent:           opts.OnEvent,
		releaseTailFrames: tailFrames,
	}
	for i, ev := range score.Events {
		s.events[i] = scheduled{
			frame: eventFrame(ev.At, sampleRate),
			msg:   ev.Message,
		}
	}
	return s
}

// lastFrame is later than any frame a sequencer will reach.
const lastFrame = math.MaxInt64 / 2

// eventFrame converts a time in seconds to a frame. Times too late to
// represent never fire; negative and NaN times fire at once.
func eventFrame(at float64, sampleRate int) int64 {
	f := math.Round(at * float64(sampleRate))
	switch {
	case f >= lastFrame:
		return lastFrame
	case f > 0:
		return int64(f)
	}
	return 0
}

// Process renders len(dst)/2 frames, one block at a time.
func (s *Sequencer) Process(dst []float32) {
	for len(dst) >= 2 {
		n := s.blockSize * 2
		if n > len(dst)&^1 {
			n = len(dst) &^ 1
		}
		s.dispatch()
		s.engine.Process(dst[:n])
		frames := n / 2
		s.frame += int64(frames)
		s.trackEnd(frames)
		dst = dst[n:]
	}
	if len(dst) == 1 {
		dst[0] = 0
	}
}

func (s *Sequencer) dispatch() {
	for s.next < len(s.events) && s.events[s.next].frame <= s.frame {
		s.engine.ApplyMessage(s.events[s.next].msg)
		s.next++
	}
}

func (s *Sequencer) trackEnd(frames int) {
	if s.playbackEndedFired || s.next < len(s.events) || s.engine.ActiveVoiceCount() > 0 {
		return
	}
	s.releaseTailFrames -= frames
	if s.releaseTailFrames > 0 {
		return
	}
	s.playbackEndedFired = true
	if s.onEvent != nil {
		s.onEvent(EventPlaybackEnded)
	}
}

// Frame returns the number of frames rendered so far.
func (s *Sequencer) Frame() int64 { return s.frame }

// Pending returns the number of events not yet applied.
func (s *Sequencer) Pending() int { return len(s.events) - s.next }

// Done reports whether every event has been applied, every voice has
// finished and the release tail has been rendered.
func (s *Sequencer) Done() bool { return s.playbackEndedFired }
