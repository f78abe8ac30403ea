package fm

import "errors"

// initialPoolSize bounds the voice slices allocated up front.
const initialPoolSize = 64

type Params struct {
	Polyphony  int     // initial voice limit
	VoiceLevel float64 // headroom applied to every voice
	Patch      Patch
	Algorithm  Algorithm
}

func DefaultParams() Params {
	return Params{
		Polyphony:  8,
		VoiceLevel: 0.125 / 6,
		Patch:      EPiano1(),
		Algorithm:  Algorithm5(),
	}
}

// Engine owns the voice pool. It is not safe for concurrent use: messages
// and rendering must come from the same goroutine.
type Engine struct {
	sampleRate float64
	prog       *program
	voices     []*Voice // oldest first
	free       []*Voice
	polyphony  int
	sustain    bool
}

// New builds an engine. It fails if the sample rate is not positive or the
// patch or algorithm does not validate.
func New(sampleRate int, params Params) (*Engine, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	prog, err := compile(params.Patch, params.Algorithm, params.VoiceLevel)
	if err != nil {
		return nil, err
	}
	poly := params.Polyphony
	if poly < 0 {
		poly = 0
	}
	// The limit may be far larger than any pool that will ever fill.
	size := min(poly, initialPoolSize) + 1
	return &Engine{
		sampleRate: float64(sampleRate),
		prog:       prog,
		voices:     make([]*Voice, 0, size),
		free:       make([]*Voice, 0, size),
		polyphony:  poly,
	}, nil
}

// ApplyMessage applies one control message. Unknown kinds are ignored.
func (e *Engine) ApplyMessage(m Message) {
	switch m.Kind {
	case MessageVoices:
		e.SetPolyphony(m.Voices)
	case MessageNoteOn:
		e.NoteOn(m.Note, m.Velocity)
	case MessageNoteOff:
		e.NoteOff(m.Note)
	case MessageSustain:
		e.SetSustain(m.Down)
	default:
	}
}

// SetPolyphony sets the voice limit and drops the oldest voices that exceed
// it, held or not.
func (e *Engine) SetPolyphony(n int) {
	if n < 0 {
		n = 0
	}
	e.polyphony = n
	e.truncate()
}

// NoteOn starts a new voice. Voices for the same note may coexist.
func (e *Engine) NoteOn(note, velocity int) {
	v := e.allocVoice()
	v.init(e.prog, note, velocity, e.sampleRate)
	e.voices = append(e.voices, v)
	e.truncate()
}

// NoteOff lets go of every held voice playing note. With the sustain pedal
// down the release is deferred until the pedal comes up.
func (e *Engine) NoteOff(note int) {
	for _, v := range e.voices {
		if v.note != note || !v.down {
			continue
		}
		v.down = false
		if !e.sustain {
			v.noteOff()
		}
	}
}

// SetSustain moves the sustain pedal. Lifting it releases every voice whose
// key went up while it was held.
func (e *Engine) SetSustain(down bool) {
	e.sustain = down
	if down {
		return
	}
	for _, v := range e.voices {
		if !v.down && !v.released {
			v.noteOff()
		}
	}
}

// RenderBlock fills dst with interleaved stereo frames, summing all live
// voices. Finished voices are reclaimed once the block is done.
func (e *Engine) RenderBlock(dst []float32) {
	frames := len(dst) / 2
	for i := 0; i < frames; i++ {
		var l, r float64
		for _, v := range e.voices {
			vl, vr := v.render(e.prog)
			l += vl
			r += vr
		}
		dst[2*i] = float32(l)
		dst[2*i+1] = float32(r)
	}
	if len(dst)%2 != 0 {
		dst[len(dst)-1] = 0
	}
	e.reclaim()
}

func (e *Engine) ActiveVoiceCount() int { return len(e.voices) }

func (e *Engine) Polyphony() int { return e.polyphony }

func (e *Engine) Sustained() bool { return e.sustain }

func (e *Engine) SampleRate() int { return int(e.sampleRate) }

// Voices returns the live voices, oldest first. The slice is only valid until
// the next call that changes the pool.
func (e *Engine) Voices() []*Voice { return e.voices }

func (e *Engine) allocVoice() *Voice {
	if n := len(e.free); n > 0 {
		v := e.free[n-1]
		e.free[n-1] = nil
		e.free = e.free[:n-1]
		return v
	}
	return &Voice{}
}

func (e *Engine) truncate() {
	excess := len(e.voices) - e.polyphony
	if excess <= 0 {
		return
	}
	e.free = append(e.free, e.voices[:excess]...)
	n := copy(e.voices, e.voices[excess:])
	for i := n; i < len(e.voices); i++ {
		e.voices[i] = nil
	}
	e.voices = e.voices[:n]
}

func (e *Engine) reclaim() {
	kept := e.voices[:0]
	for _, v := range e.voices {
		if v.finished(e.prog) {
			e.free = append(e.free, v)
			continue
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(e.voices); i++ {
		e.voices[i] = nil
	}
	e.voices = kept
}
