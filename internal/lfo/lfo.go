package lfo

import "math"

// Waveform shapes.
const (
	WaveSine     = 0
	WaveTriangle = 1
)

// LFO is a low-frequency oscillator stepped once per sample. Several outputs
// can be read from one oscillator at different phase offsets, which keeps
// stereo modulation locked together.
type LFO struct {
	step     float64 // phase increment per sample, in cycles
	waveform int
	phase    float64 // current phase [0, 1)
}

// New returns an LFO running at rateHz for the given sample rate.
func New(rateHz float64, sampleRate int, waveform int) *LFO {
	l := &LFO{}
	l.Set(rateHz, sampleRate, waveform)
	return l
}

// Set configures the rate and shape. Unknown waveforms fall back to sine.
func (l *LFO) Set(rateHz float64, sampleRate int, waveform int) {
	if sampleRate > 0 {
		l.step = rateHz / float64(sampleRate)
	} else {
		l.step = 0
	}
	if waveform != WaveTriangle {
		waveform = WaveSine
	}
	l.waveform = waveform
}

// Value returns the waveform in [-1, 1] at the current phase plus offset
// cycles, without advancing.
func (l *LFO) Value(offset float64) float64 {
	p := l.phase + offset
	p -= math.Floor(p)
	if l.waveform == WaveTriangle {
		// Starts at zero and rises, like the sine.
		switch {
		case p < 0.25:
			return 4 * p
		case p < 0.75:
			return 2 - 4*p
		default:
			return 4*p - 4
		}
	}
	return math.Sin(2 * math.Pi * p)
}

// Advance steps the oscillator by one sample.
func (l *LFO) Advance() {
	l.phase += l.step
	if l.phase >= 1 {
		l.phase -= math.Floor(l.phase)
	}
}

// Active reports whether the oscillator moves.
func (l *LFO) Active() bool { return l.step != 0 }

// Reset zeros the phase.
func (l *LFO) Reset() { l.phase = 0 }
