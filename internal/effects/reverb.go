package effects

import "math"

// Reverb implements a Schroeder-style reverb with four comb filters and two
// allpass filters behind a pre-delay line. The comb feedback is derived from
// the decay time so the tail falls by 60 dB over decay seconds.
type Reverb struct {
	pre     []float32
	prePos  int
	combs   [4]combFilter
	allpass [2]allpassFilter
	wet     float32
}

type combFilter struct {
	buf []float32
	pos int
	fb  float32
}

type allpassFilter struct {
	buf []float32
	pos int
	fb  float32
}

// Delay lengths at 44.1 kHz; mutually prime to avoid stacked resonances.
var (
	combTuning    = [4]int{1116, 1188, 1277, 1356}
	allpassTuning = [2]int{556, 441}
)

// NewReverb creates a reverb effect.
// decaySec: time for the tail to fall by 60 dB
// preDelaySec: delay before the tail starts
// wet: wet/dry mix 0..1
func NewReverb(sampleRate int, decaySec, preDelaySec, wet float32) *Reverb {
	scale := float64(sampleRate) / 44100
	if decaySec < 0.001 {
		decaySec = 0.001
	}
	r := &Reverb{
		pre: make([]float32, maxInt(int(float64(preDelaySec)*float64(sampleRate)), 1)),
		wet: clamp(wet, 0, 1),
	}
	for i := range r.combs {
		n := maxInt(int(float64(combTuning[i])*scale), 1)
		// g^(decay*sr/n) = 10^-3
		fb := math.Pow(10, -3*float64(n)/(float64(decaySec)*float64(sampleRate)))
		r.combs[i] = combFilter{
			buf: make([]float32, n),
			fb:  clamp(float32(fb), 0, 0.98),
		}
	}
	for i := range r.allpass {
		r.allpass[i] = allpassFilter{
			buf: make([]float32, maxInt(int(float64(allpassTuning[i])*scale), 1)),
			fb:  0.5,
		}
	}
	return r
}

func (r *Reverb) Process(l, r2 float32) (float32, float32) {
	mono := r.pre[r.prePos]
	r.pre[r.prePos] = (l + r2) * 0.5
	r.prePos++
	if r.prePos >= len(r.pre) {
		r.prePos = 0
	}

	var out float32
	for i := range r.combs {
		out += r.combs[i].process(mono)
	}
	out *= 0.25
	for i := range r.allpass {
		out = r.allpass[i].process(out)
	}
	return l*(1-r.wet) + out*r.wet, r2*(1-r.wet) + out*r.wet
}

func (r *Reverb) Reset() {
	for i := range r.pre {
		r.pre[i] = 0
	}
	r.prePos = 0
	for i := range r.combs {
		for j := range r.combs[i].buf {
			r.combs[i].buf[j] = 0
		}
		r.combs[i].pos = 0
	}
	for i := range r.allpass {
		for j := range r.allpass[i].buf {
			r.allpass[i].buf[j] = 0
		}
		r.allpass[i].pos = 0
	}
}

func (c *combFilter) process(in float32) float32 {
	out := c.buf[c.pos]
	c.buf[c.pos] = in + out*c.fb
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpassFilter) process(in float32) float32 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*a.fb
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
