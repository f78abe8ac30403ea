package effects

import (
	"math"
	"sync/atomic"

	"github.com/cbegin/fmsynth-go/internal/lfo"
)

// Chorus is a stereo modulated delay. The left and right delay lines are
// swept by the same LFO, offset by the stereo spread.
type Chorus struct {
	bufL, bufR []float32
	pos        int
	size       int
	delay      float32 // centre delay in samples
	depth      atomic.Uint32
	lfo        *lfo.LFO
	spread     float64 // LFO cycles between the left and right channel
	feedback   float32
	wet        float32
}

// NewChorus creates a chorus.
// delayMs: centre delay time in ms
// feedback: feedback amount 0..1
// depth: sweep depth as a fraction of the delay, 0..1
// rateHz: LFO rate in Hz
// spreadDeg: LFO phase offset between channels in degrees
// wet: wet/dry mix 0..1
func NewChorus(sampleRate int, delayMs, feedback, depth, rateHz, spreadDeg, wet float32) *Chorus {
	delay := float64(delayMs) * float64(sampleRate) / 1000.0
	// Room for the full sweep (up to twice the centre delay) and interpolation.
	size := int(2*delay) + 3
	if size < 4 {
		size = 4
	}
	c := &Chorus{
		bufL:     make([]float32, size),
		bufR:     make([]float32, size),
		size:     size,
		delay:    float32(delay),
		lfo:      lfo.New(float64(rateHz), sampleRate, lfo.WaveSine),
		spread:   float64(spreadDeg) / 360,
		feedback: clamp(feedback, 0, 0.9),
		wet:      clamp(wet, 0, 1),
	}
	c.SetDepth(depth)
	return c
}

// SetDepth changes the sweep depth. Safe to call while audio is running.
func (c *Chorus) SetDepth(depth float32) {
	c.depth.Store(math.Float32bits(clamp(depth, 0, 1)))
}

func (c *Chorus) Depth() float32 { return math.Float32frombits(c.depth.Load()) }

func (c *Chorus) Process(l, r float32) (float32, float32) {
	swing := c.delay * c.Depth()
	modL := float32(c.lfo.Value(0)) * swing
	modR := float32(c.lfo.Value(c.spread)) * swing
	c.lfo.Advance()

	c.bufL[c.pos] = l
	c.bufR[c.pos] = r
	delL := c.tap(c.bufL, c.delay+modL)
	delR := c.tap(c.bufR, c.delay+modR)
	c.bufL[c.pos] += delL * c.feedback
	c.bufR[c.pos] += delR * c.feedback

	c.pos++
	if c.pos >= c.size {
		c.pos = 0
	}
	return l*(1-c.wet) + delL*c.wet, r*(1-c.wet) + delR*c.wet
}

// tap reads buf delay samples behind the write head with linear
// interpolation.
func (c *Chorus) tap(buf []float32, delay float32) float32 {
	readPos := float32(c.pos) - delay
	for readPos < 0 {
		readPos += float32(c.size)
	}
	idx := int(readPos)
	if idx >= c.size {
		idx -= c.size
	}
	frac := readPos - float32(int(readPos))
	idx2 := idx + 1
	if idx2 >= c.size {
		idx2 = 0
	}
	return buf[idx]*(1-frac) + buf[idx2]*frac
}

func (c *Chorus) Reset() {
	for i := range c.bufL {
		c.bufL[i] = 0
		c.bufR[i] = 0
	}
	c.pos = 0
	c.lfo.Reset()
}
