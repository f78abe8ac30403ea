package effects

import "math"

// Compressor implements stereo-linked dynamic range compression. Both
// channels share one envelope so the stereo image does not shift.
type Compressor struct {
	threshold float32
	ratio     float32
	attack    float32 // coefficient
	release   float32 // coefficient
	makeup    float32
	env       float32
}

// NewCompressor creates a compressor effect.
// thresholdDB: threshold in dB (e.g., -20)
// ratio: compression ratio (e.g., 4 for 4:1)
// attackMs: attack time in ms
// releaseMs: release time in ms
// makeupDB: makeup gain in dB
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float32) *Compressor {
	if ratio < 1 {
		ratio = 1
	}
	return &Compressor{
		threshold: float32(math.Pow(10, float64(thresholdDB)/20)),
		ratio:     ratio,
		attack:    timeCoefficient(attackMs, sampleRate),
		release:   timeCoefficient(releaseMs, sampleRate),
		makeup:    float32(math.Pow(10, float64(makeupDB)/20)),
	}
}

// NewLimiter creates a fast 20:1 compressor that holds peaks near
// thresholdDB.
func NewLimiter(sampleRate int, thresholdDB float32) *Compressor {
	return NewCompressor(sampleRate, thresholdDB, 20, 3, 250, 0)
}

func timeCoefficient(ms float32, sampleRate int) float32 {
	if ms <= 0 {
		return 1
	}
	return float32(1.0 - math.Exp(-1.0/(float64(ms)*float64(sampleRate)/1000.0)))
}

func (c *Compressor) Process(l, r float32) (float32, float32) {
	peak := float32(math.Max(math.Abs(float64(l)), math.Abs(float64(r))))
	if peak > c.env {
		c.env += c.attack * (peak - c.env)
	} else {
		c.env += c.release * (peak - c.env)
	}
	gain := c.computeGain(c.env) * c.makeup
	return l * gain, r * gain
}

func (c *Compressor) computeGain(env float32) float32 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1.0
	}
	over := env / c.threshold
	return float32(math.Pow(float64(over), float64(1.0/c.ratio-1)))
}

func (c *Compressor) Reset() {
	c.env = 0
}
