package fm

import "math"

// operator is a sine oscillator with its own envelope.
type operator struct {
	phase       float64
	phaseStep   float64
	outputLevel float64
	ampL        float64
	ampR        float64
	value       float64 // last rendered sample
	env         envelope
}

func (o *operator) init(cop *compiledOp, baseFreq float64, velocity int, sampleRate float64) {
	// Both pan amplitudes are written as sines so the extremes are exactly 0.
	o.ampL = math.Sin(math.Pi / 2 * float64(50-cop.pan) / 100)
	o.ampR = math.Sin(math.Pi / 2 * float64(cop.pan+50) / 100)

	code := ScaleLevel(cop.volume)<<5 + ScaleVelocity(velocity, cop.velocitySens)
	if code < 0 {
		code = 0
	}
	o.outputLevel = codeToGain(code)

	freq := baseFreq * cop.coarse * math.Pow(octave1024, float64(cop.detune))
	o.phaseStep = twoPi * freq / sampleRate
	o.phase = 0
	o.value = 0
	o.env.init(cop.rates, cop.levels)
}

// render produces one sample with mod added to the phase, in radians.
func (o *operator) render(mod float64) float64 {
	o.value = math.Sin(o.phase+mod) * o.env.render()
	o.phase += o.phaseStep
	if o.phase >= twoPi {
		o.phase = math.Mod(o.phase, twoPi)
	}
	return o.value
}

func (o *operator) noteOff() { o.env.noteOff() }

func (o *operator) finished() bool { return o.env.finished() }
