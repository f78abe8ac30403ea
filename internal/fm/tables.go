package fm

import "math"

const (
	twoPi = math.Pi * 2

	// levelUnit is the size of one output-level code step in dB.
	levelUnit = 0.0235

	// envCenter is the envelope level that maps to 0 dB.
	envCenter = 3824
	envSize   = 4096

	// octave1024 is the 1024th root of 2: one detune step.
	octave1024 = 1.0006771307

	velocityBias = 239
)

// levelLUT covers the non-linear low end of ScaleLevel (params 0-19).
var levelLUT = [20]int{
	0, 5, 9, 13, 17, 20, 23, 25, 27, 29, 31, 33, 35, 37, 39, 41, 42, 43, 45, 46,
}

var velocityLUT = [64]int{
	0, 70, 86, 97, 106, 114, 121, 126, 132, 138, 142, 148, 152, 156, 160, 163,
	166, 170, 173, 174, 178, 181, 184, 186, 189, 190, 194, 196, 198, 200, 202,
	205, 206, 209, 211, 214, 216, 218, 220, 222, 224, 225, 227, 229, 230, 232,
	233, 235, 237, 238, 240, 241, 242, 243, 244, 246, 246, 248, 249, 250, 251,
	252, 253, 254,
}

var envGainLUT = buildEnvGainLUT()

func buildEnvGainLUT() [envSize]float64 {
	var lut [envSize]float64
	for i := range lut {
		dB := float64(i-envCenter) * levelUnit
		lut[i] = math.Pow(20, dB/20)
	}
	return lut
}

// ScaleLevel converts a 0-99 level parameter into an output-level code.
// From 20 upward the mapping is linear; below that it follows a table.
func ScaleLevel(level int) int {
	if level < 0 {
		level = 0
	}
	if level >= len(levelLUT) {
		return 28 + level
	}
	return levelLUT[level]
}

// ScaleVelocity converts a note velocity and a 0-7 sensitivity into a signed
// output-level code offset, in steps of 16.
func ScaleVelocity(velocity, sensitivity int) int {
	velocity = clampInt(velocity, 0, 127)
	v := velocityLUT[velocity>>1] - velocityBias
	return ((sensitivity*v + 7) >> 3) << 4
}

// envGain maps an envelope level to a linear gain.
func envGain(level float64) float64 {
	i := int(math.Floor(level))
	if i < 0 {
		i = 0
	} else if i >= envSize {
		i = envSize - 1
	}
	return envGainLUT[i]
}

// codeToGain converts an operator output-level code to a linear gain. Code
// 99<<5 is unity.
func codeToGain(code int) float64 {
	return math.Pow(10, levelUnit*float64(code-99*32)/20)
}

func midiToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
