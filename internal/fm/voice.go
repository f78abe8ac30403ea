package fm

// Voice is one sounding note: six operators routed by the engine's program.
type Voice struct {
	note     int
	velocity int
	// down is true while the key that started the voice is held.
	down bool
	// released is set once the envelopes have been sent into release.
	released bool
	ops      [NumOperators]operator
}

func (v *Voice) init(prog *program, note, velocity int, sampleRate float64) {
	v.note = note
	v.velocity = velocity
	v.down = true
	v.released = false
	freq := midiToFreq(note)
	for i := range v.ops {
		v.ops[i].init(&prog.ops[i], freq, velocity, sampleRate)
	}
}

// Note returns the note number the voice was started with.
func (v *Voice) Note() int { return v.note }

// Down reports whether the voice's key is still held.
func (v *Voice) Down() bool { return v.down }

// render produces one stereo sample. Operators run from the highest index
// down so that a modulator's current sample is available to its dependent;
// a self-modulating operator reads its own value from the previous sample.
func (v *Voice) render(prog *program) (float64, float64) {
	for i := NumOperators - 1; i >= 0; i-- {
		mod := 0.0
		if m := prog.modulator[i]; m != noModulator {
			src := &v.ops[m]
			if m == i {
				mod = src.value * prog.feedback
			} else {
				mod = src.value * src.outputLevel
			}
		}
		v.ops[i].render(mod)
	}

	var l, r float64
	for _, c := range prog.carriers {
		op := &v.ops[c]
		level := op.value * op.outputLevel
		l += level * op.ampL
		r += level * op.ampR
	}
	return l * prog.carrierMix, r * prog.carrierMix
}

func (v *Voice) noteOff() {
	v.released = true
	for i := range v.ops {
		v.ops[i].noteOff()
	}
}

// finished reports whether every carrier has gone silent. Modulators that are
// still running do not keep the voice alive.
func (v *Voice) finished(prog *program) bool {
	for _, c := range prog.carriers {
		if !v.ops[c].finished() {
			return false
		}
	}
	return true
}
