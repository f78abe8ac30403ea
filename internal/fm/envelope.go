package fm

import "math"

type envStage int

const (
	envAttack envStage = iota
	envDecay1
	envDecay2
	envRelease
	envFinished
)

// envelope is a four-segment rate/level generator. Levels live in the
// log-amplitude domain; envGain converts them to linear gain on output.
type envelope struct {
	rates     [numStages]int
	levels    [numStages]int
	level     float64
	stage     envStage
	target    float64
	rising    bool
	increment float64
	down      bool
}

func (e *envelope) init(rates, levels [numStages]int) {
	*e = envelope{
		rates:  rates,
		levels: levels,
		down:   true,
	}
	e.advance(envAttack)
}

func (e *envelope) noteOff() {
	e.down = false
	e.advance(envRelease)
}

func (e *envelope) finished() bool {
	return e.stage == envFinished
}

// render steps the envelope by one sample and returns the linear gain.
// A held key freezes the level once the release stage is reached on its own,
// which is how the stage-2 level is sustained.
func (e *envelope) render() float64 {
	if e.stage < envRelease || (e.stage < envFinished && !e.down) {
		if e.rising {
			e.level += e.increment * (2 + (e.target-e.level)/256)
			if e.level >= e.target {
				e.level = e.target
				e.advance(e.stage + 1)
			}
		} else {
			e.level -= e.increment
			if e.level <= e.target {
				e.level = e.target
				e.advance(e.stage + 1)
			}
		}
	}
	return envGain(e.level)
}

func (e *envelope) advance(stage envStage) {
	e.stage = stage
	if stage >= envFinished {
		return
	}
	target := ScaleLevel(e.levels[stage])<<5 - 224
	if target < 0 {
		target = 0
	}
	e.target = float64(target)
	e.rising = e.target > e.level
	qr := (e.rates[stage] * 41) >> 6
	if qr > 63 {
		qr = 63
	}
	e.increment = math.Pow(2, float64(qr)/4) / 2048
}
