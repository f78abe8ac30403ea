package effects

import (
	"math"
	"sync/atomic"
)

// Gain scales both channels by a linear factor that may be changed while
// audio is running.
type Gain struct {
	bits atomic.Uint32
}

func NewGain(gain float32) *Gain {
	g := &Gain{}
	g.Set(gain)
	return g
}

// Set stores a new factor. Negative values are treated as 0.
func (g *Gain) Set(gain float32) {
	if gain < 0 || gain != gain {
		gain = 0
	}
	g.bits.Store(math.Float32bits(gain))
}

func (g *Gain) Value() float32 { return math.Float32frombits(g.bits.Load()) }

func (g *Gain) Process(l, r float32) (float32, float32) {
	v := g.Value()
	return l * v, r * v
}

func (g *Gain) Reset() {}
