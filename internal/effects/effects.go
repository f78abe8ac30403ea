package effects

import "sync/atomic"

// Effector processes stereo audio in-place.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(l, r float32) (float32, float32) {
	for _, e := range c.effects {
		l, r = e.Process(l, r)
	}
	return l, r
}

// ProcessBuffer runs the chain over an interleaved stereo buffer.
func (c *Chain) ProcessBuffer(buf []float32) {
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i], buf[i+1] = c.Process(buf[i], buf[i+1])
	}
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

// Switch routes audio through an effect or around it. The route can be
// flipped from any goroutine; the wrapped effect keeps its state while
// bypassed.
type Switch struct {
	effect  Effector
	enabled atomic.Bool
}

func NewSwitch(effect Effector, enabled bool) *Switch {
	s := &Switch{effect: effect}
	s.enabled.Store(enabled)
	return s
}

func (s *Switch) SetEnabled(enabled bool) { s.enabled.Store(enabled) }

func (s *Switch) Enabled() bool { return s.enabled.Load() }

func (s *Switch) Process(l, r float32) (float32, float32) {
	if !s.enabled.Load() {
		return l, r
	}
	return s.effect.Process(l, r)
}

func (s *Switch) Reset() { s.effect.Reset() }

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
