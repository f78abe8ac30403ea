package effects

import (
	"math"
	"testing"
)

func TestReverbPreDelayAndTail(t *testing.T) {
	r := NewReverb(44100, 0.5, 0.01, 1)
	l, _ := r.Process(1.0, 1.0)
	if l != 0 {
		t.Fatalf("fully wet reverb should not pass the dry impulse, got %f", l)
	}
	for i := 1; i < 441; i++ {
		if l, _ := r.Process(0, 0); l != 0 {
			t.Fatalf("output %f at sample %d, inside the pre-delay", l, i)
		}
	}
	var early, late float64
	for i := 441; i < 44100*2; i++ {
		l, _ := r.Process(0, 0)
		switch {
		case i < 441+22050/4:
			early += math.Abs(float64(l))
		case i >= 44100*3/2:
			late += math.Abs(float64(l))
		}
	}
	if early < 0.01 {
		t.Fatalf("expected reverb tail, early energy %f", early)
	}
	if late >= early*0.01 {
		t.Fatalf("tail should have decayed: early %f late %f", early, late)
	}
}

func TestReverbReset(t *testing.T) {
	r := NewReverb(48000, 1, 0, 1)
	for i := 0; i < 5000; i++ {
		r.Process(0.5, -0.2)
	}
	r.Reset()
	for i := 0; i < 5000; i++ {
		if l, rr := r.Process(0, 0); l != 0 || rr != 0 {
			t.Fatalf("reset reverb produced %f, %f", l, rr)
		}
	}
}

func TestChorusDelaysWithoutDepth(t *testing.T) {
	c := NewChorus(48000, 2, 0, 0, 2, 180, 1)
	c.Process(1, -1)
	for i := 1; i < 96; i++ {
		if l, r := c.Process(0, 0); l != 0 || r != 0 {
			t.Fatalf("early output at %d: %f, %f", i, l, r)
		}
	}
	l, r := c.Process(0, 0)
	if l != 1 || r != -1 {
		t.Fatalf("expected delayed impulse, got %f, %f", l, r)
	}
}

func TestChorusSpreadSeparatesChannels(t *testing.T) {
	c := NewChorus(48000, 2, 0, 0.5, 2, 180, 1)
	var diff float64
	for i := 0; i < 48000/4; i++ {
		s := float32(math.Sin(2 * math.Pi * 440 * float64(i) / 48000))
		l, r := c.Process(s, s)
		diff += math.Abs(float64(l - r))
	}
	if diff < 1 {
		t.Fatalf("expected stereo difference, got %f", diff)
	}
}

func TestChorusSetDepthClamps(t *testing.T) {
	c := NewChorus(48000, 2, 0, 0.1, 2, 180, 0.5)
	if c.Depth() != 0.1 {
		t.Fatalf("Depth() = %f", c.Depth())
	}
	c.SetDepth(4)
	if c.Depth() != 1 {
		t.Fatalf("Depth() = %f after SetDepth(4)", c.Depth())
	}
	c.SetDepth(-1)
	if c.Depth() != 0 {
		t.Fatalf("Depth() = %f after SetDepth(-1)", c.Depth())
	}
	// Full depth must stay inside the buffer.
	c.SetDepth(1)
	for i := 0; i < 48000; i++ {
		c.Process(0.1, 0.1)
	}
}

func TestLimiterHoldsPeaks(t *testing.T) {
	c := NewLimiter(44100, -20)
	var out float32
	for i := 0; i < 44100; i++ {
		out, _ = c.Process(1.0, 1.0)
	}
	if out > 0.15 || out < 0.1 {
		t.Errorf("limiter output %f, expected close to 0.1", out)
	}
}

func TestCompressorPassesQuietSignal(t *testing.T) {
	c := NewLimiter(44100, -20)
	for i := 0; i < 1000; i++ {
		l, r := c.Process(0.05, -0.05)
		if l != 0.05 || r != -0.05 {
			t.Fatalf("quiet signal changed: %f, %f", l, r)
		}
	}
}

func TestCompressorLinksChannels(t *testing.T) {
	c := NewCompressor(44100, -10, 4, 1, 50, 0)
	var l, r float32
	for i := 0; i < 1000; i++ {
		l, r = c.Process(1.0, 0.01)
	}
	if l >= 1.0 {
		t.Errorf("compressor should reduce loud signals, got %f", l)
	}
	if ratio := r / l; math.Abs(float64(ratio)-0.01) > 1e-4 {
		t.Errorf("channel balance changed: ratio %f", ratio)
	}
}

func TestGain(t *testing.T) {
	g := NewGain(0.5)
	if l, r := g.Process(1, -0.5); l != 0.5 || r != -0.25 {
		t.Fatalf("Process = %f, %f", l, r)
	}
	g.Set(-2)
	if g.Value() != 0 {
		t.Fatalf("negative gain stored as %f", g.Value())
	}
}

func TestSwitchBypass(t *testing.T) {
	s := NewSwitch(NewGain(0), false)
	if l, r := s.Process(0.3, 0.4); l != 0.3 || r != 0.4 {
		t.Fatalf("bypassed switch changed signal: %f, %f", l, r)
	}
	s.SetEnabled(true)
	if !s.Enabled() {
		t.Fatal("Enabled() = false")
	}
	if l, r := s.Process(0.3, 0.4); l != 0 || r != 0 {
		t.Fatalf("enabled switch skipped effect: %f, %f", l, r)
	}
}

func TestChainAppliesEffectsInOrder(t *testing.T) {
	c := NewChain(NewGain(2), NewLimiter(44100, 0))
	l, r := c.Process(0.25, 0.25)
	if l != 0.5 || r != 0.5 {
		t.Fatalf("chain output %f, %f", l, r)
	}
	buf := []float32{0.1, 0.2, 0.3, 0.4, 9}
	NewChain(NewGain(2)).ProcessBuffer(buf)
	want := []float32{0.2, 0.4, 0.6, 0.8, 9}
	for i := range buf {
		if buf[i] != want[i] {
			t.Fatalf("ProcessBuffer[%d] = %f, want %f", i, buf[i], want[i])
		}
	}
}
