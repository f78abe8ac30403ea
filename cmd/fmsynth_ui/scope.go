package main

import (
	"math"
	"math/bits"
	"math/cmplx"
	"sync"
)

const (
	scopeWindow = 2048    // frames per analysis, a power of two
	scopeRing   = 1 << 17 // frames of history
	scopeFloor  = -80.0   // dB shown as an empty band
	scopeTop    = 18000.0 // Hz, highest band edge
)

// scope keeps the most recent mono mix of the synth output so the view can
// show what is being heard rather than what was last rendered.
type scope struct {
	sampleRate int

	mu      sync.Mutex
	ring    [scopeRing]float32
	written int64 // frames ever written

	fft  *fftPlan
	buf  []complex128
	hann []float64
}

func newScope(sampleRate int) *scope {
	s := &scope{
		sampleRate: sampleRate,
		fft:        newFFTPlan(scopeWindow),
		buf:        make([]complex128, scopeWindow),
		hann:       make([]float64, scopeWindow),
	}
	for i := range s.hann {
		s.hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(scopeWindow-1))
	}
	return s
}

// Tap records interleaved stereo output. It runs on the audio thread.
func (s *scope) Tap(stereo []float32) {
	s.mu.Lock()
	for i := 0; i+1 < len(stereo); i += 2 {
		s.ring[s.written%scopeRing] = 0.5 * (stereo[i] + stereo[i+1])
		s.written++
	}
	s.mu.Unlock()
}

// heard returns the n frames ending at frame played, the device's playback
// position. Frames not yet written, or already overwritten, read as silence.
func (s *scope) heard(n int, played int64) []float32 {
	out := make([]float32, n)
	s.mu.Lock()
	defer s.mu.Unlock()
	end := min(played, s.written)
	oldest := s.written - scopeRing
	for i := range out {
		f := end - int64(n) + int64(i)
		if f < 0 || f < oldest {
			continue
		}
		out[i] = s.ring[f%scopeRing]
	}
	return out
}

// bands splits the spectrum of the last scopeWindow samples into count
// log-spaced bands from the first bin up to scopeTop. Each band shows its
// loudest bin, scaled to 0..1 between scopeFloor and 0 dBFS.
func (s *scope) bands(samples []float32, count int) []float64 {
	levels := make([]float64, count)
	if len(samples) < scopeWindow || count <= 0 {
		return levels
	}
	samples = samples[len(samples)-scopeWindow:]
	for i, v := range samples {
		s.buf[i] = complex(float64(v)*s.hann[i], 0)
	}
	s.fft.transform(s.buf)

	half := scopeWindow / 2
	top := min(int(scopeTop*scopeWindow/float64(s.sampleRate)), half)
	span := math.Log(float64(top))
	edge := func(i int) int { return int(math.Exp(span * float64(i) / float64(count))) }
	for i := range levels {
		lo, hi := edge(i), edge(i+1)
		hi = min(max(hi, lo+1), half)
		if lo >= hi {
			continue
		}
		var peak float64
		for _, c := range s.buf[lo:hi] {
			peak = math.Max(peak, cmplx.Abs(c))
		}
		// A full-scale sine through a Hann window peaks at a quarter of the
		// window length.
		mag := peak / (scopeWindow / 4)
		db := 20 * math.Log10(mag+1e-12)
		levels[i] = clamp((db-scopeFloor)/-scopeFloor, 0, 1)
	}
	return levels
}

// fftPlan is an iterative radix-2 transform with precomputed twiddles.
type fftPlan struct {
	n       int
	shift   int
	twiddle []complex128
}

func newFFTPlan(n int) *fftPlan {
	p := &fftPlan{
		n:       n,
		shift:   bits.UintSize - bits.Len(uint(n-1)),
		twiddle: make([]complex128, n/2),
	}
	for k := range p.twiddle {
		p.twiddle[k] = cmplx.Rect(1, -2*math.Pi*float64(k)/float64(n))
	}
	return p
}

func (p *fftPlan) transform(x []complex128) {
	for i := range x {
		j := int(bits.Reverse(uint(i)) >> p.shift)
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}
	for size := 2; size <= p.n; size *= 2 {
		half, stride := size/2, p.n/size
		for base := 0; base < p.n; base += size {
			for k := 0; k < half; k++ {
				a, b := base+k, base+k+half
				t := p.twiddle[k*stride] * x[b]
				x[a], x[b] = x[a]+t, x[a]-t
			}
		}
	}
}
