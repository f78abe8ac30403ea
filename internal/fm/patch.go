package fm

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

const (
	// NumOperators is the fixed operator count of every patch.
	NumOperators = 6

	numStages   = 4
	noModulator = -1
)

var (
	ErrInvalidPatch     = errors.New("invalid patch")
	ErrInvalidAlgorithm = errors.New("invalid algorithm")
)

// OperatorParams holds the per-operator settings of a patch.
type OperatorParams struct {
	Rates        []int   // attack, decay 1, decay 2, release rates (0-99)
	Levels       []int   // target levels for the same four stages (0-99)
	Detune       int     // 1/1024-octave steps
	VelocitySens int     // 0-7
	Volume       int     // 0-99
	FreqCoarse   float64 // frequency multiplier
	Pan          int     // -50 (left) to 50 (right)
}

// Patch is the complete set of sound parameters for one instrument.
type Patch struct {
	Name      string
	Feedback  int // 0-7
	Operators []OperatorParams
}

// Algorithm describes the operator routing. Modulators maps an operator to
// the operator that modulates its phase; an operator mapped to itself uses
// its own previous output as feedback. Carriers are summed into the mix.
type Algorithm struct {
	Modulators map[int]int
	Carriers   []int
}

// Validate reports whether every parameter of the patch is within range.
func (p Patch) Validate() error {
	if p.Feedback < 0 || p.Feedback > 7 {
		return fmt.Errorf("%w: feedback %d out of range 0-7", ErrInvalidPatch, p.Feedback)
	}
	if len(p.Operators) != NumOperators {
		return fmt.Errorf("%w: %d operators, want %d", ErrInvalidPatch, len(p.Operators), NumOperators)
	}
	for i, op := range p.Operators {
		if err := op.validate(); err != nil {
			return fmt.Errorf("%w: operator %d: %v", ErrInvalidPatch, i, err)
		}
	}
	return nil
}

func (op OperatorParams) validate() error {
	if len(op.Rates) != numStages {
		return fmt.Errorf("%d rates, want %d", len(op.Rates), numStages)
	}
	if len(op.Levels) != numStages {
		return fmt.Errorf("%d levels, want %d", len(op.Levels), numStages)
	}
	for i := 0; i < numStages; i++ {
		if op.Rates[i] < 0 || op.Rates[i] > 99 {
			return fmt.Errorf("rate %d = %d out of range 0-99", i, op.Rates[i])
		}
		if op.Levels[i] < 0 || op.Levels[i] > 99 {
			return fmt.Errorf("level %d = %d out of range 0-99", i, op.Levels[i])
		}
	}
	switch {
	case op.VelocitySens < 0 || op.VelocitySens > 7:
		return fmt.Errorf("velocity sensitivity %d out of range 0-7", op.VelocitySens)
	case op.Volume < 0 || op.Volume > 99:
		return fmt.Errorf("volume %d out of range 0-99", op.Volume)
	case op.Pan < -50 || op.Pan > 50:
		return fmt.Errorf("pan %d out of range -50..50", op.Pan)
	case !(op.FreqCoarse > 0) || math.IsInf(op.FreqCoarse, 0):
		return fmt.Errorf("frequency multiplier %v must be positive", op.FreqCoarse)
	}
	return nil
}

// Validate checks that every index is in range and that every modulator other
// than a self-feedback one has a higher index than the operator it modulates.
// Voices render operators from the highest index down, so this guarantees a
// modulator's current sample is ready before its dependent needs it.
func (a Algorithm) Validate() error {
	for dep, mod := range a.Modulators {
		if dep < 0 || dep >= NumOperators {
			return fmt.Errorf("%w: operator %d out of range", ErrInvalidAlgorithm, dep)
		}
		if mod < 0 || mod >= NumOperators {
			return fmt.Errorf("%w: modulator %d of operator %d out of range", ErrInvalidAlgorithm, mod, dep)
		}
		if mod != dep && mod < dep {
			return fmt.Errorf("%w: modulator %d must have a higher index than operator %d", ErrInvalidAlgorithm, mod, dep)
		}
	}
	if len(a.Carriers) == 0 {
		return fmt.Errorf("%w: no carriers", ErrInvalidAlgorithm)
	}
	seen := make(map[int]bool, len(a.Carriers))
	for _, c := range a.Carriers {
		if c < 0 || c >= NumOperators {
			return fmt.Errorf("%w: carrier %d out of range", ErrInvalidAlgorithm, c)
		}
		if seen[c] {
			return fmt.Errorf("%w: duplicate carrier %d", ErrInvalidAlgorithm, c)
		}
		seen[c] = true
	}
	return nil
}

// FeedbackRatio is the gain applied to a self-modulating operator's previous
// output.
func (p Patch) FeedbackRatio() float64 {
	return math.Pow(2, float64(p.Feedback-7))
}

type compiledOp struct {
	rates        [numStages]int
	levels       [numStages]int
	detune       int
	velocitySens int
	volume       int
	coarse       float64
	pan          int
}

// program is a validated patch and algorithm in the form the render loop uses.
type program struct {
	ops        [NumOperators]compiledOp
	modulator  [NumOperators]int
	carriers   []int
	feedback   float64
	carrierMix float64
}

func compile(p Patch, a Algorithm, voiceLevel float64) (*program, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	prog := &program{
		feedback:   p.FeedbackRatio(),
		carriers:   append([]int(nil), a.Carriers...),
		carrierMix: voiceLevel / float64(len(a.Carriers)),
	}
	sort.Ints(prog.carriers)
	for i, op := range p.Operators {
		s := &prog.ops[i]
		copy(s.rates[:], op.Rates)
		copy(s.levels[:], op.Levels)
		s.detune = op.Detune
		s.velocitySens = op.VelocitySens
		s.volume = op.Volume
		s.coarse = op.FreqCoarse
		s.pan = op.Pan
	}
	for i := range prog.modulator {
		prog.modulator[i] = noModulator
	}
	for dep, mod := range a.Modulators {
		prog.modulator[dep] = mod
	}
	return prog, nil
}

// Algorithm5 is the classic three-stack routing: 1→0, 3→2, 5→4 with
// feedback on operator 5.
func Algorithm5() Algorithm {
	return Algorithm{
		Modulators: map[int]int{0: 1, 2: 3, 4: 5, 5: 5},
		Carriers:   []int{0, 2, 4},
	}
}

// EPiano1 returns the electric piano patch.
func EPiano1() Patch {
	return Patch{
		Name:     "E.PIANO 1",
		Feedback: 6,
		Operators: []OperatorParams{
			{Rates: []int{96, 25, 25, 67}, Levels: []int{99, 75, 0, 0}, Detune: 3, VelocitySens: 2, Volume: 99, FreqCoarse: 1, Pan: 0},
			{Rates: []int{95, 50, 35, 78}, Levels: []int{99, 75, 0, 0}, Detune: 0, VelocitySens: 7, Volume: 58, FreqCoarse: 14, Pan: 25},
			{Rates: []int{95, 20, 20, 50}, Levels: []int{99, 95, 0, 0}, Detune: 0, VelocitySens: 2, Volume: 99, FreqCoarse: 1, Pan: -25},
			{Rates: []int{95, 29, 20, 50}, Levels: []int{99, 95, 0, 0}, Detune: 0, VelocitySens: 6, Volume: 89, FreqCoarse: 1, Pan: 0},
			{Rates: []int{95, 20, 20, 50}, Levels: []int{99, 95, 0, 0}, Detune: -7, VelocitySens: 0, Volume: 99, FreqCoarse: 1, Pan: 25},
			{Rates: []int{95, 29, 20, 50}, Levels: []int{99, 95, 0, 0}, Detune: 7, VelocitySens: 6, Volume: 79, FreqCoarse: 1, Pan: -25},
		},
	}
}
