package fm

import (
	"math"
	"testing"
)

func newTestEnvelope(rates, levels [numStages]int) *envelope {
	e := &envelope{}
	e.init(rates, levels)
	return e
}

func TestEnvelopeStagesOnlyIncrease(t *testing.T) {
	e := newTestEnvelope([numStages]int{96, 60, 60, 70}, [numStages]int{99, 80, 0, 0})
	prev := e.stage
	for i := 0; i < 48000*20 && !e.finished(); i++ {
		e.render()
		if e.stage < prev {
			t.Fatalf("stage went from %d to %d at sample %d", prev, e.stage, i)
		}
		prev = e.stage
		if i == 48000 {
			e.noteOff()
			if e.stage != envRelease {
				t.Fatalf("noteOff left stage %d", e.stage)
			}
		}
	}
	if !e.finished() {
		t.Fatalf("envelope never finished, stage %d level %v", e.stage, e.level)
	}
}

func TestEnvelopeHoldsSustainLevel(t *testing.T) {
	e := newTestEnvelope([numStages]int{99, 90, 90, 50}, [numStages]int{99, 80, 60, 0})
	want := float64(ScaleLevel(60)<<5 - 224)
	for i := 0; i < 48000; i++ {
		e.render()
	}
	if e.stage != envRelease || !e.down {
		t.Fatalf("expected held envelope parked at release stage, got stage %d down %v", e.stage, e.down)
	}
	if e.level != want {
		t.Fatalf("held level = %v, want %v", e.level, want)
	}
	g := e.render()
	for i := 0; i < 1000; i++ {
		if e.render() != g {
			t.Fatal("held envelope gain changed")
		}
	}

	e.noteOff()
	for i := 0; i < 48000*5 && !e.finished(); i++ {
		e.render()
	}
	if !e.finished() {
		t.Fatal("released envelope never finished")
	}
	if e.level != 0 {
		t.Fatalf("finished level = %v, want 0", e.level)
	}
}

func TestEnvelopeImmediateNoteOff(t *testing.T) {
	e := newTestEnvelope([numStages]int{96, 25, 25, 67}, [numStages]int{99, 75, 0, 0})
	e.noteOff()
	e.render()
	if !e.finished() {
		t.Fatalf("release from level 0 should finish at once, stage %d", e.stage)
	}
	level := e.level
	for i := 0; i < 10; i++ {
		e.render()
	}
	if e.level != level {
		t.Fatal("finished envelope level changed")
	}
}

func TestEnvelopeAdvanceTarget(t *testing.T) {
	e := newTestEnvelope([numStages]int{99, 0, 0, 0}, [numStages]int{99, 5, 0, 0})
	if e.target != float64(127<<5-224) {
		t.Fatalf("attack target = %v", e.target)
	}
	if !e.rising {
		t.Fatal("attack from zero should be rising")
	}
	// 99*41>>6 = 63, the ceiling.
	if want := math.Pow(2, 63.0/4) / 2048; e.increment != want {
		t.Fatalf("attack increment = %v, want %v", e.increment, want)
	}
	e.advance(envDecay1)
	// ScaleLevel(5)<<5 = 640, minus 224.
	if e.target != 416 {
		t.Fatalf("decay target = %v, want 416", e.target)
	}
	if e.increment != 1.0/2048 {
		t.Fatalf("rate 0 increment = %v, want 1/2048", e.increment)
	}
	e.advance(envDecay2)
	if e.target != 0 {
		t.Fatalf("negative target should clamp to 0, got %v", e.target)
	}
}
