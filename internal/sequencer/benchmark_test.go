package sequencer

import (
	"testing"

	"github.com/cbegin/fmsynth-go/internal/fm"
)

func BenchmarkSequencerProcess(b *testing.B) {
	score := &Score{SampleRate: 48000, BlockSize: 128}
	for i, note := range []int{60, 62, 64, 65, 67, 69, 71, 72} {
		at := float64(i) * 0.005
		score.Events = append(score.Events,
			Event{At: at, Message: fm.NoteOn(note, 100)},
			Event{At: at + 0.02, Message: fm.NoteOff(note)},
		)
	}
	buf := make([]float32, 2048*2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine, err := fm.New(48000, fm.DefaultParams())
		if err != nil {
			b.Fatal(err)
		}
		seq := New(score, &fmAdapter{engine})
		seq.Process(buf)
	}
}
