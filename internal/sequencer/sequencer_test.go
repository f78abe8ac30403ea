package sequencer

import (
	"math"
	"strings"
	"testing"

	"github.com/cbegin/fmsynth-go/internal/fm"
)

type applied struct {
	frame int64
	msg   fm.Message
}

// recordingEngine logs which frame each message arrived at and how large each
// rendered block was.
type recordingEngine struct {
	frame   int64
	applied []applied
	blocks  []int
	active  int
}

func (e *recordingEngine) ApplyMessage(msg fm.Message) {
	e.applied = append(e.applied, applied{frame: e.frame, msg: msg})
	switch msg.Kind {
	case fm.MessageNoteOn:
		e.active++
	case fm.MessageNoteOff:
		e.active--
	}
}

func (e *recordingEngine) Process(dst []float32) {
	e.blocks = append(e.blocks, len(dst)/2)
	e.frame += int64(len(dst) / 2)
	for i := range dst {
		dst[i] = float32(e.active)
	}
}

func (e *recordingEngine) ActiveVoiceCount() int { return e.active }

func TestSequencerAppliesEventsAtBlockBoundaries(t *testing.T) {
	score := &Score{
		SampleRate: 1000,
		BlockSize:  10,
		Events: []Event{
			{At: 0, Message: fm.SetVoices(4)},
			{At: 0, Message: fm.NoteOn(60, 100)},
			{At: 0.015, Message: fm.NoteOn(64, 100)}, // frame 15
			{At: 0.020, Message: fm.NoteOff(60)},     // frame 20
		},
	}
	eng := &recordingEngine{}
	seq := New(score, eng)
	seq.Process(make([]float32, 2*40))

	want := []int64{0, 0, 20, 20}
	if len(eng.applied) != len(want) {
		t.Fatalf("applied %d messages, want %d", len(eng.applied), len(want))
	}
	for i, a := range eng.applied {
		if a.frame != want[i] {
			t.Errorf("message %d (%v) applied at frame %d, want %d", i, a.msg, a.frame, want[i])
		}
		if a.msg != score.Events[i].Message {
			t.Errorf("message %d = %v, want %v", i, a.msg, score.Events[i].Message)
		}
	}
	for i, n := range eng.blocks {
		if n != 10 {
			t.Fatalf("block %d has %d frames", i, n)
		}
	}
	if seq.Frame() != 40 || seq.Pending() != 0 {
		t.Fatalf("Frame %d Pending %d", seq.Frame(), seq.Pending())
	}
}

func TestSequencerSplitsUnevenBuffers(t *testing.T) {
	score := &Score{SampleRate: 1000, BlockSize: 16}
	eng := &recordingEngine{}
	seq := New(score, eng)
	buf := make([]float32, 2*20+1)
	buf[len(buf)-1] = 7
	seq.Process(buf)
	if len(eng.blocks) != 2 || eng.blocks[0] != 16 || eng.blocks[1] != 4 {
		t.Fatalf("blocks = %v, want [16 4]", eng.blocks)
	}
	if buf[len(buf)-1] != 0 {
		t.Fatal("odd trailing sample should be zeroed")
	}
}

func TestSequencerPlaybackEnded(t *testing.T) {
	score := &Score{
		SampleRate: 1000,
		BlockSize:  10,
		Events: []Event{
			{At: 0, Message: fm.NoteOn(60, 100)},
			{At: 0.05, Message: fm.NoteOff(60)},
		},
	}
	var ended int
	eng := &recordingEngine{}
	seq := NewWithOptions(score, eng, Options{
		ReleaseTailFrames: 30,
		OnEvent: func(k EventKind) {
			if k == EventPlaybackEnded {
				ended++
			}
		},
	})
	buf := make([]float32, 2*10)
	blocks := 0
	for !seq.Done() {
		if blocks > 100 {
			t.Fatal("playback never ended")
		}
		seq.Process(buf)
		blocks++
	}
	// Note-off lands with block 5 (frame 50); the 30-frame tail ends with block 7.
	if blocks != 8 {
		t.Fatalf("ended after %d blocks, want 8", blocks)
	}
	seq.Process(buf)
	if ended != 1 {
		t.Fatalf("EventPlaybackEnded fired %d times", ended)
	}
}

func TestSequencerDefaults(t *testing.T) {
	eng := &recordingEngine{}
	seq := New(&Score{}, eng)
	seq.Process(make([]float32, 2*DefaultBlockSize*2))
	if len(eng.blocks) != 2 || eng.blocks[0] != DefaultBlockSize {
		t.Fatalf("blocks = %v", eng.blocks)
	}
}

func TestSequencerDrivesEngine(t *testing.T) {
	e, err := fm.New(48000, fm.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	eng := &fmAdapter{e}
	score := &Score{
		SampleRate: 48000,
		BlockSize:  128,
		Events: []Event{
			{At: 0, Message: fm.NoteOn(60, 100)},
			{At: 0.1, Message: fm.NoteOff(60)},
		},
	}
	seq := New(score, eng)
	buf := make([]float32, 48000/4*2)
	seq.Process(buf)
	var energy float64
	for _, s := range buf {
		if s < 0 {
			energy -= float64(s)
		} else {
			energy += float64(s)
		}
	}
	if energy == 0 {
		t.Fatalf("expected non-zero audio energy")
	}
}

type fmAdapter struct{ *fm.Engine }

func (a *fmAdapter) Process(dst []float32) { a.RenderBlock(dst) }

func TestParseScore(t *testing.T) {
	src := `
sample_rate: 44100
block_size: 64
events:
  - {at: 1.5, type: noteOff, note: 60}
  - {at: 0, type: voices, voices: 4}
  - {at: 0, type: noteOn, note: 60}
  - {at: 0.5, type: noteOn, note: 64, velocity: 0}
  - {at: 0.75, type: sustain, down: true}
  - {at: 0.8, type: pitchBend, note: 3}
`
	s, err := LoadScore(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadScore: %v", err)
	}
	if s.SampleRate != 44100 || s.BlockSize != 64 {
		t.Fatalf("header = %d/%d", s.SampleRate, s.BlockSize)
	}
	want := []Event{
		{At: 0, Message: fm.SetVoices(4)},
		{At: 0, Message: fm.NoteOn(60, 100)},
		{At: 0.5, Message: fm.NoteOn(64, 0)},
		{At: 0.75, Message: fm.Sustain(true)},
		{At: 0.8, Message: fm.Message{Kind: fm.MessageUnknown, Note: 3}},
		{At: 1.5, Message: fm.NoteOff(60)},
	}
	if len(s.Events) != len(want) {
		t.Fatalf("got %d events, want %d", len(s.Events), len(want))
	}
	for i := range want {
		if s.Events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, s.Events[i], want[i])
		}
	}
	if d := s.Duration(); d != 1.5 {
		t.Fatalf("Duration = %v", d)
	}
}

func TestParseScoreErrors(t *testing.T) {
	for _, tc := range []struct {
		name, src string
	}{
		{"negative time", "events: [{at: -1, type: noteOn, note: 60}]"},
		{"time past the limit", "events: [{at: 1e300, type: noteOn, note: 60}]"},
		{"unknown field", "events: [{at: 0, type: noteOn, pitch: 60}]"},
		{"bad sample rate", "sample_rate: -5"},
		{"not yaml", "events: [:"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseScore([]byte(tc.src)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLatestEventTimeSchedulesInOrder(t *testing.T) {
	s, err := ParseScore([]byte("events: [{at: 86400, type: noteOn, note: 60}, {at: 0, type: voices, voices: 2}]"))
	if err != nil {
		t.Fatalf("ParseScore: %v", err)
	}
	eng := &recordingEngine{}
	seq := New(s, eng)
	seq.Process(make([]float32, 2*DefaultBlockSize*4))
	if len(eng.applied) != 1 || eng.applied[0].msg != fm.SetVoices(2) {
		t.Fatalf("applied = %v, want only the voices message", eng.applied)
	}
	if seq.Pending() != 1 {
		t.Fatalf("Pending = %d", seq.Pending())
	}
}

func TestEventFrameClamps(t *testing.T) {
	for _, tc := range []struct {
		at   float64
		want int64
	}{
		{0, 0},
		{0.5, 24000},
		{-3, 0},
		{math.NaN(), 0},
		{1e300, lastFrame},
		{math.Inf(1), lastFrame},
	} {
		if got := eventFrame(tc.at, 48000); got != tc.want {
			t.Errorf("eventFrame(%v) = %d, want %d", tc.at, got, tc.want)
		}
	}

	// A Score built in code skips ParseScore; a huge time must still wait.
	eng := &recordingEngine{}
	seq := New(&Score{Events: []Event{{At: 1e300, Message: fm.NoteOn(60, 100)}}}, eng)
	seq.Process(make([]float32, 2*DefaultBlockSize*2))
	if len(eng.applied) != 0 {
		t.Fatalf("far-future event applied: %v", eng.applied)
	}
}

func TestScoreMarshalRoundTrip(t *testing.T) {
	s := &Score{
		SampleRate: 48000,
		BlockSize:  128,
		Events: []Event{
			{At: 0, Message: fm.NoteOn(60, 0)},
			{At: 0.25, Message: fm.Sustain(true)},
			{At: 1, Message: fm.NoteOff(60)},
		},
	}
	data, err := s.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParseScore(data)
	if err != nil {
		t.Fatalf("ParseScore(%s): %v", data, err)
	}
	for i := range s.Events {
		if got.Events[i] != s.Events[i] {
			t.Errorf("event %d = %+v, want %+v", i, got.Events[i], s.Events[i])
		}
	}
}
