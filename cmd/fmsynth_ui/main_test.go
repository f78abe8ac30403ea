package main

import (
	"testing"
	"time"

	"github.com/cbegin/fmsynth-go"
	"github.com/cbegin/fmsynth-go/internal/fm"
)

func TestCloseDoesNotBlockOnFullQueue(t *testing.T) {
	synth, err := fmsynth.New(uiSampleRate, fmsynth.WithQueueSize(1))
	if err != nil {
		t.Fatal(err)
	}
	if !synth.TrySend(fm.NoteOn(48, 100)) {
		t.Fatal("queue should accept one message")
	}
	g := newGame(synth, newScope(uiSampleRate), 0.1)
	g.down[60] = 1
	g.down[64] = 2

	done := make(chan struct{})
	go func() {
		g.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked with a full control queue")
	}
}

func TestSendTracksHeldNotes(t *testing.T) {
	synth, err := fmsynth.New(uiSampleRate)
	if err != nil {
		t.Fatal(err)
	}
	g := newGame(synth, newScope(uiSampleRate), 0.1)
	g.send(fm.NoteOn(60, 100))
	g.send(fm.NoteOn(60, 100))
	g.send(fm.NoteOff(60))
	if g.down[60] != 1 {
		t.Fatalf("down[60] = %d after two ons and one off", g.down[60])
	}
	g.send(fm.NoteOff(60))
	if _, ok := g.down[60]; ok {
		t.Fatal("note still marked down")
	}
}
