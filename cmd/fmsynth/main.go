package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cbegin/fmsynth-go"
	"github.com/cbegin/fmsynth-go/internal/input"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		sampleRate  = flag.Int("sample-rate", 48000, "output sample rate")
		voices      = flag.Int("voices", 8, "maximum simultaneous voices")
		volume      = flag.Float64("volume", 1.0, "master volume scalar")
		blockSize   = flag.Int("block", fmsynth.DefaultBlockSize, "frames rendered between control message drains")
		bufferMs    = flag.Int("buffer-ms", 0, "audio device buffer in milliseconds (0 = driver default)")
		port        = flag.String("midi", "", "MIDI input port name (empty = all inputs)")
		noMIDI      = flag.Bool("no-midi", false, "do not listen for MIDI input")
		list        = flag.Bool("list", false, "list MIDI input ports and exit")
		hold        = flag.Duration("hold", input.DefaultHold, "how long a terminal key note sounds after its last key event")
		noChorus    = flag.Bool("no-chorus", false, "start with the chorus bypassed")
		chorusDepth = flag.Float64("chorus-depth", 0.1, "chorus sweep depth (0..1)")
		noEffects   = flag.Bool("no-effects", false, "disable chorus, reverb and limiter")
		debug       = flag.Bool("debug", false, "log every control message")
	)
	flag.Parse()
	defer midi.CloseDriver()

	if *list {
		for _, name := range input.MIDIInputs() {
			fmt.Println(name)
		}
		return
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	synth, err := fmsynth.New(*sampleRate,
		fmsynth.WithPolyphony(*voices),
		fmsynth.WithVolume(*volume),
		fmsynth.WithBlockSize(*blockSize),
		fmsynth.WithBufferSize(time.Duration(*bufferMs)*time.Millisecond),
		fmsynth.WithChorus(!*noChorus, float32(*chorusDepth)),
		fmsynth.WithEffects(!*noEffects),
	)
	if err != nil {
		log.Fatal(err)
	}
	if err := synth.Start(); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = synth.Stop() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	if !*noMIDI {
		g.Go(func() error {
			err := input.ListenMIDI(ctx, *port, synth, logger)
			if errors.Is(err, input.ErrNoMIDIInput) {
				logger.Warn("no MIDI input; computer keyboard only")
				return nil
			}
			return err
		})
	}
	kb := input.NewTerminalKeyboard(synth, *hold, logger)
	g.Go(func() error {
		fmt.Fprint(os.Stderr, "keys a..l play, z/x octave, space sustain, q quits\r\n")
		err := kb.Run(ctx, os.Stdin)
		if errors.Is(err, input.ErrQuit) {
			stop()
			return nil
		}
		// Stdin closed: keep playing MIDI until interrupted.
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("fmsynth", "err", err)
		os.Exit(1)
	}
}
