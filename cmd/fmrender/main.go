package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cbegin/fmsynth-go"
	"github.com/cbegin/fmsynth-go/internal/sequencer"
)

func main() {
	var (
		scorePath = flag.String("score", "", "path to a YAML score")
		outPath   = flag.String("out", "out.wav", "output WAV path")
		seconds   = flag.Float64("seconds", 0, "render exactly this many seconds (0 = until the last note has died away)")
		voices    = flag.Int("voices", 8, "maximum simultaneous voices")
		volume    = flag.Float64("volume", 1.0, "master volume scalar")
		noEffects = flag.Bool("no-effects", false, "render the dry engine output")
	)
	flag.Parse()
	if *scorePath == "" && flag.NArg() > 0 {
		*scorePath = flag.Arg(0)
	}
	if *scorePath == "" {
		log.Fatal("a score is required: -score path/to/score.yaml")
	}

	score, err := sequencer.LoadScoreFile(*scorePath)
	if err != nil {
		log.Fatal(err)
	}
	samples, err := fmsynth.RenderScore(score, *seconds,
		fmsynth.WithPolyphony(*voices),
		fmsynth.WithVolume(*volume),
		fmsynth.WithEffects(!*noEffects),
	)
	if err != nil {
		log.Fatal(err)
	}
	wav := fmsynth.EncodeWAVFloat32LE(samples, score.SampleRate, 2)
	if err := os.WriteFile(*outPath, wav, 0o644); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s (%.2fs, %d events)\n", *outPath, float64(len(samples)/2)/float64(score.SampleRate), len(score.Events))
}
