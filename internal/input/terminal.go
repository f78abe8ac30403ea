package input

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
	"unicode"

	"github.com/cbegin/fmsynth-go/internal/fm"
	"golang.org/x/term"
)

// ErrQuit is returned by TerminalKeyboard.Run when the user asks to quit.
var ErrQuit = errors.New("quit requested")

const (
	keyCtrlC = 0x03
	keySpace = ' '

	// DefaultHold is how long a terminal note sounds after its last key event.
	DefaultHold = 400 * time.Millisecond
)

// TerminalKeyboard plays the Keyboard layout from a terminal. Terminals only
// report key presses, so each note is released once its key has been quiet
// for the hold time; auto-repeat keeps extending it.
type TerminalKeyboard struct {
	sink   Sink
	hold   time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	keys    *Keyboard
	timers  map[rune]*holdTimer
	sustain bool
}

type holdTimer struct {
	*time.Timer
}

func NewTerminalKeyboard(sink Sink, hold time.Duration, logger *slog.Logger) *TerminalKeyboard {
	if hold <= 0 {
		hold = DefaultHold
	}
	return &TerminalKeyboard{
		sink:   sink,
		hold:   hold,
		logger: logger,
		keys:   NewKeyboard(),
		timers: make(map[rune]*holdTimer),
	}
}

// Run reads keys from in until ctx is cancelled, in is exhausted, or q /
// Ctrl-C is pressed, in which case it returns ErrQuit. A terminal on in is
// switched to raw mode for the duration.
func (t *TerminalKeyboard) Run(ctx context.Context, in io.Reader) error {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}
		defer func() { _ = term.Restore(fd, oldState) }()
	}
	defer t.releaseAll()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The read blocks and cannot be interrupted; it is abandoned on cancel.
	keys := make(chan byte)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := in.Read(buf)
			if n > 0 {
				select {
				case keys <- buf[0]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case b := <-keys:
			if t.HandleKey(b) {
				return ErrQuit
			}
		}
	}
}

// HandleKey processes one byte of terminal input and reports whether it was a
// quit request.
func (t *TerminalKeyboard) HandleKey(b byte) bool {
	switch b {
	case 'q', 'Q', keyCtrlC:
		return true
	case keySpace:
		t.mu.Lock()
		t.sustain = !t.sustain
		down := t.sustain
		t.mu.Unlock()
		t.logger.Info("sustain", "down", down)
		t.sink.Send(fm.Sustain(down))
		return false
	}

	key := unicode.ToLower(rune(b))
	if !IsNoteKey(key) {
		t.mu.Lock()
		before := t.keys.Octave()
		t.keys.KeyDown(key)
		after := t.keys.Octave()
		t.mu.Unlock()
		if after != before {
			t.logger.Info("octave", "octave", after)
		}
		return false
	}

	t.mu.Lock()
	msg, ok := t.keys.KeyDown(key)
	if timer, held := t.timers[key]; held && timer.Stop() {
		timer.Reset(t.hold)
	} else {
		h := &holdTimer{}
		h.Timer = time.AfterFunc(t.hold, func() { t.release(key, h) })
		t.timers[key] = h
	}
	t.mu.Unlock()
	if ok {
		t.logger.Debug("key", "key", string(key), "msg", msg.String())
		t.sink.Send(msg)
	}
	return false
}

func (t *TerminalKeyboard) release(key rune, h *holdTimer) {
	t.mu.Lock()
	if t.timers[key] != h {
		// Superseded by a later press.
		t.mu.Unlock()
		return
	}
	delete(t.timers, key)
	msg, ok := t.keys.KeyUp(key)
	t.mu.Unlock()
	if ok {
		t.sink.Send(msg)
	}
}

func (t *TerminalKeyboard) releaseAll() {
	t.mu.Lock()
	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
	msgs := t.keys.ReleaseAll()
	t.mu.Unlock()
	for _, msg := range msgs {
		t.sink.Send(msg)
	}
}

// Octave returns the current octave shift.
func (t *TerminalKeyboard) Octave() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.keys.Octave()
}
